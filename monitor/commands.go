package monitor

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	requestTimeout = 5 * time.Second
	// manual polls run synchronously on the server
	pollTimeout = 2 * time.Minute
)

func fetchStatus(client *Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		status, err := client.GetStatus(ctx)
		return StatusUpdateMsg{Status: status, Err: err}
	}
}

func triggerPoll(client *Client, channel string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), pollTimeout)
		defer cancel()
		report, err := client.Poll(ctx, channel)
		return PollDoneMsg{Channel: channel, Report: report, Err: err}
	}
}

func triggerReset(client *Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		n, err := client.ResetSpamKeywords(ctx)
		return ResetDoneMsg{Removed: n, Err: err}
	}
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}
