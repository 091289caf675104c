package monitor

import (
	"fmt"
	"strconv"

	"newsbot/types"

	tea "github.com/charmbracelet/bubbletea"
)

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case TickMsg:
		return m, tea.Batch(fetchStatus(m.client), tickCmd(m.refresh))
	case StatusUpdateMsg:
		return m.handleStatus(msg), nil
	case PollDoneMsg:
		return m.handlePollDone(msg), nil
	case ResetDoneMsg:
		if msg.Err != nil {
			m.Notice = "reset failed: " + msg.Err.Error()
		} else {
			m.Notice = fmt.Sprintf("cleared %d keyword counters", msg.Removed)
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "r":
		m.Notice = "clearing keyword counters..."
		return m, triggerReset(m.client)
	default:
		n, err := strconv.Atoi(key)
		if err != nil {
			return m, nil
		}
		name, ok := m.channelAt(n)
		if !ok || m.Pending[name] {
			return m, nil
		}
		m.Pending[name] = true
		m.Notice = "polling " + name + "..."
		return m, triggerPoll(m.client, name)
	}
}

func (m Model) handleStatus(msg StatusUpdateMsg) Model {
	if msg.Err != nil {
		m.Connected = false
		m.Err = msg.Err
		return m
	}
	m.Connected = true
	m.Err = nil
	m.Status = msg.Status
	return m
}

func (m Model) handlePollDone(msg PollDoneMsg) Model {
	delete(m.Pending, msg.Channel)
	if msg.Err != nil {
		m.Notice = msg.Err.Error()
		return m
	}
	m.Notice = fmt.Sprintf("%s: %d fetched, %d delivered", msg.Channel,
		msg.Report.Fetched, msg.Report.Count(types.OutcomeDelivered))
	return m
}
