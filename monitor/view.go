package monitor

import (
	"fmt"
	"strings"
	"time"

	"newsbot/types"
)

// View implements tea.Model
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("newsbot monitor"))
	b.WriteString("\n")

	if !m.Connected {
		msg := "Not connected"
		if m.Err != nil {
			msg += ": " + m.Err.Error()
		}
		b.WriteString(ErrorStyle.Render(msg))
		b.WriteString("\n\n")
		b.WriteString(InfoStyle.Render("Press 'q' to quit"))
		return b.String()
	}

	if m.Status.CacheAvailable {
		b.WriteString(StatusStyle.Render("counter cache: up"))
	} else {
		b.WriteString(WarnStyle.Render("counter cache: degraded (sqlite fallback)"))
	}
	b.WriteString("\n\n")

	var rows strings.Builder
	for i, ch := range m.Status.Channels {
		if i > 0 {
			rows.WriteString("\n")
		}
		rows.WriteString(m.channelRow(i+1, ch))
	}
	b.WriteString(BoxStyle.Render(rows.String()))
	b.WriteString("\n\n")

	if len(m.Status.Logs) > 0 {
		b.WriteString(InfoStyle.Render("Recent activity:"))
		b.WriteString("\n")
		logs := m.Status.Logs
		if len(logs) > 10 {
			logs = logs[len(logs)-10:]
		}
		for _, l := range logs {
			line := fmt.Sprintf("  %s %-10s %s", l.Timestamp.Local().Format(time.TimeOnly), l.Channel, l.Message)
			b.WriteString(InfoStyle.Render(line))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.Notice != "" {
		b.WriteString(HighlightStyle.Render(m.Notice))
		b.WriteString("\n\n")
	}
	b.WriteString(InfoStyle.Render("1-9 poll channel | r reset keyword counters | q quit"))
	return b.String()
}

func (m Model) channelRow(n int, ch types.ChannelStatus) string {
	state := StatusStyle.Render("idle")
	switch {
	case ch.Running || m.Pending[ch.Name]:
		state = WarnStyle.Render("running")
	case ch.LastError != "":
		state = ErrorStyle.Render("error")
	}

	row := fmt.Sprintf("[%d] %-12s %s", n, ch.Name, state)
	if r := ch.LastReport; r != nil {
		row += fmt.Sprintf("  fetched %d  delivered %d  spam %d  dup %d  failed %d",
			r.Fetched,
			r.Count(types.OutcomeDelivered),
			r.Count(types.OutcomeSpam),
			r.Count(types.OutcomeDuplicate),
			r.Count(types.OutcomeDeliveryFailed)+r.Count(types.OutcomeFailed))
	}
	if !ch.Watermark.IsZero() {
		row += "  since " + ch.Watermark.Local().Format("01-02 15:04")
	}
	if ch.LastError != "" {
		row += "\n    " + ErrorStyle.Render(ch.LastError)
	}
	return row
}
