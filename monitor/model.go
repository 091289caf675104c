package monitor

import (
	"time"

	"newsbot/types"

	tea "github.com/charmbracelet/bubbletea"
)

// DefaultRefresh is how often the console polls the status board
const DefaultRefresh = time.Second

// Model is the console state. All run state lives on the server; the
// console only mirrors the last snapshot.
type Model struct {
	client  *Client
	refresh time.Duration

	Status    *types.StatusResponse
	Connected bool
	Err       error
	// Notice is the outcome of the last key action
	Notice string
	// Pending marks channels with a manual poll in flight
	Pending map[string]bool
}

// NewModel creates a console for the service at baseURL
func NewModel(baseURL string, refresh time.Duration) Model {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	return Model{
		client:  NewClient(baseURL),
		refresh: refresh,
		Pending: make(map[string]bool),
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(fetchStatus(m.client), tickCmd(m.refresh))
}

// channelAt returns the channel bound to digit key n (1-based)
func (m Model) channelAt(n int) (string, bool) {
	if m.Status == nil || n < 1 || n > len(m.Status.Channels) {
		return "", false
	}
	return m.Status.Channels[n-1].Name, true
}
