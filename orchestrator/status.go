package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"newsbot/types"
)

const defaultMaxLogs = 50

type channelState struct {
	running    bool
	lastRun    time.Time
	lastErr    error
	lastReport *types.CycleReport
	watermark  time.Time
}

// StatusBoard holds per-channel run state and recent log lines with thread-safe access
type StatusBoard struct {
	mu sync.RWMutex

	order    []string
	channels map[string]*channelState

	// Logs (ring buffer)
	logs    []types.LogEntry
	maxLogs int

	cacheAvailable func() bool
	now            func() time.Time
}

// NewStatusBoard creates a board for the given channels. cacheAvailable may be nil.
func NewStatusBoard(channels []string, cacheAvailable func() bool) *StatusBoard {
	b := &StatusBoard{
		channels:       make(map[string]*channelState, len(channels)),
		logs:           make([]types.LogEntry, 0),
		maxLogs:        defaultMaxLogs,
		cacheAvailable: cacheAvailable,
		now:            time.Now,
	}
	for _, name := range channels {
		b.order = append(b.order, name)
		b.channels[name] = &channelState{}
	}
	return b
}

// state returns the channel entry, creating it on first use (must hold lock)
func (b *StatusBoard) state(channel string) *channelState {
	st, ok := b.channels[channel]
	if !ok {
		st = &channelState{}
		b.channels[channel] = st
		b.order = append(b.order, channel)
	}
	return st
}

// addLog appends to the ring buffer (must hold lock)
func (b *StatusBoard) addLog(channel, message string) {
	b.logs = append(b.logs, types.LogEntry{
		Timestamp: b.now(),
		Channel:   channel,
		Message:   message,
	})
	if len(b.logs) > b.maxLogs {
		b.logs = b.logs[len(b.logs)-b.maxLogs:]
	}
}

// AddLog adds a log entry
func (b *StatusBoard) AddLog(channel, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addLog(channel, message)
}

// Start marks a cycle as running
func (b *StatusBoard) Start(channel string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.state(channel)
	st.running = true
	st.lastRun = b.now()
	b.addLog(channel, "cycle started")
}

// Finish records a completed cycle
func (b *StatusBoard) Finish(channel string, report *types.CycleReport, watermark time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.state(channel)
	st.running = false
	st.lastErr = nil
	st.lastReport = report
	if watermark.After(st.watermark) {
		st.watermark = watermark
	}
	b.addLog(channel, fmt.Sprintf("cycle finished: %d fetched, %d delivered, %d duplicate, %d spam",
		report.Fetched,
		report.Count(types.OutcomeDelivered),
		report.Count(types.OutcomeDuplicate),
		report.Count(types.OutcomeSpam)))
}

// Fail records a cycle that could not complete
func (b *StatusBoard) Fail(channel string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.state(channel)
	st.running = false
	st.lastErr = err
	b.addLog(channel, fmt.Sprintf("Error: %v", err))
}

// SetWatermark updates the displayed watermark, e.g. after loading it at startup
func (b *StatusBoard) SetWatermark(channel string, t time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state(channel).watermark = t
}

// ClearWatermarks forgets displayed watermarks after a reset
func (b *StatusBoard) ClearWatermarks() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, st := range b.channels {
		st.watermark = time.Time{}
	}
}

// GetStatus returns a snapshot of the board
func (b *StatusBoard) GetStatus() types.StatusResponse {
	b.mu.RLock()
	defer b.mu.RUnlock()

	resp := types.StatusResponse{
		Channels: make([]types.ChannelStatus, 0, len(b.order)),
		Logs:     append([]types.LogEntry{}, b.logs...), // Copy slice
	}
	for _, name := range b.order {
		st := b.channels[name]
		cs := types.ChannelStatus{
			Name:       name,
			Running:    st.running,
			LastRun:    st.lastRun,
			LastReport: st.lastReport,
			Watermark:  st.watermark,
		}
		if st.lastErr != nil {
			cs.LastError = st.lastErr.Error()
		}
		resp.Channels = append(resp.Channels, cs)
	}
	if b.cacheAvailable != nil {
		resp.CacheAvailable = b.cacheAvailable()
	}
	return resp
}
