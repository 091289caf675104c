package types

import "time"

// LogEntry represents a single log line with timestamp
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Channel   string    `json:"channel,omitempty"`
	Message   string    `json:"message"`
}

// ChannelStatus is the status board view of one channel
type ChannelStatus struct {
	Name       string       `json:"name"`
	Running    bool         `json:"running"`
	LastRun    time.Time    `json:"last_run,omitempty"`
	LastError  string       `json:"last_error,omitempty"`
	LastReport *CycleReport `json:"last_report,omitempty"`
	Watermark  time.Time    `json:"watermark,omitempty"`
}

// StatusResponse is the JSON response for GET /api/status
type StatusResponse struct {
	Channels       []ChannelStatus `json:"channels"`
	CacheAvailable bool            `json:"cache_available"`
	Logs           []LogEntry      `json:"logs"`
}
