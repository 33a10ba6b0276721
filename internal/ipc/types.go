package ipc

import "time"

// StopRequest asks the daemon to stop.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// WorkerStatus mirrors worker.StatusSummary on the wire.
type WorkerStatus struct {
	Running     bool   `json:"running"`
	Engine      string `json:"engine"`
	Model       string `json:"model"`
	LoaderState string `json:"loader_state"`
	Loads       int    `json:"loads"`
	Queued      int    `json:"queued"`
	QueueDepth  int    `json:"queue_depth"`
	Current     string `json:"current"`
	Ports       int    `json:"ports"`
	Processed   int    `json:"processed"`
	Failed      int    `json:"failed"`
	Rejected    int    `json:"rejected"`
	LastError   string `json:"last_error"`
}

// StatusResponse represents combined daemon/worker status information.
type StatusResponse struct {
	Running       bool           `json:"running"`
	PID           int            `json:"pid"`
	Worker        WorkerStatus   `json:"worker"`
	HistoryCounts map[string]int `json:"history_counts"`
	HistoryPath   string         `json:"history_path"`
	LockPath      string         `json:"lock_path"`
	SocketPath    string         `json:"socket_path"`
}

// HistoryListRequest limits the number of returned entries.
type HistoryListRequest struct {
	Limit int `json:"limit"`
}

// HistoryEntry is the wire form of a history entry.
type HistoryEntry struct {
	ID             string     `json:"id"`
	Peer           string     `json:"peer"`
	Text           string     `json:"text"`
	SourceLanguage string     `json:"src_lang"`
	TargetLanguage string     `json:"tgt_lang"`
	Status         string     `json:"status"`
	Output         string     `json:"output,omitempty"`
	ErrorKind      string     `json:"error_kind,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	Loaded         bool       `json:"loaded"`
	QueuedAt       time.Time  `json:"queued_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// HistoryListResponse contains history entries, newest first.
type HistoryListResponse struct {
	Entries []HistoryEntry `json:"entries"`
}

// HistoryClearRequest removes every history entry.
type HistoryClearRequest struct{}

// HistoryClearResponse reports how many entries were removed.
type HistoryClearResponse struct {
	Removed int64 `json:"removed"`
}
