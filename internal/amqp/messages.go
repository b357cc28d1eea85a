package amqp

import (
	"encoding/json"
	"time"
)

// LoadCompletedMessage announces the outcome of one load run. Consumers get
// enough to decide whether to refetch the dashboard without reading the DB.
type LoadCompletedMessage struct {
	RunID       string       `json:"run_id"`
	Trigger     string       `json:"trigger"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
	FilesOK     int          `json:"files_ok"`
	FilesFailed int          `json:"files_failed"`
	TotalRows   int          `json:"total_rows"`
	FatalError  string       `json:"fatal_error,omitempty"`
	Files       []FileStatus `json:"files"`
	Timestamp   time.Time    `json:"timestamp"`
}

type FileStatus struct {
	Year   string `json:"year"`
	Source string `json:"source"`
	Rows   int    `json:"rows"`
	Error  string `json:"error,omitempty"`
}

// OK reports whether the run produced a usable dataset.
func (m *LoadCompletedMessage) OK() bool { return m.FatalError == "" }

// ToJSON converts the message to JSON bytes
func (m *LoadCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
