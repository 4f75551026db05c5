package model

import "time"

// RunStatus represents the state of a roster update run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one execution of the roster update.
type Run struct {
	ID        string    `json:"id"`
	Guild     GuildKey  `json:"guild"`
	Status    RunStatus `json:"status"`
	Stats     *RunStats `json:"stats,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunStats are the counters recorded when a run finishes.
type RunStats struct {
	Members    int     `json:"members"`
	Characters int     `json:"characters"`
	Alts       int     `json:"alts"`
	Mains      int     `json:"mains"`
	Failed     int     `json:"failed_fetches"`
	Duration   float64 `json:"duration_secs"`
}
