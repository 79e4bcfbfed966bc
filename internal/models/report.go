package models

import "time"

// RefreshReport summarizes one refresh run.
type RefreshReport struct {
	RunID      string    `json:"runId"`
	Trigger    string    `json:"trigger"`
	Processed  int       `json:"processed"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Deleted    int       `json:"deleted"`
	Total      int       `json:"total"`
	Errors     []string  `json:"errors"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Duration is the wall time of the run.
func (r RefreshReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Headline is a translated headline pushed to notification channels.
type Headline struct {
	Title   string
	English string
	Link    string
}
