package entity

import "time"

type ScrapeRun struct {
	RunID      string
	Status     string // "running", "completed", "failed"
	From       time.Time
	To         time.Time
	StartedAt  time.Time
	FinishedAt *time.Time
	Retained   int
	Failed     int
	Error      string
}
