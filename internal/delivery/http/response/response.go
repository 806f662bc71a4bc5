package response

import (
	"time"

	"github.com/user/missoula-scraper/internal/entity"
)

type ScrapeResponse struct {
	RunID     string                       `json:"run_id"`
	Count     int                          `json:"count"`
	Events    []entity.EventIngestionModel `json:"events"`
	Failed    []FailedMeetingResponse      `json:"failed,omitempty"`
	Durations *DurationResponse            `json:"durations,omitempty"`
}

// FailedMeetingResponse is a DTO for a meeting whose video could not be resolved.
type FailedMeetingResponse struct {
	Title     string    `json:"title"`
	Date      time.Time `json:"date"`
	PlayerURI string    `json:"player_uri"`
	Reason    string    `json:"reason"`
}

type DurationResponse struct {
	Count                 int     `json:"count"`
	TotalSeconds          float64 `json:"total_seconds"`
	Total                 string  `json:"total"`
	WeekOfYear            int     `json:"week_of_year"`
	AveragePerWeekSeconds float64 `json:"average_per_week_seconds"`
}

type EventsResponse struct {
	Count  int                          `json:"count"`
	Events []entity.EventIngestionModel `json:"events"`
}

// RunStatusResponse is a DTO for the most recent scrape, mirroring entity.ScrapeRun
type RunStatusResponse struct {
	RunID      string     `json:"run_id"`
	Status     string     `json:"status"` // "running", "completed", "failed"
	From       time.Time  `json:"from"`
	To         time.Time  `json:"to"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Retained   int        `json:"retained"`
	Failed     int        `json:"failed"`
	Error      string     `json:"error,omitempty"`
}

func NewScrapeResponse(runID string, events []entity.EventIngestionModel, failed []*entity.Meeting, durations *entity.DurationReport) ScrapeResponse {
	resp := ScrapeResponse{
		RunID:  runID,
		Count:  len(events),
		Events: events,
	}
	for _, m := range failed {
		fr := FailedMeetingResponse{Title: m.Title, Date: m.Date, PlayerURI: m.PlayerURI}
		if m.Err != nil {
			fr.Reason = m.Err.Error()
		}
		resp.Failed = append(resp.Failed, fr)
	}
	if durations != nil {
		resp.Durations = &DurationResponse{
			Count:                 durations.Count,
			TotalSeconds:          durations.Total.Seconds(),
			Total:                 durations.Total.String(),
			WeekOfYear:            durations.WeekOfYear,
			AveragePerWeekSeconds: durations.AveragePerWeek.Seconds(),
		}
	}
	return resp
}

func NewRunStatusResponse(run *entity.ScrapeRun) RunStatusResponse {
	return RunStatusResponse{
		RunID:      run.RunID,
		Status:     run.Status,
		From:       run.From,
		To:         run.To,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Retained:   run.Retained,
		Failed:     run.Failed,
		Error:      run.Error,
	}
}
