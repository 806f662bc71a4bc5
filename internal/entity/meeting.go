package entity

import "time"

// Meeting is one meeting entry read from the calendar page. It is filled in
// across the listing pass and the video resolution pass.
type Meeting struct {
	Title string
	Date  time.Time

	// PlayerURI points at the standalone player page. It is only needed until
	// the video file has been resolved.
	PlayerURI string
	VideoURI  string

	Duration    time.Duration
	HasDuration bool

	// Err is set when the meeting could not be resolved; such meetings never
	// reach the ingestion output.
	Err error
}

// Errored reports whether the meeting failed resolution.
func (m *Meeting) Errored() bool {
	return m.Err != nil
}

// MarkErrored flags the meeting and drops any partially derived video URI.
func (m *Meeting) MarkErrored(err error) {
	m.Err = err
	m.VideoURI = ""
}

// DurationReport summarizes recording lengths of a scrape.
type DurationReport struct {
	Total          time.Duration `json:"total"`
	Count          int           `json:"count"`
	WeekOfYear     int           `json:"week_of_year"`
	AveragePerWeek time.Duration `json:"average_per_week"`
}
