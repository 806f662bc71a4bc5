package request

// ScrapeRequest asks for a gather over [From, To]. Both bounds accept RFC 3339
// or YYYY-MM-DD; a plain To date covers that whole day.
type ScrapeRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Durations bool   `json:"durations"`
}
