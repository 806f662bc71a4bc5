package entity

import "time"

// Body is the committee or council a meeting belongs to.
type Body struct {
	Name string `json:"name"`
}

// Session is a single recorded sitting of an event.
type Session struct {
	VideoURI        string    `json:"video_uri"`
	SessionDatetime time.Time `json:"session_datetime"`
	SessionIndex    int       `json:"session_index"`
}

// EventIngestionModel mirrors the event schema consumed by the civic data pipeline.
type EventIngestionModel struct {
	Body     Body      `json:"body"`
	Sessions []Session `json:"sessions"`
}
