package usecase

import "errors"

var (
	// ErrListViewNotFound means the calendar no longer has the past meetings
	// list control, i.e. the page structure changed.
	ErrListViewNotFound = errors.New("past meetings list view control not found")
	// ErrTooManyEvents trips when a scrape yields an implausible number of events.
	ErrTooManyEvents = errors.New("scrape produced too many events")
	// ErrInvalidWindow is returned when the window ends before it starts.
	ErrInvalidWindow = errors.New("invalid date window")
	// ErrNoVideoFile is returned when a player page names no video file.
	ErrNoVideoFile = errors.New("player file name has no video extension")
	// ErrScrapeInProgress is returned when a gather is already running.
	ErrScrapeInProgress = errors.New("a scrape is already in progress")
	// ErrStorageDisabled is returned when stored events are requested without a database.
	ErrStorageDisabled = errors.New("event storage is not configured")
)
