package usecase

import (
	"fmt"
	"strings"

	"github.com/user/missoula-scraper/internal/entity"
)

const (
	DefaultMaxEvents = 2000
	videoExtension   = ".mp4"
)

// VideoURI derives the public video address from a player file name.
func VideoURI(baseURL, fileName string) (string, error) {
	fileName = strings.TrimSpace(fileName)
	if !strings.Contains(fileName, videoExtension) {
		return "", fmt.Errorf("%w: %q", ErrNoVideoFile, fileName)
	}
	return baseURL + fileName, nil
}

// AssembleResult drops errored meetings and enforces the result size cap.
func AssembleResult(meetings []*entity.Meeting, maxEvents int) ([]*entity.Meeting, error) {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}

	retained := make([]*entity.Meeting, 0, len(meetings))
	for _, m := range meetings {
		if m.Errored() || m.VideoURI == "" {
			continue
		}
		retained = append(retained, m)
	}

	if len(retained) > maxEvents {
		return nil, fmt.Errorf("%w: %d exceeds limit of %d", ErrTooManyEvents, len(retained), maxEvents)
	}
	return retained, nil
}

// ToIngestionModels wraps each meeting into its own event with a single session.
func ToIngestionModels(meetings []*entity.Meeting) []entity.EventIngestionModel {
	events := make([]entity.EventIngestionModel, 0, len(meetings))
	for _, m := range meetings {
		events = append(events, entity.EventIngestionModel{
			Body: entity.Body{Name: m.Title},
			Sessions: []entity.Session{
				{
					VideoURI:        m.VideoURI,
					SessionDatetime: m.Date,
					SessionIndex:    0,
				},
			},
		})
	}
	return events
}
