package repository

import (
	"context"
	"time"

	"github.com/user/missoula-scraper/internal/entity"
)

// EventRepository defines the interface for storing and retrieving ingestion events.
type EventRepository interface {
	// Save stores events produced by a scrape run. Events already stored for the
	// same video are updated.
	Save(ctx context.Context, runID string, events []entity.EventIngestionModel) error
	// FindInRange retrieves events whose session falls inside [from, to].
	FindInRange(ctx context.Context, from, to time.Time) ([]entity.EventIngestionModel, error)
}
