package repository

import (
	"context"

	"github.com/user/missoula-scraper/internal/entity"
)

// FailedMeetingRepository defines the interface for tracking meetings whose
// video could not be resolved.
type FailedMeetingRepository interface {
	// SaveOrUpdate creates or updates a record for a failed meeting.
	SaveOrUpdate(ctx context.Context, failed *entity.FailedMeeting) error
	// Delete removes a failure record, typically after a successful resolution.
	Delete(ctx context.Context, playerURI string) error
}
