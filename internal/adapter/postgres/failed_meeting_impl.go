package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/missoula-scraper/internal/entity"
)

// FailedMeetingRepoImpl provides a concrete implementation for the FailedMeetingRepository interface using PostgreSQL.
type FailedMeetingRepoImpl struct {
	db *pgxpool.Pool
}

// NewFailedMeetingRepo creates a new instance of FailedMeetingRepoImpl.
func NewFailedMeetingRepo(db *pgxpool.Pool) *FailedMeetingRepoImpl {
	return &FailedMeetingRepoImpl{db: db}
}

// SaveOrUpdate creates or updates a record for a meeting whose video could not be resolved.
// It increments attempt_count on conflict.
func (r *FailedMeetingRepoImpl) SaveOrUpdate(ctx context.Context, fm *entity.FailedMeeting) error {
	query := `
		INSERT INTO meeting_failures (player_uri, title, meeting_datetime, failure_reason, last_attempt_timestamp, attempt_count)
		VALUES ($1, $2, $3, $4, $5, 1)
		ON CONFLICT (player_uri) DO UPDATE SET
			title = EXCLUDED.title,
			meeting_datetime = EXCLUDED.meeting_datetime,
			failure_reason = EXCLUDED.failure_reason,
			last_attempt_timestamp = EXCLUDED.last_attempt_timestamp,
			attempt_count = meeting_failures.attempt_count + 1;
	`
	_, err := r.db.Exec(ctx, query,
		fm.PlayerURI,
		fm.Title,
		fm.MeetingDatetime,
		fm.FailureReason,
		fm.LastAttemptTimestamp,
	)
	return err
}

// FindByPlayerURI returns the failure record for a player page.
// pgx.ErrNoRows is returned if there is none.
func (r *FailedMeetingRepoImpl) FindByPlayerURI(ctx context.Context, playerURI string) (*entity.FailedMeeting, error) {
	query := `
		SELECT player_uri, title, meeting_datetime, failure_reason, last_attempt_timestamp, attempt_count
		FROM meeting_failures
		WHERE player_uri = $1;
	`
	var fm entity.FailedMeeting
	err := r.db.QueryRow(ctx, query, playerURI).Scan(
		&fm.PlayerURI,
		&fm.Title,
		&fm.MeetingDatetime,
		&fm.FailureReason,
		&fm.LastAttemptTimestamp,
		&fm.AttemptCount,
	)
	if err != nil {
		return nil, err
	}
	return &fm, nil
}

// Delete removes a failure record, typically after the meeting resolved.
func (r *FailedMeetingRepoImpl) Delete(ctx context.Context, playerURI string) error {
	query := `DELETE FROM meeting_failures WHERE player_uri = $1;`
	_, err := r.db.Exec(ctx, query, playerURI)
	return err
}
