package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/missoula-scraper/internal/entity"
)

// EventRepoImpl provides a concrete implementation for the EventRepository interface using PostgreSQL.
// Each stored row is one session; events are rebuilt one session per event on read.
type EventRepoImpl struct {
	db *pgxpool.Pool
}

// NewEventRepo creates a new instance of EventRepoImpl.
func NewEventRepo(db *pgxpool.Pool) *EventRepoImpl {
	return &EventRepoImpl{db: db}
}

// Save upserts every session of events in a single transaction, keyed by video URI.
func (r *EventRepoImpl) Save(ctx context.Context, runID string, events []entity.EventIngestionModel) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO meeting_events (video_uri, body_name, session_datetime, session_index, run_id, scraped_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (video_uri) DO UPDATE SET
			body_name = EXCLUDED.body_name,
			session_datetime = EXCLUDED.session_datetime,
			session_index = EXCLUDED.session_index,
			run_id = EXCLUDED.run_id,
			scraped_at = EXCLUDED.scraped_at;
	`

	batch := &pgx.Batch{}
	for _, e := range events {
		for _, s := range e.Sessions {
			batch.Queue(query, s.VideoURI, e.Body.Name, s.SessionDatetime, s.SessionIndex, runID)
		}
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// FindInRange retrieves stored events whose session starts in [from, to], oldest first.
func (r *EventRepoImpl) FindInRange(ctx context.Context, from, to time.Time) ([]entity.EventIngestionModel, error) {
	query := `
		SELECT body_name, video_uri, session_datetime, session_index
		FROM meeting_events
		WHERE session_datetime BETWEEN $1 AND $2
		ORDER BY session_datetime ASC, id ASC;
	`
	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]entity.EventIngestionModel, 0)
	for rows.Next() {
		var (
			name    string
			session entity.Session
		)
		if err := rows.Scan(&name, &session.VideoURI, &session.SessionDatetime, &session.SessionIndex); err != nil {
			return nil, err
		}
		events = append(events, entity.EventIngestionModel{
			Body:     entity.Body{Name: name},
			Sessions: []entity.Session{session},
		})
	}

	return events, rows.Err()
}
