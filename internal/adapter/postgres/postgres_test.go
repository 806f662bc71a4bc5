package postgres

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/missoula-scraper/internal/entity"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	connStr := os.Getenv("TEST_POSTGRES_URL")
	if connStr == "" {
		t.Skip("TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	db, err := Connect(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, EnsureSchema(ctx, db))
	return db
}

func TestEventRepo_SaveAndFind(t *testing.T) {
	db := testPool(t)
	repo := NewEventRepo(db)
	ctx := context.Background()

	prefix := "https://video.test/" + uuid.NewString() + "/"
	at := time.Date(1999, 3, 14, 18, 0, 0, 0, time.UTC)
	t.Cleanup(func() {
		db.Exec(context.Background(), `DELETE FROM meeting_events WHERE video_uri LIKE $1`, prefix+"%")
	})

	events := []entity.EventIngestionModel{
		{
			Body:     entity.Body{Name: "City Council"},
			Sessions: []entity.Session{{VideoURI: prefix + "b.mp4", SessionDatetime: at.Add(time.Hour)}},
		},
		{
			Body:     entity.Body{Name: "Budget Committee"},
			Sessions: []entity.Session{{VideoURI: prefix + "a.mp4", SessionDatetime: at}},
		},
	}
	require.NoError(t, repo.Save(ctx, uuid.NewString(), events))

	// Saving again with a new title updates in place.
	events[1].Body.Name = "Budget and Finance Committee"
	require.NoError(t, repo.Save(ctx, uuid.NewString(), events[1:]))

	got, err := repo.FindInRange(ctx, at.Add(-time.Minute), at.Add(2*time.Hour))
	require.NoError(t, err)

	var ours []entity.EventIngestionModel
	for _, e := range got {
		if len(e.Sessions) == 1 && strings.HasPrefix(e.Sessions[0].VideoURI, prefix) {
			ours = append(ours, e)
		}
	}
	require.Len(t, ours, 2)
	assert.Equal(t, "Budget and Finance Committee", ours[0].Body.Name)
	assert.True(t, at.Equal(ours[0].Sessions[0].SessionDatetime))
	assert.Equal(t, "City Council", ours[1].Body.Name)
}

func TestEventRepo_SaveEmpty(t *testing.T) {
	repo := NewEventRepo(testPool(t))
	assert.NoError(t, repo.Save(context.Background(), uuid.NewString(), nil))
}

func TestFailedMeetingRepo(t *testing.T) {
	db := testPool(t)
	repo := NewFailedMeetingRepo(db)
	ctx := context.Background()

	playerURI := "https://player.test/" + uuid.NewString()
	t.Cleanup(func() {
		repo.Delete(context.Background(), playerURI)
	})

	fm := &entity.FailedMeeting{
		PlayerURI:            playerURI,
		Title:                "City Council",
		MeetingDatetime:      time.Date(2022, 3, 14, 18, 0, 0, 0, time.UTC),
		FailureReason:        "timeout",
		LastAttemptTimestamp: time.Now().UTC(),
	}
	require.NoError(t, repo.SaveOrUpdate(ctx, fm))

	fm.FailureReason = "no video extension"
	require.NoError(t, repo.SaveOrUpdate(ctx, fm))

	got, err := repo.FindByPlayerURI(ctx, playerURI)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AttemptCount)
	assert.Equal(t, "no video extension", got.FailureReason)

	require.NoError(t, repo.Delete(ctx, playerURI))
	_, err = repo.FindByPlayerURI(ctx, playerURI)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}
