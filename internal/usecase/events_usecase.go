package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/user/missoula-scraper/internal/entity"
	"github.com/user/missoula-scraper/internal/repository"
	"github.com/user/missoula-scraper/pkg/metrics"
	"go.uber.org/zap"
)

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// GatherResult is what a gather run produced.
type GatherResult struct {
	RunID     string
	Events    []entity.EventIngestionModel
	Failed    []*entity.Meeting
	Durations *entity.DurationReport
}

// EventService defines the interface for collecting and serving events.
type EventService interface {
	Gather(ctx context.Context, from, to time.Time, opts ScrapeOptions) (*GatherResult, error)
	List(ctx context.Context, from, to time.Time) ([]entity.EventIngestionModel, error)
	LastRun() *entity.ScrapeRun
}

type eventService struct {
	scraper    Scraper
	eventRepo  repository.EventRepository
	failedRepo repository.FailedMeetingRepository
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time

	running sync.Mutex

	mu      sync.RWMutex
	lastRun *entity.ScrapeRun
}

// NewEventService creates a new EventService. The repositories may be nil,
// in which case results are only returned to the caller.
func NewEventService(
	scraper Scraper,
	eventRepo repository.EventRepository,
	failedRepo repository.FailedMeetingRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) EventService {
	return &eventService{
		scraper:    scraper,
		eventRepo:  eventRepo,
		failedRepo: failedRepo,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// Gather scrapes the window and persists the outcome. Only one gather runs at
// a time; overlapping calls get ErrScrapeInProgress.
func (s *eventService) Gather(ctx context.Context, from, to time.Time, opts ScrapeOptions) (*GatherResult, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: %s is before %s", ErrInvalidWindow, to.Format(time.RFC3339), from.Format(time.RFC3339))
	}
	if !s.running.TryLock() {
		return nil, ErrScrapeInProgress
	}
	defer s.running.Unlock()

	run := &entity.ScrapeRun{
		RunID:     uuid.NewString(),
		Status:    RunStatusRunning,
		From:      from,
		To:        to,
		StartedAt: s.now(),
	}
	s.setLastRun(run)
	logger := s.logger.With(zap.String("run_id", run.RunID))
	logger.Info("starting scrape", zap.Time("from", from), zap.Time("to", to))

	res, err := s.scraper.Scrape(ctx, from, to, opts)
	if err != nil {
		s.finish(run, 0, 0, err)
		logger.Error("scrape failed", zap.Error(err))
		return nil, err
	}

	events := ToIngestionModels(res.Meetings)
	if s.eventRepo != nil {
		if err := s.eventRepo.Save(ctx, run.RunID, events); err != nil {
			err = fmt.Errorf("saving events: %w", err)
			s.finish(run, len(events), len(res.Failed), err)
			logger.Error("failed to persist events", zap.Error(err))
			return nil, err
		}
	}
	s.recordFailures(ctx, logger, res)

	s.finish(run, len(events), len(res.Failed), nil)
	logger.Info("scrape completed",
		zap.Int("events", len(events)),
		zap.Int("failed", len(res.Failed)),
		zap.Duration("took", s.now().Sub(run.StartedAt)),
	)

	return &GatherResult{
		RunID:     run.RunID,
		Events:    events,
		Failed:    res.Failed,
		Durations: res.Durations,
	}, nil
}

// recordFailures upserts failed meetings and clears players that resolved.
// Errors here are logged and never fail the run.
func (s *eventService) recordFailures(ctx context.Context, logger *zap.Logger, res *ScrapeResult) {
	if s.failedRepo == nil {
		return
	}

	for _, m := range res.Failed {
		if m.PlayerURI == "" {
			continue
		}
		fm := &entity.FailedMeeting{
			PlayerURI:            m.PlayerURI,
			Title:                m.Title,
			MeetingDatetime:      m.Date,
			FailureReason:        m.Err.Error(),
			LastAttemptTimestamp: s.now(),
		}
		if err := s.failedRepo.SaveOrUpdate(ctx, fm); err != nil {
			logger.Warn("failed to record meeting failure", zap.String("player_uri", m.PlayerURI), zap.Error(err))
		}
	}

	for _, m := range res.Meetings {
		if m.PlayerURI == "" {
			continue
		}
		if err := s.failedRepo.Delete(ctx, m.PlayerURI); err != nil {
			logger.Warn("failed to clear meeting failure", zap.String("player_uri", m.PlayerURI), zap.Error(err))
		}
	}
}

func (s *eventService) finish(run *entity.ScrapeRun, retained, failed int, err error) {
	finished := s.now()

	s.mu.Lock()
	run.FinishedAt = &finished
	run.Retained = retained
	run.Failed = failed
	if err != nil {
		run.Status = RunStatusFailed
		run.Error = err.Error()
	} else {
		run.Status = RunStatusCompleted
	}
	s.mu.Unlock()

	s.metrics.ObserveScrape(err == nil, finished.Sub(run.StartedAt), retained)
}

// List returns stored events whose session falls in [from, to].
func (s *eventService) List(ctx context.Context, from, to time.Time) ([]entity.EventIngestionModel, error) {
	if s.eventRepo == nil {
		return nil, ErrStorageDisabled
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: %s is before %s", ErrInvalidWindow, to.Format(time.RFC3339), from.Format(time.RFC3339))
	}

	events, err := s.eventRepo.FindInRange(ctx, from, to)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("listing events: %w", err)
	}
	return events, nil
}

// LastRun returns a copy of the most recent run, or nil before the first one.
func (s *eventService) LastRun() *entity.ScrapeRun {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastRun == nil {
		return nil
	}
	run := *s.lastRun
	return &run
}

func (s *eventService) setLastRun(run *entity.ScrapeRun) {
	s.mu.Lock()
	s.lastRun = run
	s.mu.Unlock()
}
