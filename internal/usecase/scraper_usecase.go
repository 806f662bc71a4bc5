package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/user/missoula-scraper/internal/entity"
	"github.com/user/missoula-scraper/internal/repository"
	"github.com/user/missoula-scraper/pkg/metrics"
	"github.com/user/missoula-scraper/pkg/utils"
	"go.uber.org/zap"
)

// ScraperConfig holds what the meeting scraper needs to know about the site.
type ScraperConfig struct {
	CalendarURL     string
	VideoBaseURL    string
	Location        *time.Location
	WaitTimeout     time.Duration
	ListSettleDelay time.Duration
	MaxEvents       int
	PlayerCacheTTL  time.Duration
	Selectors       Selectors
}

// ScrapeOptions tune a single scrape.
type ScrapeOptions struct {
	// CollectDurations also reads recording lengths and reports totals.
	CollectDurations bool
}

// ScrapeResult is the outcome of a scrape.
type ScrapeResult struct {
	Meetings  []*entity.Meeting
	Failed    []*entity.Meeting
	Durations *entity.DurationReport
}

// Scraper defines the interface for the calendar scraping process.
type Scraper interface {
	Scrape(ctx context.Context, from, to time.Time, opts ScrapeOptions) (*ScrapeResult, error)
}

// MeetingScraper reads meetings and their video files from the calendar.
type MeetingScraper struct {
	launcher repository.BrowserLauncher
	cache    repository.PlayerCacheRepository
	cfg      ScraperConfig
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewMeetingScraper creates a scraper. cache and m may be nil.
func NewMeetingScraper(
	launcher repository.BrowserLauncher,
	cache repository.PlayerCacheRepository,
	cfg ScraperConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) *MeetingScraper {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = DefaultMaxEvents
	}
	if cfg.Selectors == (Selectors{}) {
		cfg.Selectors = DefaultSelectors()
	}
	return &MeetingScraper{
		launcher: launcher,
		cache:    cache,
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// GetEvents returns the ingestion events for every meeting in [from, to]
// that has a resolvable video.
func (s *MeetingScraper) GetEvents(ctx context.Context, from, to time.Time) ([]entity.EventIngestionModel, error) {
	res, err := s.Scrape(ctx, from, to, ScrapeOptions{})
	if err != nil {
		return nil, err
	}
	return ToIngestionModels(res.Meetings), nil
}

// Scrape runs one browser session over the calendar. The session is closed on
// every return path.
func (s *MeetingScraper) Scrape(ctx context.Context, from, to time.Time, opts ScrapeOptions) (*ScrapeResult, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: %s is before %s", ErrInvalidWindow, to.Format(time.RFC3339), from.Format(time.RFC3339))
	}

	browser, err := s.launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			s.logger.Warn("failed to close browser", zap.Error(err))
		}
	}()

	if err := s.openCalendar(ctx, browser); err != nil {
		return nil, err
	}

	meetings, err := s.collectMeetings(ctx, browser, from, to)
	if err != nil {
		return nil, err
	}
	s.logger.Info("collected meetings in window",
		zap.Int("count", len(meetings)),
		zap.Time("from", from),
		zap.Time("to", to),
	)

	for _, m := range meetings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.resolveVideo(ctx, browser, m, opts.CollectDurations)
	}

	retained, err := AssembleResult(meetings, s.cfg.MaxEvents)
	if err != nil {
		return nil, err
	}

	result := &ScrapeResult{Meetings: retained}
	for _, m := range meetings {
		if m.Errored() {
			result.Failed = append(result.Failed, m)
			s.metrics.ObserveMeeting(metrics.OutcomeErrored)
		}
	}
	for range retained {
		s.metrics.ObserveMeeting(metrics.OutcomeRetained)
	}

	if opts.CollectDurations {
		agg := NewDurationAggregator(s.now)
		for _, m := range retained {
			if m.HasDuration {
				agg.Add(m.Duration)
			}
		}
		result.Durations = agg.Report()
	}

	return result, nil
}

// openCalendar loads the calendar and switches past meetings to the list view.
func (s *MeetingScraper) openCalendar(ctx context.Context, browser repository.Browser) error {
	if err := browser.Open(ctx, s.cfg.CalendarURL); err != nil {
		return fmt.Errorf("opening calendar: %w", err)
	}

	toggles, err := browser.Find(ctx, s.cfg.Selectors.ListToggle)
	if err != nil {
		return fmt.Errorf("finding list view control: %w", err)
	}
	if len(toggles) == 0 {
		return ErrListViewNotFound
	}
	if err := toggles[0].Click(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrListViewNotFound, err)
	}

	return sleep(ctx, s.cfg.ListSettleDelay)
}

// collectMeetings walks every meeting group and keeps the entries inside the
// window that link to a player page.
func (s *MeetingScraper) collectMeetings(ctx context.Context, browser repository.Browser, from, to time.Time) ([]*entity.Meeting, error) {
	groups, err := browser.Find(ctx, s.cfg.Selectors.Group)
	if err != nil {
		return nil, fmt.Errorf("finding meeting groups: %w", err)
	}

	var meetings []*entity.Meeting
	seen := make(map[string]bool)

	for _, group := range groups {
		expanded, err := s.expandGroup(ctx, browser, group)
		if err != nil {
			return nil, err
		}
		if !expanded {
			continue
		}

		entries, err := group.Find(ctx, s.cfg.Selectors.Entry)
		if err != nil {
			return nil, fmt.Errorf("finding meeting entries: %w", err)
		}

		for _, entry := range entries {
			visible, err := entry.Visible(ctx)
			if err != nil {
				return nil, fmt.Errorf("checking entry visibility: %w", err)
			}
			if !visible {
				continue
			}

			m, err := s.readEntry(ctx, entry, from, to)
			if err != nil {
				return nil, err
			}
			if m == nil || seen[m.PlayerURI] {
				continue
			}
			seen[m.PlayerURI] = true
			meetings = append(meetings, m)
		}
	}

	return meetings, nil
}

// expandGroup opens a meeting group if its label is shown. Groups that are not
// selected on the page keep hidden labels and are left alone. A group whose
// entries never appear is skipped.
func (s *MeetingScraper) expandGroup(ctx context.Context, browser repository.Browser, group repository.Element) (bool, error) {
	toggles, err := group.Find(ctx, s.cfg.Selectors.GroupToggle)
	if err != nil {
		return false, fmt.Errorf("finding group toggle: %w", err)
	}
	if len(toggles) == 0 {
		return false, nil
	}
	toggle := toggles[0]

	visible, err := toggle.Visible(ctx)
	if err != nil {
		return false, fmt.Errorf("checking group visibility: %w", err)
	}
	if !visible {
		return false, nil
	}

	name, _ := toggle.Text(ctx)
	name = collapseSpace(name)

	if err := toggle.Click(ctx); err != nil {
		s.logger.Warn("failed to expand meeting group", zap.String("group", name), zap.Error(err))
		return false, nil
	}

	err = browser.WaitVisible(ctx, group, s.cfg.Selectors.EntryReady, s.cfg.WaitTimeout)
	if errors.Is(err, repository.ErrWaitTimeout) {
		s.logger.Warn("meeting group did not show entries, skipping", zap.String("group", name), zap.Duration("timeout", s.cfg.WaitTimeout))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("waiting for group %q: %w", name, err)
	}

	s.logger.Debug("expanded meeting group", zap.String("group", name))
	return true, nil
}

// readEntry returns nil for entries that are outside the window, have no
// readable date or have no player link. The date is checked before anything
// else is read from the entry.
func (s *MeetingScraper) readEntry(ctx context.Context, entry repository.Element, from, to time.Time) (*entity.Meeting, error) {
	dateText, ok, err := s.firstText(ctx, entry, s.cfg.Selectors.Date)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.metrics.ObserveMeeting(metrics.OutcomeUnparsed)
		return nil, nil
	}
	date, err := ParseMeetingDate(dateText, s.cfg.Location)
	if err != nil {
		s.logger.Warn("skipping meeting with unreadable date", zap.String("date", dateText), zap.Error(err))
		s.metrics.ObserveMeeting(metrics.OutcomeUnparsed)
		return nil, nil
	}
	if !InWindow(date, from, to) {
		s.metrics.ObserveMeeting(metrics.OutcomeOutOfWindow)
		return nil, nil
	}

	links, err := entry.Find(ctx, s.cfg.Selectors.PlayerLink)
	if err != nil {
		return nil, fmt.Errorf("finding player link: %w", err)
	}
	if len(links) == 0 {
		s.metrics.ObserveMeeting(metrics.OutcomeNoPlayer)
		return nil, nil
	}
	href, ok, err := links[0].Attr(ctx, "href")
	if err != nil {
		return nil, fmt.Errorf("reading player link: %w", err)
	}
	if !ok || href == "" {
		s.metrics.ObserveMeeting(metrics.OutcomeNoPlayer)
		return nil, nil
	}

	m := &entity.Meeting{Date: date}

	playerURI, err := utils.ToAbsoluteURL(s.cfg.CalendarURL, href)
	if err != nil {
		m.MarkErrored(fmt.Errorf("resolving player link %q: %w", href, err))
		m.PlayerURI = href
		return m, nil
	}
	m.PlayerURI = playerURI

	title, ok, err := s.firstText(ctx, entry, s.cfg.Selectors.Title)
	if err != nil {
		return nil, err
	}
	if !ok || title == "" {
		m.MarkErrored(fmt.Errorf("%w: meeting title", repository.ErrElementNotFound))
		return m, nil
	}
	m.Title = title

	return m, nil
}

// resolveVideo visits the player page of m and derives its public video URI.
// Failures only mark m as errored.
func (s *MeetingScraper) resolveVideo(ctx context.Context, browser repository.Browser, m *entity.Meeting, withDuration bool) {
	if m.Errored() {
		return
	}
	log := s.logger.With(zap.String("title", m.Title), zap.String("player", m.PlayerURI))

	if !withDuration && s.cache != nil {
		fileName, hit, err := s.cache.Get(ctx, m.PlayerURI)
		if err != nil {
			log.Warn("player cache lookup failed", zap.Error(err))
		}
		if hit {
			if uri, err := VideoURI(s.cfg.VideoBaseURL, fileName); err == nil {
				m.VideoURI = uri
				s.metrics.ObserveCacheHit()
				return
			}
		}
	}

	if err := browser.Open(ctx, m.PlayerURI); err != nil {
		log.Warn("failed to open player page", zap.Error(err))
		m.MarkErrored(err)
		return
	}
	if err := browser.WaitVisible(ctx, nil, s.cfg.Selectors.Player, s.cfg.WaitTimeout); err != nil {
		log.Warn("player did not load, possibly a corrupt video", zap.Error(err))
		m.MarkErrored(err)
		return
	}

	players, err := browser.Find(ctx, s.cfg.Selectors.Player)
	if err != nil || len(players) == 0 {
		m.MarkErrored(fmt.Errorf("%w: %s", repository.ErrElementNotFound, s.cfg.Selectors.Player))
		return
	}
	fileName, ok, err := players[0].Attr(ctx, s.cfg.Selectors.PlayerFile)
	if err != nil || !ok {
		log.Warn("player has no file name")
		m.MarkErrored(fmt.Errorf("%w: %s attribute", repository.ErrElementNotFound, s.cfg.Selectors.PlayerFile))
		return
	}

	uri, err := VideoURI(s.cfg.VideoBaseURL, fileName)
	if err != nil {
		log.Warn("player file is not a video", zap.String("file", fileName))
		m.MarkErrored(err)
		return
	}
	m.VideoURI = uri

	if s.cache != nil {
		if err := s.cache.Put(ctx, m.PlayerURI, fileName, s.cfg.PlayerCacheTTL); err != nil {
			log.Warn("failed to cache player file", zap.Error(err))
		}
	}

	if withDuration {
		s.readDuration(ctx, browser, m)
	}
}

// readDuration fills in the recording length when the player shows one.
func (s *MeetingScraper) readDuration(ctx context.Context, browser repository.Browser, m *entity.Meeting) {
	els, err := browser.Find(ctx, s.cfg.Selectors.Duration)
	if err != nil || len(els) == 0 {
		return
	}
	text, err := els[0].Text(ctx)
	if err != nil {
		return
	}
	d, err := ParseDuration(text)
	if err != nil {
		s.logger.Debug("unreadable duration", zap.String("duration", text))
		return
	}
	m.Duration = d
	m.HasDuration = true
}

func (s *MeetingScraper) firstText(ctx context.Context, scope repository.Element, selector string) (string, bool, error) {
	els, err := scope.Find(ctx, selector)
	if err != nil {
		return "", false, fmt.Errorf("finding %q: %w", selector, err)
	}
	if len(els) == 0 {
		return "", false, nil
	}
	text, err := els[0].Text(ctx)
	if err != nil {
		return "", false, fmt.Errorf("reading %q: %w", selector, err)
	}
	return collapseSpace(text), true, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
