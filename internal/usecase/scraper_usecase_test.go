package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/missoula-scraper/internal/adapter/static_browser"
	"github.com/user/missoula-scraper/internal/repository"
	"go.uber.org/zap/zaptest"
)

var mst = time.FixedZone("MST", -7*60*60)

type fixtureEntry struct {
	title  string
	date   string
	player string // player id, empty for no video link
}

type fixtureGroup struct {
	name    string
	hidden  bool // label not shown on the page
	broken  bool // clicking the label never reveals the entries
	entries []fixtureEntry
}

type fixtureSite struct {
	noListToggle bool
	groups       []fixtureGroup
	players      map[string]string // id -> player page body

	mu        sync.Mutex
	requested []string
}

func (f *fixtureSite) calendarHTML() string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="past-meetings">`)
	if !f.noListToggle {
		b.WriteString(`<a class="list-view-toggle" href="#past-list">List</a>`)
	}
	b.WriteString(`<div id="past-list" hidden>`)
	for i, g := range f.groups {
		labelStyle := ""
		if g.hidden {
			labelStyle = ` style="display:none"`
		}
		fmt.Fprintf(&b, `<div class="MeetingTypeList"><a class="PastMeetingTypesName" href="#g-%d"%s>%s</a>`, i, labelStyle, g.name)
		if g.broken {
			fmt.Fprintf(&b, `<div id="g-%d"></div><div style="display:none">`, i)
		} else {
			fmt.Fprintf(&b, `<div id="g-%d" style="display:none">`, i)
		}
		for _, e := range g.entries {
			b.WriteString(`<div class="calendar-item"><div class="meeting-header">`)
			fmt.Fprintf(&b, `<div class="meeting-title"><a>%s</a></div>`, e.title)
			fmt.Fprintf(&b, `<div class="meeting-date">%s</div></div>`, e.date)
			b.WriteString(`<ul class="resource-list">`)
			b.WriteString(`<li><a class="resource-link" href="./FileStream.ashx?DocumentId=1">Agenda</a></li>`)
			if e.player != "" {
				fmt.Fprintf(&b, `<li><a class="resource-link" href="./Players/ISIStandAlonePlayer.aspx?Id=%s">Video</a></li>`, e.player)
			}
			b.WriteString(`</ul></div>`)
		}
		b.WriteString(`</div></div>`)
	}
	b.WriteString(`</div></div></body></html>`)
	return b.String()
}

func (f *fixtureSite) serve(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(f.calendarHTML()))
	})
	mux.HandleFunc("/Players/ISIStandAlonePlayer.aspx", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("Id")
		f.mu.Lock()
		f.requested = append(f.requested, id)
		f.mu.Unlock()

		body, ok := f.players[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("<html><body>" + body + "</body></html>"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (f *fixtureSite) requestedPlayers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := append([]string(nil), f.requested...)
	sort.Strings(ids)
	return ids
}

func playerPage(fileName, duration string) string {
	page := fmt.Sprintf(`<div id="isi_player" data-file_name="%s"></div>`, fileName)
	if duration != "" {
		page += fmt.Sprintf(`<div class="fp-controls"><span class="fp-duration">%s</span></div>`, duration)
	}
	return page
}

// countingLauncher records how often sessions are closed.
type countingLauncher struct {
	inner     repository.BrowserLauncher
	launchErr error

	mu       sync.Mutex
	launched int
	closed   int
}

type countingBrowser struct {
	repository.Browser
	l *countingLauncher
}

func (b *countingBrowser) Close() error {
	b.l.mu.Lock()
	b.l.closed++
	b.l.mu.Unlock()
	return b.Browser.Close()
}

func (l *countingLauncher) Launch(ctx context.Context) (repository.Browser, error) {
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	b, err := l.inner.Launch(ctx)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.launched++
	l.mu.Unlock()
	return &countingBrowser{Browser: b, l: l}, nil
}

type fakeCache struct {
	entries map[string]string
	puts    map[string]string
	getErr  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]string{}, puts: map[string]string{}}
}

func (c *fakeCache) Get(ctx context.Context, playerURI string) (string, bool, error) {
	if c.getErr != nil {
		return "", false, c.getErr
	}
	v, ok := c.entries[playerURI]
	return v, ok, nil
}

func (c *fakeCache) Put(ctx context.Context, playerURI, fileName string, expiry time.Duration) error {
	c.puts[playerURI] = fileName
	return nil
}

func newTestScraper(t *testing.T, srv *httptest.Server, cache repository.PlayerCacheRepository, maxEvents int) (*MeetingScraper, *countingLauncher) {
	t.Helper()
	launcher := &countingLauncher{inner: static_browser.NewLauncher(srv.Client(), "test")}
	cfg := ScraperConfig{
		CalendarURL:  srv.URL + "/",
		VideoBaseURL: "https://video.isilive.ca/missoula/",
		Location:     mst,
		WaitTimeout:  120 * time.Millisecond,
		MaxEvents:    maxEvents,
	}
	return NewMeetingScraper(launcher, cache, cfg, nil, zaptest.NewLogger(t)), launcher
}

var (
	window2022From = time.Date(2022, 1, 1, 0, 0, 0, 0, mst)
	window2022To   = time.Date(2022, 12, 31, 23, 59, 59, 0, mst)
)

func standardSite() *fixtureSite {
	return &fixtureSite{
		groups: []fixtureGroup{
			{
				name: "City Council",
				entries: []fixtureEntry{
					{title: "City Council Meeting", date: "Thursday, 3 February 2022 @ 10:00 AM", player: "1"},
					{title: "City Council Meeting", date: "Wednesday, 15 December 2021 @ 6:00 PM", player: "2"},
					{title: "City Council Meeting", date: "Wednesday, 9 March 2022 @ 6:00 PM"},
					{title: "City Council Meeting", date: "Monday, 14 March 2022 @ 6:00 PM", player: "3"},
					{title: "City Council Meeting", date: "Friday, 1 April 2022 @ 6:00 PM", player: "4"},
					{title: "City Council Meeting", date: "not a date", player: "8"},
				},
			},
			{
				name:   "Hidden Board",
				hidden: true,
				entries: []fixtureEntry{
					{title: "Hidden Board Meeting", date: "Thursday, 3 February 2022 @ 1:00 PM", player: "5"},
				},
			},
			{
				name:   "Broken Committee",
				broken: true,
				entries: []fixtureEntry{
					{title: "Broken Committee Meeting", date: "Thursday, 3 February 2022 @ 2:00 PM", player: "6"},
				},
			},
			{
				name: "Affordable Housing Resident Oversight Committee",
				entries: []fixtureEntry{
					{title: "Affordable Housing Resident Oversight Committee", date: "Saturday, 1 January 2022 @ 12:00 AM", player: "7"},
				},
			},
		},
		players: map[string]string{
			"1": playerPage("Encoder1_CC_2022-02-03-10-00.mp4", "1:05:30"),
			"2": playerPage("Encoder1_CC_2021-12-15-18-00.mp4", ""),
			"3": playerPage("Encoder1_broken_file", ""),
			"4": `<p>player failed to load</p>`,
			"5": playerPage("Encoder1_HB_2022-02-03-13-00.mp4", ""),
			"6": playerPage("Encoder1_BC_2022-02-03-14-00.mp4", ""),
			"7": playerPage("Encoder1_AHROC_2022-03-09-07-51.mp4", "5:30"),
		},
	}
}

func TestScrape_FiltersAndResolves(t *testing.T) {
	site := standardSite()
	srv := site.serve(t)
	s, launcher := newTestScraper(t, srv, nil, 0)

	res, err := s.Scrape(context.Background(), window2022From, window2022To, ScrapeOptions{})
	require.NoError(t, err)

	require.Len(t, res.Meetings, 2)
	byURI := map[string]bool{}
	for _, m := range res.Meetings {
		assert.NotEmpty(t, m.VideoURI)
		assert.False(t, m.Errored())
		assert.True(t, InWindow(m.Date, window2022From, window2022To))
		byURI[m.VideoURI] = true
	}
	assert.True(t, byURI["https://video.isilive.ca/missoula/Encoder1_CC_2022-02-03-10-00.mp4"])
	assert.True(t, byURI["https://video.isilive.ca/missoula/Encoder1_AHROC_2022-03-09-07-51.mp4"])

	first := res.Meetings[0]
	assert.Equal(t, "City Council Meeting", first.Title)
	assert.Equal(t, time.Date(2022, 2, 3, 10, 0, 0, 0, mst), first.Date)

	// Player 3 has no video file, player 4 never renders.
	require.Len(t, res.Failed, 2)
	for _, m := range res.Failed {
		assert.True(t, m.Errored())
		assert.Empty(t, m.VideoURI)
	}
	assert.ErrorIs(t, res.Failed[0].Err, ErrNoVideoFile)
	assert.ErrorIs(t, res.Failed[1].Err, repository.ErrWaitTimeout)

	// Out of window, hidden group and broken group players are never visited.
	assert.Equal(t, []string{"1", "3", "4", "7"}, site.requestedPlayers())
	assert.Nil(t, res.Durations)

	assert.Equal(t, 1, launcher.launched)
	assert.Equal(t, 1, launcher.closed)
}

func TestScrape_ExcludesEntryBeforeWindow(t *testing.T) {
	site := &fixtureSite{
		groups: []fixtureGroup{{
			name: "City Council",
			entries: []fixtureEntry{
				{title: "City Council Meeting", date: "Wednesday, 15 December 2021 @ 6:00 PM", player: "2"},
			},
		}},
		players: map[string]string{"2": playerPage("Encoder1_CC_2021-12-15-18-00.mp4", "")},
	}
	s, _ := newTestScraper(t, site.serve(t), nil, 0)

	res, err := s.Scrape(context.Background(), window2022From, window2022To, ScrapeOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Meetings)
	assert.Empty(t, res.Failed)
	assert.Empty(t, site.requestedPlayers())
}

func TestScrape_DeduplicatesPlayerLinks(t *testing.T) {
	entry := fixtureEntry{title: "Joint Meeting", date: "Thursday, 3 February 2022 @ 10:00 AM", player: "1"}
	site := &fixtureSite{
		groups: []fixtureGroup{
			{name: "A", entries: []fixtureEntry{entry}},
			{name: "B", entries: []fixtureEntry{entry}},
		},
		players: map[string]string{"1": playerPage("Encoder1_J_2022-02-03.mp4", "")},
	}
	s, _ := newTestScraper(t, site.serve(t), nil, 0)

	res, err := s.Scrape(context.Background(), window2022From, window2022To, ScrapeOptions{})
	require.NoError(t, err)
	assert.Len(t, res.Meetings, 1)
	assert.Equal(t, []string{"1"}, site.requestedPlayers())
}

func TestScrape_MissingListViewIsFatal(t *testing.T) {
	site := standardSite()
	site.noListToggle = true
	s, launcher := newTestScraper(t, site.serve(t), nil, 0)

	_, err := s.Scrape(context.Background(), window2022From, window2022To, ScrapeOptions{})
	assert.ErrorIs(t, err, ErrListViewNotFound)
	assert.Equal(t, 1, launcher.closed, "browser must be released on fatal errors")
}

func TestScrape_TooManyEvents(t *testing.T) {
	site := standardSite()
	s, launcher := newTestScraper(t, site.serve(t), nil, 1)

	_, err := s.Scrape(context.Background(), window2022From, window2022To, ScrapeOptions{})
	assert.ErrorIs(t, err, ErrTooManyEvents)
	assert.Equal(t, 1, launcher.closed)
}

func TestScrape_InvalidWindow(t *testing.T) {
	s, launcher := newTestScraper(t, standardSite().serve(t), nil, 0)

	_, err := s.Scrape(context.Background(), window2022To, window2022From, ScrapeOptions{})
	assert.ErrorIs(t, err, ErrInvalidWindow)
	assert.Zero(t, launcher.launched)
}

func TestScrape_LaunchError(t *testing.T) {
	s, launcher := newTestScraper(t, standardSite().serve(t), nil, 0)
	launcher.launchErr = errors.New("no chrome")

	_, err := s.Scrape(context.Background(), window2022From, window2022To, ScrapeOptions{})
	assert.ErrorContains(t, err, "no chrome")
}

func TestScrape_CalendarUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	s, launcher := newTestScraper(t, srv, nil, 0)

	_, err := s.Scrape(context.Background(), window2022From, window2022To, ScrapeOptions{})
	assert.ErrorIs(t, err, repository.ErrNavigationFailed)
	assert.Equal(t, 1, launcher.closed)
}

func TestScrape_CancelledContext(t *testing.T) {
	s, launcher := newTestScraper(t, standardSite().serve(t), nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Scrape(ctx, window2022From, window2022To, ScrapeOptions{})
	assert.Error(t, err)
	assert.Equal(t, launcher.launched, launcher.closed)
}

func TestScrape_CollectDurations(t *testing.T) {
	site := standardSite()
	s, _ := newTestScraper(t, site.serve(t), nil, 0)
	// Week 10 of 2022.
	s.now = func() time.Time { return time.Date(2022, 3, 10, 12, 0, 0, 0, time.UTC) }

	res, err := s.Scrape(context.Background(), window2022From, window2022To, ScrapeOptions{CollectDurations: true})
	require.NoError(t, err)
	require.NotNil(t, res.Durations)

	assert.Equal(t, 2, res.Durations.Count)
	assert.Equal(t, time.Hour+11*time.Minute, res.Durations.Total)
	assert.Equal(t, 10, res.Durations.WeekOfYear)
	assert.Equal(t, (time.Hour+11*time.Minute)/10, res.Durations.AveragePerWeek)
}

func TestScrape_MissingDurationIsIgnored(t *testing.T) {
	site := &fixtureSite{
		groups: []fixtureGroup{{
			name: "City Council",
			entries: []fixtureEntry{
				{title: "City Council Meeting", date: "Thursday, 3 February 2022 @ 10:00 AM", player: "1"},
			},
		}},
		players: map[string]string{"1": playerPage("Encoder1_CC.mp4", "")},
	}
	s, _ := newTestScraper(t, site.serve(t), nil, 0)

	res, err := s.Scrape(context.Background(), window2022From, window2022To, ScrapeOptions{CollectDurations: true})
	require.NoError(t, err)
	require.Len(t, res.Meetings, 1)
	assert.False(t, res.Meetings[0].HasDuration)
	assert.Equal(t, 0, res.Durations.Count)
}

func TestScrape_PlayerCache(t *testing.T) {
	site := standardSite()
	srv := site.serve(t)
	cache := newFakeCache()
	cache.entries[srv.URL+"/Players/ISIStandAlonePlayer.aspx?Id=1"] = "Encoder1_cached.mp4"
	s, _ := newTestScraper(t, srv, cache, 0)

	res, err := s.Scrape(context.Background(), window2022From, window2022To, ScrapeOptions{})
	require.NoError(t, err)

	uris := []string{}
	for _, m := range res.Meetings {
		uris = append(uris, m.VideoURI)
	}
	assert.Contains(t, uris, "https://video.isilive.ca/missoula/Encoder1_cached.mp4")
	assert.NotContains(t, site.requestedPlayers(), "1")
	assert.Equal(t, "Encoder1_AHROC_2022-03-09-07-51.mp4", cache.puts[srv.URL+"/Players/ISIStandAlonePlayer.aspx?Id=7"])
	assert.NotContains(t, cache.puts, srv.URL+"/Players/ISIStandAlonePlayer.aspx?Id=3")
}

func TestScrape_PlayerCacheErrorFallsBack(t *testing.T) {
	site := standardSite()
	cache := newFakeCache()
	cache.getErr = errors.New("redis down")
	s, _ := newTestScraper(t, site.serve(t), cache, 0)

	res, err := s.Scrape(context.Background(), window2022From, window2022To, ScrapeOptions{})
	require.NoError(t, err)
	assert.Len(t, res.Meetings, 2)
	assert.Contains(t, site.requestedPlayers(), "1")
}

func TestGetEvents(t *testing.T) {
	s, _ := newTestScraper(t, standardSite().serve(t), nil, 0)

	events, err := s.GetEvents(context.Background(), window2022From, window2022To)
	require.NoError(t, err)
	require.Len(t, events, 2)

	for _, e := range events {
		require.Len(t, e.Sessions, 1)
		assert.Equal(t, 0, e.Sessions[0].SessionIndex)
		assert.NotEmpty(t, e.Sessions[0].VideoURI)
		assert.NotEmpty(t, e.Body.Name)
	}
	assert.Equal(t, "Affordable Housing Resident Oversight Committee", events[1].Body.Name)
	assert.Equal(t, time.Date(2022, 1, 1, 0, 0, 0, 0, mst), events[1].Sessions[0].SessionDatetime)
}
