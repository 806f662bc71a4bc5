package static_browser

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/user/missoula-scraper/internal/repository"
)

const defaultPollInterval = 50 * time.Millisecond

// Launcher starts browsers that render pages without executing scripts.
// Visibility comes from markup only, and clicking an element that targets
// another element by id reveals that element.
type Launcher struct {
	client       *http.Client
	userAgent    string
	pollInterval time.Duration
}

// NewLauncher creates a launcher fetching pages with client.
func NewLauncher(client *http.Client, userAgent string) *Launcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Launcher{
		client:       client,
		userAgent:    userAgent,
		pollInterval: defaultPollInterval,
	}
}

// Launch returns a fresh session with no page loaded.
func (l *Launcher) Launch(ctx context.Context) (repository.Browser, error) {
	return &Browser{
		client:       l.client,
		userAgent:    l.userAgent,
		pollInterval: l.pollInterval,
	}, nil
}

// Browser is a goquery-backed repository.Browser.
type Browser struct {
	client       *http.Client
	userAgent    string
	pollInterval time.Duration

	doc    *goquery.Document
	url    string
	closed bool
}

// Open fetches url and replaces the current document.
func (b *Browser) Open(ctx context.Context, url string) error {
	if b.closed {
		return fmt.Errorf("%w: browser closed", repository.ErrNavigationFailed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: creating request: %v", repository.ErrNavigationFailed, err)
	}
	if b.userAgent != "" {
		req.Header.Set("User-Agent", b.userAgent)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: fetching %s: %v", repository.ErrNavigationFailed, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d", repository.ErrNavigationFailed, url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: parsing HTML: %v", repository.ErrNavigationFailed, err)
	}

	b.doc = doc
	b.url = url
	return nil
}

// URL returns the address of the loaded page.
func (b *Browser) URL() string {
	return b.url
}

func (b *Browser) Find(ctx context.Context, selector string) ([]repository.Element, error) {
	if b.doc == nil {
		return nil, fmt.Errorf("%w: no page loaded", repository.ErrElementNotFound)
	}
	return wrap(b, b.doc.Find(selector)), nil
}

// WaitVisible polls the document until selector matches a visible element.
func (b *Browser) WaitVisible(ctx context.Context, scope repository.Element, selector string, timeout time.Duration) error {
	if b.doc == nil {
		return fmt.Errorf("%w: no page loaded", repository.ErrElementNotFound)
	}

	root := b.doc.Selection
	if scope != nil {
		el, ok := scope.(*Element)
		if !ok {
			return fmt.Errorf("foreign element %T", scope)
		}
		root = el.sel
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		found := false
		root.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if isVisible(s) {
				found = true
				return false
			}
			return true
		})
		if found {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w: %q after %s", repository.ErrWaitTimeout, selector, timeout)
		case <-ticker.C:
		}
	}
}

func (b *Browser) Close() error {
	b.closed = true
	b.doc = nil
	return nil
}

// Element wraps a single goquery node.
type Element struct {
	browser *Browser
	sel     *goquery.Selection
}

func wrap(b *Browser, sel *goquery.Selection) []repository.Element {
	elements := make([]repository.Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		elements = append(elements, &Element{browser: b, sel: s})
	})
	return elements
}

func (e *Element) Find(ctx context.Context, selector string) ([]repository.Element, error) {
	return wrap(e.browser, e.sel.Find(selector)), nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	return strings.TrimSpace(e.sel.Text()), nil
}

func (e *Element) Attr(ctx context.Context, name string) (string, bool, error) {
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

func (e *Element) Visible(ctx context.Context) (bool, error) {
	return isVisible(e.sel), nil
}

// Click reveals the element this one targets through a fragment href,
// data-target or aria-controls.
func (e *Element) Click(ctx context.Context) error {
	if !isVisible(e.sel) {
		return repository.ErrNotInteractable
	}

	id := clickTarget(e.sel)
	if id == "" || e.browser.doc == nil {
		return nil
	}
	target := e.browser.doc.Find("#" + id)
	if target.Length() == 0 {
		return fmt.Errorf("%w: click target #%s", repository.ErrElementNotFound, id)
	}
	reveal(target)
	return nil
}

func clickTarget(s *goquery.Selection) string {
	if v, ok := s.Attr("data-target"); ok && v != "" {
		return strings.TrimPrefix(v, "#")
	}
	if v, ok := s.Attr("aria-controls"); ok && v != "" {
		return strings.TrimPrefix(v, "#")
	}
	if v, ok := s.Attr("href"); ok && strings.HasPrefix(v, "#") && len(v) > 1 {
		return v[1:]
	}
	return ""
}

func isVisible(s *goquery.Selection) bool {
	if s.Length() == 0 {
		return false
	}
	for node := s.First(); node.Length() > 0; node = node.Parent() {
		if hiddenNode(node) {
			return false
		}
	}
	return true
}

func hiddenNode(s *goquery.Selection) bool {
	if _, ok := s.Attr("hidden"); ok {
		return true
	}
	if s.HasClass("hidden") {
		return true
	}
	style, _ := s.Attr("style")
	return hasDisplayNone(style)
}

func hasDisplayNone(style string) bool {
	for _, decl := range strings.Split(style, ";") {
		prop, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(prop), "display") &&
			strings.EqualFold(strings.TrimSpace(value), "none") {
			return true
		}
	}
	return false
}

func reveal(s *goquery.Selection) {
	s.RemoveAttr("hidden")
	s.RemoveClass("hidden")

	style, ok := s.Attr("style")
	if !ok {
		return
	}
	kept := make([]string, 0)
	for _, decl := range strings.Split(style, ";") {
		if strings.TrimSpace(decl) == "" || hasDisplayNone(decl) {
			continue
		}
		kept = append(kept, strings.TrimSpace(decl))
	}
	if len(kept) == 0 {
		s.RemoveAttr("style")
		return
	}
	s.SetAttr("style", strings.Join(kept, "; "))
}
