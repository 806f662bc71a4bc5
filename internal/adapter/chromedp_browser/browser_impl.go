package chromedp_browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
	"github.com/user/missoula-scraper/internal/repository"
	"go.uber.org/zap"
)

// Options configure the Chrome instance started per session.
type Options struct {
	Headless        bool
	UserAgent       string
	PageLoadTimeout time.Duration
}

// Launcher starts headless Chrome sessions through chromedp.
type Launcher struct {
	opts   Options
	logger *zap.Logger
}

// NewLauncher creates a new launcher implementation using chromedp.
func NewLauncher(opts Options, logger *zap.Logger) *Launcher {
	return &Launcher{opts: opts, logger: logger}
}

// AllocatorOptions returns the exec allocator flags for a session: private
// browsing, certificate errors ignored and, unless disabled, headless.
func (l *Launcher) AllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.opts.Headless),
		chromedp.Flag("incognito", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if l.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.opts.UserAgent))
	}
	return opts
}

// Launch starts Chrome and opens a blank tab. The returned browser owns the
// process; Close terminates it.
func (l *Launcher) Launch(ctx context.Context) (repository.Browser, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), l.AllocatorOptions()...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(l.logger.Sugar().Debugf))

	// Run with no actions starts the browser so launch failures surface here.
	if err := chromedp.Run(taskCtx); err != nil {
		taskCancel()
		allocCancel()
		return nil, fmt.Errorf("starting chrome: %w", err)
	}

	l.logger.Debug("browser session started", zap.Bool("headless", l.opts.Headless))
	return &Browser{
		ctx:             taskCtx,
		cancel:          func() { taskCancel(); allocCancel() },
		pageLoadTimeout: l.opts.PageLoadTimeout,
		logger:          l.logger,
	}, nil
}

// Browser drives one Chrome tab.
type Browser struct {
	ctx             context.Context
	cancel          context.CancelFunc
	pageLoadTimeout time.Duration
	logger          *zap.Logger
}

// run executes actions on the tab, honouring cancellation of the caller's ctx.
func (b *Browser) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx := b.ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(runCtx)
	}
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (b *Browser) Open(ctx context.Context, url string) error {
	if err := b.run(ctx, b.pageLoadTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("%w: %s: %v", repository.ErrNavigationFailed, url, err)
	}
	return nil
}

func (b *Browser) Find(ctx context.Context, selector string) ([]repository.Element, error) {
	var nodes []*cdp.Node
	if err := b.run(ctx, 0, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("querying %q: %w", selector, err)
	}
	return b.wrap(nodes), nil
}

func (b *Browser) WaitVisible(ctx context.Context, scope repository.Element, selector string, timeout time.Duration) error {
	opts := []chromedp.QueryOption{chromedp.ByQuery}
	if scope != nil {
		el, ok := scope.(*Element)
		if !ok {
			return fmt.Errorf("foreign element %T", scope)
		}
		opts = append(opts, chromedp.FromNode(el.node))
	}

	err := b.run(ctx, timeout, chromedp.WaitVisible(selector, opts...))
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w: %q after %s", repository.ErrWaitTimeout, selector, timeout)
	}
	return err
}

func (b *Browser) Close() error {
	b.cancel()
	b.logger.Debug("browser session closed")
	return nil
}

func (b *Browser) wrap(nodes []*cdp.Node) []repository.Element {
	elements := make([]repository.Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, &Element{browser: b, node: n})
	}
	return elements
}

// Element is a DOM node of the tab's current document.
type Element struct {
	browser *Browser
	node    *cdp.Node
}

func (e *Element) ids() []cdp.NodeID {
	return []cdp.NodeID{e.node.NodeID}
}

func (e *Element) Find(ctx context.Context, selector string) ([]repository.Element, error) {
	var nodes []*cdp.Node
	err := e.browser.run(ctx, 0, chromedp.Nodes(selector, &nodes,
		chromedp.ByQueryAll, chromedp.FromNode(e.node), chromedp.AtLeast(0)))
	if err != nil {
		return nil, fmt.Errorf("querying %q: %w", selector, err)
	}
	return e.browser.wrap(nodes), nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	var text string
	if err := e.browser.run(ctx, 0, chromedp.TextContent(e.ids(), &text, chromedp.ByNodeID)); err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (e *Element) Attr(ctx context.Context, name string) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	if err := e.browser.run(ctx, 0, chromedp.AttributeValue(e.ids(), name, &value, &ok, chromedp.ByNodeID)); err != nil {
		return "", false, err
	}
	return value, ok, nil
}

// Visible reports whether the node has a layout box.
func (e *Element) Visible(ctx context.Context) (bool, error) {
	visible := false
	err := e.browser.run(ctx, 0, chromedp.ActionFunc(func(ctx context.Context) error {
		model, err := dom.GetBoxModel().WithNodeID(e.node.NodeID).Do(ctx)
		if err != nil {
			// Nodes without a box (display:none, detached) are not rendered.
			return nil
		}
		visible = model.Width > 0 && model.Height > 0
		return nil
	}))
	return visible, err
}

func (e *Element) Click(ctx context.Context) error {
	if err := e.browser.run(ctx, 0, chromedp.Click(e.ids(), chromedp.ByNodeID)); err != nil {
		return fmt.Errorf("%w: %v", repository.ErrNotInteractable, err)
	}
	return nil
}
