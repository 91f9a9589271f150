package browser

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/pkg/errors"
)

const defaultPageLoadTimeout = 30 * time.Second

// ChromeFactory launches one headless Chrome per session via chromedp.
type ChromeFactory struct {
	// Headless controls the headless flag; miner UIs occasionally need a
	// visible browser when debugging selector drift.
	Headless bool
	// PageLoadTimeout bounds every Navigate call. Zero means 30s.
	PageLoadTimeout time.Duration
}

type chromeSession struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	loadTimeout time.Duration
}

// OpenSession starts a browser and returns once it is ready to navigate.
func (f *ChromeFactory) OpenSession(ctx context.Context) (Session, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", f.Headless),
		chromedp.DisableGPU,
		// Keep Chrome's password manager out of the login forms.
		chromedp.Flag("password-store", "basic"),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	// Run an empty task list so browser startup failures surface here
	// instead of on the first Navigate.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, errors.Wrap(err, "browser: start chrome failed")
	}

	loadTimeout := f.PageLoadTimeout
	if loadTimeout <= 0 {
		loadTimeout = defaultPageLoadTimeout
	}
	return &chromeSession{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		loadTimeout: loadTimeout,
	}, nil
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := s.bounded(ctx, s.loadTimeout)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		return errors.Wrapf(err, "browser: navigate %s failed", url)
	}
	return nil
}

func (s *chromeSession) WaitVisible(ctx context.Context, sel Selector, timeout time.Duration) error {
	runCtx, cancel := s.bounded(ctx, timeout)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.WaitVisible(sel.Query, queryOpts(sel)...)); err != nil {
		return errors.Wrapf(err, "browser: wait visible %s failed", sel)
	}
	return nil
}

func (s *chromeSession) WaitEnabled(ctx context.Context, sel Selector, timeout time.Duration) error {
	runCtx, cancel := s.bounded(ctx, timeout)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.WaitEnabled(sel.Query, queryOpts(sel)...)); err != nil {
		return errors.Wrapf(err, "browser: wait enabled %s failed", sel)
	}
	return nil
}

func (s *chromeSession) Exists(ctx context.Context, sel Selector) (bool, error) {
	count, err := s.Count(ctx, sel)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *chromeSession) Count(ctx context.Context, sel Selector) (int, error) {
	runCtx, cancel := s.bounded(ctx, s.loadTimeout)
	defer cancel()
	var nodes []*cdp.Node
	opts := append(queryAllOpts(sel), chromedp.AtLeast(0))
	if err := chromedp.Run(runCtx, chromedp.Nodes(sel.Query, &nodes, opts...)); err != nil {
		return 0, errors.Wrapf(err, "browser: count %s failed", sel)
	}
	return len(nodes), nil
}

func (s *chromeSession) Click(ctx context.Context, sel Selector) error {
	runCtx, cancel := s.bounded(ctx, s.loadTimeout)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.Click(sel.Query, queryOpts(sel)...)); err != nil {
		return errors.Wrapf(err, "browser: click %s failed", sel)
	}
	return nil
}

func (s *chromeSession) SetValue(ctx context.Context, sel Selector, value string) error {
	runCtx, cancel := s.bounded(ctx, s.loadTimeout)
	defer cancel()
	err := chromedp.Run(runCtx,
		chromedp.Clear(sel.Query, queryOpts(sel)...),
		chromedp.SendKeys(sel.Query, value, queryOpts(sel)...),
	)
	if err != nil {
		return errors.Wrapf(err, "browser: set value on %s failed", sel)
	}
	return nil
}

func (s *chromeSession) Close() error {
	err := chromedp.Cancel(s.ctx)
	s.cancelTab()
	s.cancelAlloc()
	if err != nil {
		return errors.Wrap(err, "browser: close chrome failed")
	}
	return nil
}

// bounded derives the chromedp run context from the session's tab, honoring
// both the caller's context and the step timeout.
func (s *chromeSession) bounded(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancelTimeout := context.WithTimeout(s.ctx, timeout)
	if ctx == nil {
		return runCtx, cancelTimeout
	}
	stop := context.AfterFunc(ctx, cancelTimeout)
	return runCtx, func() {
		stop()
		cancelTimeout()
	}
}

func queryOpts(sel Selector) []chromedp.QueryOption {
	if sel.XPath {
		return []chromedp.QueryOption{chromedp.BySearch}
	}
	return []chromedp.QueryOption{chromedp.ByQuery}
}

func queryAllOpts(sel Selector) []chromedp.QueryOption {
	if sel.XPath {
		return []chromedp.QueryOption{chromedp.BySearch}
	}
	return []chromedp.QueryOption{chromedp.ByQueryAll}
}
