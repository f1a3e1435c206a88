// internal/browser/session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/campaign-probe/api/schemas"
	"github.com/xkilldash9x/campaign-probe/internal/browser/stealth"
	"github.com/xkilldash9x/campaign-probe/internal/config"
)

const (
	cookieBannerSelector = "cmm-cookie-banner"
	acceptCookiesScript  = `document.querySelector("cmm-cookie-banner").shadowRoot.querySelector("wb7-button.button--accept-all").click();`
	readyStateScript     = `document.readyState === "complete"`
	bodyFetchTimeout     = 30 * time.Second
	cookieBannerSettle   = 2 * time.Second
)

// Session is one browser tab driven over CDP. It buffers network events in a
// performance log and exposes the page actions the journeys need.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    config.BrowserConfig
	logger *zap.Logger
	perf   *perfLog
}

// New launches a browser from allocCtx, opens a tab and starts buffering its
// network and page events.
func New(allocCtx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	tabCtx, cancel := chromedp.NewContext(allocCtx)
	s := &Session{
		ctx:    tabCtx,
		cancel: cancel,
		cfg:    cfg,
		logger: logger.Named("session"),
		perf:   newPerfLog(cfg.LogBufferSize),
	}

	// The first Run starts the browser and attaches to the tab.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	s.listen()
	return s, nil
}

// listen mirrors Chrome's performance log for the events the harvester and
// diagnostics read.
func (s *Session) listen() {
	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		var method cdproto.MethodType
		switch ev.(type) {
		case *network.EventRequestWillBeSent:
			method = cdproto.EventNetworkRequestWillBeSent
		case *network.EventResponseReceived:
			method = cdproto.EventNetworkResponseReceived
		case *network.EventLoadingFinished:
			method = cdproto.EventNetworkLoadingFinished
		case *network.EventLoadingFailed:
			method = cdproto.EventNetworkLoadingFailed
		case *page.EventLoadEventFired:
			method = cdproto.EventPageLoadEventFired
		case *page.EventFrameNavigated:
			method = cdproto.EventPageFrameNavigated
		default:
			return
		}
		if err := s.perf.record(string(method), ev); err != nil {
			s.logger.Debug("Failed to record performance log entry.", zap.String("method", string(method)), zap.Error(err))
		}
	})
}

// RunActions runs actions on the tab, bounded by both ctx and the tab lifetime.
func (s *Session) RunActions(ctx context.Context, actions ...chromedp.Action) error {
	combined, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(combined, actions...)
}

// -- capture.Session --

// ApplyPersona installs the fingerprint overrides for every future document.
func (s *Session) ApplyPersona(ctx context.Context, p stealth.Persona) error {
	return s.RunActions(ctx, stealth.Apply(p, s.logger))
}

// EnableNetworkLogging turns on the Network domain so response events are
// buffered and bodies stay retrievable.
func (s *Session) EnableNetworkLogging(ctx context.Context, maxPostDataSize int64) error {
	enable := network.Enable().WithMaxPostDataSize(maxPostDataSize)
	if s.cfg.MaxTotalBufferSize > 0 {
		enable = enable.WithMaxTotalBufferSize(s.cfg.MaxTotalBufferSize)
	}
	if s.cfg.MaxResourceBufferSize > 0 {
		enable = enable.WithMaxResourceBufferSize(s.cfg.MaxResourceBufferSize)
	}
	if err := s.RunActions(ctx, enable); err != nil {
		return fmt.Errorf("failed to enable network domain: %w", err)
	}
	return nil
}

// DrainPerformanceLog returns and forgets every buffered entry.
func (s *Session) DrainPerformanceLog(ctx context.Context) ([]schemas.LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ctx.Err(); err != nil {
		return nil, fmt.Errorf("session closed: %w", err)
	}
	if n := s.perf.Dropped(); n > 0 {
		s.logger.Debug("Performance log overflowed since start.", zap.Int("dropped", n))
	}
	return s.perf.drain(), nil
}

// GetResponseBody fetches the body of a previously observed response.
func (s *Session) GetResponseBody(ctx context.Context, requestID string) (string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, bodyFetchTimeout)
	defer cancel()

	var body []byte
	err := s.RunActions(fetchCtx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		body, err = network.GetResponseBody(network.RequestID(requestID)).Do(c)
		return err
	}))
	if err != nil {
		return "", fmt.Errorf("failed to get response body for %s: %w", requestID, err)
	}
	return string(body), nil
}

// -- page actions --

// Navigate loads url and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if s.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.NavigationTimeout)
		defer cancel()
	}
	if err := s.RunActions(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	s.logger.Debug("Navigated.", zap.String("url", url))
	return nil
}

// WaitReady blocks until document.readyState is "complete".
func (s *Session) WaitReady(ctx context.Context, timeout time.Duration) error {
	var ready bool
	err := s.RunActions(ctx, chromedp.Poll(readyStateScript, &ready, chromedp.WithPollingTimeout(timeout)))
	if err != nil {
		return fmt.Errorf("document not ready after %s: %w", timeout, err)
	}
	return nil
}

// WaitVisible blocks until selector matches a visible element.
func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.RunActions(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("element %q not visible: %w", selector, err)
	}
	return nil
}

// Click clicks the first visible element matching selector.
func (s *Session) Click(ctx context.Context, selector string) error {
	if err := s.RunActions(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("failed to click %q: %w", selector, err)
	}
	return nil
}

// Evaluate runs expression in the page. res may be nil.
func (s *Session) Evaluate(ctx context.Context, expression string, res interface{}) error {
	return s.RunActions(ctx, chromedp.Evaluate(expression, res))
}

// Sleep pauses for d, or until ctx or the tab ends.
func (s *Session) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return s.RunActions(ctx, chromedp.Sleep(d))
}

// ScrollIntoView scrolls the first element matching selector into view.
func (s *Session) ScrollIntoView(ctx context.Context, selector string) error {
	return s.RunActions(ctx, chromedp.ScrollIntoView(selector, chromedp.ByQuery))
}

// AcceptCookies waits up to timeout for the cookie banner and clicks
// "accept all" inside its shadow root.
func (s *Session) AcceptCookies(ctx context.Context, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.RunActions(waitCtx, chromedp.WaitReady(cookieBannerSelector, chromedp.ByQuery)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("cookie banner not found or already accepted: %w", err)
		}
		return err
	}
	if err := s.RunActions(ctx, chromedp.Sleep(cookieBannerSettle), chromedp.Evaluate(acceptCookiesScript, nil)); err != nil {
		return fmt.Errorf("failed to accept cookies: %w", err)
	}
	s.logger.Debug("Accepted cookies.")
	return nil
}

// Screenshot captures the full page as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.RunActions(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// Close shuts the browser down.
func (s *Session) Close() error {
	closeCtx, cancel := context.WithTimeout(Detach(s.ctx), 10*time.Second)
	defer cancel()
	err := chromedp.Cancel(closeCtx)
	s.cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return nil
}
