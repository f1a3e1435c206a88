// Package runner executes test cases: it resolves each model's links, drives
// a fresh browser through the journey, verifies the personalized home page
// image and records the campaigns the personalization host returned.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/campaign-probe/api/schemas"
	"github.com/xkilldash9x/campaign-probe/internal/capture"
	"github.com/xkilldash9x/campaign-probe/internal/config"
	"github.com/xkilldash9x/campaign-probe/internal/evidence"
	"github.com/xkilldash9x/campaign-probe/internal/journey"
	"github.com/xkilldash9x/campaign-probe/internal/market"
)

// Page is the page control the runner needs on top of a journey's.
type Page interface {
	journey.Browser
	WaitReady(ctx context.Context, timeout time.Duration) error
	AcceptCookies(ctx context.Context, timeout time.Duration) error
	ScrollIntoView(ctx context.Context, selector string) error
	Screenshot(ctx context.Context) ([]byte, error)
}

// BrowserSession is one browser owned by a single attempt.
type BrowserSession interface {
	Page
	capture.Session
	Close() error
}

// SessionFactory starts a new browser with a clean profile.
type SessionFactory func(ctx context.Context) (BrowserSession, error)

// URLResolver looks up the deep links of a market's models.
type URLResolver interface {
	VehicleURLs(ctx context.Context, loc market.Locale, modelCode string) (schemas.VehicleURLs, error)
	ModelSeries(ctx context.Context, loc market.Locale) ([]string, error)
}

// CaseID returns a stable identifier for a test, market and model.
func CaseID(c schemas.TestCase) string {
	model := c.ModelCode
	if model == "" {
		model = "unknown"
	}
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(fmt.Sprintf("%s_%s_%s", c.TestName, c.MarketCode, model))).String()
}

// Runner executes test cases concurrently.
type Runner struct {
	cfg         config.RunnerConfig
	captureCfg  capture.Config
	newSession  SessionFactory
	resolver    URLResolver
	evidence    *evidence.Writer
	screenshots bool
	logger      *zap.Logger
}

// Option customizes a Runner.
type Option func(*Runner)

// WithEvidence stores capture files, and screenshots when enabled, in w.
func WithEvidence(w *evidence.Writer, screenshots bool) Option {
	return func(r *Runner) {
		r.evidence = w
		r.screenshots = screenshots
	}
}

// New creates a Runner.
func New(cfg config.RunnerConfig, captureCfg capture.Config, newSession SessionFactory, resolver URLResolver, logger *zap.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	r := &Runner{
		cfg:        cfg,
		captureCfg: captureCfg,
		newSession: newSession,
		resolver:   resolver,
		logger:     logger.Named("runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes cases and returns one result per expanded case, in order.
// A case without a model code runs once for every model series of its
// market. The returned error is non-nil only when ctx ended early.
func (r *Runner) Run(ctx context.Context, cases []schemas.TestCase) ([]schemas.RunResult, error) {
	expanded, failed := r.expand(ctx, cases)
	results := make([]schemas.RunResult, len(expanded))

	g := new(errgroup.Group)
	g.SetLimit(r.cfg.Concurrency)
	for i, c := range expanded {
		i, c := i, c
		g.Go(func() error {
			results[i] = r.runCase(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	results = append(failed, results...)
	r.logSummary(results)
	return results, ctx.Err()
}

// expand replaces cases without a model code by one case per model series.
// Cases whose market cannot be listed come back as failed results.
func (r *Runner) expand(ctx context.Context, cases []schemas.TestCase) (expanded []schemas.TestCase, failed []schemas.RunResult) {
	for _, c := range cases {
		if c.ModelCode != "" {
			expanded = append(expanded, c)
			continue
		}
		loc, err := market.ParseLocale(c.MarketCode)
		if err == nil {
			var codes []string
			if codes, err = r.resolver.ModelSeries(ctx, loc); err == nil && len(codes) == 0 {
				err = fmt.Errorf("no model series for %s", loc)
			}
			for _, code := range codes {
				mc := c
				mc.ModelCode = code
				expanded = append(expanded, mc)
			}
		}
		if err != nil {
			r.logger.Error("Failed to expand test case.", zap.String("test", c.TestName), zap.String("market", c.MarketCode), zap.Error(err))
			failed = append(failed, schemas.RunResult{
				ID:        CaseID(c),
				Case:      c,
				Status:    schemas.StatusFailed,
				Message:   err.Error(),
				StartedAt: time.Now(),
			})
		}
	}
	return expanded, failed
}

func (r *Runner) runCase(ctx context.Context, c schemas.TestCase) (res schemas.RunResult) {
	res = schemas.RunResult{ID: CaseID(c), Case: c, StartedAt: time.Now()}
	logger := r.logger.With(
		zap.String("case_id", res.ID),
		zap.String("test", c.TestName),
		zap.String("market", c.MarketCode),
		zap.String("model_code", c.ModelCode),
	)
	defer func() { res.Duration = time.Since(res.StartedAt) }()

	fail := func(format string, args ...interface{}) schemas.RunResult {
		res.Status = schemas.StatusFailed
		res.Message = fmt.Sprintf(format, args...)
		logger.Error("Test case failed.", zap.String("reason", res.Message))
		return res
	}

	j, err := journey.Lookup(c.TestName)
	if err != nil {
		return fail("%v", err)
	}
	loc, err := market.ParseLocale(c.MarketCode)
	if err != nil {
		return fail("%v", err)
	}
	urls, err := r.resolver.VehicleURLs(ctx, loc, c.ModelCode)
	if err != nil {
		return fail("could not fetch URLs: %v", err)
	}
	res.Case.URLs = urls
	if urls.HomePage == "" {
		return fail("missing HOME_PAGE URL")
	}
	if err := j.Check(urls); err != nil {
		res.Status = schemas.StatusSkipped
		res.Message = err.Error()
		logger.Warn("Test case skipped.", zap.String("reason", res.Message))
		return res
	}

	maxAttempts := r.cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = j.MaxAttempts
	}

	var (
		lastErr   error
		completed bool
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			break
		}
		res.Attempts = attempt
		ok, err := r.attempt(ctx, &res, j, attempt, logger.With(zap.Int("attempt", attempt)))
		if err != nil {
			lastErr = err
			logger.Warn("Attempt failed.", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		completed = true
		if ok {
			res.Status = schemas.StatusPassed
			res.Message = ""
			logger.Info("Personalized image verified.", zap.Int("attempt", attempt), zap.String("personalization", string(res.Personalization)))
			return res
		}
	}

	if err := ctx.Err(); err != nil {
		return fail("interrupted: %v", err)
	}
	if !completed {
		return fail("no attempt completed: %v", lastErr)
	}
	msg := fmt.Sprintf("personalized image containing %q not found after %d attempts", ExpectedImageSource(j.Name), res.Attempts)
	if res.Personalization == schemas.PersonalizationControl {
		msg += " (visitor in control group)"
	}
	return fail("%s", msg)
}

// attempt drives one fresh browser through the case. ok reports whether the
// personalized image was found; err means the attempt could not complete.
func (r *Runner) attempt(ctx context.Context, res *schemas.RunResult, j journey.Journey, attempt int, logger *zap.Logger) (ok bool, err error) {
	urls := res.Case.URLs

	sess, err := r.newSession(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			logger.Debug("Failed to close browser.", zap.Error(cerr))
		}
	}()

	harvester, err := capture.New(ctx, sess, r.captureCfg, logger)
	if err != nil {
		return false, err
	}

	if err := sess.Navigate(ctx, urls.HomePage); err != nil {
		return false, fmt.Errorf("error navigating to HOME_PAGE: %w", err)
	}
	if err := sess.WaitReady(ctx, r.cfg.ReadyTimeout); err != nil {
		return false, fmt.Errorf("error navigating to HOME_PAGE: %w", err)
	}
	if err := sess.AcceptCookies(ctx, r.cfg.CookieWait); err != nil {
		logger.Debug("Cookie banner not accepted.", zap.Error(err))
	}

	harvester.SetScenario(res.Case.TestName)
	if err := journey.Run(ctx, sess, j, urls, res.Case.TestLink, logger); err != nil {
		if ctx.Err() != nil {
			return false, err
		}
		logger.Warn("Journey did not complete.", zap.Error(err))
	}
	if err := sess.Sleep(ctx, r.cfg.SettleDelay); err != nil {
		return false, err
	}

	sources, found, verr := VerifyImage(ctx, sess, j.Name, urls.HomePage, r.cfg.ImageTimeout)
	if verr != nil {
		logger.Warn("Image verification error.", zap.Error(verr))
	}
	report := harvester.CaptureResponses(ctx)
	captured := harvester.CapturedData()
	logger.Debug("Harvested campaign responses.",
		zap.String("filter", report.Filter),
		zap.Int("captured", len(report.Captured)),
		zap.Int("ignored", len(report.Ignored())),
	)

	res.ImageFound = found
	res.ImageSources = sources
	res.Captured = captured
	res.Personalization = ClassifyCapture(captured)
	r.writeEvidence(ctx, sess, res, attempt, logger)
	return found, nil
}

func (r *Runner) writeEvidence(ctx context.Context, page Page, res *schemas.RunResult, attempt int, logger *zap.Logger) {
	if r.evidence == nil {
		return
	}
	urls := res.Case.URLs

	path, err := r.evidence.WriteCapture(evidence.CaptureFileName(res.Case.TestName, urls.ModelName, urls.BodyType, attempt), res.Captured)
	if err != nil {
		logger.Warn("Failed to write captured responses.", zap.Error(err))
	} else {
		res.CapturePath = path
	}

	if !r.screenshots {
		return
	}
	if err := page.ScrollIntoView(ctx, CampaignSelector(urls.HomePage)); err != nil {
		logger.Debug("Could not scroll to campaigns before screenshot.", zap.Error(err))
	}
	png, err := page.Screenshot(ctx)
	if err == nil {
		name := evidence.ScreenshotName(urls.HomePage, res.Case.TestName, urls.ModelName, urls.BodyType, attempt, res.ImageFound)
		path, err = r.evidence.WriteScreenshot(name, png)
	}
	if err != nil {
		logger.Warn("Failed to save screenshot.", zap.Error(err))
		return
	}
	res.ScreenshotPath = path
}

func (r *Runner) logSummary(results []schemas.RunResult) {
	counts := map[schemas.Status]int{}
	for _, res := range results {
		counts[res.Status]++
	}
	r.logger.Info("Run finished.",
		zap.Int("cases", len(results)),
		zap.Int("passed", counts[schemas.StatusPassed]),
		zap.Int("failed", counts[schemas.StatusFailed]),
		zap.Int("skipped", counts[schemas.StatusSkipped]),
	)
}

// Failed reports whether any result failed.
func Failed(results []schemas.RunResult) bool {
	for _, res := range results {
		if res.Status == schemas.StatusFailed {
			return true
		}
	}
	return false
}
