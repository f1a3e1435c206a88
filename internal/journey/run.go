package journey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/campaign-probe/api/schemas"
)

// Browser is the page control a journey needs.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Click(ctx context.Context, selector string) error
	Evaluate(ctx context.Context, expression string, res interface{}) error
	Sleep(ctx context.Context, d time.Duration) error
}

const defaultWaitVisible = 20 * time.Second

var errScriptTarget = errors.New("script target not found")

func linkHrefScript(selector string) string {
	return fmt.Sprintf(`(() => {
  const el = document.querySelector(%q);
  const a = el && el.closest("a");
  return a ? a.href : "";
})()`, selector)
}

// Run executes j against b. When testLink is set, the journey ends with a
// navigation to the test link appended to its TestLinkBase page.
func Run(ctx context.Context, b Browser, j Journey, urls schemas.VehicleURLs, testLink string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("journey", j.Name))

	steps := j.Steps
	if testLink != "" {
		steps = append(append([]Step(nil), steps...), Step{Kind: StepNavigate, URL: j.TestLinkBase})
	}

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		link := ""
		if testLink != "" && i == len(steps)-1 {
			link = testLink
		}
		if err := runStep(ctx, b, step, urls, link, logger); err != nil {
			if step.Optional {
				logger.Warn("Optional journey step failed.", zap.Int("step", i), zap.String("kind", string(step.Kind)), zap.Error(err))
				continue
			}
			return fmt.Errorf("journey %q step %d (%s): %w", j.Name, i, step.Kind, err)
		}
	}
	logger.Debug("Journey finished.", zap.Int("steps", len(steps)))
	return nil
}

func runStep(ctx context.Context, b Browser, step Step, urls schemas.VehicleURLs, testLink string, logger *zap.Logger) error {
	switch step.Kind {
	case StepNavigate:
		target := urls.Get(step.URL)
		if target == "" {
			return fmt.Errorf("no %s URL", step.URL)
		}
		target += testLink
		logger.Info("Navigating.", zap.String("page", string(step.URL)), zap.String("url", target))
		return b.Navigate(ctx, target)

	case StepSleep:
		return b.Sleep(ctx, step.Wait)

	case StepWaitVisible:
		timeout := step.Wait
		if timeout <= 0 {
			timeout = defaultWaitVisible
		}
		return b.WaitVisible(ctx, step.Selector, timeout)

	case StepClick:
		return b.Click(ctx, step.Selector)

	case StepScript:
		var ok bool
		if err := b.Evaluate(ctx, step.Script, &ok); err != nil {
			return err
		}
		if !ok {
			return errScriptTarget
		}
		return nil

	case StepFollowLink:
		var href string
		if err := b.Evaluate(ctx, linkHrefScript(step.Selector), &href); err != nil {
			return err
		}
		if href == "" {
			return fmt.Errorf("no link around %q", step.Selector)
		}
		logger.Info("Following link.", zap.String("url", href))
		return b.Navigate(ctx, href)
	}
	return fmt.Errorf("unknown step kind %q", step.Kind)
}
