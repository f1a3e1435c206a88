package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xkilldash9x/campaign-probe/api/schemas"
)

const (
	bestFittingImagePath = "/content/dam/hq/personalization/campaignmodule/"
	dynamicImagePath     = "/images/dynamic/europe/"

	defaultCampaignSelector = "[data-component-name='hp-campaigns']"
	ukCampaignSelector      = "body > div.root.responsivegrid.owc-content-container > div > div.responsivegrid.ng-content-root.aem-GridColumn.aem-GridColumn--default--12 > div > div:nth-child(14) > div"

	// DefaultImageTimeout bounds VerifyImage when no timeout is configured.
	DefaultImageTimeout = 10 * time.Second
)

// pollInterval is how often VerifyImage re-checks the page. Tests shorten it.
var pollInterval = 500 * time.Millisecond

// ExpectedImageSource returns the path a personalized campaign image must
// contain for journey.
func ExpectedImageSource(journey string) string {
	switch journey {
	case "BFV1", "BFV2", "BFV3":
		return bestFittingImagePath
	}
	return dynamicImagePath
}

func isUK(homeURL string) bool {
	return strings.Contains(homeURL, ".co.uk")
}

// CampaignSelector returns the home page campaign container for the market.
func CampaignSelector(homeURL string) string {
	if isUK(homeURL) {
		return ukCampaignSelector
	}
	return defaultCampaignSelector
}

func imageMatchScript(selector, expected string) string {
	return fmt.Sprintf(`Array.from(document.querySelectorAll(%q)).some(img => img.complete && img.naturalHeight !== 0 && img.src.includes(%q))`,
		selector+" img", expected)
}

func imageSourcesScript(selector string) string {
	return fmt.Sprintf(`Array.from(document.querySelectorAll(%q)).map(img => img.src)`, selector+" img")
}

// VerifyImage polls the home page campaign container until a loaded image
// whose source contains the journey's expected path appears, or timeout
// passes. It returns every image source found in the container.
func VerifyImage(ctx context.Context, page Page, journey, homeURL string, timeout time.Duration) (sources []string, found bool, err error) {
	if timeout <= 0 {
		timeout = DefaultImageTimeout
	}
	selector := CampaignSelector(homeURL)
	if isUK(homeURL) {
		if err := page.ScrollIntoView(ctx, selector); err != nil {
			return nil, false, fmt.Errorf("failed to scroll to campaign container: %w", err)
		}
	}

	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	found, pollErr := pollImage(pollCtx, page, imageMatchScript(selector, ExpectedImageSource(journey)))
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	if err := page.Evaluate(ctx, imageSourcesScript(selector), &sources); err != nil {
		return nil, found, fmt.Errorf("failed to list campaign images: %w", err)
	}
	if !found && pollErr != nil {
		return sources, false, pollErr
	}
	return sources, found, nil
}

// pollImage returns the last evaluation error when the predicate never held.
func pollImage(ctx context.Context, page Page, script string) (bool, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		var ok bool
		if err := page.Evaluate(ctx, script, &ok); err != nil {
			if ctx.Err() == nil {
				lastErr = err
			}
		} else if ok {
			return true, nil
		}

		select {
		case <-ctx.Done():
			return false, lastErr
		case <-ticker.C:
		}
	}
}

// ClassifyCapture labels the visitor's treatment from the campaigns captured
// for the scenario.
func ClassifyCapture(captured []schemas.CapturedResponse) schemas.Personalization {
	campaigns := 0
	for _, resp := range captured {
		for _, c := range resp.Body.CampaignResponses {
			campaigns++
			if isControl(c.ExperienceName()) || isControl(c.UserGroup()) {
				return schemas.PersonalizationControl
			}
		}
	}
	if campaigns == 0 {
		return schemas.PersonalizationNotApplied
	}
	return schemas.PersonalizationApplied
}

func isControl(s string) bool {
	return strings.Contains(strings.ToLower(s), "control")
}
