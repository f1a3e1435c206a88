// Package journey defines the browsing journeys that seed a visitor profile
// before a personalized campaign is verified on the home page.
package journey

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xkilldash9x/campaign-probe/api/schemas"
)

// ErrUnknownJourney is returned by Lookup for names outside the registry.
var ErrUnknownJourney = errors.New("unknown journey")

// StepKind is the action a Step performs.
type StepKind string

const (
	StepNavigate    StepKind = "navigate"
	StepSleep       StepKind = "sleep"
	StepWaitVisible StepKind = "wait_visible"
	StepClick       StepKind = "click"
	// StepScript evaluates a script that must return true.
	StepScript StepKind = "script"
	// StepFollowLink navigates to the href of the link wrapping Selector.
	StepFollowLink StepKind = "follow_link"
)

// Step is one action in a journey.
type Step struct {
	Kind     StepKind
	URL      schemas.URLKind
	Selector string
	Script   string
	Wait     time.Duration
	// Optional steps log their failure and let the journey continue.
	Optional bool
}

// Journey is a named sequence of steps.
type Journey struct {
	Name  string
	Steps []Step
	// Requires lists the links that must be present for the journey to run.
	Requires []schemas.URLKind
	// TestLinkBase is the page a case's test link is appended to.
	TestLinkBase schemas.URLKind
	MaxAttempts  int
}

// SkipError reports a journey that cannot run for a model because a required
// link is missing.
type SkipError struct {
	Journey string
	Missing schemas.URLKind
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("skipping %q: no %s URL", e.Journey, e.Missing)
}

// MissingPrerequisite returns the first required link absent from urls.
func (j Journey) MissingPrerequisite(urls schemas.VehicleURLs) (schemas.URLKind, bool) {
	for _, kind := range j.Requires {
		if urls.Get(kind) == "" {
			return kind, true
		}
	}
	return "", false
}

// Check returns a *SkipError when a prerequisite is missing.
func (j Journey) Check(urls schemas.VehicleURLs) error {
	if kind, missing := j.MissingPrerequisite(urls); missing {
		return &SkipError{Journey: j.Name, Missing: kind}
	}
	return nil
}

// BaseName strips the " - variant" suffix from a test display name.
func BaseName(name string) string {
	base, _, _ := strings.Cut(name, " - ")
	return strings.TrimSpace(base)
}

// Lookup finds the journey for a test display name.
func Lookup(name string) (Journey, error) {
	base := BaseName(name)
	for _, j := range registry {
		if j.Name == base {
			return j, nil
		}
	}
	return Journey{}, fmt.Errorf("%w: %q", ErrUnknownJourney, name)
}

// Names lists the registered journeys in registration order.
func Names() []string {
	names := make([]string, len(registry))
	for i, j := range registry {
		names[i] = j.Name
	}
	return names
}
