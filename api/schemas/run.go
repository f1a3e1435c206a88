package schemas

import "time"

// -- Run Schemas --

// TestCase identifies one journey to run against one model in one market.
type TestCase struct {
	TestName   string      `json:"test_name" mapstructure:"test_name"`
	MarketCode string      `json:"market_code" mapstructure:"market_code"`
	ModelCode  string      `json:"model_code,omitempty" mapstructure:"model_code"`
	TestLink   string      `json:"test_link,omitempty" mapstructure:"test_link"`
	URLs       VehicleURLs `json:"urls" mapstructure:"-"`
}

// Status is the terminal state of a test case.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Personalization describes what the captured campaigns say about the
// visitor's treatment.
type Personalization string

const (
	PersonalizationApplied    Personalization = "applied"
	PersonalizationControl    Personalization = "control_group"
	PersonalizationNotApplied Personalization = "not_applied"
)

// RunResult is the outcome of one test case.
type RunResult struct {
	ID              string             `json:"id"`
	Case            TestCase           `json:"case"`
	Status          Status             `json:"status"`
	Message         string             `json:"message,omitempty"`
	Attempts        int                `json:"attempts"`
	ImageFound      bool               `json:"image_found"`
	ImageSources    []string           `json:"image_sources,omitempty"`
	Personalization Personalization    `json:"personalization"`
	Captured        []CapturedResponse `json:"captured,omitempty"`
	ScreenshotPath  string             `json:"screenshot_path,omitempty"`
	CapturePath     string             `json:"capture_path,omitempty"`
	StartedAt       time.Time          `json:"started_at"`
	Duration        time.Duration      `json:"duration"`
}
