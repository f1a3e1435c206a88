// internal/reporting/junit_reporter.go
package reporting

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/xkilldash9x/campaign-probe/api/schemas"
	"github.com/xkilldash9x/campaign-probe/internal/observability"
)

// SuiteName is the name of the top level <testsuites> element.
const SuiteName = "campaign-probe"

// JUnitReporter renders results as JUnit XML with one suite per market.
// It is safe for concurrent use.
type JUnitReporter struct {
	writer io.WriteCloser
	logger *zap.Logger

	mu      sync.Mutex
	markets []string
	results map[string][]schemas.RunResult
}

// NewJUnitReporter creates a reporter that owns writer.
func NewJUnitReporter(writer io.WriteCloser) *JUnitReporter {
	return &JUnitReporter{
		writer:  writer,
		logger:  observability.GetLogger().Named("junit_reporter"),
		results: make(map[string][]schemas.RunResult),
	}
}

// Write buffers result under its market.
func (r *JUnitReporter) Write(result *schemas.RunResult) error {
	if result == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	market := result.Case.MarketCode
	if _, seen := r.results[market]; !seen {
		r.markets = append(r.markets, market)
	}
	r.results[market] = append(r.results[market], *result)
	return nil
}

// Close renders the document and closes the writer.
func (r *JUnitReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := r.build()
	doc.Indent(2)
	_, writeErr := doc.WriteTo(r.writer)
	closeErr := r.writer.Close()

	if writeErr != nil {
		return fmt.Errorf("failed to write JUnit report: %w", writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	r.logger.Info("Wrote JUnit report.", zap.Int("suites", len(r.markets)))
	return nil
}

type tally struct {
	tests, failures, skipped int
	elapsed                  time.Duration
}

func (t *tally) add(res schemas.RunResult) {
	t.tests++
	t.elapsed += res.Duration
	switch res.Status {
	case schemas.StatusFailed:
		t.failures++
	case schemas.StatusSkipped:
		t.skipped++
	}
}

func (t tally) apply(el *etree.Element) {
	el.CreateAttr("tests", fmt.Sprint(t.tests))
	el.CreateAttr("failures", fmt.Sprint(t.failures))
	el.CreateAttr("errors", "0")
	el.CreateAttr("skipped", fmt.Sprint(t.skipped))
	el.CreateAttr("time", seconds(t.elapsed))
}

func (r *JUnitReporter) build() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("testsuites")
	root.CreateAttr("name", SuiteName)

	var total tally
	for _, market := range r.markets {
		suite := root.CreateElement("testsuite")
		suite.CreateAttr("name", market)

		var st tally
		for _, res := range r.results[market] {
			st.add(res)
			total.add(res)
			writeCase(suite, res)
		}
		st.apply(suite)
	}
	total.apply(root)
	return doc
}

// CaseName formats "test / code - model (body)" for a result.
func CaseName(res schemas.RunResult) string {
	orNA := func(s string) string {
		if s == "" {
			return "N/A"
		}
		return s
	}
	return fmt.Sprintf("%s / %s - %s (%s)",
		res.Case.TestName, orNA(res.Case.ModelCode), orNA(res.Case.URLs.ModelName), orNA(res.Case.URLs.BodyType))
}

func writeCase(suite *etree.Element, res schemas.RunResult) {
	tc := suite.CreateElement("testcase")
	tc.CreateAttr("name", CaseName(res))
	tc.CreateAttr("classname", res.Case.MarketCode+"."+res.Case.TestName)
	tc.CreateAttr("time", seconds(res.Duration))

	switch res.Status {
	case schemas.StatusFailed:
		f := tc.CreateElement("failure")
		f.CreateAttr("message", res.Message)
		f.SetText(failureDetail(res))
	case schemas.StatusSkipped:
		s := tc.CreateElement("skipped")
		s.CreateAttr("message", res.Message)
	}

	var out strings.Builder
	fmt.Fprintf(&out, "id: %s\nattempts: %d\npersonalization: %s\n", res.ID, res.Attempts, res.Personalization)
	if res.ScreenshotPath != "" {
		fmt.Fprintf(&out, "screenshot: %s\n", res.ScreenshotPath)
	}
	if res.CapturePath != "" {
		fmt.Fprintf(&out, "capture: %s\n", res.CapturePath)
	}
	tc.CreateElement("system-out").SetText(out.String())
}

func failureDetail(res schemas.RunResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "home page: %s\n", res.Case.URLs.HomePage)
	if len(res.ImageSources) == 0 {
		b.WriteString("no campaign images found\n")
	}
	for _, src := range res.ImageSources {
		fmt.Fprintf(&b, "image: %s\n", src)
	}
	for _, c := range res.Captured {
		for _, name := range c.CampaignNames() {
			fmt.Fprintf(&b, "campaign: %s\n", name)
		}
	}
	return b.String()
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}
