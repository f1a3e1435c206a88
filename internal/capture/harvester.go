// Package capture records the personalization host's network responses from a
// browser session and keeps the campaigns relevant to the running scenario.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/xkilldash9x/campaign-probe/api/schemas"
	"github.com/xkilldash9x/campaign-probe/internal/browser/stealth"
)

const (
	responseReceivedMethod = "Network.responseReceived"

	// DefaultMaxPostDataSize bounds the request bodies the browser buffers.
	DefaultMaxPostDataSize int64 = 5_000_000
	// DefaultTargetHost is the personalization API whose responses are captured.
	DefaultTargetHost = "https://daimleragemea.germany-2.evergage.com/"
)

var (
	errNoTargetHost = errors.New("target host must not be empty")
	errInvalidEntry = errors.New("log entry is not valid JSON")
)

// Session is the browser capability the harvester needs.
type Session interface {
	ApplyPersona(ctx context.Context, p stealth.Persona) error
	EnableNetworkLogging(ctx context.Context, maxPostDataSize int64) error
	// DrainPerformanceLog returns and forgets every buffered entry.
	DrainPerformanceLog(ctx context.Context) ([]schemas.LogEntry, error)
	GetResponseBody(ctx context.Context, requestID string) (string, error)
}

// Config controls what a Harvester captures.
type Config struct {
	// TargetHost is matched as a substring of the response URL.
	TargetHost      string
	MaxPostDataSize int64
	Persona         stealth.Persona
}

// Harvester drains a session's network log and keeps matching campaign
// responses. A Harvester is bound to one session and is not safe for
// concurrent passes; CapturedData may be called from any goroutine.
type Harvester struct {
	session Session
	cfg     Config
	logger  *zap.Logger

	filter string
	store  *Store
}

// New prepares session for capture: it applies the persona and enables network
// logging. Any failure is returned as a *SetupError.
func New(ctx context.Context, session Session, cfg Config, logger *zap.Logger) (*Harvester, error) {
	if cfg.TargetHost == "" {
		return nil, &SetupError{Stage: StageNetwork, Err: errNoTargetHost}
	}
	if cfg.MaxPostDataSize <= 0 {
		cfg.MaxPostDataSize = DefaultMaxPostDataSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := session.ApplyPersona(ctx, cfg.Persona); err != nil {
		return nil, &SetupError{Stage: StagePersona, Err: err}
	}
	if err := session.EnableNetworkLogging(ctx, cfg.MaxPostDataSize); err != nil {
		return nil, &SetupError{Stage: StageNetwork, Err: err}
	}

	return &Harvester{
		session: session,
		cfg:     cfg,
		logger:  logger.Named("capture"),
		store:   NewStore(),
	}, nil
}

// SetScenario replaces the active campaign-name filter with the one mapped
// from the scenario display name.
func (h *Harvester) SetScenario(name string) {
	h.filter = FilterForScenario(name)
	if h.filter == "" {
		h.logger.Warn("No campaign filter for scenario; every campaign will match.", zap.String("scenario", name))
		return
	}
	h.logger.Debug("Campaign filter set.", zap.String("scenario", name), zap.String("filter", h.filter))
}

// Filter returns the active campaign-name filter.
func (h *Harvester) Filter() string { return h.filter }

// CapturedData returns every response captured so far, in capture order.
func (h *Harvester) CapturedData() []schemas.CapturedResponse {
	return h.store.All()
}

// CaptureResponses performs one harvesting pass. The performance log drain is
// destructive, so a pass only sees entries logged since the previous one.
// Failures for individual events are reported in the PassReport and never
// stop the pass.
func (h *Harvester) CaptureResponses(ctx context.Context) *PassReport {
	report := &PassReport{Filter: h.filter}

	entries, err := h.session.DrainPerformanceLog(ctx)
	if err != nil {
		h.logger.Warn("Failed to drain performance log.", zap.Error(err))
		report.DrainErr = err
		return report
	}

	for _, entry := range entries {
		ev, captured, ok := h.handleEntry(ctx, entry)
		if !ok {
			continue
		}
		if captured != nil {
			h.store.Append(*captured)
			report.Captured = append(report.Captured, *captured)
		}
		report.Events = append(report.Events, ev)
	}

	h.logger.Debug("Harvesting pass finished.",
		zap.Int("entries", len(entries)),
		zap.Int("events", len(report.Events)),
		zap.Int("captured", len(report.Captured)),
	)
	return report
}

// handleEntry processes one log entry. ok is false for entries that are not
// response events and carry nothing worth reporting.
func (h *Harvester) handleEntry(ctx context.Context, entry schemas.LogEntry) (ev EventResult, captured *schemas.CapturedResponse, ok bool) {
	if !gjson.Valid(entry.Message) {
		h.logger.Debug("Discarding undecodable log entry.", zap.Int("size", len(entry.Message)))
		return EventResult{Outcome: OutcomeDecodeFailure, Err: errInvalidEntry}, nil, true
	}

	msg := gjson.Get(entry.Message, "message")
	if msg.Get("method").String() != responseReceivedMethod {
		return EventResult{}, nil, false
	}

	params := msg.Get("params")
	ev = EventResult{
		RequestID: params.Get("requestId").String(),
		URL:       params.Get("response.url").String(),
		Status:    int(params.Get("response.status").Int()),
	}

	switch {
	case ev.Status == 204:
		ev.Outcome = OutcomeNoContent
		return ev, nil, true
	case !containsHost(ev.URL, h.cfg.TargetHost):
		ev.Outcome = OutcomeIgnoredHost
		return ev, nil, true
	case ev.Status != 200:
		h.logger.Debug("Ignored response from target host.", zap.String("url", ev.URL), zap.Int("status", ev.Status))
		ev.Outcome = OutcomeIgnoredStatus
		return ev, nil, true
	}

	body, err := h.session.GetResponseBody(ctx, ev.RequestID)
	if err != nil {
		h.logger.Debug("Failed to get response body.", zap.String("request_id", ev.RequestID), zap.Error(err))
		ev.Outcome = OutcomeBodyFailure
		ev.Err = err
		return ev, nil, true
	}
	if !gjson.Valid(body) {
		h.logger.Debug("Response body is not JSON.", zap.String("url", ev.URL))
		ev.Outcome = OutcomeBodyDecodeFailure
		ev.Err = fmt.Errorf("response body for %s is not valid JSON", ev.RequestID)
		ev.RawBody = body
		return ev, nil, true
	}

	campaigns := gjson.Get(body, "campaignResponses")
	if !campaigns.IsArray() {
		ev.Outcome = OutcomeNoCampaigns
		return ev, nil, true
	}

	matched := h.filterCampaigns(campaigns)
	if len(matched) == 0 {
		ev.Outcome = OutcomeNoMatch
		return ev, nil, true
	}

	h.logger.Info("Captured campaign response.", zap.String("url", ev.URL), zap.Int("campaigns", len(matched)))
	ev.Outcome = OutcomeCaptured
	return ev, &schemas.CapturedResponse{
		URL:    ev.URL,
		Status: ev.Status,
		Body:   schemas.CapturedBody{CampaignResponses: matched},
	}, true
}

func (h *Harvester) filterCampaigns(campaigns gjson.Result) []schemas.CampaignEntry {
	var matched []schemas.CampaignEntry
	campaigns.ForEach(func(_, c gjson.Result) bool {
		// A missing name reads as "", which only the empty filter matches.
		name := c.Get("campaignName")
		if name.Exists() && name.Type != gjson.String && name.Type != gjson.Null {
			return true
		}
		if matchesFilter(name.Str, h.filter) {
			matched = append(matched, schemas.CampaignEntry(c.Raw))
		}
		return true
	})
	return matched
}

func containsHost(url, host string) bool {
	return host != "" && strings.Contains(url, host)
}
