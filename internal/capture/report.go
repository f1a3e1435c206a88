package capture

import "github.com/xkilldash9x/campaign-probe/api/schemas"

// Outcome classifies what a harvesting pass did with one network event.
type Outcome int

const (
	// OutcomeCaptured means at least one campaign matched and the response was stored.
	OutcomeCaptured Outcome = iota
	// OutcomeNoMatch means the body had campaigns but none matched the filter.
	OutcomeNoMatch
	// OutcomeNoCampaigns means the body decoded but had no campaignResponses array.
	OutcomeNoCampaigns
	// OutcomeNoContent is a 204 response; its body is never requested.
	OutcomeNoContent
	// OutcomeIgnoredHost is a response from a host other than the target.
	OutcomeIgnoredHost
	// OutcomeIgnoredStatus is a target-host response with a status other than 200.
	OutcomeIgnoredStatus
	// OutcomeBodyFailure means the browser could not return the body.
	OutcomeBodyFailure
	// OutcomeBodyDecodeFailure means the body was not valid JSON.
	OutcomeBodyDecodeFailure
	// OutcomeDecodeFailure means the log entry itself was not valid JSON.
	OutcomeDecodeFailure
)

var outcomeNames = map[Outcome]string{
	OutcomeCaptured:          "captured",
	OutcomeNoMatch:           "no_match",
	OutcomeNoCampaigns:       "no_campaigns",
	OutcomeNoContent:         "no_content",
	OutcomeIgnoredHost:       "ignored_host",
	OutcomeIgnoredStatus:     "ignored_status",
	OutcomeBodyFailure:       "body_failure",
	OutcomeBodyDecodeFailure: "body_decode_failure",
	OutcomeDecodeFailure:     "decode_failure",
}

func (o Outcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return "unknown"
}

// EventResult is the per-event record of a harvesting pass.
type EventResult struct {
	RequestID string
	URL       string
	Status    int
	Outcome   Outcome
	// Err is set for decode and body failures.
	Err error
	// RawBody holds the undecodable body text for OutcomeBodyDecodeFailure.
	RawBody string
}

// PassReport aggregates one harvesting pass.
type PassReport struct {
	Filter   string
	Events   []EventResult
	Captured []schemas.CapturedResponse
	// DrainErr is set when the performance log could not be drained.
	DrainErr error
}

// Count returns how many events ended with outcome o.
func (r *PassReport) Count(o Outcome) int {
	n := 0
	for _, ev := range r.Events {
		if ev.Outcome == o {
			n++
		}
	}
	return n
}

// Ignored returns the events skipped for host or status reasons.
func (r *PassReport) Ignored() []EventResult {
	var out []EventResult
	for _, ev := range r.Events {
		if ev.Outcome == OutcomeIgnoredHost || ev.Outcome == OutcomeIgnoredStatus {
			out = append(out, ev)
		}
	}
	return out
}
