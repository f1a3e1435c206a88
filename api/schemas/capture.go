package schemas

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// -- Network Capture Schemas --

// LogEntry is one record drained from a browser session's performance log.
// Message holds the JSON text `{"message":{"method":...,"params":{...}}}`;
// most entries are not network related.
type LogEntry struct {
	Message   string  `json:"message"`
	Level     string  `json:"level"`
	Timestamp float64 `json:"timestamp"`
}

// CampaignEntry is one personalization campaign record from a response body.
// It is kept as raw JSON so upstream fields pass through unmodified.
type CampaignEntry json.RawMessage

// MarshalJSON emits the entry verbatim.
func (c CampaignEntry) MarshalJSON() ([]byte, error) {
	if len(c) == 0 {
		return []byte("null"), nil
	}
	return c, nil
}

// UnmarshalJSON keeps a copy of the raw entry.
func (c *CampaignEntry) UnmarshalJSON(data []byte) error {
	*c = append((*c)[:0], data...)
	return nil
}

// Name returns the campaignName field, or "" when it is missing or not a string.
func (c CampaignEntry) Name() string {
	return c.stringField("campaignName")
}

// UserGroup returns the userGroup field.
func (c CampaignEntry) UserGroup() string {
	return c.stringField("userGroup")
}

// ExperienceName returns the experienceName field.
func (c CampaignEntry) ExperienceName() string {
	return c.stringField("experienceName")
}

func (c CampaignEntry) stringField(path string) string {
	res := gjson.GetBytes(c, path)
	if res.Type != gjson.String {
		return ""
	}
	return res.Str
}

// CapturedBody is the filtered subset of a decoded response body.
type CapturedBody struct {
	CampaignResponses []CampaignEntry `json:"campaignResponses"`
}

// CapturedResponse is a target-host response that held at least one campaign
// matching the active scenario filter.
type CapturedResponse struct {
	URL    string       `json:"url"`
	Status int          `json:"status"`
	Body   CapturedBody `json:"body"`
}

// CampaignNames lists the names of the captured campaigns in order.
func (r CapturedResponse) CampaignNames() []string {
	names := make([]string, 0, len(r.Body.CampaignResponses))
	for _, c := range r.Body.CampaignResponses {
		names = append(names, c.Name())
	}
	return names
}
