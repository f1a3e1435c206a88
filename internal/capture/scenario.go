package capture

import "strings"

// scenarioRule maps any scenario display name containing one of keywords to filter.
type scenarioRule struct {
	keywords []string
	filter   string
}

// scenarioRules is evaluated in order. Keywords are matched case-sensitively
// against the display name; filters are already lowercase.
var scenarioRules = []scenarioRule{
	{keywords: []string{"Personalized CTA"}, filter: "personalized cta"},
	{keywords: []string{"BFV1", "BFV2", "BFV3"}, filter: "best-fitting-vehicle"},
	{keywords: []string{"Last Configuration Started", "Last Configuration Completed"}, filter: "last-configuration"},
	{keywords: []string{"Last Seen SRP", "Last Seen PDP"}, filter: "dcp-last-seen-pdp-srp"},
}

// FilterForScenario returns the campaign-name substring for a scenario, or ""
// when the name is not recognized. An empty filter matches every campaign.
func FilterForScenario(name string) string {
	for _, rule := range scenarioRules {
		for _, kw := range rule.keywords {
			if strings.Contains(name, kw) {
				return rule.filter
			}
		}
	}
	return ""
}

// matchesFilter reports whether campaignName contains filter, ignoring case.
func matchesFilter(campaignName, filter string) bool {
	return strings.Contains(strings.ToLower(campaignName), strings.ToLower(filter))
}
