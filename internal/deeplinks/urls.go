package deeplinks

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/campaign-probe/internal/market"
)

// ErrMalformedURL is returned when a product page URL lacks the path segments
// the home page and vehicle names are derived from.
var ErrMalformedURL = errors.New("malformed product page URL")

// homePathByLocale holds the home page path of multilingual markets, keyed by
// country and language prefix.
var homePathByLocale = []struct {
	country, lang, path string
}{
	{"BE", "nl", "/nl_BE"},
	{"BE", "fr", "/fr"},
	{"CH", "de", "/de"},
	{"CH", "it", "/it"},
	{"CH", "fr", "/fr"},
	{"LU", "de", "/de"},
	{"LU", "fr", "/fr"},
}

// HomePageURL derives the market home page from the scheme and host of the
// product page.
func HomePageURL(loc market.Locale, productPage, configurator string) (string, error) {
	parts := strings.Split(productPage, "/")
	if len(parts) < 3 || parts[2] == "" {
		return "", fmt.Errorf("%w: %q", ErrMalformedURL, productPage)
	}
	origin := parts[0] + "//" + parts[2]

	for _, rule := range homePathByLocale {
		if loc.Country == rule.country && loc.LanguagePrefix(rule.lang) {
			return origin + rule.path, nil
		}
	}
	if strings.Contains(configurator, "/vans/") {
		return origin + "/vans", nil
	}
	return origin + "/", nil
}

// VehicleNames reads the body type and model name from the product page path.
// Multilingual markets carry a language segment first.
func VehicleNames(loc market.Locale, productPage string) (bodyType, modelName string, err error) {
	parts := strings.Split(productPage, "/")
	i := 5
	if loc.Multilingual() {
		i = 6
	}
	if len(parts) <= i+1 {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedURL, productPage)
	}
	return strings.ToUpper(parts[i]), strings.ToUpper(parts[i+1]), nil
}
