// Package market derives market and language codes from site URLs and
// deeplinks locale codes.
package market

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Unknown is returned for sites outside the supported markets.
const Unknown = "unknown"

// codesBySuffix maps a public suffix to the market code used in evidence names.
var codesBySuffix = map[string]string{
	"ro":    "ro",
	"de":    "de",
	"at":    "at",
	"pt":    "pt",
	"be":    "be",
	"co.uk": "co_UK",
	"hu":    "hu",
	"es":    "es",
	"it":    "it",
	"pl":    "pl",
	"nl":    "nl",
	"fr":    "fr",
	"lu":    "lu",
	"dk":    "dk",
	"cz":    "cz",
	"ch":    "ch",
	"se":    "se",
	"sk":    "sk",
}

// pathLanguages are the language prefixes multilingual markets put in the path.
var pathLanguages = []string{"fr", "de", "it", "nl"}

// CodeFromURL returns the market code for rawURL's public suffix, or Unknown.
func CodeFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return Unknown
	}
	suffix, _ := publicsuffix.PublicSuffix(strings.ToLower(u.Hostname()))
	if code, ok := codesBySuffix[suffix]; ok {
		return code
	}
	return Unknown
}

// LanguageFromURL returns the language prefix of rawURL's path ("/fr",
// "/nl_BE", ...) or "" when there is none.
func LanguageFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segment := strings.ToLower(strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)[0])
	for _, lang := range pathLanguages {
		if segment == lang || strings.HasPrefix(segment, lang+"_") || strings.HasPrefix(segment, lang+"-") {
			return lang
		}
	}
	return ""
}

// Locale is a deeplinks market code such as "BE/nl".
type Locale struct {
	Country  string
	Language string
}

// ParseLocale parses "CC/ll" or "CC/ll_CC". The country is upper-cased; the
// language keeps the case the deeplinks API expects.
func ParseLocale(code string) (Locale, error) {
	country, lang, ok := strings.Cut(strings.TrimSpace(code), "/")
	if !ok || len(country) != 2 || lang == "" {
		return Locale{}, fmt.Errorf("invalid market code %q: want COUNTRY/language", code)
	}
	return Locale{Country: strings.ToUpper(country), Language: lang}, nil
}

func (l Locale) String() string {
	return l.Country + "/" + l.Language
}

// LanguagePrefix reports whether the locale's language starts with lang,
// so "nl_BE" matches "nl".
func (l Locale) LanguagePrefix(lang string) bool {
	return strings.HasPrefix(strings.ToLower(l.Language), lang)
}

// Multilingual reports whether the market serves several languages under
// path prefixes, which shifts the vehicle path segments by one.
func (l Locale) Multilingual() bool {
	switch l.Country {
	case "BE", "CH", "LU":
		return true
	}
	return false
}
