package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.mercedes-benz.de/passengercars.html", "de"},
		{"https://www.mercedes-benz.co.uk/passengercars.html", "co_UK"},
		{"https://www.mercedes-benz.be/nl_BE", "be"},
		{"https://www.mercedes-benz.ch/de", "ch"},
		{"https://www.mercedes-benz.at/", "at"},
		{"https://www.mercedes-benz.sk/", "sk"},
		{"https://www.mercedes-benz.com/", Unknown},
		{"not a url", Unknown},
		{"", Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeFromURL(tt.url))
		})
	}
}

func TestLanguageFromURL(t *testing.T) {
	assert.Equal(t, "fr", LanguageFromURL("https://www.mercedes-benz.be/fr"))
	assert.Equal(t, "nl", LanguageFromURL("https://www.mercedes-benz.be/nl_BE/passengercars.html"))
	assert.Equal(t, "de", LanguageFromURL("https://www.mercedes-benz.ch/de/"))
	assert.Equal(t, "it", LanguageFromURL("https://www.mercedes-benz.ch/it"))
	assert.Equal(t, "", LanguageFromURL("https://www.mercedes-benz.de/passengercars.html"))
	assert.Equal(t, "", LanguageFromURL("https://www.mercedes-benz.de/"))
	assert.Equal(t, "", LanguageFromURL("https://www.mercedes-benz.fr/french-offers"))
}

func TestParseLocale(t *testing.T) {
	loc, err := ParseLocale("be/nl_BE")
	require.NoError(t, err)
	assert.Equal(t, Locale{Country: "BE", Language: "nl_BE"}, loc)
	assert.Equal(t, "BE/nl_BE", loc.String())
	assert.True(t, loc.Multilingual())
	assert.True(t, loc.LanguagePrefix("nl"))
	assert.False(t, loc.LanguagePrefix("fr"))

	loc, err = ParseLocale("AT/de")
	require.NoError(t, err)
	assert.False(t, loc.Multilingual())

	for _, bad := range []string{"", "AT", "AUT/de", "AT/"} {
		_, err := ParseLocale(bad)
		assert.Error(t, err, bad)
	}
}
