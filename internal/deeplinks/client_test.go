package deeplinks

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/campaign-probe/api/schemas"
	"github.com/xkilldash9x/campaign-probe/internal/config"
	"github.com/xkilldash9x/campaign-probe/internal/market"
)

const vehicleBody = `{
  "PRODUCT_PAGE": {"url": "https://www.mercedes-benz.de/passengercars/models/hatchback/a-class/overview.html"},
  "CONFIGURATOR": {"url": "https://www.mercedes-benz.de/passengercars/buy/configurator/W177"},
  "ONLINE_SHOP": {"url": "https://www.mercedes-benz.de/passengercars/buy/new-car/search-results.html"},
  "TEST_DRIVE": {"url": "https://www.mercedes-benz.de/passengercars/buy/test-drive.html"}
}`

const seriesBody = `{
  "W177": {"PRODUCT_PAGE": {"modelSeriesUrl": "https://www.mercedes-benz.de/passengercars/models/hatchback/a-class/"}},
  "W907": {"PRODUCT_PAGE": {"modelSeriesUrl": "https://www.mercedes-benz.de/vans/models/sprinter/"}},
  "X290": {"PRODUCT_PAGE": {"modelSeriesUrl": "https://www.mercedes-benz.de/passengercars/models/coupe/amg-gt-4-door/"}},
  "C236": {"PRODUCT_PAGE": {"modelSeriesUrl": "https://www.mercedes-benz.de/passengercars/models/coupe/cle/"}, "label": "CLE"}
}`

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	cfg := config.DeeplinksConfig{BaseURL: srv.URL + "/", Token: "secret", Timeout: 5 * time.Second}
	return NewClient(cfg, zaptest.NewLogger(t), WithHTTPClient(srv.Client()))
}

func mustLocale(t *testing.T, code string) market.Locale {
	t.Helper()
	loc, err := market.ParseLocale(code)
	require.NoError(t, err)
	return loc
}

func TestClient_VehicleURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/DE/de/model-series/W177", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(vehicleBody))
	}))
	defer srv.Close()

	urls, err := newTestClient(t, srv).VehicleURLs(context.Background(), mustLocale(t, "DE/de"), "W177")
	require.NoError(t, err)

	assert.Equal(t, schemas.VehicleURLs{
		HomePage:     "https://www.mercedes-benz.de/",
		ProductPage:  "https://www.mercedes-benz.de/passengercars/models/hatchback/a-class/overview.html",
		Configurator: "https://www.mercedes-benz.de/passengercars/buy/configurator/W177",
		OnlineShop:   "https://www.mercedes-benz.de/passengercars/buy/new-car/search-results.html",
		TestDrive:    "https://www.mercedes-benz.de/passengercars/buy/test-drive.html",
		BodyType:     "HATCHBACK",
		ModelName:    "A-CLASS",
	}, urls)
}

func TestClient_VehicleURLs_MissingLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"CONFIGURATOR": {"url": "https://x/y"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).VehicleURLs(context.Background(), mustLocale(t, "DE/de"), "W177")
	assert.ErrorIs(t, err, ErrMalformedURL)
}

func TestClient_ModelSeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/DE/de/model-series", r.URL.Path)
		_, _ = w.Write([]byte(seriesBody))
	}))
	defer srv.Close()

	codes, err := newTestClient(t, srv).ModelSeries(context.Background(), mustLocale(t, "DE/de"))
	require.NoError(t, err)
	assert.Equal(t, []string{"W177", "C236"}, codes)
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid token"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).ModelSeries(context.Background(), mustLocale(t, "DE/de"))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "invalid token")
}

func TestClient_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).ModelSeries(context.Background(), mustLocale(t, "DE/de"))
	assert.ErrorContains(t, err, "not valid JSON")
}

func TestClient_DecodesCompressedResponses(t *testing.T) {
	var gz, br bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, _ = zw.Write([]byte(seriesBody))
	require.NoError(t, zw.Close())
	bw := brotli.NewWriter(&br)
	_, _ = bw.Write([]byte(seriesBody))
	require.NoError(t, bw.Close())

	for name, payload := range map[string][]byte{"gzip": gz.Bytes(), "br": br.Bytes()} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Contains(t, r.Header.Get("Accept-Encoding"), name)
				w.Header().Set("Content-Encoding", name)
				_, _ = w.Write(payload)
			}))
			defer srv.Close()

			codes, err := newTestClient(t, srv).ModelSeries(context.Background(), mustLocale(t, "DE/de"))
			require.NoError(t, err)
			assert.Equal(t, []string{"W177", "C236"}, codes)
		})
	}
}

func TestClient_RateLimitHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(seriesBody))
	}))
	defer srv.Close()

	cfg := config.DeeplinksConfig{BaseURL: srv.URL, RateLimit: 0.001, Burst: 1}
	c := NewClient(cfg, zaptest.NewLogger(t), WithHTTPClient(srv.Client()))

	_, err := c.ModelSeries(context.Background(), mustLocale(t, "DE/de"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.ModelSeries(ctx, mustLocale(t, "DE/de"))
	assert.ErrorContains(t, err, "rate limiter")
}
