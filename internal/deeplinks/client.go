// Package deeplinks is a client for the vehicle deeplinks API, which returns
// the product, configurator, shop and test drive links of each model series.
package deeplinks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/campaign-probe/api/schemas"
	"github.com/xkilldash9x/campaign-probe/internal/config"
	"github.com/xkilldash9x/campaign-probe/internal/market"
)

const maxResponseSize = 8 << 20

// excludedSeries marks model series that are not passenger cars on the
// regular home page.
var excludedSeries = []string{
	"/vans/",
	"/amg-gt-2-door/",
	"/amg-gt-4-door/",
	"/mercedes-maybach-s-class/",
	"/mercedes-maybach-sl/",
	"/maybach-eqs/",
	"/maybach/",
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("deeplinks: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the deeplinks API. It is safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its transport is
// wrapped with response decompression.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient builds a client from cfg. A non-positive rate limit disables
// throttling.
func NewClient(cfg config.DeeplinksConfig, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.Named("deeplinks"),
	}
	for _, opt := range opts {
		opt(c)
	}

	hc := *c.http
	hc.Transport = newCompressionTransport(hc.Transport)
	c.http = &hc
	return c
}

// VehicleURLs fetches the deep links of one model series and derives the home
// page, body type and model name from them.
func (c *Client) VehicleURLs(ctx context.Context, loc market.Locale, modelCode string) (schemas.VehicleURLs, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/%s/model-series/%s", c.baseURL, loc, url.PathEscape(modelCode)))
	if err != nil {
		return schemas.VehicleURLs{}, fmt.Errorf("failed to fetch URLs for %s in %s: %w", modelCode, loc, err)
	}

	urls := schemas.VehicleURLs{
		ProductPage:  gjson.Get(body, "PRODUCT_PAGE.url").String(),
		Configurator: gjson.Get(body, "CONFIGURATOR.url").String(),
		OnlineShop:   gjson.Get(body, "ONLINE_SHOP.url").String(),
		TestDrive:    gjson.Get(body, "TEST_DRIVE.url").String(),
	}
	if urls.HomePage, err = HomePageURL(loc, urls.ProductPage, urls.Configurator); err != nil {
		return urls, err
	}
	if urls.BodyType, urls.ModelName, err = VehicleNames(loc, urls.ProductPage); err != nil {
		return urls, err
	}

	c.logger.Info("Fetched vehicle URLs.",
		zap.String("market", loc.String()),
		zap.String("model_code", modelCode),
		zap.String("home_page", urls.HomePage),
	)
	return urls, nil
}

// ModelSeries lists the passenger car model codes of a market in API order.
func (c *Client) ModelSeries(ctx context.Context, loc market.Locale) ([]string, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/%s/model-series", c.baseURL, loc))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch model series for %s: %w", loc, err)
	}
	root := gjson.Parse(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("model series response for %s is not an object", loc)
	}

	var codes []string
	root.ForEach(func(code, series gjson.Result) bool {
		if isExcluded(series) {
			c.logger.Debug("Skipping model series.", zap.String("model_code", code.String()))
			return true
		}
		codes = append(codes, code.String())
		return true
	})
	return codes, nil
}

func isExcluded(series gjson.Result) bool {
	excluded := false
	series.ForEach(func(_, link gjson.Result) bool {
		if !link.IsObject() {
			return true
		}
		u := link.Get("modelSeriesUrl").String()
		for _, kw := range excludedSeries {
			if strings.Contains(u, kw) {
				excluded = true
				return false
			}
		}
		return true
	})
	return excluded
}

func (c *Client) get(ctx context.Context, endpoint string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if !gjson.ValidBytes(raw) {
		return "", fmt.Errorf("response from %s is not valid JSON", endpoint)
	}
	return string(raw), nil
}
