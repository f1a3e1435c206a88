// internal/browser/session/session_test.go
package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/campaign-probe/internal/browser/stealth"
	"github.com/xkilldash9x/campaign-probe/internal/capture"
	"github.com/xkilldash9x/campaign-probe/internal/config"
)

func TestAllocatorOptions(t *testing.T) {
	cfg := config.NewDefaultConfig().Browser()
	base := len(AllocatorOptions(config.BrowserConfig{}))

	opts := AllocatorOptions(cfg)
	assert.Greater(t, len(opts), base, "configured flags are appended to the defaults")
}

// newBrowserSession starts a real Chrome. Set PROBE_BROWSER_TESTS=1 to run.
func newBrowserSession(t *testing.T) *Session {
	t.Helper()
	if os.Getenv("PROBE_BROWSER_TESTS") == "" {
		t.Skip("set PROBE_BROWSER_TESTS=1 to run browser tests")
	}

	cfg := config.NewDefaultConfig().Browser()
	cfg.NavigationTimeout = 20 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)
	allocCtx, allocCancel := NewAllocator(ctx, cfg)
	t.Cleanup(allocCancel)

	s, err := New(allocCtx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSession_CaptureCampaignResponses(t *testing.T) {
	s := newBrowserSession(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/api2/event/probe", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		fmt.Fprint(w, `{"campaignResponses":[{"campaignName":"Best-Fitting-Vehicle A","userGroup":"Default"},{"campaignName":"other"}]}`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><div id="done"></div><script>
			fetch("/api2/event/probe").then(r => r.json()).then(() => {
				document.getElementById("done").textContent = "ok";
			});
		</script></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	h, err := capture.New(ctx, s, capture.Config{TargetHost: srv.URL + "/api2/", Persona: stealth.DefaultPersona}, zaptest.NewLogger(t))
	require.NoError(t, err)
	h.SetScenario("BFV1")

	require.NoError(t, s.Navigate(ctx, srv.URL))
	require.NoError(t, s.WaitReady(ctx, 10*time.Second))
	require.Eventually(t, func() bool {
		var text string
		_ = s.Evaluate(ctx, `document.getElementById("done").textContent`, &text)
		return text == "ok"
	}, 10*time.Second, 100*time.Millisecond)

	h.CaptureResponses(ctx)

	captured := h.CapturedData()
	require.Len(t, captured, 1)
	assert.True(t, strings.HasPrefix(captured[0].URL, srv.URL+"/api2/"))
	assert.Equal(t, []string{"Best-Fitting-Vehicle A"}, captured[0].CampaignNames())

	var platform string
	require.NoError(t, s.Evaluate(ctx, `navigator.platform`, &platform))
	assert.Equal(t, "Win32", platform)
}

func TestSession_ScreenshotAndCookies(t *testing.T) {
	s := newBrowserSession(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1>no banner</h1></body></html>`)
	}))
	defer srv.Close()

	ctx := context.Background()
	require.NoError(t, s.Navigate(ctx, srv.URL))

	err := s.AcceptCookies(ctx, 500*time.Millisecond)
	assert.Error(t, err, "missing banner is reported")

	png, err := s.Screenshot(ctx)
	require.NoError(t, err)
	assert.True(t, len(png) > 8 && string(png[1:4]) == "PNG")
}
