package capture

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/campaign-probe/api/schemas"
	"github.com/xkilldash9x/campaign-probe/internal/browser/stealth"
	"github.com/xkilldash9x/campaign-probe/internal/mocks"
)

const targetURL = DefaultTargetHost + "api2/event/mb_emea"

// -- Test Helpers --

func responseEntry(requestID, url string, status int) schemas.LogEntry {
	return schemas.LogEntry{
		Level: "INFO",
		Message: fmt.Sprintf(
			`{"message":{"method":"Network.responseReceived","params":{"requestId":%q,"response":{"url":%q,"status":%d}}},"webview":"ABC"}`,
			requestID, url, status),
	}
}

func otherEntry(method string) schemas.LogEntry {
	return schemas.LogEntry{Message: fmt.Sprintf(`{"message":{"method":%q,"params":{}}}`, method)}
}

func testConfig() Config {
	return Config{TargetHost: DefaultTargetHost, Persona: stealth.DefaultPersona}
}

// newTestHarvester builds a harvester over a mock session that accepts setup.
func newTestHarvester(t *testing.T) (*Harvester, *mocks.MockSession) {
	t.Helper()
	session := new(mocks.MockSession)
	session.On("ApplyPersona", mock.Anything, stealth.DefaultPersona).Return(nil).Once()
	session.On("EnableNetworkLogging", mock.Anything, DefaultMaxPostDataSize).Return(nil).Once()

	h, err := New(context.Background(), session, testConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return h, session
}

func campaignNames(r schemas.CapturedResponse) []string {
	return r.CampaignNames()
}

// -- Test Cases --

func TestNew(t *testing.T) {
	t.Run("applies persona then enables network logging", func(t *testing.T) {
		h, session := newTestHarvester(t)
		assert.Empty(t, h.CapturedData())
		assert.Equal(t, "", h.Filter())
		session.AssertExpectations(t)
	})

	t.Run("persona failure is a setup error", func(t *testing.T) {
		session := new(mocks.MockSession)
		cause := errors.New("cdp closed")
		session.On("ApplyPersona", mock.Anything, mock.Anything).Return(cause)

		_, err := New(context.Background(), session, testConfig(), zap.NewNop())
		require.Error(t, err)

		var setupErr *SetupError
		require.ErrorAs(t, err, &setupErr)
		assert.Equal(t, StagePersona, setupErr.Stage)
		assert.ErrorIs(t, err, cause)
		session.AssertNotCalled(t, "EnableNetworkLogging", mock.Anything, mock.Anything)
	})

	t.Run("network enable failure is a setup error", func(t *testing.T) {
		session := new(mocks.MockSession)
		cause := errors.New("network domain unavailable")
		session.On("ApplyPersona", mock.Anything, mock.Anything).Return(nil)
		session.On("EnableNetworkLogging", mock.Anything, int64(1024)).Return(cause)

		cfg := testConfig()
		cfg.MaxPostDataSize = 1024
		_, err := New(context.Background(), session, cfg, zap.NewNop())

		var setupErr *SetupError
		require.ErrorAs(t, err, &setupErr)
		assert.Equal(t, StageNetwork, setupErr.Stage)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "network stage")
	})

	t.Run("empty target host is rejected", func(t *testing.T) {
		session := new(mocks.MockSession)
		_, err := New(context.Background(), session, Config{}, zap.NewNop())

		var setupErr *SetupError
		require.ErrorAs(t, err, &setupErr)
		session.AssertNotCalled(t, "ApplyPersona", mock.Anything, mock.Anything)
	})
}

func TestHarvester_SetScenario(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	session := new(mocks.MockSession)
	session.On("ApplyPersona", mock.Anything, mock.Anything).Return(nil)
	session.On("EnableNetworkLogging", mock.Anything, mock.Anything).Return(nil)
	h, err := New(context.Background(), session, testConfig(), zap.New(core))
	require.NoError(t, err)

	h.SetScenario("BFV2")
	assert.Equal(t, "best-fitting-vehicle", h.Filter())

	h.SetScenario("Last Seen PDP")
	assert.Equal(t, "dcp-last-seen-pdp-srp", h.Filter(), "setting again overwrites the filter")

	h.SetScenario("Foo")
	assert.Equal(t, "", h.Filter())
	assert.Equal(t, 1, logs.FilterMessageSnippet("No campaign filter").Len(), "unrecognized scenario should warn")
}

func TestHarvester_UndecodableEntriesAreSkipped(t *testing.T) {
	h, session := newTestHarvester(t)
	session.On("DrainPerformanceLog", mock.Anything).Return([]schemas.LogEntry{
		{Message: "{not json"},
		{Message: ""},
		otherEntry("Network.requestWillBeSent"),
		otherEntry("Page.loadEventFired"),
	}, nil).Once()

	report := h.CaptureResponses(context.Background())

	require.NotNil(t, report)
	assert.Equal(t, 2, report.Count(OutcomeDecodeFailure))
	assert.Len(t, report.Events, 2, "non-response methods are not reported")
	assert.Empty(t, h.CapturedData())
	session.AssertNotCalled(t, "GetResponseBody", mock.Anything, mock.Anything)
}

func TestHarvester_NoContentNeverFetchesBody(t *testing.T) {
	h, session := newTestHarvester(t)
	session.On("DrainPerformanceLog", mock.Anything).Return([]schemas.LogEntry{
		responseEntry("1", targetURL, 204),
		responseEntry("2", "https://www.mercedes-benz.de/passengercars.html", 204),
	}, nil).Once()

	report := h.CaptureResponses(context.Background())

	assert.Equal(t, 2, report.Count(OutcomeNoContent))
	assert.Empty(t, h.CapturedData())
	session.AssertNotCalled(t, "GetResponseBody", mock.Anything, mock.Anything)
}

func TestHarvester_IgnoredResponses(t *testing.T) {
	h, session := newTestHarvester(t)
	session.On("DrainPerformanceLog", mock.Anything).Return([]schemas.LogEntry{
		responseEntry("1", "https://www.mercedes-benz.de/passengercars.html", 200),
		responseEntry("2", targetURL, 500),
		responseEntry("3", targetURL, 304),
	}, nil).Once()

	report := h.CaptureResponses(context.Background())

	assert.Equal(t, 1, report.Count(OutcomeIgnoredHost))
	assert.Equal(t, 2, report.Count(OutcomeIgnoredStatus))
	assert.Len(t, report.Ignored(), 3)
	assert.Empty(t, h.CapturedData())
	session.AssertNotCalled(t, "GetResponseBody", mock.Anything, mock.Anything)
}

func TestHarvester_BodyWithoutCampaignsStoresNothing(t *testing.T) {
	h, session := newTestHarvester(t)
	h.SetScenario("BFV1")
	session.On("DrainPerformanceLog", mock.Anything).Return([]schemas.LogEntry{
		responseEntry("1", targetURL, 200),
		responseEntry("2", targetURL, 200),
	}, nil).Once()
	session.On("GetResponseBody", mock.Anything, "1").Return(`{"persistedUnresolvedEvents":[]}`, nil).Once()
	session.On("GetResponseBody", mock.Anything, "2").Return(`{"campaignResponses":"not-an-array"}`, nil).Once()

	report := h.CaptureResponses(context.Background())

	assert.Equal(t, 2, report.Count(OutcomeNoCampaigns))
	assert.Empty(t, h.CapturedData())
	session.AssertExpectations(t)
}

func TestHarvester_PerEventFailuresAreIsolated(t *testing.T) {
	h, session := newTestHarvester(t)
	h.SetScenario("BFV1")
	session.On("DrainPerformanceLog", mock.Anything).Return([]schemas.LogEntry{
		responseEntry("evicted", targetURL, 200),
		responseEntry("html", targetURL, 200),
		responseEntry("ok", targetURL, 200),
	}, nil).Once()
	session.On("GetResponseBody", mock.Anything, "evicted").Return("", errors.New("No resource with given identifier found")).Once()
	session.On("GetResponseBody", mock.Anything, "html").Return("<html>oops</html>", nil).Once()
	session.On("GetResponseBody", mock.Anything, "ok").
		Return(`{"campaignResponses":[{"campaignName":"Best-Fitting-Vehicle"}]}`, nil).Once()

	report := h.CaptureResponses(context.Background())

	assert.Equal(t, 1, report.Count(OutcomeBodyFailure))
	assert.Equal(t, 1, report.Count(OutcomeBodyDecodeFailure))
	assert.Equal(t, 1, report.Count(OutcomeCaptured))

	for _, ev := range report.Events {
		if ev.Outcome == OutcomeBodyDecodeFailure {
			assert.Equal(t, "<html>oops</html>", ev.RawBody, "raw text is kept for diagnostics")
			assert.Error(t, ev.Err)
		}
	}

	captured := h.CapturedData()
	require.Len(t, captured, 1)
	assert.Equal(t, targetURL, captured[0].URL)
}

func TestHarvester_CaseInsensitiveMatching(t *testing.T) {
	h, session := newTestHarvester(t)
	h.SetScenario("Personalized CTA 2")
	session.On("DrainPerformanceLog", mock.Anything).Return([]schemas.LogEntry{responseEntry("1", targetURL, 200)}, nil).Once()
	session.On("GetResponseBody", mock.Anything, "1").
		Return(`{"campaignResponses":[{"campaignName":"Personalized CTA Offer A"},{"campaignName":"PERSONALIZED cta b"},{"campaignName":"Other"}]}`, nil).Once()

	h.CaptureResponses(context.Background())

	captured := h.CapturedData()
	require.Len(t, captured, 1)
	assert.Equal(t, []string{"Personalized CTA Offer A", "PERSONALIZED cta b"}, campaignNames(captured[0]))
}

func TestHarvester_BFV2KeepsOnlyMatchingCampaigns(t *testing.T) {
	h, session := newTestHarvester(t)
	h.SetScenario("BFV2")
	session.On("DrainPerformanceLog", mock.Anything).Return([]schemas.LogEntry{responseEntry("1", targetURL, 200)}, nil).Once()
	session.On("GetResponseBody", mock.Anything, "1").
		Return(`{"campaignResponses":[{"campaignName":"best-fitting-vehicle-v2"},{"campaignName":"unrelated-campaign"}]}`, nil).Once()

	report := h.CaptureResponses(context.Background())

	captured := h.CapturedData()
	require.Len(t, captured, 1)
	assert.Equal(t, []string{"best-fitting-vehicle-v2"}, campaignNames(captured[0]))
	assert.Equal(t, 200, captured[0].Status)
	assert.Equal(t, captured, report.Captured)
}

func TestHarvester_NoMatchStoresNothing(t *testing.T) {
	h, session := newTestHarvester(t)
	h.SetScenario("BFV3")
	session.On("DrainPerformanceLog", mock.Anything).Return([]schemas.LogEntry{responseEntry("1", targetURL, 200)}, nil).Once()
	session.On("GetResponseBody", mock.Anything, "1").
		Return(`{"campaignResponses":[{"campaignName":"unrelated"},{"userGroup":"no name"},{"campaignName":42}]}`, nil).Once()

	report := h.CaptureResponses(context.Background())

	assert.Equal(t, 1, report.Count(OutcomeNoMatch))
	assert.Empty(t, h.CapturedData())
}

// TestHarvester_EmptyFilterMatchesEverything pins the fallback for unrecognized
// scenarios: the empty filter is a substring of every name, so every named
// campaign is captured. Change this test only together with that policy.
func TestHarvester_EmptyFilterMatchesEverything(t *testing.T) {
	h, session := newTestHarvester(t)
	h.SetScenario("Foo")
	require.Equal(t, "", h.Filter())

	session.On("DrainPerformanceLog", mock.Anything).Return([]schemas.LogEntry{responseEntry("1", targetURL, 200)}, nil).Once()
	session.On("GetResponseBody", mock.Anything, "1").Return(`{"campaignResponses":[{"campaignName":"anything"}]}`, nil).Once()

	h.CaptureResponses(context.Background())

	captured := h.CapturedData()
	require.Len(t, captured, 1)
	assert.Equal(t, []string{"anything"}, campaignNames(captured[0]))
}

// TestHarvester_EmptyFilterKeepsNamelessCampaigns covers entries without a
// campaignName: the name reads as "", which the empty filter contains.
func TestHarvester_EmptyFilterKeepsNamelessCampaigns(t *testing.T) {
	h, session := newTestHarvester(t)
	h.SetScenario("Foo")

	session.On("DrainPerformanceLog", mock.Anything).Return([]schemas.LogEntry{responseEntry("1", targetURL, 200)}, nil).Once()
	session.On("GetResponseBody", mock.Anything, "1").
		Return(`{"campaignResponses":[{"userGroup":"Default"},{"campaignName":"anything"},{"campaignName":42}]}`, nil).Once()

	report := h.CaptureResponses(context.Background())

	assert.Equal(t, 1, report.Count(OutcomeCaptured))
	captured := h.CapturedData()
	require.Len(t, captured, 1)
	assert.Equal(t, []string{"", "anything"}, campaignNames(captured[0]))
	assert.Equal(t, "Default", captured[0].Body.CampaignResponses[0].UserGroup())
}

func TestHarvester_PassesAreAdditive(t *testing.T) {
	h, session := newTestHarvester(t)
	h.SetScenario("BFV1")

	session.On("DrainPerformanceLog", mock.Anything).Return([]schemas.LogEntry{responseEntry("1", targetURL+"?a", 200)}, nil).Once()
	session.On("DrainPerformanceLog", mock.Anything).Return([]schemas.LogEntry{responseEntry("2", targetURL+"?b", 200)}, nil).Once()
	session.On("DrainPerformanceLog", mock.Anything).Return([]schemas.LogEntry{}, nil).Once()
	session.On("GetResponseBody", mock.Anything, "1").Return(`{"campaignResponses":[{"campaignName":"best-fitting-vehicle-1"}]}`, nil).Once()
	session.On("GetResponseBody", mock.Anything, "2").Return(`{"campaignResponses":[{"campaignName":"best-fitting-vehicle-2"}]}`, nil).Once()

	first := h.CaptureResponses(context.Background())
	second := h.CaptureResponses(context.Background())
	third := h.CaptureResponses(context.Background())

	assert.Len(t, first.Captured, 1)
	assert.Len(t, second.Captured, 1)
	assert.Empty(t, third.Events, "a drained log is not replayed")

	captured := h.CapturedData()
	require.Len(t, captured, 2)
	assert.Equal(t, targetURL+"?a", captured[0].URL)
	assert.Equal(t, targetURL+"?b", captured[1].URL)
	session.AssertExpectations(t)
}

func TestHarvester_DrainFailure(t *testing.T) {
	h, session := newTestHarvester(t)
	drainErr := errors.New("target closed")
	session.On("DrainPerformanceLog", mock.Anything).Return(nil, drainErr).Once()

	report := h.CaptureResponses(context.Background())

	assert.ErrorIs(t, report.DrainErr, drainErr)
	assert.Empty(t, report.Events)
	assert.Empty(t, h.CapturedData())
}

func TestHarvester_LastSeenSRPEndToEnd(t *testing.T) {
	h, session := newTestHarvester(t)
	h.SetScenario("Last Seen SRP")
	require.Equal(t, "dcp-last-seen-pdp-srp", h.Filter())

	body := `{"campaignResponses":[{"campaignName":"DCP-Last-Seen-PDP-SRP-Variant1","userGroup":"test"}]}`
	session.On("DrainPerformanceLog", mock.Anything).Return([]schemas.LogEntry{
		otherEntry("Network.requestWillBeSent"),
		responseEntry("42", targetURL, 200),
	}, nil).Once()
	session.On("GetResponseBody", mock.Anything, "42").Return(body, nil).Once()

	h.CaptureResponses(context.Background())

	want := []schemas.CapturedResponse{{
		URL:    targetURL,
		Status: 200,
		Body: schemas.CapturedBody{CampaignResponses: []schemas.CampaignEntry{
			schemas.CampaignEntry(`{"campaignName":"DCP-Last-Seen-PDP-SRP-Variant1","userGroup":"test"}`),
		}},
	}}
	if diff := cmp.Diff(want, h.CapturedData()); diff != "" {
		t.Errorf("captured data mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "test", h.CapturedData()[0].Body.CampaignResponses[0].UserGroup())
}
