package session

import (
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestPerfLog_RecordsChromeShape(t *testing.T) {
	p := newPerfLog(10)
	p.now = func() time.Time { return time.UnixMilli(1700000000000) }

	ev := &network.EventResponseReceived{
		RequestID: "1000.1",
		Response:  &network.Response{URL: "https://example.com/a", Status: 200},
	}
	require.NoError(t, p.record("Network.responseReceived", ev))

	entries := p.drain()
	require.Len(t, entries, 1)
	msg := entries[0].Message
	assert.True(t, gjson.Valid(msg))
	assert.Equal(t, "Network.responseReceived", gjson.Get(msg, "message.method").String())
	assert.Equal(t, "1000.1", gjson.Get(msg, "message.params.requestId").String())
	assert.Equal(t, "https://example.com/a", gjson.Get(msg, "message.params.response.url").String())
	assert.Equal(t, int64(200), gjson.Get(msg, "message.params.response.status").Int())
	assert.Equal(t, float64(1700000000000), entries[0].Timestamp)
}

func TestPerfLog_DrainIsDestructive(t *testing.T) {
	p := newPerfLog(10)
	require.NoError(t, p.record("Page.loadEventFired", map[string]float64{"timestamp": 1}))

	assert.Len(t, p.drain(), 1)
	assert.Empty(t, p.drain())

	require.NoError(t, p.record("Page.loadEventFired", map[string]float64{"timestamp": 2}))
	assert.Len(t, p.drain(), 1)
}

func TestPerfLog_EvictsOldest(t *testing.T) {
	p := newPerfLog(2)
	for i := 0; i < 5; i++ {
		require.NoError(t, p.record("Network.loadingFinished", map[string]int{"n": i}))
	}

	entries := p.drain()
	require.Len(t, entries, 2)
	assert.Equal(t, int64(3), gjson.Get(entries[0].Message, "message.params.n").Int())
	assert.Equal(t, int64(4), gjson.Get(entries[1].Message, "message.params.n").Int())
	assert.Equal(t, 3, p.Dropped())
}
