package session

import (
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/sjson"

	"github.com/xkilldash9x/campaign-probe/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// perfLog buffers CDP events in the shape of Chrome's performance log until
// they are drained. When full, the oldest entries are dropped.
type perfLog struct {
	mu      sync.Mutex
	entries []schemas.LogEntry
	limit   int
	dropped int
	now     func() time.Time
}

func newPerfLog(limit int) *perfLog {
	if limit <= 0 {
		limit = 1
	}
	return &perfLog{limit: limit, now: time.Now}
}

// record encodes params and appends {"message":{"method":..,"params":..}}.
func (p *perfLog) record(method string, params interface{}) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	msg, err := sjson.Set(`{}`, "message.method", method)
	if err != nil {
		return err
	}
	msg, err = sjson.SetRaw(msg, "message.params", string(raw))
	if err != nil {
		return err
	}

	entry := schemas.LogEntry{
		Message:   msg,
		Level:     "INFO",
		Timestamp: float64(p.now().UnixMilli()),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.entries) >= p.limit {
		overflow := len(p.entries) - p.limit + 1
		p.entries = p.entries[overflow:]
		p.dropped += overflow
	}
	p.entries = append(p.entries, entry)
	return nil
}

// drain returns every buffered entry and empties the buffer.
func (p *perfLog) drain() []schemas.LogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.entries
	p.entries = nil
	return out
}

// Dropped reports how many entries were evicted before being drained.
func (p *perfLog) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}
