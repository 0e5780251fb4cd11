package metrics

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// Metrics is the in-memory counter set for the advisor service.
// All methods are safe for concurrent use.
type Metrics struct {
	inbound         atomic.Int64
	duplicates      atomic.Int64
	processed       atomic.Int64
	delivered       atomic.Int64
	fallbacks       atomic.Int64
	failed          atomic.Int64
	partsSent       atomic.Int64
	chunkShrinks    atomic.Int64
	rateLimitRetry  atomic.Int64
	deliveryFailed  atomic.Int64
	weatherFailures atomic.Int64
	panics          atomic.Int64
}

// New returns a zeroed Metrics collector.
func New() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncInbound()          { m.inbound.Add(1) }
func (m *Metrics) IncDuplicate()        { m.duplicates.Add(1) }
func (m *Metrics) IncProcessed()        { m.processed.Add(1) }
func (m *Metrics) IncDelivered()        { m.delivered.Add(1) }
func (m *Metrics) IncFallback()         { m.fallbacks.Add(1) }
func (m *Metrics) IncFailed()           { m.failed.Add(1) }
func (m *Metrics) IncWeatherFailure()   { m.weatherFailures.Add(1) }
func (m *Metrics) IncPanic()            { m.panics.Add(1) }
func (m *Metrics) IncPartsSent()        { m.partsSent.Add(1) }
func (m *Metrics) IncChunkShrinks()     { m.chunkShrinks.Add(1) }
func (m *Metrics) IncRateLimitRetries() { m.rateLimitRetry.Add(1) }
func (m *Metrics) IncDeliveryFailed()   { m.deliveryFailed.Add(1) }

// Snapshot returns the current counter values keyed by name.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"inbound":            m.inbound.Load(),
		"duplicates":         m.duplicates.Load(),
		"processed":          m.processed.Load(),
		"delivered":          m.delivered.Load(),
		"fallbacks":          m.fallbacks.Load(),
		"failed":             m.failed.Load(),
		"weather_failures":   m.weatherFailures.Load(),
		"panics":             m.panics.Load(),
		"parts_sent":         m.partsSent.Load(),
		"chunk_shrinks":      m.chunkShrinks.Load(),
		"rate_limit_retries": m.rateLimitRetry.Load(),
		"delivery_failures":  m.deliveryFailed.Load(),
	}
}

// Handler exposes the counters as a flat JSON object.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(m.Snapshot())
	})
}
