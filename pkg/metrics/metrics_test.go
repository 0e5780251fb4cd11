package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCountersAreConcurrencySafe(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncInbound()
			m.IncPartsSent()
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	require.EqualValues(t, 50, snap["inbound"])
	require.EqualValues(t, 50, snap["parts_sent"])
}

func TestHandlerServesJSON(t *testing.T) {
	m := New()
	m.IncDelivered()
	m.IncChunkShrinks()
	m.IncRateLimitRetries()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.EqualValues(t, 1, body["delivered"])
	require.EqualValues(t, 1, body["chunk_shrinks"])
	require.EqualValues(t, 1, body["rate_limit_retries"])
	require.EqualValues(t, 0, body["failed"])
}
