package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probe(t *testing.T, fn http.HandlerFunc) (int, probeResponse) {
	t.Helper()

	rec := httptest.NewRecorder()
	fn(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var resp probeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestReadyEndpoint_NotReadyByDefault(t *testing.T) {
	h := New()

	code, resp := probe(t, h.ReadyEndpoint)

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not ready", resp.Status)
}

func TestReadyEndpoint_ReadyWithPassingChecks(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, func(_ context.Context) error {
		return nil
	})
	h.SetReady(true)

	code, resp := probe(t, h.ReadyEndpoint)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Checks["postgres"])
}

func TestReadyEndpoint_FailingCheckReportsError(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, func(_ context.Context) error {
		return errors.New("connection refused")
	})
	h.SetReady(true)

	code, resp := probe(t, h.ReadyEndpoint)

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "connection refused", resp.Checks["postgres"])
}

func TestReadyEndpoint_DrainingOverridesChecks(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, func(_ context.Context) error {
		return nil
	})
	h.SetReady(true)
	h.SetReady(false)

	code, resp := probe(t, h.ReadyEndpoint)

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not ready", resp.Status)
}

func TestLiveEndpoint(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, GoroutineCountCheck(100000))

	code, resp := probe(t, h.LiveEndpoint)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Checks["goroutines"])
}

func TestGoroutineCountCheck_Exceeded(t *testing.T) {
	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}
