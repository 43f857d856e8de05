package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Operation(t *testing.T) {
	r := New()

	r.Operation("install", time.Now(), nil)
	r.Operation("install", time.Now(), nil)
	r.Operation("install", time.Now(), errors.New("storage unavailable"))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.operations.WithLabelValues("install", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.operations.WithLabelValues("install", OutcomeError)))
	assert.Equal(t, 1, testutil.CollectAndCount(r.duration))
}

func TestRecorder_ConflictsAndFailures(t *testing.T) {
	r := New()

	r.Conflict("product", "not newer")
	r.Conflict("component", "not compatible")
	r.Conflict("product", "not newer")
	r.RemoteFetchFailed()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.conflicts.WithLabelValues("product", "not newer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.conflicts.WithLabelValues("component", "not compatible")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fetchFailures))
}

func TestRecorder_Entries(t *testing.T) {
	r := New()

	r.Entries("local", "product", 3)
	r.Entries("local", "product", 2)
	r.Entries("current", "component", 5)

	expected := `
# HELP umreg_registry_entries Entries visible in the local and current views
# TYPE umreg_registry_entries gauge
umreg_registry_entries{kind="component",view="current"} 5
umreg_registry_entries{kind="product",view="local"} 2
`
	require.NoError(t, testutil.GatherAndCompare(r.Gatherer(), strings.NewReader(expected), "umreg_registry_entries"))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Operation("install", time.Now(), nil)
		r.Conflict("product", "not newer")
		r.RemoteFetchFailed()
		r.Entries("local", "product", 1)
	})
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.RemoteFetchFailed()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "umreg_remote_fetch_failures_total 1")
}
