package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterMetricsIsIdempotent(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()
}

func TestRecordRequest(t *testing.T) {
	before := testutil.ToFloat64(requests.WithLabelValues("test-node", "get_action", OutcomeOK))
	RecordRequest("test-node", "get_action", OutcomeOK, 3*time.Millisecond)
	RecordRequest("test-node", "get_action", OutcomeOK, 5*time.Millisecond)
	after := testutil.ToFloat64(requests.WithLabelValues("test-node", "get_action", OutcomeOK))
	assert.Equal(t, before+2, after)

	RecordMalformed("test-node")
	assert.GreaterOrEqual(t, testutil.ToFloat64(malformed.WithLabelValues("test-node")), 1.0)
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordRequest("scrape-node", "ping", OutcomeOK, time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `infer_rpc_requests_total{endpoint="ping",node="scrape-node",outcome="ok"}`))
}
