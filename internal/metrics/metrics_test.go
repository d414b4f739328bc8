package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrument_RecordsStatus(t *testing.T) {
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodPost, "token", "400"))

	h := Instrument("token", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/token", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodPost, "token", "400"))
	assert.Equal(t, before+1, after)
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(tokenExchangeTotal.WithLabelValues("invalid_grant"))
	TokenExchange("invalid_grant")
	assert.Equal(t, before+1, testutil.ToFloat64(tokenExchangeTotal.WithLabelValues("invalid_grant")))

	before = testutil.ToFloat64(upstreamRefreshTotal.WithLabelValues("success"))
	UpstreamRefresh("success")
	assert.Equal(t, before+1, testutil.ToFloat64(upstreamRefreshTotal.WithLabelValues("success")))

	before = testutil.ToFloat64(identityResolutionTotal.WithLabelValues("bearer"))
	IdentityResolved("bearer")
	assert.Equal(t, before+1, testutil.ToFloat64(identityResolutionTotal.WithLabelValues("bearer")))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	Register()
	Register()
	TokenExchange("success")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "mcpgate_token_exchange_total"))
}
