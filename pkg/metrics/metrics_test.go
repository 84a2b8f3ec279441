package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesRegisteredCollectors(t *testing.T) {
	RPCRequestsTotal.WithLabelValues("ethereum-sepolia", "eth_getBlockByNumber").Inc()
	ProverStepsLast.Set(42)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("got status %d, want 200", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"hdp_rpc_requests_total",
		"hdp_prover_steps_last",
		"hdp_rpc_in_flight_requests",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected /metrics output to contain %q", want)
		}
	}
}
