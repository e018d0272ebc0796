package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveTapCountsByResult(t *testing.T) {
	before := testutil.ToFloat64(TapsTotal.WithLabelValues("test", "ok"))
	ObserveTap("test", "ok", time.Now())
	ObserveTap("test", "round_not_active", time.Now())
	if got := testutil.ToFloat64(TapsTotal.WithLabelValues("test", "ok")); got != before+1 {
		t.Fatalf("expected %v, got %v", before+1, got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveTap("test", "ok", time.Now())
	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	for _, name := range []string{"tap_requests_total", "tap_duration_seconds", "go_goroutines"} {
		if !strings.Contains(string(body), name) {
			t.Fatalf("metrics output missing %s", name)
		}
	}
}
