package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordersUpdateCollectors(t *testing.T) {
	m := New()
	m.Submission("polygon", "USDC", true)
	m.Submission("polygon", "USDC", false)
	m.Transition("PENDING", false)
	m.Transition("COMPLETED", true)
	m.Phase("source_finality", true, 150*time.Millisecond)
	m.Interpretation("local", "ok")
	m.PersistError()

	if got := testutil.ToFloat64(m.submissions.WithLabelValues("polygon", "USDC", "accepted")); got != 1 {
		t.Fatalf("expected one accepted submission, got %v", got)
	}
	if got := testutil.ToFloat64(m.inFlight); got != 0 {
		t.Fatalf("expected in-flight gauge back at zero, got %v", got)
	}
	if got := testutil.ToFloat64(m.persistErrors); got != 1 {
		t.Fatalf("expected one persist error, got %v", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Submission("polygon", "USDC", true)
	m.Transition("FAILED", true)
	m.Phase("relay", false, time.Second)
	m.Interpretation("remote", "error")
	m.PersistError()
}

func TestHandlerExposesBridgeMetrics(t *testing.T) {
	m := New()
	m.Transition("BRIDGING", false)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `bridge_orchestrator_transitions_total{status="BRIDGING"} 1`) {
		t.Fatalf("expected transition metric in scrape output:\n%s", body)
	}
}
