package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewCollector_RegistersMetrics はCollectorが全メトリクスを登録できることを検証する。
func TestNewCollector_RegistersMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	if c == nil {
		t.Fatal("expected non-nil collector")
	}
}

// TestCollector_RecordMatch は約定カウンタの記録を検証する。
func TestCollector_RecordMatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordMatch()
	c.RecordMatch()
	c.RecordExpired(3)
	c.RecordMatchFailure("no_offer")
	c.RecordSweepLatency(50 * time.Millisecond)
	c.RecordOfferSyncItem("OK")
	c.RecordReportGenerated("READY")
	c.RecordHTTPStatus(200)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather returned error: %v", err)
	}

	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	for _, name := range []string{
		"ichiba_limit_match_total",
		"ichiba_limit_expired_total",
		"ichiba_limit_match_fail_total",
		"ichiba_sweep_latency_seconds",
		"ichiba_offer_sync_items_total",
		"ichiba_sales_reports_total",
		"ichiba_http_status_total",
	} {
		if !found[name] {
			t.Errorf("metric %s not gathered", name)
		}
	}
}
