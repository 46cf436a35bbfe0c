package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// recordingStatusCollector はHTTPStatusRecorderのテスト用実装。
type recordingStatusCollector struct {
	statuses []int
}

func (c *recordingStatusCollector) RecordHTTPStatus(statusCode int) {
	c.statuses = append(c.statuses, statusCode)
}

// TestMetricsMiddleware_RecordsStatusCode はレスポンスのステータスコードが
// そのまま計測されることを検証する。
func TestMetricsMiddleware_RecordsStatusCode(t *testing.T) {
	collector := &recordingStatusCollector{}
	handler := NewMetricsMiddleware(collector)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/products/List", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if len(collector.statuses) != 1 || collector.statuses[0] != http.StatusTeapot {
		t.Errorf("recorded statuses = %v, want [418]", collector.statuses)
	}
}

// TestMetricsMiddleware_DefaultsTo200 はWriteHeader未呼び出しのハンドラで
// 200が計測されることを検証する。
func TestMetricsMiddleware_DefaultsTo200(t *testing.T) {
	collector := &recordingStatusCollector{}
	handler := NewMetricsMiddleware(collector)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/products/List", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if len(collector.statuses) != 1 || collector.statuses[0] != http.StatusOK {
		t.Errorf("recorded statuses = %v, want [200]", collector.statuses)
	}
}
