package model

import "testing"

// TestLimitStatus_Terminal は終端状態の判定を検証する。
func TestLimitStatus_Terminal(t *testing.T) {
	tests := []struct {
		status LimitStatus
		want   bool
	}{
		{LimitStatusPending, false},
		{LimitStatusFulfilled, true},
		{LimitStatusExpired, true},
		{LimitStatusCanceled, true},
	}

	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("Terminal(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
