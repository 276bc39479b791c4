package store

import (
	"testing"

	"github.com/auralounge/loyalty-service/internal/domain"
)

func TestClampLedgerLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "zero uses default", limit: 0, want: defaultLedgerPageLimit},
		{name: "negative uses default", limit: -5, want: defaultLedgerPageLimit},
		{name: "in-range passes through", limit: 42, want: 42},
		{name: "over max is capped", limit: 5000, want: maxLedgerPageLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clampLedgerLimit(tt.limit)
			if got != tt.want {
				t.Fatalf("expected limit=%d, got %d", tt.want, got)
			}
		})
	}
}

func TestLedgerDirectionFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		want   domain.Direction
		wantOK bool
	}{
		{name: "earn maps to earn", filter: "earn", want: domain.DirectionEarn, wantOK: true},
		{name: "income alias maps to earn", filter: "income", want: domain.DirectionEarn, wantOK: true},
		{name: "redeem maps to redeem", filter: "redeem", want: domain.DirectionRedeem, wantOK: true},
		{name: "expense alias maps to redeem", filter: "expense", want: domain.DirectionRedeem, wantOK: true},
		{name: "empty filter is ignored", filter: "", wantOK: false},
		{name: "unknown filter is ignored", filter: "all", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ledgerDirectionFilter(tt.filter)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%t, got %t", tt.wantOK, ok)
			}
			if ok && got != tt.want {
				t.Fatalf("expected direction=%s, got %s", tt.want, got)
			}
		})
	}
}
