package limitorder

import (
	"testing"

	"github.com/hitoshi/ichiba/internal/model"
)

// TestCheapestOffer_SelectsCheapestUnderCeiling は上限以下の最安オファーが
// 選ばれることを検証する。
func TestCheapestOffer_SelectsCheapestUnderCeiling(t *testing.T) {
	offers := []*model.Offer{
		{ID: "offer-a", Seller: "alpha", Price: 60},
		{ID: "offer-b", Seller: "beta", Price: 45},
		{ID: "offer-c", Seller: "gamma", Price: 48},
	}

	got := CheapestOffer(offers, 50)
	if got == nil {
		t.Fatal("expected an offer, got nil")
	}
	if got.ID != "offer-b" {
		t.Errorf("CheapestOffer selected %s, want offer-b (price 45)", got.ID)
	}
}

// TestCheapestOffer_NoQualifyingOffer は全オファーが上限超過の場合に
// nilが返ることを検証する。
func TestCheapestOffer_NoQualifyingOffer(t *testing.T) {
	offers := []*model.Offer{
		{ID: "offer-a", Price: 100},
		{ID: "offer-b", Price: 51},
	}

	if got := CheapestOffer(offers, 50); got != nil {
		t.Errorf("expected nil, got offer %s", got.ID)
	}
}

// TestCheapestOffer_EmptyOffers はオファーが空の場合にnilが返ることを検証する。
func TestCheapestOffer_EmptyOffers(t *testing.T) {
	if got := CheapestOffer(nil, 50); got != nil {
		t.Errorf("expected nil for empty offers, got %s", got.ID)
	}
}

// TestCheapestOffer_ExactCeilingQualifies は上限と同額のオファーが
// 対象になることを検証する。
func TestCheapestOffer_ExactCeilingQualifies(t *testing.T) {
	offers := []*model.Offer{
		{ID: "offer-a", Price: 50},
	}

	got := CheapestOffer(offers, 50)
	if got == nil || got.ID != "offer-a" {
		t.Error("offer priced exactly at ceiling should qualify")
	}
}

// TestCheapestOffer_TieBreaksByLowestID は同額の場合にIDが小さい
// オファーが選ばれることを検証する。
func TestCheapestOffer_TieBreaksByLowestID(t *testing.T) {
	offers := []*model.Offer{
		{ID: "offer-z", Price: 30},
		{ID: "offer-a", Price: 30},
		{ID: "offer-m", Price: 30},
	}

	got := CheapestOffer(offers, 50)
	if got == nil || got.ID != "offer-a" {
		t.Errorf("tie should break by lowest ID, got %v", got)
	}
}

// TestCheapestOffer_Deterministic は同一入力に対して常に同一の結果を
// 返すこと（決定性）を検証する。
func TestCheapestOffer_Deterministic(t *testing.T) {
	offers := []*model.Offer{
		{ID: "offer-a", Price: 42},
		{ID: "offer-b", Price: 42},
		{ID: "offer-c", Price: 55},
	}

	first := CheapestOffer(offers, 50)
	for i := 0; i < 10; i++ {
		if got := CheapestOffer(offers, 50); got != first {
			t.Fatal("CheapestOffer is not deterministic for identical input")
		}
	}
}

// TestCheapestOffer_NeverAboveCeiling はランキングが上限を超えるオファーを
// 返さないことを検証する。
func TestCheapestOffer_NeverAboveCeiling(t *testing.T) {
	offers := []*model.Offer{
		{ID: "offer-a", Price: 10},
		{ID: "offer-b", Price: 20},
		{ID: "offer-c", Price: 30},
	}

	for _, ceiling := range []float64{5, 15, 25, 35} {
		got := CheapestOffer(offers, ceiling)
		if got != nil && got.Price > ceiling {
			t.Errorf("ceiling %v: returned offer priced %v above ceiling", ceiling, got.Price)
		}
	}
}
