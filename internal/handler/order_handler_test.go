package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/ichiba/internal/model"
)

// mockOrderService はOrderServiceInterfaceのモック実装。
type mockOrderService struct {
	placeFn func(ctx context.Context, userID, offerID string) (*model.Order, error)
}

func (m *mockOrderService) Place(ctx context.Context, userID, offerID string) (*model.Order, error) {
	return m.placeFn(ctx, userID, offerID)
}

// TestPlaceOrder_ReturnsAck は注文確定で受付応答が返ることを検証する。
func TestPlaceOrder_ReturnsAck(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	service := &mockOrderService{
		placeFn: func(ctx context.Context, userID, offerID string) (*model.Order, error) {
			if userID != "user-1" || offerID != "off-1" {
				t.Errorf("Place(%s, %s), want (user-1, off-1)", userID, offerID)
			}
			return &model.Order{
				ID:        "order-1",
				Status:    model.OrderStatusPending,
				OfferID:   offerID,
				CreatedAt: createdAt,
			}, nil
		},
	}
	h := NewOrderHandler(service)

	req := httptest.NewRequest(http.MethodPost, "/api/orders/Place",
		strings.NewReader(`{"userId":"user-1","offerId":"off-1"}`))
	rec := httptest.NewRecorder()
	h.PlaceOrder(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		OrderID   string `json:"orderId"`
		Status    string `json:"status"`
		CreatedAt string `json:"createdAt"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.OrderID != "order-1" {
		t.Errorf("orderId = %s, want order-1", resp.OrderID)
	}
	if resp.Status != "pending" {
		t.Errorf("status = %s, want pending", resp.Status)
	}
	if resp.CreatedAt != "2026-03-01T12:00:00Z" {
		t.Errorf("createdAt = %s, want 2026-03-01T12:00:00Z", resp.CreatedAt)
	}
}

// TestPlaceOrder_MissingFieldsReturns400 は必須フィールド欠落で400が返ることを検証する。
func TestPlaceOrder_MissingFieldsReturns400(t *testing.T) {
	h := NewOrderHandler(&mockOrderService{})

	req := httptest.NewRequest(http.MethodPost, "/api/orders/Place",
		strings.NewReader(`{"userId":"user-1"}`))
	rec := httptest.NewRecorder()
	h.PlaceOrder(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

// TestPlaceOrder_UnknownOfferReturns404 は存在しないオファーで404が返ることを検証する。
func TestPlaceOrder_UnknownOfferReturns404(t *testing.T) {
	service := &mockOrderService{
		placeFn: func(ctx context.Context, userID, offerID string) (*model.Order, error) {
			return nil, model.NewOfferNotFoundError(offerID)
		},
	}
	h := NewOrderHandler(service)

	req := httptest.NewRequest(http.MethodPost, "/api/orders/Place",
		strings.NewReader(`{"userId":"user-1","offerId":"nope"}`))
	rec := httptest.NewRecorder()
	h.PlaceOrder(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
