package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/ichiba/internal/model"
)

// OrderServiceInterface は注文ハンドラが利用するサービスのインターフェース。
type OrderServiceInterface interface {
	Place(ctx context.Context, userID, offerID string) (*model.Order, error)
}

// OrderHandler は即時注文の公開APIハンドラ。
type OrderHandler struct {
	service OrderServiceInterface
}

// NewOrderHandler はOrderHandlerを生成する。
func NewOrderHandler(service OrderServiceInterface) *OrderHandler {
	return &OrderHandler{service: service}
}

type placeOrderRequest struct {
	UserID  string `json:"userId"`
	OfferID string `json:"offerId"`
}

type placeOrderResponse struct {
	OrderID   string `json:"orderId"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
}

// PlaceOrder はオファーに対する即時注文を確定する。
// POST /api/orders/Place
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.UserID == "" || req.OfferID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("userIdとofferIdは必須です"))
		return
	}

	order, err := h.service.Place(r.Context(), req.UserID, req.OfferID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, placeOrderResponse{
		OrderID:   order.ID,
		Status:    string(order.Status),
		CreatedAt: order.CreatedAt.UTC().Format(time.RFC3339),
	})
}
