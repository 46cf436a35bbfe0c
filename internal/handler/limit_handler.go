package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/ichiba/internal/model"
)

// LimitServiceInterface は指値ハンドラが利用するサービスのインターフェース。
type LimitServiceInterface interface {
	Place(ctx context.Context, userID, productID string, price float64, validTill time.Time) (*model.Limit, error)
	Cancel(ctx context.Context, limitID string) (*model.Limit, error)
}

// LimitHandler は指値注文の公開APIハンドラ。
type LimitHandler struct {
	service LimitServiceInterface
}

// NewLimitHandler はLimitHandlerを生成する。
func NewLimitHandler(service LimitServiceInterface) *LimitHandler {
	return &LimitHandler{service: service}
}

type placeLimitRequest struct {
	UserID    string  `json:"userId"`
	ProdID    string  `json:"prodId"`
	Price     float64 `json:"price"`
	ValidTill string  `json:"validTill"`
}

type limitAckResponse struct {
	LimID  string `json:"limId"`
	Status string `json:"status"`
}

type cancelLimitRequest struct {
	LimID string `json:"limId"`
}

// PlaceLimit は指値注文を受け付ける。
// POST /api/limits/Place
func (h *LimitHandler) PlaceLimit(w http.ResponseWriter, r *http.Request) {
	var req placeLimitRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.UserID == "" || req.ProdID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("userIdとprodIdは必須です"))
		return
	}

	validTill, err := time.Parse(time.RFC3339, req.ValidTill)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("validTillはRFC3339形式で指定してください"))
		return
	}

	limit, err := h.service.Place(r.Context(), req.UserID, req.ProdID, req.Price, validTill)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, limitAckResponse{
		LimID:  limit.ID,
		Status: string(limit.Status),
	})
}

// CancelLimit はpending状態の指値をキャンセルする。
// POST /api/limits/Cancel
func (h *LimitHandler) CancelLimit(w http.ResponseWriter, r *http.Request) {
	var req cancelLimitRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.LimID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("limIdが空です"))
		return
	}

	limit, err := h.service.Cancel(r.Context(), req.LimID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, limitAckResponse{
		LimID:  limit.ID,
		Status: string(limit.Status),
	})
}
