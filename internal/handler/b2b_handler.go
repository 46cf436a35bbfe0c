package handler

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/ichiba/internal/middleware"
	"github.com/hitoshi/ichiba/internal/model"
)

// バッチ投入の1回あたり上限行数。
const maxBatchItems = 200

// レポート対象期間の上限。
const maxReportRange = 90 * 24 * time.Hour

// B2BBatchStore はB2Bハンドラが利用するバッチ永続化のインターフェース。
type B2BBatchStore interface {
	Create(ctx context.Context, batch *model.OfferSyncBatch) error
	FindByID(ctx context.Context, id string) (*model.OfferSyncBatch, error)
	FindByIdempotencyKey(ctx context.Context, sellerUserID, key string) (*model.OfferSyncBatch, error)
	ListBySeller(ctx context.Context, sellerUserID string, max int) ([]*model.OfferSyncBatch, error)
}

// B2BReportStore はB2Bハンドラが利用するレポート永続化のインターフェース。
type B2BReportStore interface {
	Create(ctx context.Context, report *model.SalesReport) error
	FindByID(ctx context.Context, id string) (*model.SalesReport, error)
	FindByIdempotencyKey(ctx context.Context, sellerUserID, key string) (*model.SalesReport, error)
	MarkReceived(ctx context.Context, id string, receivedAt time.Time) error
}

// B2BProductChecker はバッチ投入時の商品存在チェック用インターフェース。
type B2BProductChecker interface {
	FindByID(ctx context.Context, id string) (*model.Product, error)
}

// B2BHandler はB2B出品者向けAPIのハンドラ。X-B2B-Keyミドルウェアの内側で使う。
// バッチとレポートは受付時に永続化するだけで、処理はワーカーのポーラーが行う。
type B2BHandler struct {
	batches  B2BBatchStore
	reports  B2BReportStore
	products B2BProductChecker
	now      func() time.Time
}

// NewB2BHandler はB2BHandlerを生成する。
func NewB2BHandler(batches B2BBatchStore, reports B2BReportStore, products B2BProductChecker) *B2BHandler {
	return &B2BHandler{
		batches:  batches,
		reports:  reports,
		products: products,
		now:      time.Now,
	}
}

type submitBatchItemRequest struct {
	LineNo    int     `json:"lineNo"`
	ProductID string  `json:"productId"`
	Action    string  `json:"action"`
	OfferID   string  `json:"offerId"`
	Seller    string  `json:"seller"`
	Price     float64 `json:"price"`
}

type submitBatchRequest struct {
	IdempotencyKey string                   `json:"idempotencyKey"`
	Items          []submitBatchItemRequest `json:"items"`
}

type batchAckResponse struct {
	BatchID string `json:"batchId"`
	Status  string `json:"status"`
}

// SubmitBatch はオファー同期バッチを受け付ける。
// 同一べき等キーの再送には既存バッチのIDと状態をそのまま返す。
// POST /api/b2b/offer-sync/batches
func (h *B2BHandler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	seller, err := middleware.B2BUserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError("B2B認証が必要です。"))
		return
	}

	var req submitBatchRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if len(req.Items) == 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("itemsが空です"))
		return
	}
	if len(req.Items) > maxBatchItems {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidInputError(fmt.Sprintf("itemsは最大%d行までです", maxBatchItems)))
		return
	}

	idem := strings.TrimSpace(req.IdempotencyKey)
	if idem != "" {
		existing, err := h.batches.FindByIdempotencyKey(r.Context(), seller.ID, idem)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		if existing != nil {
			writeJSONResponse(w, http.StatusOK, batchAckResponse{
				BatchID: existing.ID,
				Status:  string(existing.Status),
			})
			return
		}
	}

	// 商品の存在は受付時点で検査し、存在しない行は即ERRORにしておく。
	// ワーカーは処理時点の状態で各行の結果を上書きする。
	known := map[string]bool{}
	items := make([]model.OfferSyncItem, 0, len(req.Items))
	for i, it := range req.Items {
		exists, ok := known[it.ProductID]
		if !ok {
			product, err := h.products.FindByID(r.Context(), it.ProductID)
			if err != nil {
				handleServiceError(w, err)
				return
			}
			exists = product != nil
			known[it.ProductID] = exists
		}

		item := model.OfferSyncItem{
			LineNo:    it.LineNo,
			ProductID: it.ProductID,
			Action:    model.SyncAction(it.Action),
			OfferID:   it.OfferID,
			Seller:    strings.TrimSpace(it.Seller),
			Price:     it.Price,
		}
		if item.LineNo == 0 {
			item.LineNo = i + 1
		}
		if item.Seller == "" {
			item.Seller = seller.SellerName()
		}
		if exists {
			item.Result = model.SyncResultOK
		} else {
			item.Result = model.SyncResultError
			item.ErrorCode = model.ErrCodeProductNotFound
			item.Message = "product not found"
		}
		items = append(items, item)
	}

	batch := &model.OfferSyncBatch{
		ID:             uuid.New().String(),
		SellerUserID:   seller.ID,
		IdempotencyKey: idem,
		Status:         model.BatchStatusAccepted,
		CreatedAt:      h.now(),
		Items:          items,
	}
	if err := h.batches.Create(r.Context(), batch); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusAccepted, batchAckResponse{
		BatchID: batch.ID,
		Status:  string(batch.Status),
	})
}

type batchItemResponse struct {
	LineNo    int     `json:"lineNo"`
	ProductID string  `json:"productId"`
	Action    string  `json:"action"`
	OfferID   string  `json:"offerId,omitempty"`
	Seller    string  `json:"seller,omitempty"`
	Price     float64 `json:"price,omitempty"`
	Result    string  `json:"result"`
	ErrorCode string  `json:"errorCode,omitempty"`
	Message   string  `json:"message,omitempty"`
}

type batchSummaryResponse struct {
	ProcessedCount int `json:"processedCount"`
	SuccessCount   int `json:"successCount"`
	ErrorCount     int `json:"errorCount"`
}

type batchResponse struct {
	ID             string               `json:"id"`
	Status         string               `json:"status"`
	CreatedAt      string               `json:"createdAt"`
	StartedAt      string               `json:"startedAt,omitempty"`
	FinishedAt     string               `json:"finishedAt,omitempty"`
	IdempotencyKey string               `json:"idempotencyKey,omitempty"`
	Summary        batchSummaryResponse `json:"summary"`
	Items          []batchItemResponse  `json:"items,omitempty"`
}

func toBatchResponse(batch *model.OfferSyncBatch, withItems bool) batchResponse {
	resp := batchResponse{
		ID:             batch.ID,
		Status:         string(batch.Status),
		CreatedAt:      formatOptionalTime(batch.CreatedAt),
		StartedAt:      formatOptionalTime(batch.StartedAt),
		FinishedAt:     formatOptionalTime(batch.FinishedAt),
		IdempotencyKey: batch.IdempotencyKey,
	}
	resp.Summary.ProcessedCount = len(batch.Items)
	for _, it := range batch.Items {
		if it.Result == model.SyncResultOK {
			resp.Summary.SuccessCount++
		} else {
			resp.Summary.ErrorCount++
		}
	}
	if withItems {
		resp.Items = make([]batchItemResponse, 0, len(batch.Items))
		for _, it := range batch.Items {
			resp.Items = append(resp.Items, batchItemResponse{
				LineNo:    it.LineNo,
				ProductID: it.ProductID,
				Action:    string(it.Action),
				OfferID:   it.OfferID,
				Seller:    it.Seller,
				Price:     it.Price,
				Result:    string(it.Result),
				ErrorCode: it.ErrorCode,
				Message:   it.Message,
			})
		}
	}
	return resp
}

// GetBatch はバッチの状態と行ごとの処理結果を返す。
// GET /api/b2b/offer-sync/batches/{id}
func (h *B2BHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	seller, err := middleware.B2BUserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError("B2B認証が必要です。"))
		return
	}

	id := chi.URLParam(r, "id")
	batch, err := h.batches.FindByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if batch == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewBatchNotFoundError(id))
		return
	}
	if batch.SellerUserID != seller.ID {
		writeAPIErrorResponse(w, http.StatusForbidden,
			model.NewForbiddenError("バッチは他の出品者に属しています"))
		return
	}

	writeJSONResponse(w, http.StatusOK, struct {
		Batch batchResponse `json:"batch"`
	}{Batch: toBatchResponse(batch, true)})
}

// ListBatches は出品者自身のバッチを新しい順に返す。
// GET /api/b2b/offer-sync/batches
func (h *B2BHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	seller, err := middleware.B2BUserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError("B2B認証が必要です。"))
		return
	}

	max, ok := parseMaxParam(w, r, 20)
	if !ok {
		return
	}

	batches, err := h.batches.ListBySeller(r.Context(), seller.ID, max)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := struct {
		Batches []batchResponse `json:"batches"`
	}{Batches: make([]batchResponse, 0, len(batches))}
	for _, b := range batches {
		resp.Batches = append(resp.Batches, toBatchResponse(b, false))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

type requestReportRequest struct {
	From           string `json:"from"`
	To             string `json:"to"`
	Format         string `json:"format"`
	IdempotencyKey string `json:"idempotencyKey"`
}

type reportAckResponse struct {
	ReportID string `json:"reportId"`
	Status   string `json:"status"`
}

// RequestReport は期間売上レポートの生成を受け付ける。
// POST /api/b2b/reports
func (h *B2BHandler) RequestReport(w http.ResponseWriter, r *http.Request) {
	seller, err := middleware.B2BUserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError("B2B認証が必要です。"))
		return
	}

	var req requestReportRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	from, err := time.Parse(time.RFC3339, req.From)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("fromはRFC3339形式で指定してください"))
		return
	}
	to, err := time.Parse(time.RFC3339, req.To)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("toはRFC3339形式で指定してください"))
		return
	}
	if from.After(to) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("fromはto以前にしてください"))
		return
	}
	if to.Sub(from) > maxReportRange {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("対象期間は最大90日です"))
		return
	}

	format := model.ReportFormatJSON
	switch strings.ToUpper(req.Format) {
	case "", string(model.ReportFormatJSON):
	case string(model.ReportFormatCSV):
		format = model.ReportFormatCSV
	default:
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("formatはJSONまたはCSVを指定してください"))
		return
	}

	idem := strings.TrimSpace(req.IdempotencyKey)
	if idem != "" {
		existing, err := h.reports.FindByIdempotencyKey(r.Context(), seller.ID, idem)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		if existing != nil {
			writeJSONResponse(w, http.StatusOK, reportAckResponse{
				ReportID: existing.ID,
				Status:   string(existing.Status),
			})
			return
		}
	}

	report := &model.SalesReport{
		ID:             uuid.New().String(),
		SellerUserID:   seller.ID,
		IdempotencyKey: idem,
		Status:         model.ReportStatusQueued,
		From:           from,
		To:             to,
		Format:         format,
		CreatedAt:      h.now(),
	}
	if err := h.reports.Create(r.Context(), report); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusAccepted, reportAckResponse{
		ReportID: report.ID,
		Status:   string(report.Status),
	})
}

type reportResponse struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	From       string `json:"from"`
	To         string `json:"to"`
	Format     string `json:"format"`
	CreatedAt  string `json:"createdAt"`
	StartedAt  string `json:"startedAt,omitempty"`
	FinishedAt string `json:"finishedAt,omitempty"`
	ReceivedAt string `json:"receivedAt,omitempty"`
	Message    string `json:"message,omitempty"`
	Totals     *struct {
		OrderCount int     `json:"orderCount"`
		Revenue    float64 `json:"revenue"`
	} `json:"totals,omitempty"`
}

func toReportResponse(report *model.SalesReport) reportResponse {
	resp := reportResponse{
		ID:         report.ID,
		Status:     string(report.Status),
		From:       formatOptionalTime(report.From),
		To:         formatOptionalTime(report.To),
		Format:     string(report.Format),
		CreatedAt:  formatOptionalTime(report.CreatedAt),
		StartedAt:  formatOptionalTime(report.StartedAt),
		FinishedAt: formatOptionalTime(report.FinishedAt),
		ReceivedAt: formatOptionalTime(report.ReceivedAt),
		Message:    report.Message,
	}
	if report.Status == model.ReportStatusReady {
		resp.Totals = &struct {
			OrderCount int     `json:"orderCount"`
			Revenue    float64 `json:"revenue"`
		}{OrderCount: report.Totals.OrderCount, Revenue: report.Totals.Revenue}
	}
	return resp
}

// GetReport はレポートの状態とメタデータを返す。
// GET /api/b2b/reports/{id}
func (h *B2BHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	report, ok := h.loadOwnedReport(w, r)
	if !ok {
		return
	}

	writeJSONResponse(w, http.StatusOK, struct {
		Report reportResponse `json:"report"`
	}{Report: toReportResponse(report)})
}

type reportLineResponse struct {
	LineNo      int     `json:"lineNo"`
	OrderID     string  `json:"orderId"`
	CreatedAt   string  `json:"createdAt"`
	OfferID     string  `json:"offerId"`
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Seller      string  `json:"seller"`
	Price       float64 `json:"price"`
}

// DownloadReport はREADY状態のレポート本体を返す。
// レポートのformatに従いJSONまたはCSVで出力する。
// GET /api/b2b/reports/{id}/download
func (h *B2BHandler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	report, ok := h.loadOwnedReport(w, r)
	if !ok {
		return
	}

	if report.Status != model.ReportStatusReady {
		writeAPIErrorResponse(w, http.StatusConflict, &model.APIError{
			Code:     model.ErrCodeInvalidInput,
			Message:  fmt.Sprintf("レポートは%s状態のためダウンロードできません。", report.Status),
			Category: "validation",
			Action:   "READYになるまで待ってから再度お試しください。",
		})
		return
	}

	if report.Format == model.ReportFormatCSV {
		h.writeReportCSV(w, report)
		return
	}

	lines := make([]reportLineResponse, 0, len(report.Lines))
	for _, l := range report.Lines {
		lines = append(lines, reportLineResponse{
			LineNo:      l.LineNo,
			OrderID:     l.OrderID,
			CreatedAt:   formatOptionalTime(l.CreatedAt),
			OfferID:     l.OfferID,
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Seller:      l.Seller,
			Price:       l.Price,
		})
	}
	writeJSONResponse(w, http.StatusOK, struct {
		Report reportResponse       `json:"report"`
		Lines  []reportLineResponse `json:"lines"`
	}{Report: toReportResponse(report), Lines: lines})
}

// writeReportCSV はレポート本体をCSVで書き出す。
func (h *B2BHandler) writeReportCSV(w http.ResponseWriter, report *model.SalesReport) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "sales_report_"+report.ID+".csv"))
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	cw.Write([]string{"lineNo", "orderId", "createdAt", "offerId", "productId", "productName", "seller", "price"})
	for _, l := range report.Lines {
		cw.Write([]string{
			strconv.Itoa(l.LineNo),
			l.OrderID,
			formatOptionalTime(l.CreatedAt),
			l.OfferID,
			l.ProductID,
			l.ProductName,
			l.Seller,
			strconv.FormatFloat(l.Price, 'f', -1, 64),
		})
	}
	cw.Flush()
}

// ConfirmReportReceived はレポート受領をマークする。
// Webhook到達に失敗した出品者がポーリングで受領を伝える経路。
// POST /api/b2b/reports/{id}/received
func (h *B2BHandler) ConfirmReportReceived(w http.ResponseWriter, r *http.Request) {
	report, ok := h.loadOwnedReport(w, r)
	if !ok {
		return
	}

	if err := h.reports.MarkReceived(r.Context(), report.ID, h.now()); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, okResponse())
}

// loadOwnedReport はURLのレポートを取得し、認証済み出品者の所有かを確認する。
// エラー時はレスポンスを書き込みfalseを返す。
func (h *B2BHandler) loadOwnedReport(w http.ResponseWriter, r *http.Request) (*model.SalesReport, bool) {
	seller, err := middleware.B2BUserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError("B2B認証が必要です。"))
		return nil, false
	}

	id := chi.URLParam(r, "id")
	report, err := h.reports.FindByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return nil, false
	}
	if report == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewReportNotFoundError(id))
		return nil, false
	}
	if report.SellerUserID != seller.ID {
		writeAPIErrorResponse(w, http.StatusForbidden,
			model.NewForbiddenError("レポートは他の出品者に属しています"))
		return nil, false
	}
	return report, true
}

// parseMaxParam はクエリのmaxパラメータを解析する（デフォルトdef、上限200）。
func parseMaxParam(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("max")
	if raw == "" {
		return def, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("maxは正の整数で指定してください"))
		return 0, false
	}
	return min(parsed, 200), true
}

// formatOptionalTime はゼロ値を空文字列として扱うRFC3339フォーマッタ。
func formatOptionalTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
