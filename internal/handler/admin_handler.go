package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/ichiba/internal/model"
	"github.com/hitoshi/ichiba/internal/repository"
)

// AdminCatalogInterface は管理ハンドラが利用するカタログサービスのインターフェース。
type AdminCatalogInterface interface {
	CreateProduct(ctx context.Context, name, description string, categoryIDs []int) (*model.Product, error)
	UpdateProduct(ctx context.Context, id, name, description string) (*model.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	AddOffer(ctx context.Context, productID, seller string, price float64) (*model.Offer, error)
	RemoveOffer(ctx context.Context, productID, offerID string) error
	ListCategories(ctx context.Context) ([]*model.Category, error)
	CreateCategory(ctx context.Context, name, description string) (*model.Category, error)
	DeleteCategory(ctx context.Context, id int) error
}

// AdminUserStore は管理ハンドラが利用するユーザー永続化のインターフェース。
type AdminUserStore interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	List(ctx context.Context) ([]*model.User, error)
	Create(ctx context.Context, user *model.User) error
	DeleteByID(ctx context.Context, id string) error
}

// AdminProductStore は管理画面の商品一覧取得用インターフェース。
type AdminProductStore interface {
	List(ctx context.Context) ([]*model.Product, error)
	FindByIDWithOffers(ctx context.Context, id string) (*model.Product, error)
}

// AdminLimitStore は管理画面の指値一覧取得用インターフェース。
type AdminLimitStore interface {
	List(ctx context.Context, max int) ([]*model.Limit, error)
}

// AdminStatsStore は管理画面のサマリ集計用インターフェース。
type AdminStatsStore interface {
	Overview(ctx context.Context) (*repository.Overview, error)
}

// WebhookURLValidator はWebhook URL登録時の検証インターフェース。
type WebhookURLValidator interface {
	ValidateURL(rawURL string) error
}

// AdminHandler は管理APIのハンドラ。X-Admin-Keyミドルウェアの内側で使う。
type AdminHandler struct {
	catalog      AdminCatalogInterface
	users        AdminUserStore
	products     AdminProductStore
	limits       AdminLimitStore
	stats        AdminStatsStore
	urlValidator WebhookURLValidator
}

// NewAdminHandler はAdminHandlerを生成する。
// urlValidatorはWebhook URL検証に使用する（nil可、その場合検証をスキップ）。
func NewAdminHandler(
	catalog AdminCatalogInterface,
	users AdminUserStore,
	products AdminProductStore,
	limits AdminLimitStore,
	stats AdminStatsStore,
	urlValidator WebhookURLValidator,
) *AdminHandler {
	return &AdminHandler{
		catalog:      catalog,
		users:        users,
		products:     products,
		limits:       limits,
		stats:        stats,
		urlValidator: urlValidator,
	}
}

type overviewResponse struct {
	Users struct {
		Total     int `json:"total"`
		Business  int `json:"business"`
		Customers int `json:"customers"`
	} `json:"users"`
	Catalog struct {
		Categories int `json:"categories"`
		Products   int `json:"products"`
		Offers     int `json:"offers"`
	} `json:"catalog"`
	Transactions struct {
		Orders int `json:"orders"`
		Limits int `json:"limits"`
	} `json:"transactions"`
}

// Overview は各エンティティの件数サマリを返す。
// GET /api/admin/overview
func (h *AdminHandler) Overview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.stats.Overview(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var resp overviewResponse
	resp.Users.Total = ov.Users
	resp.Users.Business = ov.BusinessUsers
	resp.Users.Customers = ov.Users - ov.BusinessUsers
	resp.Catalog.Categories = ov.Categories
	resp.Catalog.Products = ov.Products
	resp.Catalog.Offers = ov.Offers
	resp.Transactions.Orders = ov.Orders
	resp.Transactions.Limits = ov.Limits
	writeJSONResponse(w, http.StatusOK, resp)
}

type adminUserResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsBusiness  bool   `json:"isBusiness"`
	CompanyName string `json:"companyName,omitempty"`
	WebhookURL  string `json:"webhookUrl,omitempty"`
}

type createUserRequest struct {
	Name        string `json:"name"`
	IsBusiness  bool   `json:"isBusiness"`
	CompanyName string `json:"companyName"`
	B2BAPIKey   string `json:"b2bApiKey"`
	WebhookURL  string `json:"webhookUrl"`
}

func toAdminUserResponse(u *model.User) adminUserResponse {
	return adminUserResponse{
		ID:          u.ID,
		Name:        u.Name,
		IsBusiness:  u.IsBusiness,
		CompanyName: u.CompanyName,
		WebhookURL:  u.WebhookURL,
	}
}

// ListUsers はユーザー一覧を名前順で返す。
// GET /api/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := struct {
		Users []adminUserResponse `json:"users"`
	}{Users: make([]adminUserResponse, 0, len(users))}
	for _, u := range users {
		resp.Users = append(resp.Users, toAdminUserResponse(u))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

// CreateUser はユーザーを作成する。
// POST /api/admin/users
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("nameは必須です"))
		return
	}

	// Webhook URLは登録時点で検証する（配送時の再検証とは独立）
	if req.WebhookURL != "" && h.urlValidator != nil {
		if err := h.urlValidator.ValidateURL(req.WebhookURL); err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewInvalidInputError("webhookUrlが許可されないURLです"))
			return
		}
	}

	user := &model.User{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(req.Name),
		IsBusiness:  req.IsBusiness,
		CompanyName: strings.TrimSpace(req.CompanyName),
		B2BAPIKey:   req.B2BAPIKey,
		WebhookURL:  req.WebhookURL,
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, struct {
		User adminUserResponse `json:"user"`
	}{User: toAdminUserResponse(user)})
}

// DeleteUser はユーザーを削除する。
// DELETE /api/admin/users/{id}
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := h.users.FindByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if user == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError(id))
		return
	}

	if err := h.users.DeleteByID(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, okResponse())
}

type adminCategoryResponse struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ListCategories はカテゴリ一覧を返す。
// GET /api/admin/categories
func (h *AdminHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := struct {
		Categories []adminCategoryResponse `json:"categories"`
	}{Categories: make([]adminCategoryResponse, 0, len(cats))}
	for _, c := range cats {
		resp.Categories = append(resp.Categories, adminCategoryResponse{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
		})
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

// CreateCategory はカテゴリを作成する。
// POST /api/admin/categories
func (h *AdminHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !decodeJSONBody(w, r, &req) {
		return
	}

	cat, err := h.catalog.CreateCategory(r.Context(), strings.TrimSpace(req.Name), strings.TrimSpace(req.Description))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, struct {
		Category adminCategoryResponse `json:"category"`
	}{Category: adminCategoryResponse{ID: cat.ID, Name: cat.Name, Description: cat.Description}})
}

// DeleteCategory はカテゴリを削除する。
// DELETE /api/admin/categories/{id}
func (h *AdminHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("カテゴリIDは数値で指定してください"))
		return
	}

	if err := h.catalog.DeleteCategory(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, okResponse())
}

type adminProductResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	CategoryIDs []int           `json:"categoryIds"`
	Offers      []offerResponse `json:"offers"`
}

// ListProducts は商品一覧をオファー付きで返す。
// GET /api/admin/products
func (h *AdminHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := struct {
		Products []adminProductResponse `json:"products"`
	}{Products: make([]adminProductResponse, 0, len(products))}
	for _, p := range products {
		full, err := h.products.FindByIDWithOffers(r.Context(), p.ID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		if full == nil {
			continue
		}
		pr := adminProductResponse{
			ID:          full.ID,
			Name:        full.Name,
			Description: full.Description,
			CategoryIDs: full.CategoryIDs,
			Offers:      make([]offerResponse, 0, len(full.Offers)),
		}
		for _, o := range full.Offers {
			pr.Offers = append(pr.Offers, offerResponse{OfferID: o.ID, Seller: o.Seller, Price: o.Price})
		}
		resp.Products = append(resp.Products, pr)
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

type createProductRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CategoryIDs []int  `json:"categoryIds"`
}

// CreateProduct は商品を作成する。説明文はサニタイズして保存される。
// POST /api/admin/products
func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	product, err := h.catalog.CreateProduct(r.Context(), req.Name, req.Description, req.CategoryIDs)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, struct {
		Product productResponse `json:"product"`
	}{Product: productResponse{ProdID: product.ID, Name: product.Name, Description: product.Description}})
}

// UpdateProduct は商品の名前・説明を更新する。
// PATCH /api/admin/products/{productId}
func (h *AdminHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productId")

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !decodeJSONBody(w, r, &req) {
		return
	}

	product, err := h.catalog.UpdateProduct(r.Context(), id, req.Name, req.Description)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, struct {
		Product productResponse `json:"product"`
	}{Product: productResponse{ProdID: product.ID, Name: product.Name, Description: product.Description}})
}

// DeleteProduct は商品と紐付くオファーを削除する。
// DELETE /api/admin/products/{productId}
func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteProduct(r.Context(), chi.URLParam(r, "productId")); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, okResponse())
}

type addOfferRequest struct {
	Seller string  `json:"seller"`
	Price  float64 `json:"price"`
}

// AddOffer は商品にオファーを追加する。
// POST /api/admin/products/{productId}/offers
func (h *AdminHandler) AddOffer(w http.ResponseWriter, r *http.Request) {
	var req addOfferRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	offer, err := h.catalog.AddOffer(r.Context(), chi.URLParam(r, "productId"), req.Seller, req.Price)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, struct {
		Offer offerResponse `json:"offer"`
	}{Offer: offerResponse{OfferID: offer.ID, Seller: offer.Seller, Price: offer.Price}})
}

// RemoveOffer は商品からオファーを外して削除する。
// DELETE /api/admin/products/{productId}/offers/{offerId}
func (h *AdminHandler) RemoveOffer(w http.ResponseWriter, r *http.Request) {
	err := h.catalog.RemoveOffer(r.Context(), chi.URLParam(r, "productId"), chi.URLParam(r, "offerId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, okResponse())
}

type adminLimitResponse struct {
	ID        string  `json:"id"`
	Status    string  `json:"status"`
	ProdID    string  `json:"prodId"`
	Price     float64 `json:"price"`
	ValidTill string  `json:"validTill"`
	OrderID   string  `json:"orderId,omitempty"`
}

// ListLimits は指値一覧を返す（最大max件、デフォルト100件）。
// GET /api/admin/limits
func (h *AdminHandler) ListLimits(w http.ResponseWriter, r *http.Request) {
	max := 100
	if raw := r.URL.Query().Get("max"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("maxは正の整数で指定してください"))
			return
		}
		max = min(parsed, 500)
	}

	limits, err := h.limits.List(r.Context(), max)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := struct {
		Limits []adminLimitResponse `json:"limits"`
	}{Limits: make([]adminLimitResponse, 0, len(limits))}
	for _, l := range limits {
		resp.Limits = append(resp.Limits, adminLimitResponse{
			ID:        l.ID,
			Status:    string(l.Status),
			ProdID:    l.ProductID,
			Price:     l.Price,
			ValidTill: l.ValidTill.UTC().Format(time.RFC3339),
			OrderID:   l.OrderID,
		})
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func okResponse() any {
	return struct {
		OK bool `json:"ok"`
	}{OK: true}
}
