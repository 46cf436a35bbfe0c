package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/ichiba/internal/model"
)

// CatalogServiceInterface はカタログハンドラが利用するサービスのインターフェース。
type CatalogServiceInterface interface {
	ListProducts(ctx context.Context) ([]*model.Product, error)
	ListOffers(ctx context.Context, productID string) ([]*model.Offer, error)
}

// CatalogHandler は商品・オファーの公開APIハンドラ。
type CatalogHandler struct {
	service CatalogServiceInterface
}

// NewCatalogHandler はCatalogHandlerを生成する。
func NewCatalogHandler(service CatalogServiceInterface) *CatalogHandler {
	return &CatalogHandler{service: service}
}

type productResponse struct {
	ProdID      string `json:"prodId"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type listProductsResponse struct {
	Products []productResponse `json:"products"`
}

type listOffersRequest struct {
	ProdID string `json:"prodId"`
}

type offerResponse struct {
	OfferID string  `json:"offerId"`
	Seller  string  `json:"seller"`
	Price   float64 `json:"price"`
}

type listOffersResponse struct {
	Offers []offerResponse `json:"offers"`
}

// ListProducts は商品一覧を返す。
// POST /api/products/List
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := listProductsResponse{Products: make([]productResponse, 0, len(products))}
	for _, p := range products {
		resp.Products = append(resp.Products, productResponse{
			ProdID:      p.ID,
			Name:        p.Name,
			Description: p.Description,
		})
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

// ListOffers は指定商品のオファー一覧を返す。
// POST /api/offers/List
func (h *CatalogHandler) ListOffers(w http.ResponseWriter, r *http.Request) {
	var req listOffersRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.ProdID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("prodIdが空です"))
		return
	}

	offers, err := h.service.ListOffers(r.Context(), req.ProdID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := listOffersResponse{Offers: make([]offerResponse, 0, len(offers))}
	for _, o := range offers {
		resp.Offers = append(resp.Offers, offerResponse{
			OfferID: o.ID,
			Seller:  o.Seller,
			Price:   o.Price,
		})
	}
	writeJSONResponse(w, http.StatusOK, resp)
}
