// Package catalog は商品・オファー・カテゴリのカタログ管理を提供する。
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/ichiba/internal/model"
	"github.com/hitoshi/ichiba/internal/repository"
	"github.com/hitoshi/ichiba/internal/security"
)

// Service はカタログのサービス層。
// 商品説明は保存前にHTMLサニタイズを通す。
type Service struct {
	productRepo  repository.ProductRepository
	offerRepo    repository.OfferRepository
	categoryRepo repository.CategoryRepository
	sanitizer    security.ContentSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	productRepo repository.ProductRepository,
	offerRepo repository.OfferRepository,
	categoryRepo repository.CategoryRepository,
	sanitizer security.ContentSanitizerService,
) *Service {
	return &Service{
		productRepo:  productRepo,
		offerRepo:    offerRepo,
		categoryRepo: categoryRepo,
		sanitizer:    sanitizer,
	}
}

// ListProducts は全商品を返す。
func (s *Service) ListProducts(ctx context.Context) ([]*model.Product, error) {
	products, err := s.productRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("商品一覧の取得に失敗しました: %w", err)
	}
	return products, nil
}

// ListOffers は指定商品のオファー一覧を返す。
func (s *Service) ListOffers(ctx context.Context, productID string) ([]*model.Offer, error) {
	product, err := s.productRepo.FindByIDWithOffers(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	if product == nil {
		return nil, model.NewProductNotFoundError(productID)
	}
	return product.Offers, nil
}

// CreateProduct は商品を作成する。説明はサニタイズして保存する。
func (s *Service) CreateProduct(ctx context.Context, name, description string, categoryIDs []int) (*model.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.NewInvalidInputError("商品名は必須です")
	}

	product := &model.Product{
		ID:          uuid.New().String(),
		Name:        name,
		Description: s.sanitizer.Sanitize(strings.TrimSpace(description)),
		CategoryIDs: categoryIDs,
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("商品の作成に失敗しました: %w", err)
	}
	return product, nil
}

// UpdateProduct は商品の名前と説明を更新する。説明はサニタイズして保存する。
func (s *Service) UpdateProduct(ctx context.Context, id, name, description string) (*model.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	if product == nil {
		return nil, model.NewProductNotFoundError(id)
	}

	if trimmed := strings.TrimSpace(name); trimmed != "" {
		product.Name = trimmed
	}
	if description != "" {
		product.Description = s.sanitizer.Sanitize(strings.TrimSpace(description))
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("商品の更新に失敗しました: %w", err)
	}
	return product, nil
}

// DeleteProduct は商品と、その商品のみが参照するオファーを削除する。
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	product, err := s.productRepo.FindByIDWithOffers(ctx, id)
	if err != nil {
		return fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	if product == nil {
		return model.NewProductNotFoundError(id)
	}

	for _, offer := range product.Offers {
		if err := s.offerRepo.DeleteByID(ctx, offer.ID); err != nil {
			return fmt.Errorf("商品オファーの削除に失敗しました: %w", err)
		}
	}
	if err := s.productRepo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("商品の削除に失敗しました: %w", err)
	}
	return nil
}

// AddOffer は商品にオファーを追加する。
func (s *Service) AddOffer(ctx context.Context, productID, seller string, price float64) (*model.Offer, error) {
	seller = strings.TrimSpace(seller)
	if seller == "" {
		return nil, model.NewInvalidInputError("出品者名は必須です")
	}
	if price <= 0 {
		return nil, model.NewInvalidPriceError("オファー価格は0より大きい必要があります")
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	if product == nil {
		return nil, model.NewProductNotFoundError(productID)
	}

	offer := &model.Offer{
		ID:     uuid.New().String(),
		Seller: seller,
		Price:  price,
	}
	if err := s.offerRepo.Create(ctx, offer); err != nil {
		return nil, fmt.Errorf("オファーの作成に失敗しました: %w", err)
	}
	if err := s.productRepo.AttachOffer(ctx, productID, offer.ID); err != nil {
		return nil, fmt.Errorf("オファーの商品紐付けに失敗しました: %w", err)
	}
	return offer, nil
}

// RemoveOffer は商品からオファーを外して削除する。
func (s *Service) RemoveOffer(ctx context.Context, productID, offerID string) error {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	if product == nil {
		return model.NewProductNotFoundError(productID)
	}

	if err := s.productRepo.DetachOffer(ctx, productID, offerID); err != nil {
		return fmt.Errorf("オファーの商品紐付け解除に失敗しました: %w", err)
	}
	if err := s.offerRepo.DeleteByID(ctx, offerID); err != nil {
		return fmt.Errorf("オファーの削除に失敗しました: %w", err)
	}
	return nil
}

// ListCategories は全カテゴリを返す。
func (s *Service) ListCategories(ctx context.Context) ([]*model.Category, error) {
	categories, err := s.categoryRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("カテゴリ一覧の取得に失敗しました: %w", err)
	}
	return categories, nil
}

// CreateCategory はカテゴリを作成する。
func (s *Service) CreateCategory(ctx context.Context, name, description string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.NewInvalidInputError("カテゴリ名は必須です")
	}

	cat := &model.Category{
		Name:        name,
		Description: strings.TrimSpace(description),
	}
	if err := s.categoryRepo.Create(ctx, cat); err != nil {
		return nil, fmt.Errorf("カテゴリの作成に失敗しました: %w", err)
	}
	return cat, nil
}

// DeleteCategory はカテゴリを削除する。
func (s *Service) DeleteCategory(ctx context.Context, id int) error {
	if err := s.categoryRepo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("カテゴリの削除に失敗しました: %w", err)
	}
	return nil
}
