package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/hitoshi/ichiba/internal/model"
	"github.com/hitoshi/ichiba/internal/repository"
	"github.com/hitoshi/ichiba/internal/security"
)

type mockProductRepo struct {
	findByIDFn           func(ctx context.Context, id string) (*model.Product, error)
	findByIDWithOffersFn func(ctx context.Context, id string) (*model.Product, error)
	createFn             func(ctx context.Context, p *model.Product) error
	updateFn             func(ctx context.Context, p *model.Product) error
	attachOfferFn        func(ctx context.Context, pid, oid string) error
	detachOfferFn        func(ctx context.Context, pid, oid string) error
}

func (m *mockProductRepo) FindByID(ctx context.Context, id string) (*model.Product, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return &model.Product{ID: id, Name: "widget"}, nil
}
func (m *mockProductRepo) FindByIDWithOffers(ctx context.Context, id string) (*model.Product, error) {
	if m.findByIDWithOffersFn != nil {
		return m.findByIDWithOffersFn(ctx, id)
	}
	return nil, nil
}
func (m *mockProductRepo) List(ctx context.Context) ([]*model.Product, error) { return nil, nil }
func (m *mockProductRepo) Create(ctx context.Context, p *model.Product) error {
	if m.createFn != nil {
		return m.createFn(ctx, p)
	}
	return nil
}
func (m *mockProductRepo) Update(ctx context.Context, p *model.Product) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, p)
	}
	return nil
}
func (m *mockProductRepo) DeleteByID(ctx context.Context, id string) error { return nil }
func (m *mockProductRepo) AttachOffer(ctx context.Context, pid, oid string) error {
	if m.attachOfferFn != nil {
		return m.attachOfferFn(ctx, pid, oid)
	}
	return nil
}
func (m *mockProductRepo) DetachOffer(ctx context.Context, pid, oid string) error {
	if m.detachOfferFn != nil {
		return m.detachOfferFn(ctx, pid, oid)
	}
	return nil
}
func (m *mockProductRepo) MapByOfferIDs(ctx context.Context, ids []string) (map[string]repository.ProductRef, error) {
	return nil, nil
}

type mockOfferRepo struct {
	createFn     func(ctx context.Context, offer *model.Offer) error
	deleteByIDFn func(ctx context.Context, id string) error
}

func (m *mockOfferRepo) FindByID(ctx context.Context, id string) (*model.Offer, error) {
	return nil, nil
}
func (m *mockOfferRepo) Create(ctx context.Context, offer *model.Offer) error {
	if m.createFn != nil {
		return m.createFn(ctx, offer)
	}
	return nil
}
func (m *mockOfferRepo) Update(ctx context.Context, offer *model.Offer) error { return nil }
func (m *mockOfferRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

type mockCategoryRepo struct {
	createFn func(ctx context.Context, cat *model.Category) error
}

func (m *mockCategoryRepo) List(ctx context.Context) ([]*model.Category, error) { return nil, nil }
func (m *mockCategoryRepo) Create(ctx context.Context, cat *model.Category) error {
	if m.createFn != nil {
		return m.createFn(ctx, cat)
	}
	return nil
}
func (m *mockCategoryRepo) DeleteByID(ctx context.Context, id int) error { return nil }

func newTestService(p *mockProductRepo, o *mockOfferRepo, c *mockCategoryRepo) *Service {
	return NewService(p, o, c, security.NewContentSanitizer())
}

// TestService_CreateProduct_SanitizesDescription は商品説明から
// 危険なHTMLが除去されることを検証する。
func TestService_CreateProduct_SanitizesDescription(t *testing.T) {
	var created *model.Product
	productRepo := &mockProductRepo{
		createFn: func(ctx context.Context, p *model.Product) error {
			created = p
			return nil
		},
	}

	svc := newTestService(productRepo, &mockOfferRepo{}, &mockCategoryRepo{})

	desc := `<p>良い商品</p><script>alert('xss')</script>`
	if _, err := svc.CreateProduct(context.Background(), "widget", desc, nil); err != nil {
		t.Fatalf("CreateProduct returned error: %v", err)
	}

	if created == nil {
		t.Fatal("expected product to be created")
	}
	if strings.Contains(created.Description, "script") {
		t.Errorf("description not sanitized: %s", created.Description)
	}
	if !strings.Contains(created.Description, "良い商品") {
		t.Errorf("safe content should be kept: %s", created.Description)
	}
}

// TestService_CreateProduct_RequiresName は商品名が必須であることを検証する。
func TestService_CreateProduct_RequiresName(t *testing.T) {
	svc := newTestService(&mockProductRepo{}, &mockOfferRepo{}, &mockCategoryRepo{})

	if _, err := svc.CreateProduct(context.Background(), "   ", "desc", nil); err == nil {
		t.Error("empty name should be rejected")
	}
}

// TestService_ListOffers_UnknownProduct は未知の商品IDでエラーになることを検証する。
func TestService_ListOffers_UnknownProduct(t *testing.T) {
	svc := newTestService(&mockProductRepo{}, &mockOfferRepo{}, &mockCategoryRepo{})

	if _, err := svc.ListOffers(context.Background(), "nope"); err == nil {
		t.Error("expected error for unknown product")
	}
}

// TestService_AddOffer_ValidatesInput は出品者名と価格の検証を確認する。
func TestService_AddOffer_ValidatesInput(t *testing.T) {
	svc := newTestService(&mockProductRepo{}, &mockOfferRepo{}, &mockCategoryRepo{})

	if _, err := svc.AddOffer(context.Background(), "prod-1", "", 10); err == nil {
		t.Error("empty seller should be rejected")
	}
	if _, err := svc.AddOffer(context.Background(), "prod-1", "acme", 0); err == nil {
		t.Error("non-positive price should be rejected")
	}
}

// TestService_AddOffer_CreatesAndAttaches はオファーが作成され
// 商品に紐付けられることを検証する。
func TestService_AddOffer_CreatesAndAttaches(t *testing.T) {
	var attachedProduct, attachedOffer string
	productRepo := &mockProductRepo{
		attachOfferFn: func(ctx context.Context, pid, oid string) error {
			attachedProduct = pid
			attachedOffer = oid
			return nil
		},
	}
	offerRepo := &mockOfferRepo{}

	svc := newTestService(productRepo, offerRepo, &mockCategoryRepo{})

	offer, err := svc.AddOffer(context.Background(), "prod-1", "acme", 45)
	if err != nil {
		t.Fatalf("AddOffer returned error: %v", err)
	}
	if attachedProduct != "prod-1" || attachedOffer != offer.ID {
		t.Errorf("attach = (%s, %s), want (prod-1, %s)", attachedProduct, attachedOffer, offer.ID)
	}
}

// TestService_DeleteProduct_RemovesOwnedOffers は商品削除でその商品の
// オファーも削除されることを検証する。
func TestService_DeleteProduct_RemovesOwnedOffers(t *testing.T) {
	productRepo := &mockProductRepo{
		findByIDWithOffersFn: func(ctx context.Context, id string) (*model.Product, error) {
			return &model.Product{
				ID:     id,
				Offers: []*model.Offer{{ID: "off-1"}, {ID: "off-2"}},
			}, nil
		},
	}

	var deleted []string
	offerRepo := &mockOfferRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deleted = append(deleted, id)
			return nil
		},
	}

	svc := newTestService(productRepo, offerRepo, &mockCategoryRepo{})

	if err := svc.DeleteProduct(context.Background(), "prod-1"); err != nil {
		t.Fatalf("DeleteProduct returned error: %v", err)
	}
	if len(deleted) != 2 {
		t.Errorf("deleted %d offers, want 2", len(deleted))
	}
}

// TestService_CreateCategory_RequiresName はカテゴリ名が必須であることを検証する。
func TestService_CreateCategory_RequiresName(t *testing.T) {
	svc := newTestService(&mockProductRepo{}, &mockOfferRepo{}, &mockCategoryRepo{})

	if _, err := svc.CreateCategory(context.Background(), "", "desc"); err == nil {
		t.Error("empty name should be rejected")
	}
}
