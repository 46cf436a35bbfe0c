package offersync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/ichiba/internal/model"
	"github.com/hitoshi/ichiba/internal/repository"
)

// --- モック ---

type mockBatchRepo struct {
	nextAcceptedFn   func(ctx context.Context) (*model.OfferSyncBatch, error)
	markProcessingFn func(ctx context.Context, id string, startedAt time.Time) (bool, error)
	finishFn         func(ctx context.Context, batch *model.OfferSyncBatch) error
}

func (m *mockBatchRepo) Create(ctx context.Context, batch *model.OfferSyncBatch) error { return nil }
func (m *mockBatchRepo) FindByID(ctx context.Context, id string) (*model.OfferSyncBatch, error) {
	return nil, nil
}
func (m *mockBatchRepo) FindByIdempotencyKey(ctx context.Context, sellerUserID, key string) (*model.OfferSyncBatch, error) {
	return nil, nil
}
func (m *mockBatchRepo) ListBySeller(ctx context.Context, sellerUserID string, max int) ([]*model.OfferSyncBatch, error) {
	return nil, nil
}
func (m *mockBatchRepo) NextAccepted(ctx context.Context) (*model.OfferSyncBatch, error) {
	if m.nextAcceptedFn != nil {
		return m.nextAcceptedFn(ctx)
	}
	return nil, nil
}
func (m *mockBatchRepo) MarkProcessing(ctx context.Context, id string, startedAt time.Time) (bool, error) {
	if m.markProcessingFn != nil {
		return m.markProcessingFn(ctx, id, startedAt)
	}
	return true, nil
}
func (m *mockBatchRepo) Finish(ctx context.Context, batch *model.OfferSyncBatch) error {
	if m.finishFn != nil {
		return m.finishFn(ctx, batch)
	}
	return nil
}

type mockProductRepo struct {
	findByIDFn    func(ctx context.Context, id string) (*model.Product, error)
	attachOfferFn func(ctx context.Context, pid, oid string) error
	detachOfferFn func(ctx context.Context, pid, oid string) error
}

func (m *mockProductRepo) FindByID(ctx context.Context, id string) (*model.Product, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return &model.Product{ID: id, Name: "widget"}, nil
}
func (m *mockProductRepo) FindByIDWithOffers(ctx context.Context, id string) (*model.Product, error) {
	return nil, nil
}
func (m *mockProductRepo) List(ctx context.Context) ([]*model.Product, error) { return nil, nil }
func (m *mockProductRepo) Create(ctx context.Context, p *model.Product) error { return nil }
func (m *mockProductRepo) Update(ctx context.Context, p *model.Product) error { return nil }
func (m *mockProductRepo) DeleteByID(ctx context.Context, id string) error    { return nil }
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
	findByIDFn   func(ctx context.Context, id string) (*model.Offer, error)
	createFn     func(ctx context.Context, offer *model.Offer) error
	updateFn     func(ctx context.Context, offer *model.Offer) error
	deleteByIDFn func(ctx context.Context, id string) error
}

func (m *mockOfferRepo) FindByID(ctx context.Context, id string) (*model.Offer, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockOfferRepo) Create(ctx context.Context, offer *model.Offer) error {
	if m.createFn != nil {
		return m.createFn(ctx, offer)
	}
	return nil
}
func (m *mockOfferRepo) Update(ctx context.Context, offer *model.Offer) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, offer)
	}
	return nil
}
func (m *mockOfferRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

type noopCollector struct{}

func (noopCollector) RecordMatch()                        {}
func (noopCollector) RecordExpired(count int64)           {}
func (noopCollector) RecordMatchFailure(reason string)    {}
func (noopCollector) RecordSweepLatency(d time.Duration)  {}
func (noopCollector) RecordOfferSyncItem(result string)   {}
func (noopCollector) RecordReportGenerated(status string) {}
func (noopCollector) RecordHTTPStatus(statusCode int)     {}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func acceptedBatch(items ...model.OfferSyncItem) *model.OfferSyncBatch {
	return &model.OfferSyncBatch{
		ID:           "batch-1",
		SellerUserID: "seller-1",
		Status:       model.BatchStatusAccepted,
		Items:        items,
	}
}

// --- テスト ---

// TestProcessor_RunOnce_NoBatchIsNoop は処理待ちバッチがない場合に
// 何もしないことを検証する。
func TestProcessor_RunOnce_NoBatchIsNoop(t *testing.T) {
	finished := false
	batchRepo := &mockBatchRepo{
		finishFn: func(ctx context.Context, batch *model.OfferSyncBatch) error {
			finished = true
			return nil
		},
	}

	p := NewProcessor(batchRepo, &mockProductRepo{}, &mockOfferRepo{}, noopCollector{}, testLogger())

	if err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if finished {
		t.Error("Finish should not be called without a batch")
	}
}

// TestProcessor_RunOnce_SkipsWhenAlreadyProcessing は条件付き遷移が
// 0行更新だった場合にバッチを無視することを検証する。
func TestProcessor_RunOnce_SkipsWhenAlreadyProcessing(t *testing.T) {
	finished := false
	batchRepo := &mockBatchRepo{
		nextAcceptedFn: func(ctx context.Context) (*model.OfferSyncBatch, error) {
			return acceptedBatch(), nil
		},
		markProcessingFn: func(ctx context.Context, id string, startedAt time.Time) (bool, error) {
			return false, nil
		},
		finishFn: func(ctx context.Context, batch *model.OfferSyncBatch) error {
			finished = true
			return nil
		},
	}

	p := NewProcessor(batchRepo, &mockProductRepo{}, &mockOfferRepo{}, noopCollector{}, testLogger())

	if err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if finished {
		t.Error("batch lost to another worker should not be finished here")
	}
}

// TestProcessor_RunOnce_UpsertCreatesOffer は新規UPSERT行でオファーが
// 作成・紐付けされ、行にオファーIDが記録されることを検証する。
func TestProcessor_RunOnce_UpsertCreatesOffer(t *testing.T) {
	batch := acceptedBatch(model.OfferSyncItem{
		LineNo:    1,
		ProductID: "prod-1",
		Action:    model.SyncActionUpsert,
		Seller:    "acme",
		Price:     45,
	})

	var finishedBatch *model.OfferSyncBatch
	batchRepo := &mockBatchRepo{
		nextAcceptedFn: func(ctx context.Context) (*model.OfferSyncBatch, error) {
			return batch, nil
		},
		finishFn: func(ctx context.Context, b *model.OfferSyncBatch) error {
			finishedBatch = b
			return nil
		},
	}

	var createdOffer *model.Offer
	var attachedProductID, attachedOfferID string
	offerRepo := &mockOfferRepo{
		createFn: func(ctx context.Context, offer *model.Offer) error {
			createdOffer = offer
			return nil
		},
	}
	productRepo := &mockProductRepo{
		attachOfferFn: func(ctx context.Context, pid, oid string) error {
			attachedProductID = pid
			attachedOfferID = oid
			return nil
		},
	}

	p := NewProcessor(batchRepo, productRepo, offerRepo, noopCollector{}, testLogger())

	if err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}

	if createdOffer == nil {
		t.Fatal("expected offer to be created")
	}
	if createdOffer.Seller != "acme" || createdOffer.Price != 45 {
		t.Errorf("created offer = (%s, %v), want (acme, 45)", createdOffer.Seller, createdOffer.Price)
	}
	if attachedProductID != "prod-1" || attachedOfferID != createdOffer.ID {
		t.Errorf("attach = (%s, %s), want (prod-1, %s)", attachedProductID, attachedOfferID, createdOffer.ID)
	}

	if finishedBatch == nil {
		t.Fatal("expected batch to be finished")
	}
	if finishedBatch.Status != model.BatchStatusDone {
		t.Errorf("batch status = %s, want DONE", finishedBatch.Status)
	}
	item := finishedBatch.Items[0]
	if item.Result != model.SyncResultOK || item.OfferID != createdOffer.ID {
		t.Errorf("item = (%s, %s), want (OK, %s)", item.Result, item.OfferID, createdOffer.ID)
	}
}

// TestProcessor_RunOnce_UpsertUpdatesExistingOffer は既存オファー指定の
// UPSERT行で価格と出品者が更新されることを検証する。
func TestProcessor_RunOnce_UpsertUpdatesExistingOffer(t *testing.T) {
	batch := acceptedBatch(model.OfferSyncItem{
		LineNo:    1,
		ProductID: "prod-1",
		Action:    model.SyncActionUpsert,
		OfferID:   "off-1",
		Seller:    "acme",
		Price:     39,
	})

	batchRepo := &mockBatchRepo{
		nextAcceptedFn: func(ctx context.Context) (*model.OfferSyncBatch, error) {
			return batch, nil
		},
	}

	var updated *model.Offer
	offerRepo := &mockOfferRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Offer, error) {
			return &model.Offer{ID: id, Seller: "old", Price: 50}, nil
		},
		updateFn: func(ctx context.Context, offer *model.Offer) error {
			updated = offer
			return nil
		},
	}

	p := NewProcessor(batchRepo, &mockProductRepo{}, offerRepo, noopCollector{}, testLogger())

	if err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}

	if updated == nil {
		t.Fatal("expected offer to be updated")
	}
	if updated.Price != 39 || updated.Seller != "acme" {
		t.Errorf("updated offer = (%s, %v), want (acme, 39)", updated.Seller, updated.Price)
	}
	if batch.Items[0].Result != model.SyncResultOK {
		t.Errorf("item result = %s, want OK", batch.Items[0].Result)
	}
}

// TestProcessor_RunOnce_RemoveDetachesAndDeletes はREMOVE行でオファーが
// 商品から外され削除されることを検証する。
func TestProcessor_RunOnce_RemoveDetachesAndDeletes(t *testing.T) {
	batch := acceptedBatch(model.OfferSyncItem{
		LineNo:    1,
		ProductID: "prod-1",
		Action:    model.SyncActionRemove,
		OfferID:   "off-1",
	})

	batchRepo := &mockBatchRepo{
		nextAcceptedFn: func(ctx context.Context) (*model.OfferSyncBatch, error) {
			return batch, nil
		},
	}

	detached := false
	deleted := false
	productRepo := &mockProductRepo{
		detachOfferFn: func(ctx context.Context, pid, oid string) error {
			detached = true
			return nil
		},
	}
	offerRepo := &mockOfferRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deleted = true
			return nil
		},
	}

	p := NewProcessor(batchRepo, productRepo, offerRepo, noopCollector{}, testLogger())

	if err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}

	if !detached || !deleted {
		t.Errorf("detached = %v, deleted = %v, want both true", detached, deleted)
	}
	if batch.Items[0].Result != model.SyncResultOK {
		t.Errorf("item result = %s, want OK", batch.Items[0].Result)
	}
}

// TestProcessor_RunOnce_InvalidItemsFailIndividually は入力不正の行が
// 行単位のERRORとなり、バッチ全体はDONEで終わることを検証する。
func TestProcessor_RunOnce_InvalidItemsFailIndividually(t *testing.T) {
	batch := acceptedBatch(
		model.OfferSyncItem{LineNo: 1, ProductID: "missing", Action: model.SyncActionUpsert, Price: 10},
		model.OfferSyncItem{LineNo: 2, ProductID: "prod-1", Action: model.SyncActionUpsert, Price: 0},
		model.OfferSyncItem{LineNo: 3, ProductID: "prod-1", Action: model.SyncActionRemove},
		model.OfferSyncItem{LineNo: 4, ProductID: "prod-1", Action: "REPLACE", Price: 10},
		model.OfferSyncItem{LineNo: 5, ProductID: "prod-1", Action: model.SyncActionUpsert, Seller: "acme", Price: 10},
	)

	var finishedBatch *model.OfferSyncBatch
	batchRepo := &mockBatchRepo{
		nextAcceptedFn: func(ctx context.Context) (*model.OfferSyncBatch, error) {
			return batch, nil
		},
		finishFn: func(ctx context.Context, b *model.OfferSyncBatch) error {
			finishedBatch = b
			return nil
		},
	}
	productRepo := &mockProductRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Product, error) {
			if id == "missing" {
				return nil, nil
			}
			return &model.Product{ID: id}, nil
		},
	}

	p := NewProcessor(batchRepo, productRepo, &mockOfferRepo{}, noopCollector{}, testLogger())

	if err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}

	if finishedBatch.Status != model.BatchStatusDone {
		t.Errorf("batch status = %s, want DONE", finishedBatch.Status)
	}

	wantResults := []model.SyncResult{
		model.SyncResultError,
		model.SyncResultError,
		model.SyncResultError,
		model.SyncResultError,
		model.SyncResultOK,
	}
	for i, want := range wantResults {
		if got := finishedBatch.Items[i].Result; got != want {
			t.Errorf("item %d result = %s, want %s", i+1, got, want)
		}
	}
}

// TestProcessor_RunOnce_StorageErrorFailsBatch はストレージ層のエラーで
// バッチ全体がFAILEDになることを検証する。
func TestProcessor_RunOnce_StorageErrorFailsBatch(t *testing.T) {
	batch := acceptedBatch(model.OfferSyncItem{
		LineNo:    1,
		ProductID: "prod-1",
		Action:    model.SyncActionUpsert,
		Seller:    "acme",
		Price:     10,
	})

	var finishedBatch *model.OfferSyncBatch
	batchRepo := &mockBatchRepo{
		nextAcceptedFn: func(ctx context.Context) (*model.OfferSyncBatch, error) {
			return batch, nil
		},
		finishFn: func(ctx context.Context, b *model.OfferSyncBatch) error {
			finishedBatch = b
			return nil
		},
	}
	offerRepo := &mockOfferRepo{
		createFn: func(ctx context.Context, offer *model.Offer) error {
			return errors.New("db down")
		},
	}

	p := NewProcessor(batchRepo, &mockProductRepo{}, offerRepo, noopCollector{}, testLogger())

	if err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}

	if finishedBatch == nil {
		t.Fatal("expected batch to be finished")
	}
	if finishedBatch.Status != model.BatchStatusFailed {
		t.Errorf("batch status = %s, want FAILED", finishedBatch.Status)
	}
}
