// Package offersync はB2B出品者のオファー一括同期バッチの処理を提供する。
// 受付済み（ACCEPTED）のバッチをキューから取り出し、行ごとに
// オファーのUPSERT/REMOVEを適用して結果を記録する。
package offersync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/ichiba/internal/metrics"
	"github.com/hitoshi/ichiba/internal/model"
	"github.com/hitoshi/ichiba/internal/repository"
)

// Processor はオファー同期バッチのワーカー。
// 一度に1バッチを処理し、条件付きUPDATEによるPROCESSING遷移で
// 二重処理を防止する。
type Processor struct {
	batchRepo   repository.BatchRepository
	productRepo repository.ProductRepository
	offerRepo   repository.OfferRepository
	collector   metrics.MetricsCollector
	logger      *slog.Logger
	now         func() time.Time
}

// NewProcessor はProcessorの新しいインスタンスを生成する。
func NewProcessor(
	batchRepo repository.BatchRepository,
	productRepo repository.ProductRepository,
	offerRepo repository.OfferRepository,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		batchRepo:   batchRepo,
		productRepo: productRepo,
		offerRepo:   offerRepo,
		collector:   collector,
		logger:      logger,
		now:         time.Now,
	}
}

// Start は指定間隔のティッカーでワーカーを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (p *Processor) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.logger.Info("オファー同期ワーカーを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if err := p.RunOnce(ctx); err != nil {
		p.logger.Error("オファー同期サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("オファー同期ワーカーを停止しました")
			return
		case <-ticker.C:
			if err := p.RunOnce(ctx); err != nil {
				p.logger.Error("オファー同期サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は最も古いACCEPTEDバッチを1件処理する。
// 対象がない場合は何もしない。
func (p *Processor) RunOnce(ctx context.Context) error {
	batch, err := p.batchRepo.NextAccepted(ctx)
	if err != nil {
		return fmt.Errorf("処理待ちバッチの取得に失敗: %w", err)
	}
	if batch == nil {
		return nil
	}

	// ACCEPTEDでなくなっていた場合は二重処理防止のため無視する
	ok, err := p.batchRepo.MarkProcessing(ctx, batch.ID, p.now())
	if err != nil {
		return fmt.Errorf("バッチのPROCESSING遷移に失敗: %w", err)
	}
	if !ok {
		return nil
	}

	p.logger.Info("オファー同期バッチの処理を開始します",
		slog.String("batch_id", batch.ID),
		slog.String("seller_user_id", batch.SellerUserID),
		slog.Int("item_count", len(batch.Items)),
	)

	status := model.BatchStatusDone
	if err := p.processItems(ctx, batch); err != nil {
		p.logger.Error("オファー同期バッチの処理に失敗しました",
			slog.String("batch_id", batch.ID),
			slog.String("error", err.Error()),
		)
		status = model.BatchStatusFailed
	}

	batch.Status = status
	batch.FinishedAt = p.now()
	if err := p.batchRepo.Finish(ctx, batch); err != nil {
		return fmt.Errorf("バッチ結果の保存に失敗: %w", err)
	}

	p.logger.Info("オファー同期バッチの処理が完了しました",
		slog.String("batch_id", batch.ID),
		slog.String("status", string(status)),
	)

	return nil
}

// processItems はバッチの全行を順に適用する。
// 入力不正は行単位のERRORとして記録し、続行する。
// ストレージ層のエラーはバッチ全体の失敗として扱う。
func (p *Processor) processItems(ctx context.Context, batch *model.OfferSyncBatch) error {
	for i := range batch.Items {
		item := &batch.Items[i]

		product, err := p.productRepo.FindByID(ctx, item.ProductID)
		if err != nil {
			return fmt.Errorf("商品の取得に失敗: %w", err)
		}
		if product == nil {
			p.failItem(item, model.ErrCodeProductNotFound, "product not found")
			continue
		}

		switch item.Action {
		case model.SyncActionUpsert:
			if err := p.applyUpsert(ctx, item); err != nil {
				return err
			}
		case model.SyncActionRemove:
			if err := p.applyRemove(ctx, item); err != nil {
				return err
			}
		default:
			p.failItem(item, model.ErrCodeInvalidInput, "invalid action")
		}
	}
	return nil
}

func (p *Processor) applyUpsert(ctx context.Context, item *model.OfferSyncItem) error {
	if item.Price <= 0 {
		p.failItem(item, model.ErrCodeInvalidPrice, "price must be > 0 for UPSERT")
		return nil
	}

	if item.OfferID != "" {
		// 既存オファーの更新
		offer, err := p.offerRepo.FindByID(ctx, item.OfferID)
		if err != nil {
			return fmt.Errorf("オファーの取得に失敗: %w", err)
		}
		if offer == nil {
			p.failItem(item, model.ErrCodeOfferNotFound, "offer not found")
			return nil
		}

		offer.Price = item.Price
		if item.Seller != "" {
			offer.Seller = item.Seller
		}
		if err := p.offerRepo.Update(ctx, offer); err != nil {
			return fmt.Errorf("オファーの更新に失敗: %w", err)
		}

		p.okItem(item, "offer updated")
		return nil
	}

	// 新規オファーの作成と商品への紐付け
	offer := &model.Offer{
		ID:     uuid.New().String(),
		Seller: item.Seller,
		Price:  item.Price,
	}
	if err := p.offerRepo.Create(ctx, offer); err != nil {
		return fmt.Errorf("オファーの作成に失敗: %w", err)
	}
	if err := p.productRepo.AttachOffer(ctx, item.ProductID, offer.ID); err != nil {
		return fmt.Errorf("オファーの商品紐付けに失敗: %w", err)
	}

	item.OfferID = offer.ID
	p.okItem(item, "offer created")
	return nil
}

func (p *Processor) applyRemove(ctx context.Context, item *model.OfferSyncItem) error {
	if item.OfferID == "" {
		p.failItem(item, model.ErrCodeInvalidInput, "offerId is required for REMOVE")
		return nil
	}

	if err := p.productRepo.DetachOffer(ctx, item.ProductID, item.OfferID); err != nil {
		return fmt.Errorf("オファーの商品紐付け解除に失敗: %w", err)
	}
	if err := p.offerRepo.DeleteByID(ctx, item.OfferID); err != nil {
		return fmt.Errorf("オファーの削除に失敗: %w", err)
	}

	p.okItem(item, "offer removed")
	return nil
}

func (p *Processor) okItem(item *model.OfferSyncItem, message string) {
	item.Result = model.SyncResultOK
	item.Message = message
	p.collector.RecordOfferSyncItem(string(model.SyncResultOK))
}

func (p *Processor) failItem(item *model.OfferSyncItem, errorCode, message string) {
	item.Result = model.SyncResultError
	item.ErrorCode = errorCode
	item.Message = message
	p.collector.RecordOfferSyncItem(string(model.SyncResultError))
}
