// Package report はB2B出品者向け売上レポートの生成ワーカーを提供する。
// 生成待ち（QUEUED）のレポート要求をキューから取り出し、期間内の
// 注文を出品者名で絞り込んで行と集計を生成する。
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/ichiba/internal/metrics"
	"github.com/hitoshi/ichiba/internal/model"
	"github.com/hitoshi/ichiba/internal/repository"
)

// ReportNotifier はレポート完成通知の送信インターフェース。
type ReportNotifier interface {
	// NotifyReportReady は出品者のWebhook URLへ完成通知を送信する。
	NotifyReportReady(ctx context.Context, user *model.User, report *model.SalesReport) error
}

// Generator は売上レポートの生成ワーカー。
// 一度に1件を処理し、条件付きUPDATEによるRUNNING遷移で二重処理を防止する。
type Generator struct {
	reportRepo  repository.ReportRepository
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	userRepo    repository.UserRepository
	notifier    ReportNotifier
	collector   metrics.MetricsCollector
	logger      *slog.Logger
	now         func() time.Time
}

// NewGenerator はGeneratorの新しいインスタンスを生成する。
// notifierはnilでもよく、その場合は通知を行わない。
func NewGenerator(
	reportRepo repository.ReportRepository,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	userRepo repository.UserRepository,
	notifier ReportNotifier,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Generator {
	return &Generator{
		reportRepo:  reportRepo,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		userRepo:    userRepo,
		notifier:    notifier,
		collector:   collector,
		logger:      logger,
		now:         time.Now,
	}
}

// Start は指定間隔のティッカーでワーカーを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (g *Generator) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	g.logger.Info("売上レポートワーカーを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if err := g.RunOnce(ctx); err != nil {
		g.logger.Error("レポート生成サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			g.logger.Info("売上レポートワーカーを停止しました")
			return
		case <-ticker.C:
			if err := g.RunOnce(ctx); err != nil {
				g.logger.Error("レポート生成サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は最も古いQUEUEDレポートを1件生成する。
// 対象がない場合は何もしない。
func (g *Generator) RunOnce(ctx context.Context) error {
	report, err := g.reportRepo.NextQueued(ctx)
	if err != nil {
		return fmt.Errorf("生成待ちレポートの取得に失敗: %w", err)
	}
	if report == nil {
		return nil
	}

	// QUEUEDでなくなっていた場合は二重処理防止のため無視する
	ok, err := g.reportRepo.MarkRunning(ctx, report.ID, g.now())
	if err != nil {
		return fmt.Errorf("レポートのRUNNING遷移に失敗: %w", err)
	}
	if !ok {
		return nil
	}

	g.logger.Info("売上レポートの生成を開始します",
		slog.String("report_id", report.ID),
		slog.String("seller_user_id", report.SellerUserID),
	)

	seller, err := g.generate(ctx, report)
	if err != nil {
		g.collector.RecordReportGenerated(string(model.ReportStatusFailed))
		g.logger.Error("売上レポートの生成に失敗しました",
			slog.String("report_id", report.ID),
			slog.String("error", err.Error()),
		)
		if failErr := g.reportRepo.MarkFailed(ctx, report.ID, "report generation failed", g.now()); failErr != nil {
			return fmt.Errorf("レポートのFAILED遷移に失敗: %w", failErr)
		}
		return nil
	}

	g.collector.RecordReportGenerated(string(model.ReportStatusReady))
	g.logger.Info("売上レポートの生成が完了しました",
		slog.String("report_id", report.ID),
		slog.Int("line_count", report.Totals.OrderCount),
		slog.Float64("revenue", report.Totals.Revenue),
	)

	g.deliver(ctx, seller, report)
	return nil
}

// generate は期間内の注文から行と集計を組み立て、READYとして保存する。
// 戻り値は出品者ユーザー（通知先の解決に使用）。
func (g *Generator) generate(ctx context.Context, report *model.SalesReport) (*model.User, error) {
	seller, err := g.userRepo.FindByID(ctx, report.SellerUserID)
	if err != nil {
		return nil, fmt.Errorf("出品者の取得に失敗: %w", err)
	}
	if seller == nil {
		return nil, fmt.Errorf("出品者が存在しません: %s", report.SellerUserID)
	}
	sellerName := seller.SellerName()

	orders, err := g.orderRepo.ListWithOfferBetween(ctx, report.From, report.To)
	if err != nil {
		return nil, fmt.Errorf("期間内注文の取得に失敗: %w", err)
	}

	// 出品者名での絞り込み
	var sellerOrders []repository.OrderWithOffer
	var offerIDs []string
	for _, ow := range orders {
		if ow.Offer.Seller != sellerName {
			continue
		}
		sellerOrders = append(sellerOrders, ow)
		offerIDs = append(offerIDs, ow.Offer.ID)
	}

	// オファー→商品の対応表
	productByOffer := map[string]repository.ProductRef{}
	if len(offerIDs) > 0 {
		productByOffer, err = g.productRepo.MapByOfferIDs(ctx, offerIDs)
		if err != nil {
			return nil, fmt.Errorf("商品対応表の取得に失敗: %w", err)
		}
	}

	var revenue float64
	lines := make([]model.SalesReportLine, 0, len(sellerOrders))
	for i, ow := range sellerOrders {
		revenue += ow.Offer.Price
		line := model.SalesReportLine{
			LineNo:    i + 1,
			OrderID:   ow.Order.ID,
			CreatedAt: ow.Order.CreatedAt,
			OfferID:   ow.Offer.ID,
			Seller:    ow.Offer.Seller,
			Price:     ow.Offer.Price,
		}
		if ref, found := productByOffer[ow.Offer.ID]; found {
			line.ProductID = ref.ID
			line.ProductName = ref.Name
		}
		lines = append(lines, line)
	}

	report.Lines = lines
	report.Totals = model.SalesReportTotals{
		OrderCount: len(lines),
		Revenue:    revenue,
	}
	report.Status = model.ReportStatusReady
	report.FinishedAt = g.now()

	if err := g.reportRepo.SaveResult(ctx, report); err != nil {
		return nil, fmt.Errorf("レポート結果の保存に失敗: %w", err)
	}
	return seller, nil
}

// deliver は出品者のWebhook URLへ完成通知を送信し、到達日時を記録する。
// 通知の失敗はレポートの状態に影響しない。
func (g *Generator) deliver(ctx context.Context, seller *model.User, report *model.SalesReport) {
	if g.notifier == nil || seller.WebhookURL == "" {
		return
	}

	if err := g.notifier.NotifyReportReady(ctx, seller, report); err != nil {
		g.logger.Error("レポート完成通知の送信に失敗しました",
			slog.String("report_id", report.ID),
			slog.String("webhook_url", seller.WebhookURL),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := g.reportRepo.MarkReceived(ctx, report.ID, g.now()); err != nil {
		g.logger.Error("通知到達日時の記録に失敗しました",
			slog.String("report_id", report.ID),
			slog.String("error", err.Error()),
		)
	}
}
