package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/ichiba/internal/limitorder"
	"github.com/hitoshi/ichiba/internal/metrics"
	"github.com/hitoshi/ichiba/internal/model"
	"github.com/hitoshi/ichiba/internal/repository"
)

// Matcher は個別指値のマッチングと注文生成を行う。
// 商品のオファー集合から天井価格以下の最安オファーを選び、
// 注文を生成して指値をfulfilledに遷移させる。
// 遷移のコミットは条件付きUPDATEであり、読み取り後に他の経路が
// 状態を変えていた場合はそのまま打ち切る。
type Matcher struct {
	limitRepo   repository.LimitRepository
	orderRepo   repository.OrderRepository
	userRepo    repository.UserRepository
	productRepo repository.ProductRepository
	collector   metrics.MetricsCollector
	logger      *slog.Logger
	now         func() time.Time
}

// NewMatcher はMatcherの新しいインスタンスを生成する。
func NewMatcher(
	limitRepo repository.LimitRepository,
	orderRepo repository.OrderRepository,
	userRepo repository.UserRepository,
	productRepo repository.ProductRepository,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Matcher {
	return &Matcher{
		limitRepo:   limitRepo,
		orderRepo:   orderRepo,
		userRepo:    userRepo,
		productRepo: productRepo,
		collector:   collector,
		logger:      logger,
		now:         time.Now,
	}
}

// Match は1件の指値のマッチングを試みる。
// 商品が存在しない、オファーがない、適合オファーがない場合は
// 何もせずnilを返す（指値はpendingのまま次サイクルに持ち越す）。
// LimitMatcherServiceインターフェースを実装する。
func (m *Matcher) Match(ctx context.Context, limit *model.Limit) error {
	if limit.Status != model.LimitStatusPending {
		return nil
	}

	// 商品とオファーの読み込み
	product, err := m.productRepo.FindByIDWithOffers(ctx, limit.ProductID)
	if err != nil {
		return fmt.Errorf("商品の読み込みに失敗: %w", err)
	}
	if product == nil {
		m.logger.Warn("指値の参照先商品が存在しません",
			slog.String("limit_id", limit.ID),
			slog.String("product_id", limit.ProductID),
		)
		return nil
	}
	if len(product.Offers) == 0 {
		return nil
	}

	// オファーランキング
	offer := limitorder.CheapestOffer(product.Offers, limit.Price)
	if offer == nil {
		return nil
	}

	// 購入者（指値の所有ユーザー）の特定
	buyer, err := m.userRepo.FindByLimitID(ctx, limit.ID)
	if err != nil {
		return fmt.Errorf("購入者の特定に失敗: %w", err)
	}
	if buyer == nil {
		m.logger.Warn("指値の所有ユーザーが見つかりません",
			slog.String("limit_id", limit.ID),
		)
		return nil
	}

	// 注文生成
	order := &model.Order{
		ID:        uuid.New().String(),
		Status:    model.OrderStatusPending,
		OfferID:   offer.ID,
		CreatedAt: m.now(),
	}
	if err := m.orderRepo.Create(ctx, order); err != nil {
		return fmt.Errorf("注文の作成に失敗: %w", err)
	}

	// fulfilled遷移のコミット。条件付きUPDATEがpending再確認を兼ねる。
	// ユーザー紐付けはコミット成功後に行う。放棄したマッチの注文への
	// リンクが購入者に残らないようにするため。
	ok, err := m.limitRepo.MarkFulfilled(ctx, limit.ID, order.ID, m.now())
	if err != nil {
		return fmt.Errorf("約定遷移のコミットに失敗: %w", err)
	}
	if !ok {
		// 読み取りとコミットの間にキャンセル等が割り込んだ。
		// マッチは放棄し、生成済みの注文はキャンセルを試みる。
		m.collector.RecordMatchFailure("stale_state")
		m.logger.Warn("指値の状態が読み取り後に変更されたためマッチを放棄します",
			slog.String("limit_id", limit.ID),
			slog.String("order_id", order.ID),
		)
		if _, cancelErr := m.orderRepo.MarkCanceled(ctx, order.ID); cancelErr != nil {
			m.logger.Error("放棄したマッチの注文キャンセルに失敗しました",
				slog.String("order_id", order.ID),
				slog.String("error", cancelErr.Error()),
			)
		}
		return nil
	}

	// 注文のユーザー紐付け。失敗しても注文のロールバックはせず、
	// 手動リコンシリエーション対象として運用ログに残す。
	if err := m.userRepo.AppendOrder(ctx, buyer.ID, order.ID); err != nil {
		m.logger.Error("注文のユーザー紐付けに失敗しました",
			slog.String("order_id", order.ID),
			slog.String("user_id", buyer.ID),
			slog.String("limit_id", limit.ID),
			slog.String("error", err.Error()),
		)
	}

	limit.Status = model.LimitStatusFulfilled
	limit.OrderID = order.ID

	m.collector.RecordMatch()
	m.logger.Info("指値注文が約定しました",
		slog.String("limit_id", limit.ID),
		slog.String("order_id", order.ID),
		slog.String("offer_id", offer.ID),
		slog.Float64("limit_price", limit.Price),
		slog.Float64("offer_price", offer.Price),
	)

	return nil
}
