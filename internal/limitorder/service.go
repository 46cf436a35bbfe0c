package limitorder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/ichiba/internal/model"
	"github.com/hitoshi/ichiba/internal/repository"
)

// Service は指値注文の登録・キャンセルのサービス層。
type Service struct {
	limitRepo   repository.LimitRepository
	userRepo    repository.UserRepository
	productRepo repository.ProductRepository
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	limitRepo repository.LimitRepository,
	userRepo repository.UserRepository,
	productRepo repository.ProductRepository,
) *Service {
	return &Service{
		limitRepo:   limitRepo,
		userRepo:    userRepo,
		productRepo: productRepo,
		now:         time.Now,
	}
}

// Place は指値注文をpending状態で作成し、ユーザーの指値リストに追加する。
// 指値の作成とユーザーへの追加はそれぞれ1文の書き込みであり、
// 全体としての原子性はない（追加失敗時は指値が未所有のまま残る）。
func (s *Service) Place(ctx context.Context, userID, productID string, price float64, validTill time.Time) (*model.Limit, error) {
	if price <= 0 {
		return nil, model.NewInvalidPriceError("指値価格は0より大きい必要があります")
	}
	if !validTill.After(s.now()) {
		return nil, model.NewInvalidInputError("有効期限が過去です")
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの確認に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(userID)
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("商品の確認に失敗しました: %w", err)
	}
	if product == nil {
		return nil, model.NewProductNotFoundError(productID)
	}

	now := s.now()
	limit := &model.Limit{
		ID:        uuid.New().String(),
		Status:    model.LimitStatusPending,
		ValidTill: validTill,
		Price:     price,
		ProductID: productID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.limitRepo.Create(ctx, limit); err != nil {
		return nil, fmt.Errorf("指値の作成に失敗しました: %w", err)
	}

	if err := s.userRepo.AppendLimit(ctx, userID, limit.ID); err != nil {
		// 指値は作成済みだが未所有。ロールバックはせず運用ログに残す。
		slog.Error("指値のユーザー紐付けに失敗しました",
			slog.String("limit_id", limit.ID),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("指値のユーザー紐付けに失敗しました: %w", err)
	}

	slog.Info("指値注文を受け付けました",
		slog.String("limit_id", limit.ID),
		slog.String("user_id", userID),
		slog.String("product_id", productID),
		slog.Float64("price", price),
	)

	return limit, nil
}

// Cancel はpendingの指値をcanceledに遷移させる。
// 遷移は条件付きUPDATEで行い、すでに終端状態の場合はエラーを返す。
func (s *Service) Cancel(ctx context.Context, limitID string) (*model.Limit, error) {
	limit, err := s.limitRepo.FindByID(ctx, limitID)
	if err != nil {
		return nil, fmt.Errorf("指値の取得に失敗しました: %w", err)
	}
	if limit == nil {
		return nil, model.NewLimitNotFoundError(limitID)
	}

	if err := ValidateTransition(limit, model.LimitStatusCanceled, ""); err != nil {
		return nil, model.NewLimitNotPendingError(limitID, limit.Status)
	}

	ok, err := s.limitRepo.MarkCanceled(ctx, limitID, s.now())
	if err != nil {
		return nil, fmt.Errorf("指値のキャンセルに失敗しました: %w", err)
	}
	if !ok {
		// 読み取りとの間にスイープが約定・失効させた場合
		current, err := s.limitRepo.FindByID(ctx, limitID)
		if err != nil || current == nil {
			return nil, model.NewLimitNotPendingError(limitID, limit.Status)
		}
		return nil, model.NewLimitNotPendingError(limitID, current.Status)
	}

	limit.Status = model.LimitStatusCanceled
	slog.Info("指値注文をキャンセルしました", slog.String("limit_id", limitID))
	return limit, nil
}
