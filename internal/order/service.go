// Package order は即時注文のサービス層を提供する。
package order

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/ichiba/internal/model"
	"github.com/hitoshi/ichiba/internal/repository"
)

// Service は即時注文のサービス層。
type Service struct {
	orderRepo repository.OrderRepository
	offerRepo repository.OfferRepository
	userRepo  repository.UserRepository
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	orderRepo repository.OrderRepository,
	offerRepo repository.OfferRepository,
	userRepo repository.UserRepository,
) *Service {
	return &Service{
		orderRepo: orderRepo,
		offerRepo: offerRepo,
		userRepo:  userRepo,
		now:       time.Now,
	}
}

// Place は指定オファーに対する即時注文をpending状態で作成し、
// ユーザーの注文リストに追加する。
// 注文の作成とユーザーへの追加はそれぞれ1文の書き込みであり、
// 全体としての原子性はない（追加失敗時は注文が未所有のまま残る）。
func (s *Service) Place(ctx context.Context, userID, offerID string) (*model.Order, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの確認に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(userID)
	}

	offer, err := s.offerRepo.FindByID(ctx, offerID)
	if err != nil {
		return nil, fmt.Errorf("オファーの確認に失敗しました: %w", err)
	}
	if offer == nil {
		return nil, model.NewOfferNotFoundError(offerID)
	}

	order := &model.Order{
		ID:        uuid.New().String(),
		Status:    model.OrderStatusPending,
		OfferID:   offerID,
		CreatedAt: s.now(),
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("注文の作成に失敗しました: %w", err)
	}

	if err := s.userRepo.AppendOrder(ctx, userID, order.ID); err != nil {
		// 注文は作成済みだが未所有。ロールバックはせず運用ログに残す。
		slog.Error("注文のユーザー紐付けに失敗しました",
			slog.String("order_id", order.ID),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("注文のユーザー紐付けに失敗しました: %w", err)
	}

	slog.Info("即時注文を受け付けました",
		slog.String("order_id", order.ID),
		slog.String("user_id", userID),
		slog.String("offer_id", offerID),
	)

	return order, nil
}
