// Package sweep は指値注文のマッチングスイープを提供する。
// 一定間隔で起動し、期限切れ指値の失効処理と、pending指値の
// 最安オファーへのマッチング・約定処理を実行する。
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/ichiba/internal/metrics"
	"github.com/hitoshi/ichiba/internal/model"
	"github.com/hitoshi/ichiba/internal/repository"
)

// LimitMatcherService は個別指値のマッチング実行インターフェース。
type LimitMatcherService interface {
	// Match は1件の指値をオファーにマッチングし、約定を試みる。
	// 適合オファーがない場合は何もせずnilを返す。
	Match(ctx context.Context, limit *model.Limit) error
}

// Sweeper はマッチングスイープのスケジューリングを行う。
// 各サイクルは失効パスとマッチングパスの2段階で構成され、
// 失効パスを必ず先に実行する。失効済みの指値が同一サイクルで
// 約定することはない。
type Sweeper struct {
	limitRepo repository.LimitRepository
	matcher   LimitMatcherService
	collector metrics.MetricsCollector
	logger    *slog.Logger
	now       func() time.Time
}

// NewSweeper はSweeperの新しいインスタンスを生成する。
func NewSweeper(
	limitRepo repository.LimitRepository,
	matcher LimitMatcherService,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		limitRepo: limitRepo,
		matcher:   matcher,
		collector: collector,
		logger:    logger,
		now:       time.Now,
	}
}

// Start は指定間隔のティッカーでスイープを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("マッチングスイープを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("スイープサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("マッチングスイープを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("スイープサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce はスイープを1サイクル実行する。
// 失効パスは1文の一括UPDATEで行い、続くマッチングパスは
// pending指値をID順に1件ずつ処理する。1件の失敗やpanicは
// 同サイクル内の他の指値の処理に影響しない。
func (s *Sweeper) RunOnce(ctx context.Context) error {
	start := s.now()

	// 失効パス: valid_tillを過ぎたpending指値を一括でexpiredに遷移
	expired, err := s.limitRepo.ExpireOverdue(ctx, start)
	if err != nil {
		return fmt.Errorf("指値の失効処理に失敗: %w", err)
	}
	if expired > 0 {
		s.collector.RecordExpired(expired)
		s.logger.Info("期限切れの指値を失効させました",
			slog.Int64("expired_count", expired),
		)
	}

	// マッチングパス
	limits, err := s.limitRepo.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("pending指値の取得に失敗: %w", err)
	}

	if len(limits) == 0 {
		s.collector.RecordSweepLatency(time.Since(start))
		return nil
	}

	s.logger.Info("マッチングパスを開始します",
		slog.Int("pending_count", len(limits)),
	)

	matched := 0
	for _, limit := range limits {
		if ctx.Err() != nil {
			break
		}
		if s.matchOne(ctx, limit) {
			matched++
		}
	}

	duration := time.Since(start)
	s.collector.RecordSweepLatency(duration)
	s.logger.Info("スイープサイクルが完了しました",
		slog.Int("pending_count", len(limits)),
		slog.Int("matched_count", matched),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// matchOne は1件の指値のマッチングをpanic回復境界の中で実行する。
func (s *Sweeper) matchOne(ctx context.Context, limit *model.Limit) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			s.collector.RecordMatchFailure("panic")
			s.logger.Error("指値マッチング中にpanicが発生しました",
				slog.String("limit_id", limit.ID),
				slog.Any("panic", r),
			)
		}
	}()

	before := limit.Status
	if err := s.matcher.Match(ctx, limit); err != nil {
		s.collector.RecordMatchFailure("error")
		s.logger.Error("指値マッチングに失敗しました",
			slog.String("limit_id", limit.ID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return before == model.LimitStatusPending && limit.Status == model.LimitStatusFulfilled
}
