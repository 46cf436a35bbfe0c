// Package cleanup は終端状態レコードの自動削除ジョブを提供する。
// 保持期間（デフォルト180日）を超過した終端状態の指値、完了済みの
// オファー同期バッチ、受領済みの売上レポートを日次バッチで削除する。
// 明細行はCASCADE削除で自動的に処理される。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CleanupJob は保持期間を超過したレコードの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	db            Executor
	logger        *slog.Logger
	RetentionDays int // レコードの保持日数（デフォルト: 180）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は180日。
func NewCleanupJob(db Executor, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:            db,
		logger:        logger,
		RetentionDays: 180,
	}
}

// Run は保持期間を超過したレコードを削除する。
// 対象は終端状態（expired/canceled）の指値、完了済み（DONE/FAILED）の
// オファー同期バッチ、受領済みの売上レポート。
// pendingの指値とfulfilledの指値（注文の監査証跡）は削除しない。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	interval := fmt.Sprintf("%d days", j.RetentionDays)

	targets := []struct {
		name  string
		query string
	}{
		{
			name: "limits",
			query: `DELETE FROM limits
			        WHERE status IN ('expired', 'canceled') AND updated_at < now() - $1::interval`,
		},
		{
			name: "offer_sync_batches",
			query: `DELETE FROM offer_sync_batches
			        WHERE status IN ('DONE', 'FAILED') AND finished_at < now() - $1::interval`,
		},
		{
			name: "sales_reports",
			query: `DELETE FROM sales_reports
			        WHERE received_at IS NOT NULL AND received_at < now() - $1::interval`,
		},
	}

	var totalDeleted int64
	for _, target := range targets {
		result, err := j.db.ExecContext(ctx, target.query, interval)
		if err != nil {
			j.logger.Error("クリーンアップジョブの実行に失敗しました",
				slog.String("table", target.name),
				slog.String("error", err.Error()),
				slog.Int("retention_days", j.RetentionDays),
			)
			return fmt.Errorf("%sのクリーンアップに失敗: %w", target.name, err)
		}

		deletedCount, err := result.RowsAffected()
		if err != nil {
			j.logger.Error("削除件数の取得に失敗しました",
				slog.String("table", target.name),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("削除件数の取得に失敗: %w", err)
		}
		totalDeleted += deletedCount
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_count", totalDeleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は指定間隔でクリーンアップジョブを繰り返し実行する。
// ctxがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if err := j.Run(ctx); err != nil {
		j.logger.Error("クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("クリーンアップジョブの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
