package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/ichiba/internal/model"
)

// PostgresLimitRepo はPostgreSQLを使用した指値リポジトリ。
// 状態遷移の書き込みはすべてstatus条件付きの1文UPDATEで行う。
type PostgresLimitRepo struct {
	db *sql.DB
}

// NewPostgresLimitRepo はPostgresLimitRepoを生成する。
func NewPostgresLimitRepo(db *sql.DB) *PostgresLimitRepo {
	return &PostgresLimitRepo{db: db}
}

const limitColumns = `id, status, valid_till, price, product_id, order_id, created_at, updated_at`

func scanLimit(scan func(dest ...any) error) (*model.Limit, error) {
	limit := &model.Limit{}
	var orderID sql.NullString

	err := scan(
		&limit.ID, &limit.Status, &limit.ValidTill, &limit.Price,
		&limit.ProductID, &orderID, &limit.CreatedAt, &limit.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	limit.OrderID = orderID.String
	return limit, nil
}

// FindByID は指定IDの指値を取得する。見つからない場合はnilを返す。
func (r *PostgresLimitRepo) FindByID(ctx context.Context, id string) (*model.Limit, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+limitColumns+` FROM limits WHERE id = $1`, id,
	)
	limit, err := scanLimit(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("指値の取得に失敗しました: %w", err)
	}
	return limit, nil
}

// Create は指値を作成する。
func (r *PostgresLimitRepo) Create(ctx context.Context, limit *model.Limit) error {
	var orderID any
	if limit.OrderID != "" {
		orderID = limit.OrderID
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO limits (id, status, valid_till, price, product_id, order_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		limit.ID, limit.Status, limit.ValidTill, limit.Price,
		limit.ProductID, orderID, limit.CreatedAt, limit.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("指値の作成に失敗しました: %w", err)
	}
	return nil
}

// List は全指値を作成日時の新しい順に最大max件返す。
func (r *PostgresLimitRepo) List(ctx context.Context, max int) ([]*model.Limit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+limitColumns+` FROM limits ORDER BY created_at DESC, id LIMIT $1`, max,
	)
	if err != nil {
		return nil, fmt.Errorf("指値一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()
	return collectLimits(rows)
}

// ListPending はpending状態の指値をID順で返す。
// ID順は安定だが公平性の意味を持たない。スイープの処理順は
// 「未規定だが安定」という元の挙動を保存するための順序づけである。
func (r *PostgresLimitRepo) ListPending(ctx context.Context) ([]*model.Limit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+limitColumns+` FROM limits WHERE status = 'pending' ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("pending指値の取得に失敗しました: %w", err)
	}
	defer rows.Close()
	return collectLimits(rows)
}

func collectLimits(rows *sql.Rows) ([]*model.Limit, error) {
	var limits []*model.Limit
	for rows.Next() {
		limit, err := scanLimit(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("指値行の読み取りに失敗しました: %w", err)
		}
		limits = append(limits, limit)
	}
	return limits, rows.Err()
}

// ExpireOverdue はvalid_tillがnowより過去のpending指値を一括でexpiredに遷移させる。
// 1文の条件付きUPDATEであり、個別ドキュメントの走査は行わない。
func (r *PostgresLimitRepo) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE limits SET status = 'expired', updated_at = $1
		 WHERE status = 'pending' AND valid_till < $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("期限切れ指値の一括更新に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// MarkFulfilled はpendingの指値をfulfilledに遷移させ、注文IDを紐付ける。
// status = 'pending' の条件が「確定直前の状態再確認」を兼ねる。
// 読み取り後に並行キャンセルなどで状態が変わっていた場合は0行更新となり、
// falseを返して呼び出し側にマッチの破棄を伝える。
func (r *PostgresLimitRepo) MarkFulfilled(ctx context.Context, id, orderID string, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE limits SET status = 'fulfilled', order_id = $2, updated_at = $3
		 WHERE id = $1 AND status = 'pending'`,
		id, orderID, now,
	)
	if err != nil {
		return false, fmt.Errorf("指値の約定遷移に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	return n > 0, nil
}

// MarkCanceled はpendingの指値をcanceledに遷移させる。
// すでにpendingでない場合はfalseを返す。
func (r *PostgresLimitRepo) MarkCanceled(ctx context.Context, id string, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE limits SET status = 'canceled', updated_at = $2
		 WHERE id = $1 AND status = 'pending'`,
		id, now,
	)
	if err != nil {
		return false, fmt.Errorf("指値のキャンセルに失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	return n > 0, nil
}
