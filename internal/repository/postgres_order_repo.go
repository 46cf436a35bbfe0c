package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/ichiba/internal/model"
)

// PostgresOrderRepo はPostgreSQLを使用した注文リポジトリ。
type PostgresOrderRepo struct {
	db *sql.DB
}

// NewPostgresOrderRepo はPostgresOrderRepoを生成する。
func NewPostgresOrderRepo(db *sql.DB) *PostgresOrderRepo {
	return &PostgresOrderRepo{db: db}
}

// FindByID は指定IDの注文を取得する。見つからない場合はnilを返す。
func (r *PostgresOrderRepo) FindByID(ctx context.Context, id string) (*model.Order, error) {
	order := &model.Order{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, status, offer_id, created_at FROM orders WHERE id = $1`, id,
	).Scan(&order.ID, &order.Status, &order.OfferID, &order.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("注文の取得に失敗しました: %w", err)
	}
	return order, nil
}

// Create は注文を作成する。
func (r *PostgresOrderRepo) Create(ctx context.Context, order *model.Order) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO orders (id, status, offer_id, created_at) VALUES ($1, $2, $3, $4)`,
		order.ID, order.Status, order.OfferID, order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("注文の作成に失敗しました: %w", err)
	}
	return nil
}

// MarkCanceled は注文をpendingからcanceledへ条件付きUPDATEで遷移させる。
// すでにpendingでない場合はfalseを返す。
func (r *PostgresOrderRepo) MarkCanceled(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = 'canceled' WHERE id = $1 AND status = 'pending'`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("注文のキャンセルに失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	return n > 0, nil
}

// ListWithOfferBetween は作成日時が[from, to]の注文をオファー付きで返す。
// オファーが削除済みの注文は対象外となる。
func (r *PostgresOrderRepo) ListWithOfferBetween(ctx context.Context, from, to time.Time) ([]OrderWithOffer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT o.id, o.status, o.offer_id, o.created_at, f.id, f.seller, f.price
		 FROM orders o
		 JOIN offers f ON f.id = o.offer_id
		 WHERE o.created_at >= $1 AND o.created_at <= $2
		 ORDER BY o.created_at, o.id`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("期間内注文の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var result []OrderWithOffer
	for rows.Next() {
		var ow OrderWithOffer
		if err := rows.Scan(
			&ow.Order.ID, &ow.Order.Status, &ow.Order.OfferID, &ow.Order.CreatedAt,
			&ow.Offer.ID, &ow.Offer.Seller, &ow.Offer.Price,
		); err != nil {
			return nil, fmt.Errorf("注文行の読み取りに失敗しました: %w", err)
		}
		result = append(result, ow)
	}
	return result, rows.Err()
}
