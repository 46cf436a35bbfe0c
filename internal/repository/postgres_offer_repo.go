package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/ichiba/internal/model"
)

// PostgresOfferRepo はPostgreSQLを使用したオファーリポジトリ。
type PostgresOfferRepo struct {
	db *sql.DB
}

// NewPostgresOfferRepo はPostgresOfferRepoを生成する。
func NewPostgresOfferRepo(db *sql.DB) *PostgresOfferRepo {
	return &PostgresOfferRepo{db: db}
}

// FindByID は指定IDのオファーを取得する。見つからない場合はnilを返す。
func (r *PostgresOfferRepo) FindByID(ctx context.Context, id string) (*model.Offer, error) {
	offer := &model.Offer{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, seller, price FROM offers WHERE id = $1`, id,
	).Scan(&offer.ID, &offer.Seller, &offer.Price)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("オファーの取得に失敗しました: %w", err)
	}
	return offer, nil
}

// Create はオファーを作成する。
func (r *PostgresOfferRepo) Create(ctx context.Context, offer *model.Offer) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO offers (id, seller, price) VALUES ($1, $2, $3)`,
		offer.ID, offer.Seller, offer.Price,
	)
	if err != nil {
		return fmt.Errorf("オファーの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はオファーの価格・出品者を更新する。
func (r *PostgresOfferRepo) Update(ctx context.Context, offer *model.Offer) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE offers SET seller = $2, price = $3 WHERE id = $1`,
		offer.ID, offer.Seller, offer.Price,
	)
	if err != nil {
		return fmt.Errorf("オファーの更新に失敗しました: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのオファーを削除する。商品との紐付けはCASCADE削除される。
func (r *PostgresOfferRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM offers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("オファーの削除に失敗しました: %w", err)
	}
	return nil
}
