package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStatsRepo はPostgreSQLを使用した集計リポジトリ。
type PostgresStatsRepo struct {
	db *sql.DB
}

// NewPostgresStatsRepo はPostgresStatsRepoを生成する。
func NewPostgresStatsRepo(db *sql.DB) *PostgresStatsRepo {
	return &PostgresStatsRepo{db: db}
}

// Overview は各エンティティの件数サマリを返す。
func (r *PostgresStatsRepo) Overview(ctx context.Context) (*Overview, error) {
	o := &Overview{}
	err := r.db.QueryRowContext(ctx,
		`SELECT
		   (SELECT count(*) FROM users),
		   (SELECT count(*) FROM users WHERE is_business),
		   (SELECT count(*) FROM categories),
		   (SELECT count(*) FROM products),
		   (SELECT count(*) FROM offers),
		   (SELECT count(*) FROM orders),
		   (SELECT count(*) FROM limits)`,
	).Scan(
		&o.Users, &o.BusinessUsers, &o.Categories,
		&o.Products, &o.Offers, &o.Orders, &o.Limits,
	)
	if err != nil {
		return nil, fmt.Errorf("件数サマリの取得に失敗しました: %w", err)
	}
	return o, nil
}
