package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/ichiba/internal/model"
)

// PostgresCategoryRepo はPostgreSQLを使用したカテゴリリポジトリ。
type PostgresCategoryRepo struct {
	db *sql.DB
}

// NewPostgresCategoryRepo はPostgresCategoryRepoを生成する。
func NewPostgresCategoryRepo(db *sql.DB) *PostgresCategoryRepo {
	return &PostgresCategoryRepo{db: db}
}

// List は全カテゴリをID順で返す。
func (r *PostgresCategoryRepo) List(ctx context.Context) ([]*model.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description FROM categories ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("カテゴリ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var cats []*model.Category
	for rows.Next() {
		cat := &model.Category{}
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Description); err != nil {
			return nil, fmt.Errorf("カテゴリ行の読み取りに失敗しました: %w", err)
		}
		cats = append(cats, cat)
	}
	return cats, rows.Err()
}

// Create はカテゴリを作成する。
func (r *PostgresCategoryRepo) Create(ctx context.Context, cat *model.Category) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, description) VALUES ($1, $2, $3)`,
		cat.ID, cat.Name, cat.Description,
	)
	if err != nil {
		return fmt.Errorf("カテゴリの作成に失敗しました: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのカテゴリを削除する。
func (r *PostgresCategoryRepo) DeleteByID(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("カテゴリの削除に失敗しました: %w", err)
	}
	return nil
}
