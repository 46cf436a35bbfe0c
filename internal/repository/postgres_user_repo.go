package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/ichiba/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, name, is_business, company_name, b2b_api_key, webhook_url`

func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID, &user.Name, &user.IsBusiness,
		&user.CompanyName, &user.B2BAPIKey, &user.WebhookURL,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	))
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	return user, nil
}

// FindByB2BKey はB2B APIキーで事業者ユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByB2BKey(ctx context.Context, key string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE is_business AND b2b_api_key = $1`, key,
	))
	if err != nil {
		return nil, fmt.Errorf("B2Bキーによるユーザーの検索に失敗しました: %w", err)
	}
	return user, nil
}

// FindByLimitID は指値の所有者ユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByLimitID(ctx context.Context, limitID string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE id = (SELECT user_id FROM user_limits WHERE limit_id = $1)`, limitID,
	))
	if err != nil {
		return nil, fmt.Errorf("指値所有者の検索に失敗しました: %w", err)
	}
	return user, nil
}

// List は全ユーザーを名前順で返す。
func (r *PostgresUserRepo) List(ctx context.Context) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY name, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user := &model.User{}
		if err := rows.Scan(
			&user.ID, &user.Name, &user.IsBusiness,
			&user.CompanyName, &user.B2BAPIKey, &user.WebhookURL,
		); err != nil {
			return nil, fmt.Errorf("ユーザー行の読み取りに失敗しました: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, is_business, company_name, b2b_api_key, webhook_url)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Name, user.IsBusiness,
		user.CompanyName, user.B2BAPIKey, user.WebhookURL,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのユーザーを削除する。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}
	return nil
}

// AppendOrder はユーザーの注文リストに注文IDを1文のINSERTで追加する。
func (r *PostgresUserRepo) AppendOrder(ctx context.Context, userID, orderID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_orders (user_id, order_id) VALUES ($1, $2)`,
		userID, orderID,
	)
	if err != nil {
		return fmt.Errorf("ユーザーへの注文追加に失敗しました: %w", err)
	}
	return nil
}

// AppendLimit はユーザーの指値リストに指値IDを1文のINSERTで追加する。
func (r *PostgresUserRepo) AppendLimit(ctx context.Context, userID, limitID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_limits (user_id, limit_id) VALUES ($1, $2)`,
		userID, limitID,
	)
	if err != nil {
		return fmt.Errorf("ユーザーへの指値追加に失敗しました: %w", err)
	}
	return nil
}
