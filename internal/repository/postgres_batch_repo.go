package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/ichiba/internal/model"
)

// PostgresBatchRepo はPostgreSQLを使用したオファー同期バッチリポジトリ。
type PostgresBatchRepo struct {
	db *sql.DB
}

// NewPostgresBatchRepo はPostgresBatchRepoを生成する。
func NewPostgresBatchRepo(db *sql.DB) *PostgresBatchRepo {
	return &PostgresBatchRepo{db: db}
}

const batchColumns = `id, seller_user_id, idempotency_key, status, created_at, started_at, finished_at`

func scanBatch(scan func(dest ...any) error) (*model.OfferSyncBatch, error) {
	batch := &model.OfferSyncBatch{}
	var startedAt, finishedAt sql.NullTime

	err := scan(
		&batch.ID, &batch.SellerUserID, &batch.IdempotencyKey, &batch.Status,
		&batch.CreatedAt, &startedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}
	batch.StartedAt = startedAt.Time
	batch.FinishedAt = finishedAt.Time
	return batch, nil
}

// Create はバッチを行データ付きで作成する。
func (r *PostgresBatchRepo) Create(ctx context.Context, batch *model.OfferSyncBatch) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO offer_sync_batches (id, seller_user_id, idempotency_key, status, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		batch.ID, batch.SellerUserID, batch.IdempotencyKey, batch.Status, batch.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("バッチの作成に失敗しました: %w", err)
	}

	for _, item := range batch.Items {
		if err := r.insertItem(ctx, batch.ID, item); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresBatchRepo) insertItem(ctx context.Context, batchID string, item model.OfferSyncItem) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO offer_sync_items
		   (batch_id, line_no, product_id, action, offer_id, seller, price, result, error_code, message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		batchID, item.LineNo, item.ProductID, item.Action,
		nullString(item.OfferID), nullString(item.Seller), item.Price,
		item.Result, nullString(item.ErrorCode), nullString(item.Message),
	)
	if err != nil {
		return fmt.Errorf("バッチ行の作成に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDのバッチを行データ付きで取得する。見つからない場合はnilを返す。
func (r *PostgresBatchRepo) FindByID(ctx context.Context, id string) (*model.OfferSyncBatch, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+batchColumns+` FROM offer_sync_batches WHERE id = $1`, id,
	)
	batch, err := scanBatch(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("バッチの取得に失敗しました: %w", err)
	}

	if err := r.loadItems(ctx, batch); err != nil {
		return nil, err
	}
	return batch, nil
}

func (r *PostgresBatchRepo) loadItems(ctx context.Context, batch *model.OfferSyncBatch) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT line_no, product_id, action, offer_id, seller, price, result, error_code, message
		 FROM offer_sync_items WHERE batch_id = $1 ORDER BY line_no`,
		batch.ID,
	)
	if err != nil {
		return fmt.Errorf("バッチ行の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.OfferSyncItem
		var offerID, seller, errorCode, message sql.NullString
		var price sql.NullFloat64
		if err := rows.Scan(
			&item.LineNo, &item.ProductID, &item.Action,
			&offerID, &seller, &price, &item.Result, &errorCode, &message,
		); err != nil {
			return fmt.Errorf("バッチ行の読み取りに失敗しました: %w", err)
		}
		item.OfferID = offerID.String
		item.Seller = seller.String
		item.Price = price.Float64
		item.ErrorCode = errorCode.String
		item.Message = message.String
		batch.Items = append(batch.Items, item)
	}
	return rows.Err()
}

// FindByIdempotencyKey は出品者とべき等キーでバッチを検索する。見つからない場合はnilを返す。
func (r *PostgresBatchRepo) FindByIdempotencyKey(ctx context.Context, sellerUserID, key string) (*model.OfferSyncBatch, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+batchColumns+` FROM offer_sync_batches
		 WHERE seller_user_id = $1 AND idempotency_key = $2
		 ORDER BY created_at DESC LIMIT 1`,
		sellerUserID, key,
	)
	batch, err := scanBatch(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("べき等キーによるバッチの検索に失敗しました: %w", err)
	}
	return batch, nil
}

// ListBySeller は出品者のバッチを新しい順に最大max件返す（行データなし）。
func (r *PostgresBatchRepo) ListBySeller(ctx context.Context, sellerUserID string, max int) ([]*model.OfferSyncBatch, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+batchColumns+` FROM offer_sync_batches
		 WHERE seller_user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		sellerUserID, max,
	)
	if err != nil {
		return nil, fmt.Errorf("バッチ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var batches []*model.OfferSyncBatch
	for rows.Next() {
		batch, err := scanBatch(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("バッチ行の読み取りに失敗しました: %w", err)
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

// NextAccepted は最も古いACCEPTEDバッチを行データ付きで返す。なければnilを返す。
func (r *PostgresBatchRepo) NextAccepted(ctx context.Context) (*model.OfferSyncBatch, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+batchColumns+` FROM offer_sync_batches
		 WHERE status = 'ACCEPTED' ORDER BY created_at LIMIT 1`,
	)
	batch, err := scanBatch(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("処理待ちバッチの取得に失敗しました: %w", err)
	}

	if err := r.loadItems(ctx, batch); err != nil {
		return nil, err
	}
	return batch, nil
}

// MarkProcessing はACCEPTEDのバッチをPROCESSINGに条件付きUPDATEで遷移させる。
func (r *PostgresBatchRepo) MarkProcessing(ctx context.Context, id string, startedAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE offer_sync_batches SET status = 'PROCESSING', started_at = $2
		 WHERE id = $1 AND status = 'ACCEPTED'`,
		id, startedAt,
	)
	if err != nil {
		return false, fmt.Errorf("バッチの処理開始遷移に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	return n > 0, nil
}

// Finish はバッチの最終状態と行ごとの処理結果を保存する。
func (r *PostgresBatchRepo) Finish(ctx context.Context, batch *model.OfferSyncBatch) error {
	for _, item := range batch.Items {
		_, err := r.db.ExecContext(ctx,
			`UPDATE offer_sync_items
			 SET offer_id = $3, result = $4, error_code = $5, message = $6
			 WHERE batch_id = $1 AND line_no = $2`,
			batch.ID, item.LineNo,
			nullString(item.OfferID), item.Result,
			nullString(item.ErrorCode), nullString(item.Message),
		)
		if err != nil {
			return fmt.Errorf("バッチ行結果の保存に失敗しました: %w", err)
		}
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE offer_sync_batches SET status = $2, finished_at = $3 WHERE id = $1`,
		batch.ID, batch.Status, batch.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("バッチ最終状態の保存に失敗しました: %w", err)
	}
	return nil
}
