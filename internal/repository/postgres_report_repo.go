package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/ichiba/internal/model"
)

// PostgresReportRepo はPostgreSQLを使用した売上レポートリポジトリ。
type PostgresReportRepo struct {
	db *sql.DB
}

// NewPostgresReportRepo はPostgresReportRepoを生成する。
func NewPostgresReportRepo(db *sql.DB) *PostgresReportRepo {
	return &PostgresReportRepo{db: db}
}

const reportColumns = `id, seller_user_id, idempotency_key, status, from_at, to_at, format,
	created_at, started_at, finished_at, received_at, message, order_count, revenue`

func scanReport(scan func(dest ...any) error) (*model.SalesReport, error) {
	report := &model.SalesReport{}
	var startedAt, finishedAt, receivedAt sql.NullTime

	err := scan(
		&report.ID, &report.SellerUserID, &report.IdempotencyKey, &report.Status,
		&report.From, &report.To, &report.Format,
		&report.CreatedAt, &startedAt, &finishedAt, &receivedAt,
		&report.Message, &report.Totals.OrderCount, &report.Totals.Revenue,
	)
	if err != nil {
		return nil, err
	}
	report.StartedAt = startedAt.Time
	report.FinishedAt = finishedAt.Time
	report.ReceivedAt = receivedAt.Time
	return report, nil
}

// Create はレポート要求を作成する。
func (r *PostgresReportRepo) Create(ctx context.Context, report *model.SalesReport) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sales_reports (id, seller_user_id, idempotency_key, status, from_at, to_at, format, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		report.ID, report.SellerUserID, report.IdempotencyKey, report.Status,
		report.From, report.To, report.Format, report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("レポートの作成に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDのレポートを行データ付きで取得する。見つからない場合はnilを返す。
func (r *PostgresReportRepo) FindByID(ctx context.Context, id string) (*model.SalesReport, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM sales_reports WHERE id = $1`, id,
	)
	report, err := scanReport(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("レポートの取得に失敗しました: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT line_no, order_id, created_at, offer_id, product_id, product_name, seller, price
		 FROM sales_report_lines WHERE report_id = $1 ORDER BY line_no`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("レポート行の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line model.SalesReportLine
		var productID, productName, seller sql.NullString
		if err := rows.Scan(
			&line.LineNo, &line.OrderID, &line.CreatedAt, &line.OfferID,
			&productID, &productName, &seller, &line.Price,
		); err != nil {
			return nil, fmt.Errorf("レポート行の読み取りに失敗しました: %w", err)
		}
		line.ProductID = productID.String
		line.ProductName = productName.String
		line.Seller = seller.String
		report.Lines = append(report.Lines, line)
	}
	return report, rows.Err()
}

// FindByIdempotencyKey は出品者とべき等キーでレポートを検索する。見つからない場合はnilを返す。
func (r *PostgresReportRepo) FindByIdempotencyKey(ctx context.Context, sellerUserID, key string) (*model.SalesReport, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM sales_reports
		 WHERE seller_user_id = $1 AND idempotency_key = $2
		 ORDER BY created_at DESC LIMIT 1`,
		sellerUserID, key,
	)
	report, err := scanReport(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("べき等キーによるレポートの検索に失敗しました: %w", err)
	}
	return report, nil
}

// NextQueued は最も古いQUEUEDレポートを返す（行データなし）。なければnilを返す。
func (r *PostgresReportRepo) NextQueued(ctx context.Context) (*model.SalesReport, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM sales_reports
		 WHERE status = 'QUEUED' ORDER BY created_at LIMIT 1`,
	)
	report, err := scanReport(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("処理待ちレポートの取得に失敗しました: %w", err)
	}
	return report, nil
}

// MarkRunning はQUEUEDのレポートをRUNNINGに条件付きUPDATEで遷移させる。
func (r *PostgresReportRepo) MarkRunning(ctx context.Context, id string, startedAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sales_reports SET status = 'RUNNING', started_at = $2
		 WHERE id = $1 AND status = 'QUEUED'`,
		id, startedAt,
	)
	if err != nil {
		return false, fmt.Errorf("レポートの生成開始遷移に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	return n > 0, nil
}

// SaveResult は生成結果（行・集計）を保存しREADYに遷移させる。
func (r *PostgresReportRepo) SaveResult(ctx context.Context, report *model.SalesReport) error {
	for _, line := range report.Lines {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO sales_report_lines
			   (report_id, line_no, order_id, created_at, offer_id, product_id, product_name, seller, price)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			report.ID, line.LineNo, line.OrderID, line.CreatedAt, line.OfferID,
			nullString(line.ProductID), nullString(line.ProductName), nullString(line.Seller), line.Price,
		)
		if err != nil {
			return fmt.Errorf("レポート行の保存に失敗しました: %w", err)
		}
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE sales_reports
		 SET status = 'READY', finished_at = $2, order_count = $3, revenue = $4
		 WHERE id = $1`,
		report.ID, report.FinishedAt, report.Totals.OrderCount, report.Totals.Revenue,
	)
	if err != nil {
		return fmt.Errorf("レポート結果の保存に失敗しました: %w", err)
	}
	return nil
}

// MarkFailed はレポートをFAILEDに遷移させ、メッセージを記録する。
func (r *PostgresReportRepo) MarkFailed(ctx context.Context, id, message string, finishedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sales_reports SET status = 'FAILED', message = $2, finished_at = $3 WHERE id = $1`,
		id, message, finishedAt,
	)
	if err != nil {
		return fmt.Errorf("レポートの失敗遷移に失敗しました: %w", err)
	}
	return nil
}

// MarkReceived はWebhook通知の到達日時を記録する。
func (r *PostgresReportRepo) MarkReceived(ctx context.Context, id string, receivedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sales_reports SET received_at = $2 WHERE id = $1`,
		id, receivedAt,
	)
	if err != nil {
		return fmt.Errorf("レポート到達日時の記録に失敗しました: %w", err)
	}
	return nil
}
