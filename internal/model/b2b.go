// Package model はドメインモデルを定義する。
package model

import "time"

// BatchStatus はオファー同期バッチの処理状態を表す。
type BatchStatus string

const (
	// BatchStatusAccepted は受付済み・処理待ちの状態。
	BatchStatusAccepted BatchStatus = "ACCEPTED"
	// BatchStatusProcessing は処理中の状態。
	BatchStatusProcessing BatchStatus = "PROCESSING"
	// BatchStatusDone は処理完了の状態。
	BatchStatusDone BatchStatus = "DONE"
	// BatchStatusFailed は処理失敗の状態。
	BatchStatusFailed BatchStatus = "FAILED"
)

// SyncAction はバッチ行の操作種別を表す。
type SyncAction string

const (
	// SyncActionUpsert はオファーの作成または更新。
	SyncActionUpsert SyncAction = "UPSERT"
	// SyncActionRemove はオファーの削除。
	SyncActionRemove SyncAction = "REMOVE"
)

// SyncResult はバッチ行の処理結果を表す。
type SyncResult string

const (
	// SyncResultOK は行の処理成功。
	SyncResultOK SyncResult = "OK"
	// SyncResultError は行の処理失敗。
	SyncResultError SyncResult = "ERROR"
)

// OfferSyncItem はオファー同期バッチの1行を表す。
type OfferSyncItem struct {
	LineNo    int
	ProductID string
	Action    SyncAction
	OfferID   string
	Seller    string
	Price     float64
	Result    SyncResult
	ErrorCode string
	Message   string
}

// OfferSyncBatch はB2B出品者が投入するオファー一括同期バッチを表す。
type OfferSyncBatch struct {
	ID             string
	SellerUserID   string
	IdempotencyKey string
	Status         BatchStatus
	CreatedAt      time.Time
	StartedAt      time.Time
	FinishedAt     time.Time
	Items          []OfferSyncItem
}

// ReportStatus は売上レポートの処理状態を表す。
type ReportStatus string

const (
	// ReportStatusQueued は生成待ちの状態。
	ReportStatusQueued ReportStatus = "QUEUED"
	// ReportStatusRunning は生成中の状態。
	ReportStatusRunning ReportStatus = "RUNNING"
	// ReportStatusReady は生成完了・取得可能の状態。
	ReportStatusReady ReportStatus = "READY"
	// ReportStatusFailed は生成失敗の状態。
	ReportStatusFailed ReportStatus = "FAILED"
)

// ReportFormat は売上レポートの出力形式を表す。
type ReportFormat string

const (
	// ReportFormatJSON はJSON形式。
	ReportFormatJSON ReportFormat = "JSON"
	// ReportFormatCSV はCSV形式。
	ReportFormatCSV ReportFormat = "CSV"
)

// SalesReportLine は売上レポートの1行（1注文）を表す。
type SalesReportLine struct {
	LineNo      int
	OrderID     string
	CreatedAt   time.Time
	OfferID     string
	ProductID   string
	ProductName string
	Seller      string
	Price       float64
}

// SalesReportTotals は売上レポートの集計値を表す。
type SalesReportTotals struct {
	OrderCount int
	Revenue    float64
}

// SalesReport はB2B出品者向けの期間売上レポートを表す。
type SalesReport struct {
	ID             string
	SellerUserID   string
	IdempotencyKey string
	Status         ReportStatus
	From           time.Time
	To             time.Time
	Format         ReportFormat
	CreatedAt      time.Time
	StartedAt      time.Time
	FinishedAt     time.Time
	ReceivedAt     time.Time
	Message        string
	Totals         SalesReportTotals
	Lines          []SalesReportLine
}
