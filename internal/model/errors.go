// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, catalog, trade, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeProductNotFound = "PRODUCT_NOT_FOUND"
	ErrCodeOfferNotFound   = "OFFER_NOT_FOUND"
	ErrCodeUserNotFound    = "USER_NOT_FOUND"
	ErrCodeLimitNotFound   = "LIMIT_NOT_FOUND"
	ErrCodeOrderNotFound   = "ORDER_NOT_FOUND"
	ErrCodeBatchNotFound   = "BATCH_NOT_FOUND"
	ErrCodeReportNotFound  = "REPORT_NOT_FOUND"
	ErrCodeLimitNotPending = "LIMIT_NOT_PENDING"
	ErrCodeInvalidPrice    = "INVALID_PRICE"
	ErrCodeInvalidInput    = "INVALID_INPUT"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeForbidden       = "FORBIDDEN"
)

// NewProductNotFoundError は商品未検出エラーを生成する。
func NewProductNotFoundError(productID string) *APIError {
	return &APIError{
		Code:     ErrCodeProductNotFound,
		Message:  fmt.Sprintf("指定された商品が見つかりません: %s", productID),
		Category: "catalog",
		Action:   "商品IDを確認してください。",
	}
}

// NewOfferNotFoundError はオファー未検出エラーを生成する。
func NewOfferNotFoundError(offerID string) *APIError {
	return &APIError{
		Code:     ErrCodeOfferNotFound,
		Message:  fmt.Sprintf("指定されたオファーが見つかりません: %s", offerID),
		Category: "catalog",
		Action:   "オファーIDを確認してください。",
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %s", userID),
		Category: "auth",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewLimitNotFoundError は指値未検出エラーを生成する。
func NewLimitNotFoundError(limitID string) *APIError {
	return &APIError{
		Code:     ErrCodeLimitNotFound,
		Message:  fmt.Sprintf("指定された指値注文が見つかりません: %s", limitID),
		Category: "trade",
		Action:   "指値IDを確認してください。",
	}
}

// NewBatchNotFoundError はバッチ未検出エラーを生成する。
func NewBatchNotFoundError(batchID string) *APIError {
	return &APIError{
		Code:     ErrCodeBatchNotFound,
		Message:  fmt.Sprintf("指定されたバッチが見つかりません: %s", batchID),
		Category: "trade",
		Action:   "バッチIDを確認してください。",
	}
}

// NewReportNotFoundError はレポート未検出エラーを生成する。
func NewReportNotFoundError(reportID string) *APIError {
	return &APIError{
		Code:     ErrCodeReportNotFound,
		Message:  fmt.Sprintf("指定されたレポートが見つかりません: %s", reportID),
		Category: "trade",
		Action:   "レポートIDを確認してください。",
	}
}

// NewLimitNotPendingError は終端状態の指値に対する操作エラーを生成する。
func NewLimitNotPendingError(limitID string, status LimitStatus) *APIError {
	return &APIError{
		Code:     ErrCodeLimitNotPending,
		Message:  fmt.Sprintf("指値注文 %s は %s 状態のため操作できません。", limitID, status),
		Category: "trade",
		Action:   "pending状態の指値のみキャンセルできます。",
	}
}

// NewInvalidPriceError は不正な価格エラーを生成する。
func NewInvalidPriceError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPrice,
		Message:  fmt.Sprintf("無効な価格です: %s", reason),
		Category: "validation",
		Action:   "価格には0より大きい数値を指定してください。",
	}
}

// NewInvalidInputError は入力検証エラーを生成する。
func NewInvalidInputError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("無効な入力です: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewUnauthorizedError は認証エラーを生成する。
func NewUnauthorizedError(reason string) *APIError {
	if reason == "" {
		reason = "認証に失敗しました。"
	}
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  reason,
		Category: "auth",
		Action:   "APIキーを確認してください。",
	}
}

// NewForbiddenError は認可エラーを生成する。
func NewForbiddenError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  fmt.Sprintf("アクセスが拒否されました: %s", reason),
		Category: "auth",
		Action:   "対象リソースの所有者であることを確認してください。",
	}
}
