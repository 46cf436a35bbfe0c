// Package model はドメインモデルを定義する。
package model

import "time"

// LimitStatus は指値注文の状態を表す。
type LimitStatus string

const (
	// LimitStatusPending はマッチング待ちの初期状態。
	LimitStatusPending LimitStatus = "pending"
	// LimitStatusFulfilled はマッチング成立済みの終端状態。注文IDを必ず伴う。
	LimitStatusFulfilled LimitStatus = "fulfilled"
	// LimitStatusExpired は有効期限切れの終端状態。
	LimitStatusExpired LimitStatus = "expired"
	// LimitStatusCanceled は外部キャンセルによる終端状態。
	LimitStatusCanceled LimitStatus = "canceled"
)

// Terminal はこの状態が終端状態かどうかを返す。
// 終端状態からの遷移は存在しない。
func (s LimitStatus) Terminal() bool {
	switch s {
	case LimitStatusFulfilled, LimitStatusExpired, LimitStatusCanceled:
		return true
	}
	return false
}

// Limit は買い手の指値注文（standing buy intent）を表す。
// OrderIDはstatus=fulfilledの場合のみ設定される。
type Limit struct {
	ID        string
	Status    LimitStatus
	ValidTill time.Time
	Price     float64
	ProductID string
	OrderID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
