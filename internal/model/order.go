// Package model はドメインモデルを定義する。
package model

import "time"

// OrderStatus は注文の状態を表す。
// 注文は作成時に必ずpendingで、外部のキャンセル操作でのみcanceledになる。
type OrderStatus string

const (
	// OrderStatusPending は確定済み・未キャンセルの注文状態。
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusCanceled はキャンセル済みの注文状態。
	OrderStatusCanceled OrderStatus = "canceled"
)

// Order は確定した取引を表す。
// 即時注文と指値マッチングの両方からこの形で生成される。
type Order struct {
	ID        string
	Status    OrderStatus
	OfferID   string
	CreatedAt time.Time
}
