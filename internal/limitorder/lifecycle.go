// Package limitorder は指値注文のドメインロジックを提供する。
// ライフサイクル状態機械、オファーランキング、指値の登録・キャンセルを含む。
package limitorder

import (
	"fmt"

	"github.com/hitoshi/ichiba/internal/model"
)

// CanTransition は指値の状態遷移が許可されているかを返す。
// 許可される遷移はpendingからの3本のみで、すべて終端状態に入る:
//
//	pending → fulfilled（マッチングスイープの約定）
//	pending → expired（スイープの期限切れ一括更新）
//	pending → canceled（外部キャンセル操作）
//
// 終端状態からの遷移は存在しない。
func CanTransition(from, to model.LimitStatus) bool {
	if from != model.LimitStatusPending {
		return false
	}
	switch to {
	case model.LimitStatusFulfilled, model.LimitStatusExpired, model.LimitStatusCanceled:
		return true
	}
	return false
}

// ValidateTransition は遷移の事前検証を行い、不許可の場合はエラーを返す。
// fulfilledへの遷移は約定注文のIDを必ず伴わなければならない。
// 上流の状態を信用せず、書き込み前の防御的チェックとして使用する。
func ValidateTransition(limit *model.Limit, to model.LimitStatus, orderID string) error {
	if !CanTransition(limit.Status, to) {
		return fmt.Errorf("指値 %s の遷移 %s → %s は許可されていません", limit.ID, limit.Status, to)
	}
	if to == model.LimitStatusFulfilled && orderID == "" {
		return fmt.Errorf("指値 %s のfulfilled遷移には注文IDが必要です", limit.ID)
	}
	if to != model.LimitStatusFulfilled && orderID != "" {
		return fmt.Errorf("指値 %s の%s遷移に注文IDを伴うことはできません", limit.ID, to)
	}
	return nil
}
