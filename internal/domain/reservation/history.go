package reservation

import (
	"time"

	"github.com/shopspring/decimal"
)

// ActionType は履歴に記録する操作種別
type ActionType string

const (
	ActionReschedule ActionType = "Reschedule"
	ActionCancel     ActionType = "Cancel"
	ActionExpire     ActionType = "Expire"
)

// History は予約に対する状態変更の監査記録
// 追記のみで更新・削除はしない
type History struct {
	ID                 int64
	ReservationID      int64
	ActionType         ActionType
	OldDate            *time.Time
	NewDate            *time.Time
	RefundAmount       decimal.Decimal
	CancellationNumber *string
	ActionDate         time.Time
}
