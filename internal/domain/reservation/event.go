package reservation

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType は予約ライフサイクルイベントの種別
type EventType string

const (
	EventBlocked     EventType = "reservation.blocked"
	EventCreated     EventType = "reservation.created"
	EventConfirmed   EventType = "reservation.confirmed"
	EventRescheduled EventType = "reservation.rescheduled"
	EventCancelled   EventType = "reservation.cancelled"
	EventExpired     EventType = "reservation.expired"
)

// Event はコミット後に外部へ通知する予約イベント
type Event struct {
	Type               EventType       `json:"type"`
	ReservationID      int64           `json:"reservation_id"`
	UserID             int64           `json:"user_id"`
	Status             Status          `json:"status"`
	ConfirmationNumber string          `json:"confirmation_number"`
	FlightIDs          []int64         `json:"flight_ids"`
	RefundAmount       decimal.Decimal `json:"refund_amount"`
	OccurredAt         time.Time       `json:"occurred_at"`
}

// NewEvent は予約の現在状態からイベントを作成する
func NewEvent(typ EventType, r *Reservation, refund decimal.Decimal, now time.Time) Event {
	return Event{
		Type:               typ,
		ReservationID:      r.ID,
		UserID:             r.UserID,
		Status:             r.Status,
		ConfirmationNumber: r.ConfirmationNumber,
		FlightIDs:          r.FlightIDs(),
		RefundAmount:       refund,
		OccurredAt:         now,
	}
}
