package application

import (
	"context"
	"time"

	"github.com/sanosuguru/go-flight-reservation/internal/domain/reservation"
)

// SeatCache はフライトごとの空席数キャッシュ
type SeatCache interface {
	GetAvailableCount(ctx context.Context, flightID int64) (int, error)
	SetAvailableCount(ctx context.Context, flightID int64, count int, ttl time.Duration) error
	Invalidate(ctx context.Context, flightIDs ...int64) error
}

// EventPublisher はコミット済みの予約イベントを外部へ送信する
type EventPublisher interface {
	Publish(ctx context.Context, ev reservation.Event) error
}
