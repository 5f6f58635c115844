package handler

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sanosuguru/go-flight-reservation/internal/application"
	"github.com/sanosuguru/go-flight-reservation/internal/domain/flight"
	"github.com/sanosuguru/go-flight-reservation/internal/domain/reservation"
)

// FlightServiceInterface はフライトサービスのインターフェース
type FlightServiceInterface interface {
	GetFlight(ctx context.Context, id int64) (*flight.Flight, error)
	SearchFlights(ctx context.Context, criteria flight.SearchCriteria) (*application.SearchResult, error)
	CountAvailableSeats(ctx context.Context, flightID int64) (int, error)
}

// ReservationServiceInterface は予約サービスのインターフェース
type ReservationServiceInterface interface {
	Block(ctx context.Context, input application.BlockInput) (*reservation.Reservation, error)
	CreateDirect(ctx context.Context, input application.CreateDirectInput) (*reservation.Reservation, error)
	Confirm(ctx context.Context, reservationID, userID int64) (*reservation.Reservation, error)
	Reschedule(ctx context.Context, input application.RescheduleInput) (*reservation.Reservation, error)
	Cancel(ctx context.Context, reservationID, userID int64) (*application.CancelResult, error)
	PreviewCancelRules(ctx context.Context, reservationID, userID int64) (*application.CancelPreview, error)
	ListByUser(ctx context.Context, userID int64, statuses []reservation.Status) ([]*reservation.Reservation, error)
	GetDetail(ctx context.Context, id, userID int64) (*application.ReservationDetail, error)
	ListHistory(ctx context.Context, id, userID int64) ([]*reservation.History, error)
}

// LoyaltyServiceInterface はマイル残高照会のインターフェース
type LoyaltyServiceInterface interface {
	GetLoyaltyBalance(ctx context.Context, userID int64) (decimal.Decimal, error)
}

var (
	_ FlightServiceInterface      = (*application.FlightService)(nil)
	_ ReservationServiceInterface = (*application.ReservationService)(nil)
	_ LoyaltyServiceInterface     = (*application.ReservationService)(nil)
)
