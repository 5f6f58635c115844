package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-flight-reservation/internal/domain/flight"
	"github.com/sanosuguru/go-flight-reservation/internal/domain/transaction"
)

// SeatInventory は flight_schedules.available_seats を条件付きUPDATEで増減する
type SeatInventory struct{ db *sqlx.DB }

func NewSeatInventory(db *sqlx.DB) *SeatInventory { return &SeatInventory{db: db} }

func (s *SeatInventory) TryDecrement(ctx context.Context, tx transaction.Tx, flightID int64, n int) error {
	if n < 1 {
		return flight.ErrInvalidSeatCount
	}
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return err
	}
	// 空席数の確認と減算を1文で行う。同じ行への更新は行ロックで直列化される
	result, err := sqlTx.ExecContext(ctx,
		`UPDATE flight_schedules SET available_seats = available_seats - $1, updated_at = NOW()
		 WHERE id = $2 AND available_seats >= $1`, n, flightID)
	if err != nil {
		return wrapDBError("空席確保", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return wrapDBError("空席確保", err)
	}
	if rows == 1 {
		return nil
	}
	return s.missingOrInsufficient(ctx, sqlTx, flightID)
}

func (s *SeatInventory) Increment(ctx context.Context, tx transaction.Tx, flightID int64, n int) error {
	if n < 1 {
		return flight.ErrInvalidSeatCount
	}
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return err
	}
	result, err := sqlTx.ExecContext(ctx,
		`UPDATE flight_schedules SET available_seats = available_seats + $1, updated_at = NOW() WHERE id = $2`, n, flightID)
	if err != nil {
		return wrapDBError("空席返却", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return flight.ErrFlightNotFound
	}
	return nil
}

func (s *SeatInventory) CountAvailable(ctx context.Context, flightID int64) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT available_seats FROM flight_schedules WHERE id = $1`, flightID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, flight.ErrFlightNotFound
		}
		return 0, wrapDBError("空席数取得", err)
	}
	return count, nil
}

func (s *SeatInventory) missingOrInsufficient(ctx context.Context, tx *sqlx.Tx, flightID int64) error {
	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM flight_schedules WHERE id = $1)`, flightID); err != nil {
		return wrapDBError("フライト存在確認", err)
	}
	if !exists {
		return flight.ErrFlightNotFound
	}
	return flight.ErrInsufficientSeats
}

var _ flight.SeatInventory = (*SeatInventory)(nil)
