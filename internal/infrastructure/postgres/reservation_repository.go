package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/sanosuguru/go-flight-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-flight-reservation/internal/domain/transaction"
)

const reservationColumns = `id, user_id, status, total_fare, seat_count, reservation_date,
	block_expiry_date, confirmation_number, cancellation_rules, awarded_miles, created_at, updated_at`

type reservationRow struct {
	ID                 int64           `db:"id"`
	UserID             int64           `db:"user_id"`
	Status             string          `db:"status"`
	TotalFare          decimal.Decimal `db:"total_fare"`
	SeatCount          int             `db:"seat_count"`
	ReservationDate    time.Time       `db:"reservation_date"`
	BlockExpiryDate    *time.Time      `db:"block_expiry_date"`
	ConfirmationNumber string          `db:"confirmation_number"`
	CancellationRules  string          `db:"cancellation_rules"`
	AwardedMiles       decimal.Decimal `db:"awarded_miles"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

type ticketRow struct {
	ID               int64 `db:"id"`
	ReservationID    int64 `db:"reservation_id"`
	FlightScheduleID int64 `db:"flight_schedule_id"`
}

type passengerRow struct {
	ID             int64     `db:"id"`
	ReservationID  int64     `db:"reservation_id"`
	Title          string    `db:"title"`
	FirstName      string    `db:"first_name"`
	LastName       string    `db:"last_name"`
	DateOfBirth    time.Time `db:"date_of_birth"`
	PassportNumber string    `db:"passport_number"`
	PassportExpiry time.Time `db:"passport_expiry"`
}

type historyRow struct {
	ID                 int64           `db:"id"`
	ReservationID      int64           `db:"reservation_id"`
	ActionType         string          `db:"action_type"`
	OldDate            *time.Time      `db:"old_date"`
	NewDate            *time.Time      `db:"new_date"`
	RefundAmount       decimal.Decimal `db:"refund_amount"`
	CancellationNumber *string         `db:"cancellation_number"`
	ActionDate         time.Time       `db:"action_date"`
}

type ReservationRepository struct{ db *sqlx.DB }

func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

func (r *ReservationRepository) Create(ctx context.Context, tx transaction.Tx, res *reservation.Reservation) error {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return err
	}
	query := `INSERT INTO reservations (user_id, status, total_fare, seat_count, reservation_date,
		block_expiry_date, confirmation_number, cancellation_rules, awarded_miles, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`
	if err := sqlTx.QueryRowContext(ctx, query,
		res.UserID, string(res.Status), res.TotalFare, res.SeatCount, res.ReservationDate,
		res.BlockExpiryDate, res.ConfirmationNumber, res.CancellationRules, res.AwardedMiles, res.CreatedAt, res.UpdatedAt,
	).Scan(&res.ID); err != nil {
		return wrapDBError("予約作成", err)
	}

	for i := range res.Tickets {
		t := &res.Tickets[i]
		t.ReservationID = res.ID
		if err := sqlTx.QueryRowContext(ctx,
			`INSERT INTO reservation_tickets (reservation_id, flight_schedule_id) VALUES ($1, $2) RETURNING id`,
			res.ID, t.FlightScheduleID).Scan(&t.ID); err != nil {
			return wrapDBError("搭乗区間作成", err)
		}
	}
	for i := range res.Passengers {
		p := &res.Passengers[i]
		p.ReservationID = res.ID
		if err := sqlTx.QueryRowContext(ctx,
			`INSERT INTO reservation_passengers (reservation_id, title, first_name, last_name, date_of_birth, passport_number, passport_expiry)
			 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			res.ID, p.Title, p.FirstName, p.LastName, p.DateOfBirth, p.PassportNumber, p.PassportExpiry).Scan(&p.ID); err != nil {
			return wrapDBError("搭乗者作成", err)
		}
	}
	return nil
}

func (r *ReservationRepository) GetByID(ctx context.Context, id int64) (*reservation.Reservation, error) {
	var row reservationRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservation.ErrReservationNotFound
		}
		return nil, wrapDBError("予約取得", err)
	}
	return r.load(ctx, r.db, &row)
}

func (r *ReservationRepository) GetByIDForUpdate(ctx context.Context, tx transaction.Tx, id int64) (*reservation.Reservation, error) {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return nil, err
	}
	var row reservationRow
	if err := sqlTx.GetContext(ctx, &row, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservation.ErrReservationNotFound
		}
		return nil, wrapDBError("予約取得", err)
	}
	return r.load(ctx, sqlTx, &row)
}

func (r *ReservationRepository) ListByUser(ctx context.Context, userID int64, statuses []reservation.Status) ([]*reservation.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE user_id = $1`
	args := []interface{}{userID}
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, s := range statuses {
			names[i] = string(s)
		}
		query += ` AND status = ANY($2)`
		args = append(args, pq.Array(names))
	}
	query += ` ORDER BY reservation_date DESC, id DESC`

	var rows []reservationRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, wrapDBError("予約一覧取得", err)
	}
	return r.loadAll(ctx, r.db, rows)
}

func (r *ReservationRepository) Update(ctx context.Context, tx transaction.Tx, res *reservation.Reservation) error {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return err
	}
	query := `UPDATE reservations SET status = $1, total_fare = $2, block_expiry_date = $3,
		confirmation_number = $4, updated_at = $5 WHERE id = $6`
	result, err := sqlTx.ExecContext(ctx, query,
		string(res.Status), res.TotalFare, res.BlockExpiryDate, res.ConfirmationNumber, res.UpdatedAt, res.ID)
	if err != nil {
		return wrapDBError("予約更新", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return reservation.ErrReservationNotFound
	}
	return nil
}

func (r *ReservationRepository) UpdateTicketFlight(ctx context.Context, tx transaction.Tx, ticketID, flightID int64) error {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return err
	}
	result, err := sqlTx.ExecContext(ctx, `UPDATE reservation_tickets SET flight_schedule_id = $1 WHERE id = $2`, flightID, ticketID)
	if err != nil {
		return wrapDBError("搭乗区間更新", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("搭乗区間が見つかりません: id=%d", ticketID)
	}
	return nil
}

func (r *ReservationRepository) ListStaleBlocked(ctx context.Context, tx transaction.Tx, now time.Time, leadTime time.Duration) ([]*reservation.Reservation, error) {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + reservationColumns + ` FROM reservations r
		WHERE r.status = 'Blocked' AND (
			r.block_expiry_date < $1
			OR EXISTS (
				SELECT 1 FROM reservation_tickets t
				JOIN flight_schedules f ON f.id = t.flight_schedule_id
				WHERE t.reservation_id = r.id
				  AND f.departure_time IS NOT NULL
				  AND f.departure_time < $2
			)
		)
		ORDER BY r.id
		FOR UPDATE OF r`
	var rows []reservationRow
	if err := sqlTx.SelectContext(ctx, &rows, query, now, now.Add(leadTime)); err != nil {
		return nil, wrapDBError("期限切れ仮押さえ取得", err)
	}
	return r.loadAll(ctx, sqlTx, rows)
}

func (r *ReservationRepository) AppendHistory(ctx context.Context, tx transaction.Tx, h *reservation.History) error {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return err
	}
	query := `INSERT INTO reservation_history (reservation_id, action_type, old_date, new_date, refund_amount, cancellation_number, action_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	if err := sqlTx.QueryRowContext(ctx, query,
		h.ReservationID, string(h.ActionType), h.OldDate, h.NewDate, h.RefundAmount, h.CancellationNumber, h.ActionDate,
	).Scan(&h.ID); err != nil {
		return wrapDBError("履歴追記", err)
	}
	return nil
}

func (r *ReservationRepository) ListHistory(ctx context.Context, reservationID int64) ([]*reservation.History, error) {
	var rows []historyRow
	query := `SELECT id, reservation_id, action_type, old_date, new_date, refund_amount, cancellation_number, action_date
		FROM reservation_history WHERE reservation_id = $1 ORDER BY action_date, id`
	if err := r.db.SelectContext(ctx, &rows, query, reservationID); err != nil {
		return nil, wrapDBError("履歴取得", err)
	}
	result := make([]*reservation.History, len(rows))
	for i, row := range rows {
		result[i] = &reservation.History{
			ID: row.ID, ReservationID: row.ReservationID, ActionType: reservation.ActionType(row.ActionType),
			OldDate: row.OldDate, NewDate: row.NewDate, RefundAmount: row.RefundAmount,
			CancellationNumber: row.CancellationNumber, ActionDate: row.ActionDate,
		}
	}
	return result, nil
}

func (r *ReservationRepository) loadAll(ctx context.Context, q sqlx.QueryerContext, rows []reservationRow) ([]*reservation.Reservation, error) {
	result := make([]*reservation.Reservation, len(rows))
	for i := range rows {
		res, err := r.load(ctx, q, &rows[i])
		if err != nil {
			return nil, err
		}
		result[i] = res
	}
	return result, nil
}

func (r *ReservationRepository) load(ctx context.Context, q sqlx.QueryerContext, row *reservationRow) (*reservation.Reservation, error) {
	var tickets []ticketRow
	if err := sqlx.SelectContext(ctx, q, &tickets,
		`SELECT id, reservation_id, flight_schedule_id FROM reservation_tickets WHERE reservation_id = $1 ORDER BY id`, row.ID); err != nil {
		return nil, wrapDBError("搭乗区間取得", err)
	}
	var passengers []passengerRow
	if err := sqlx.SelectContext(ctx, q, &passengers,
		`SELECT id, reservation_id, title, first_name, last_name, date_of_birth, passport_number, passport_expiry
		 FROM reservation_passengers WHERE reservation_id = $1 ORDER BY id`, row.ID); err != nil {
		return nil, wrapDBError("搭乗者取得", err)
	}
	return toReservation(row, tickets, passengers), nil
}

func toReservation(row *reservationRow, tickets []ticketRow, passengers []passengerRow) *reservation.Reservation {
	res := &reservation.Reservation{
		ID: row.ID, UserID: row.UserID, Status: reservation.Status(row.Status),
		TotalFare: row.TotalFare, SeatCount: row.SeatCount,
		ReservationDate: row.ReservationDate, BlockExpiryDate: row.BlockExpiryDate,
		ConfirmationNumber: row.ConfirmationNumber, CancellationRules: row.CancellationRules,
		AwardedMiles: row.AwardedMiles,
		CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}
	res.Tickets = make([]reservation.Ticket, len(tickets))
	for i, t := range tickets {
		res.Tickets[i] = reservation.Ticket{ID: t.ID, ReservationID: t.ReservationID, FlightScheduleID: t.FlightScheduleID}
	}
	for _, p := range passengers {
		res.Passengers = append(res.Passengers, reservation.Passenger{
			ID: p.ID, ReservationID: p.ReservationID, Title: p.Title,
			FirstName: p.FirstName, LastName: p.LastName, DateOfBirth: p.DateOfBirth,
			PassportNumber: p.PassportNumber, PassportExpiry: p.PassportExpiry,
		})
	}
	return res
}

var _ reservation.Repository = (*ReservationRepository)(nil)
