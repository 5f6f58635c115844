package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/sanosuguru/go-flight-reservation/internal/domain/flight"
	"github.com/sanosuguru/go-flight-reservation/internal/domain/transaction"
)

const flightColumns = `id, airline_id, aircraft_id, departure_airport_id, arrival_airport_id,
	departure_time, arrival_time, stops, flight_class, price, distance, available_seats, updated_at`

type flightRow struct {
	ID                 int64           `db:"id"`
	AirlineID          int64           `db:"airline_id"`
	AircraftID         int64           `db:"aircraft_id"`
	DepartureAirportID int64           `db:"departure_airport_id"`
	ArrivalAirportID   int64           `db:"arrival_airport_id"`
	DepartureTime      *time.Time      `db:"departure_time"`
	ArrivalTime        *time.Time      `db:"arrival_time"`
	Stops              int             `db:"stops"`
	FlightClass        string          `db:"flight_class"`
	Price              decimal.Decimal `db:"price"`
	Distance           *float64        `db:"distance"`
	AvailableSeats     int             `db:"available_seats"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

func (r *flightRow) toEntity() *flight.Flight {
	return &flight.Flight{
		ID: r.ID, AirlineID: r.AirlineID, AircraftID: r.AircraftID,
		DepartureAirportID: r.DepartureAirportID, ArrivalAirportID: r.ArrivalAirportID,
		DepartureTime: r.DepartureTime, ArrivalTime: r.ArrivalTime,
		Stops: r.Stops, FlightClass: r.FlightClass, Price: r.Price,
		Distance: r.Distance, AvailableSeats: r.AvailableSeats, UpdatedAt: r.UpdatedAt,
	}
}

type FlightRepository struct{ db *sqlx.DB }

func NewFlightRepository(db *sqlx.DB) *FlightRepository { return &FlightRepository{db: db} }

// Create はフライトスケジュールを登録する
func (r *FlightRepository) Create(ctx context.Context, f *flight.Flight) error {
	query := `INSERT INTO flight_schedules (airline_id, aircraft_id, departure_airport_id, arrival_airport_id,
		departure_time, arrival_time, stops, flight_class, price, distance, available_seats, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW()) RETURNING id, updated_at`
	err := r.db.QueryRowxContext(ctx, query,
		f.AirlineID, f.AircraftID, f.DepartureAirportID, f.ArrivalAirportID,
		f.DepartureTime, f.ArrivalTime, f.Stops, f.FlightClass, f.Price, f.Distance, f.AvailableSeats,
	).Scan(&f.ID, &f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("フライト登録に失敗: %w", err)
	}
	return nil
}

func (r *FlightRepository) GetByID(ctx context.Context, id int64) (*flight.Flight, error) {
	return getFlight(ctx, r.db, id)
}

func (r *FlightRepository) GetByIDTx(ctx context.Context, tx transaction.Tx, id int64) (*flight.Flight, error) {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return nil, err
	}
	return getFlight(ctx, sqlTx, id)
}

func getFlight(ctx context.Context, q sqlx.QueryerContext, id int64) (*flight.Flight, error) {
	var row flightRow
	if err := sqlx.GetContext(ctx, q, &row, `SELECT `+flightColumns+` FROM flight_schedules WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, flight.ErrFlightNotFound
		}
		return nil, wrapDBError("フライト取得", err)
	}
	return row.toEntity(), nil
}

// Search は出発日（UTC）の0時から24時間以内に出発するフライトを返す
func (r *FlightRepository) Search(ctx context.Context, leg flight.Leg) ([]*flight.Flight, error) {
	y, m, d := leg.Date.UTC().Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	query := `SELECT ` + flightColumns + ` FROM flight_schedules
		WHERE departure_airport_id = $1 AND arrival_airport_id = $2
		  AND departure_time >= $3 AND departure_time < $4
		  AND available_seats >= $5
		  AND ($6::text = '' OR flight_class = $6::text)
		ORDER BY departure_time, price`
	var rows []flightRow
	if err := r.db.SelectContext(ctx, &rows, query,
		leg.DepartureAirportID, leg.ArrivalAirportID, from, to, leg.Seats, leg.FlightClass); err != nil {
		return nil, wrapDBError("フライト検索", err)
	}
	result := make([]*flight.Flight, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result, nil
}

var _ flight.Repository = (*FlightRepository)(nil)
