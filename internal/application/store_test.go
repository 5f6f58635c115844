package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sanosuguru/go-flight-reservation/internal/domain/flight"
	"github.com/sanosuguru/go-flight-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-flight-reservation/internal/domain/transaction"
)

var errTxDone = errors.New("トランザクションは終了済みです")

// memStore はテスト用のインメモリ永続化層
// フライト・予約・マイルをまとめて保持し、トランザクションのロールバックは取り消し操作を逆順に適用して再現する
type memStore struct {
	mu           sync.Mutex
	flights      map[int64]*flight.Flight
	reservations map[int64]*reservation.Reservation
	history      map[int64][]*reservation.History
	miles        map[int64]decimal.Decimal

	nextFlightID, nextReservationID, nextTicketID, nextPassengerID, nextHistoryID int64

	commits   int
	rollbacks int
	commitErr error
}

func newMemStore() *memStore {
	return &memStore{
		flights:      make(map[int64]*flight.Flight),
		reservations: make(map[int64]*reservation.Reservation),
		history:      make(map[int64][]*reservation.History),
		miles:        make(map[int64]decimal.Decimal),
	}
}

func (m *memStore) addFlight(f flight.Flight) *flight.Flight {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextFlightID++
	f.ID = m.nextFlightID
	m.flights[f.ID] = &f
	c := f
	return &c
}

func (m *memStore) availableSeats(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flights[id].AvailableSeats
}

func (m *memStore) stored(id int64) *reservation.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.reservations[id]; ok {
		return cloneReservation(r)
	}
	return nil
}

func (m *memStore) balance(userID int64) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.miles[userID]
}

func (m *memStore) setBalance(userID int64, v decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.miles[userID] = v
}

func (m *memStore) reservationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reservations)
}

// === transaction.Manager ===

type memTx struct {
	store *memStore
	undo  []func()
	done  bool
}

func (m *memStore) Begin(ctx context.Context) (transaction.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memTx{store: m}, nil
}

func (t *memTx) Commit() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.done {
		return errTxDone
	}
	t.done = true
	if t.store.commitErr != nil {
		t.rollbackLocked()
		return t.store.commitErr
	}
	t.store.commits++
	return nil
}

func (t *memTx) Rollback() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.done {
		return errTxDone
	}
	t.done = true
	t.rollbackLocked()
	return nil
}

func (t *memTx) rollbackLocked() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	t.store.rollbacks++
}

func (m *memStore) onRollback(tx transaction.Tx, fn func()) {
	t := tx.(*memTx)
	t.undo = append(t.undo, fn)
}

// === flight.Repository ===

func (m *memStore) GetByID(ctx context.Context, id int64) (*flight.Flight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.flights[id]
	if !ok {
		return nil, flight.ErrFlightNotFound
	}
	c := *f
	return &c, nil
}

func (m *memStore) GetByIDTx(ctx context.Context, tx transaction.Tx, id int64) (*flight.Flight, error) {
	return m.GetByID(ctx, id)
}

func (m *memStore) Search(ctx context.Context, leg flight.Leg) ([]*flight.Flight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*flight.Flight
	for _, f := range m.flights {
		if leg.Matches(f) {
			c := *f
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].DepartureTime.Equal(*result[j].DepartureTime) {
			return result[i].DepartureTime.Before(*result[j].DepartureTime)
		}
		return result[i].Price.LessThan(result[j].Price)
	})
	return result, nil
}

// === flight.SeatInventory ===

func (m *memStore) TryDecrement(ctx context.Context, tx transaction.Tx, flightID int64, n int) error {
	if n < 1 {
		return flight.ErrInvalidSeatCount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.flights[flightID]
	if !ok {
		return flight.ErrFlightNotFound
	}
	if f.AvailableSeats < n {
		return flight.ErrInsufficientSeats
	}
	f.AvailableSeats -= n
	m.onRollback(tx, func() { f.AvailableSeats += n })
	return nil
}

func (m *memStore) Increment(ctx context.Context, tx transaction.Tx, flightID int64, n int) error {
	if n < 1 {
		return flight.ErrInvalidSeatCount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.flights[flightID]
	if !ok {
		return flight.ErrFlightNotFound
	}
	f.AvailableSeats += n
	m.onRollback(tx, func() { f.AvailableSeats -= n })
	return nil
}

func (m *memStore) CountAvailable(ctx context.Context, flightID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.flights[flightID]
	if !ok {
		return 0, flight.ErrFlightNotFound
	}
	return f.AvailableSeats, nil
}

// === reservation.Repository ===

type memReservations struct{ *memStore }

func (m memReservations) Create(ctx context.Context, tx transaction.Tx, r *reservation.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextReservationID++
	r.ID = m.nextReservationID
	for i := range r.Tickets {
		m.nextTicketID++
		r.Tickets[i].ID = m.nextTicketID
		r.Tickets[i].ReservationID = r.ID
	}
	for i := range r.Passengers {
		m.nextPassengerID++
		r.Passengers[i].ID = m.nextPassengerID
		r.Passengers[i].ReservationID = r.ID
	}
	id := r.ID
	m.reservations[id] = cloneReservation(r)
	m.onRollback(tx, func() { delete(m.reservations, id) })
	return nil
}

func (m memReservations) GetByID(ctx context.Context, id int64) (*reservation.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return nil, reservation.ErrReservationNotFound
	}
	return cloneReservation(r), nil
}

func (m memReservations) GetByIDForUpdate(ctx context.Context, tx transaction.Tx, id int64) (*reservation.Reservation, error) {
	return m.GetByID(ctx, id)
}

func (m memReservations) ListByUser(ctx context.Context, userID int64, statuses []reservation.Status) ([]*reservation.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*reservation.Reservation
	for _, r := range m.reservations {
		if r.UserID != userID || !hasStatus(statuses, r.Status) {
			continue
		}
		result = append(result, cloneReservation(r))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].ReservationDate.Equal(result[j].ReservationDate) {
			return result[i].ReservationDate.After(result[j].ReservationDate)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

func (m memReservations) Update(ctx context.Context, tx transaction.Tx, r *reservation.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.reservations[r.ID]
	if !ok {
		return reservation.ErrReservationNotFound
	}
	m.reservations[r.ID] = cloneReservation(r)
	m.onRollback(tx, func() { m.reservations[prev.ID] = prev })
	return nil
}

func (m memReservations) UpdateTicketFlight(ctx context.Context, tx transaction.Tx, ticketID, flightID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reservations {
		for i := range r.Tickets {
			if r.Tickets[i].ID != ticketID {
				continue
			}
			t := &r.Tickets[i]
			prev := t.FlightScheduleID
			t.FlightScheduleID = flightID
			resID := r.ID
			m.onRollback(tx, func() {
				if cur, ok := m.reservations[resID]; ok {
					for j := range cur.Tickets {
						if cur.Tickets[j].ID == ticketID {
							cur.Tickets[j].FlightScheduleID = prev
						}
					}
				}
			})
			return nil
		}
	}
	return errors.New("搭乗区間が見つかりません")
}

func (m memReservations) ListStaleBlocked(ctx context.Context, tx transaction.Tx, now time.Time, leadTime time.Duration) ([]*reservation.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*reservation.Reservation
	for _, r := range m.reservations {
		if r.Status != reservation.StatusBlocked {
			continue
		}
		stale := r.IsBlockExpired(now)
		for _, t := range r.Tickets {
			if f, ok := m.flights[t.FlightScheduleID]; ok && f.DepartsWithin(leadTime, now) {
				stale = true
			}
		}
		if stale {
			result = append(result, cloneReservation(r))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m memReservations) AppendHistory(ctx context.Context, tx transaction.Tx, h *reservation.History) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextHistoryID++
	h.ID = m.nextHistoryID
	c := *h
	m.history[h.ReservationID] = append(m.history[h.ReservationID], &c)
	resID, histID := h.ReservationID, h.ID
	m.onRollback(tx, func() {
		rows := m.history[resID]
		for i, row := range rows {
			if row.ID == histID {
				m.history[resID] = append(rows[:i], rows[i+1:]...)
				break
			}
		}
	})
	return nil
}

func (m memReservations) ListHistory(ctx context.Context, reservationID int64) ([]*reservation.History, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.history[reservationID]
	result := make([]*reservation.History, len(rows))
	for i, h := range rows {
		c := *h
		result[i] = &c
	}
	return result, nil
}

// === loyalty.Repository ===

type memLoyalty struct{ *memStore }

func (m memLoyalty) Credit(ctx context.Context, tx transaction.Tx, userID int64, miles decimal.Decimal) error {
	if !miles.IsPositive() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.miles[userID] = m.miles[userID].Add(miles)
	m.onRollback(tx, func() { m.miles[userID] = m.miles[userID].Sub(miles) })
	return nil
}

func (m memLoyalty) Debit(ctx context.Context, tx transaction.Tx, userID int64, miles decimal.Decimal) error {
	if !miles.IsPositive() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	actual := decimal.Min(miles, m.miles[userID])
	m.miles[userID] = m.miles[userID].Sub(actual)
	m.onRollback(tx, func() { m.miles[userID] = m.miles[userID].Add(actual) })
	return nil
}

func (m memLoyalty) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.miles[userID], nil
}

func hasStatus(statuses []reservation.Status, s reservation.Status) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

func cloneReservation(r *reservation.Reservation) *reservation.Reservation {
	c := *r
	c.Tickets = append([]reservation.Ticket(nil), r.Tickets...)
	c.Passengers = append([]reservation.Passenger(nil), r.Passengers...)
	if r.BlockExpiryDate != nil {
		t := *r.BlockExpiryDate
		c.BlockExpiryDate = &t
	}
	return &c
}
