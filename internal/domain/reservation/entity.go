package reservation

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status は予約の状態を表す
type Status string

const (
	StatusBlocked   Status = "Blocked"
	StatusConfirmed Status = "Confirmed"
	StatusCancelled Status = "Cancelled"
)

const (
	// BlockDuration は仮押さえの有効期間
	BlockDuration = 14 * 24 * time.Hour
	// MinLeadTime は仮押さえ・確定に必要な出発までの最短期間
	MinLeadTime = 14 * 24 * time.Hour
	// DefaultCancellationRules は予約作成時に設定するキャンセル規定
	DefaultCancellationRules = "Default rules"
)

// Reservation は予約エンティティを表す
type Reservation struct {
	ID                 int64
	UserID             int64
	Status             Status
	TotalFare          decimal.Decimal
	SeatCount          int
	ReservationDate    time.Time
	BlockExpiryDate    *time.Time
	ConfirmationNumber string
	CancellationRules  string
	AwardedMiles       decimal.Decimal // 作成時に付与したマイル
	Tickets            []Ticket
	Passengers         []Passenger
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Ticket は予約とフライトを結ぶ搭乗区間
type Ticket struct {
	ID               int64
	ReservationID    int64
	FlightScheduleID int64
}

// NewBlocked は仮押さえ状態の予約を作成する
func NewBlocked(userID, flightID int64, seatCount int, fare decimal.Decimal, confirmationNumber string, now time.Time) *Reservation {
	expiry := now.Add(BlockDuration)
	return &Reservation{
		UserID:             userID,
		Status:             StatusBlocked,
		TotalFare:          fare,
		SeatCount:          seatCount,
		ReservationDate:    now,
		BlockExpiryDate:    &expiry,
		ConfirmationNumber: confirmationNumber,
		CancellationRules:  DefaultCancellationRules,
		Tickets:            []Ticket{{FlightScheduleID: flightID}},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// NewConfirmed は確定状態の予約を作成する
// 搭乗区間は flightIDs の順に1つずつ作られる
func NewConfirmed(userID int64, flightIDs []int64, passengers []Passenger, fare decimal.Decimal, confirmationNumber string, now time.Time) *Reservation {
	tickets := make([]Ticket, len(flightIDs))
	for i, id := range flightIDs {
		tickets[i] = Ticket{FlightScheduleID: id}
	}
	return &Reservation{
		UserID:             userID,
		Status:             StatusConfirmed,
		TotalFare:          fare,
		SeatCount:          len(passengers),
		ReservationDate:    now,
		ConfirmationNumber: confirmationNumber,
		CancellationRules:  DefaultCancellationRules,
		Tickets:            tickets,
		Passengers:         passengers,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// FlightIDs は搭乗区間のフライトIDを返す
func (r *Reservation) FlightIDs() []int64 {
	ids := make([]int64, len(r.Tickets))
	for i, t := range r.Tickets {
		ids[i] = t.FlightScheduleID
	}
	return ids
}

// SeatsPerLeg は1区間あたりに押さえている座席数を返す（最小1）
func (r *Reservation) SeatsPerLeg() int {
	if r.SeatCount > 0 {
		return r.SeatCount
	}
	if len(r.Passengers) > 0 {
		return len(r.Passengers)
	}
	return 1
}

// IsOwnedBy は予約が指定ユーザーのものかを返す
func (r *Reservation) IsOwnedBy(userID int64) bool {
	return r.UserID == userID
}

// IsBlockExpired は仮押さえの有効期限が切れているかを返す
func (r *Reservation) IsBlockExpired(now time.Time) bool {
	return r.BlockExpiryDate != nil && r.BlockExpiryDate.Before(now)
}

// Confirm は仮押さえを確定する
func (r *Reservation) Confirm(confirmationNumber string, now time.Time) error {
	if r.Status != StatusBlocked {
		return ErrReservationNotBlocked
	}
	if r.IsBlockExpired(now) {
		return ErrBlockExpired
	}
	r.Status = StatusConfirmed
	r.ConfirmationNumber = confirmationNumber
	r.BlockExpiryDate = nil
	r.UpdatedAt = now
	return nil
}

// Cancel は予約をキャンセルする
func (r *Reservation) Cancel(now time.Time) error {
	if r.Status == StatusCancelled {
		return ErrReservationAlreadyCancelled
	}
	r.Status = StatusCancelled
	r.BlockExpiryDate = nil
	r.UpdatedAt = now
	return nil
}

// Reschedule は単一区間の予約を別フライトへ振り替える
func (r *Reservation) Reschedule(newFlightID int64, newFare decimal.Decimal, confirmationNumber string, now time.Time) error {
	if r.Status == StatusCancelled {
		return ErrReservationAlreadyCancelled
	}
	if len(r.Tickets) != 1 {
		return ErrNotSingleLeg
	}
	r.Tickets[0].FlightScheduleID = newFlightID
	r.TotalFare = newFare
	r.ConfirmationNumber = confirmationNumber
	r.UpdatedAt = now
	return nil
}

// Validate は予約の検証を行う
func (r *Reservation) Validate() error {
	if r.UserID <= 0 {
		return ErrUserIDRequired
	}
	if len(r.Tickets) == 0 {
		return ErrFlightRequired
	}
	if r.SeatCount < 1 {
		return ErrInvalidPassengerCount
	}
	if r.TotalFare.IsNegative() {
		return ErrNegativeFare
	}
	return nil
}

// Passenger は直接予約の搭乗者情報
type Passenger struct {
	ID             int64
	ReservationID  int64
	Title          string
	FirstName      string
	LastName       string
	DateOfBirth    time.Time
	PassportNumber string
	PassportExpiry time.Time
}

// Validate は搭乗者情報の検証を行う
func (p Passenger) Validate(now time.Time) error {
	if strings.TrimSpace(p.Title) == "" ||
		strings.TrimSpace(p.FirstName) == "" ||
		strings.TrimSpace(p.LastName) == "" ||
		strings.TrimSpace(p.PassportNumber) == "" {
		return ErrPassengerFieldRequired
	}
	if p.DateOfBirth.IsZero() || p.PassportExpiry.IsZero() {
		return ErrPassengerFieldRequired
	}
	today := dateOf(now)
	if dateOf(p.DateOfBirth).After(today) {
		return ErrDateOfBirthInFuture
	}
	if dateOf(p.PassportExpiry).Before(today) {
		return ErrPassportExpired
	}
	return nil
}

// dateOf は時刻を切り捨てた UTC の日付を返す
func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
