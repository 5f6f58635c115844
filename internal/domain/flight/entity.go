package flight

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultDistance は距離未登録のフライトに用いるマイル計算用の距離
const DefaultDistance = 1000.0

// Flight はフライトスケジュールを表す
type Flight struct {
	ID                 int64
	AirlineID          int64
	AircraftID         int64
	DepartureAirportID int64
	ArrivalAirportID   int64
	DepartureTime      *time.Time
	ArrivalTime        *time.Time
	Stops              int
	FlightClass        string
	Price              decimal.Decimal
	Distance           *float64
	AvailableSeats     int
	UpdatedAt          time.Time
}

// EffectiveDistance はマイル計算に使う距離を返す
func (f *Flight) EffectiveDistance() float64 {
	if f.Distance == nil {
		return DefaultDistance
	}
	return *f.Distance
}

// HasDeparture は出発日時が登録済みかを返す
func (f *Flight) HasDeparture() bool {
	return f.DepartureTime != nil
}

// LeadTime は now から出発までの残り時間を返す
func (f *Flight) LeadTime(now time.Time) (time.Duration, error) {
	if f.DepartureTime == nil {
		return 0, ErrDepartureNotScheduled
	}
	return f.DepartureTime.Sub(now), nil
}

// DepartsWithin は出発が now から d 以内（出発済みを含む）かを返す
// 出発日時未登録のフライトは false
func (f *Flight) DepartsWithin(d time.Duration, now time.Time) bool {
	if f.DepartureTime == nil {
		return false
	}
	return f.DepartureTime.Sub(now) < d
}

// HasSeats は n 席以上の空席があるかを返す
func (f *Flight) HasSeats(n int) bool {
	return f.AvailableSeats >= n
}

// EarliestDeparture は出発日時が登録されたフライトのうち最も早い出発日時を返す
func EarliestDeparture(flights []*Flight) *time.Time {
	var earliest *time.Time
	for _, f := range flights {
		if f == nil || f.DepartureTime == nil {
			continue
		}
		if earliest == nil || f.DepartureTime.Before(*earliest) {
			t := *f.DepartureTime
			earliest = &t
		}
	}
	return earliest
}
