package flight

import "time"

// SearchCriteria はフライト検索条件
type SearchCriteria struct {
	DepartureAirportID int64
	ArrivalAirportID   int64
	DepartureDate      time.Time
	ReturnDate         *time.Time
	FlightClass        string
	Adults             int
	Children           int
}

// Passengers は座席が必要な人数を返す
func (c SearchCriteria) Passengers() int {
	return c.Adults + c.Children
}

// Validate は検索条件の検証を行う
func (c SearchCriteria) Validate() error {
	if c.DepartureAirportID <= 0 || c.ArrivalAirportID <= 0 {
		return ErrInvalidSearchCriteria
	}
	if c.DepartureAirportID == c.ArrivalAirportID {
		return ErrInvalidSearchCriteria
	}
	if c.DepartureDate.IsZero() || c.Adults < 1 || c.Children < 0 {
		return ErrInvalidSearchCriteria
	}
	if c.ReturnDate != nil && c.ReturnDate.Before(c.DepartureDate) {
		return ErrInvalidSearchCriteria
	}
	return nil
}

// Leg は片道分の検索条件
type Leg struct {
	DepartureAirportID int64
	ArrivalAirportID   int64
	Date               time.Time
	FlightClass        string
	Seats              int
}

// Outbound は往路の検索条件を返す
func (c SearchCriteria) Outbound() Leg {
	return Leg{
		DepartureAirportID: c.DepartureAirportID,
		ArrivalAirportID:   c.ArrivalAirportID,
		Date:               c.DepartureDate,
		FlightClass:        c.FlightClass,
		Seats:              c.Passengers(),
	}
}

// Return は復路の検索条件を返す。片道検索では false
func (c SearchCriteria) Return() (Leg, bool) {
	if c.ReturnDate == nil {
		return Leg{}, false
	}
	return Leg{
		DepartureAirportID: c.ArrivalAirportID,
		ArrivalAirportID:   c.DepartureAirportID,
		Date:               *c.ReturnDate,
		FlightClass:        c.FlightClass,
		Seats:              c.Passengers(),
	}, true
}

// Matches はフライトが片道条件に合致するかを返す
func (l Leg) Matches(f *Flight) bool {
	if f.DepartureAirportID != l.DepartureAirportID || f.ArrivalAirportID != l.ArrivalAirportID {
		return false
	}
	if f.DepartureTime == nil {
		return false
	}
	y1, m1, d1 := f.DepartureTime.UTC().Date()
	y2, m2, d2 := l.Date.UTC().Date()
	if y1 != y2 || m1 != m2 || d1 != d2 {
		return false
	}
	if l.FlightClass != "" && f.FlightClass != l.FlightClass {
		return false
	}
	return f.AvailableSeats >= l.Seats
}
