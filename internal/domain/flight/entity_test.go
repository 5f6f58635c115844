package flight

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrTime(t time.Time) *time.Time { return &t }

func TestFlight_EffectiveDistance(t *testing.T) {
	d := 2500.0
	assert.Equal(t, 2500.0, (&Flight{Distance: &d}).EffectiveDistance())
	assert.Equal(t, DefaultDistance, (&Flight{}).EffectiveDistance())
}

func TestFlight_LeadTime(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	f := &Flight{DepartureTime: ptrTime(now.Add(48 * time.Hour))}
	lead, err := f.LeadTime(now)
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, lead)

	_, err = (&Flight{}).LeadTime(now)
	assert.ErrorIs(t, err, ErrDepartureNotScheduled)
	assert.ErrorIs(t, err, ErrFlightUnavailable)
}

func TestFlight_DepartsWithin(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	window := 14 * 24 * time.Hour

	tests := []struct {
		name string
		dep  *time.Time
		want bool
	}{
		{"13日後", ptrTime(now.Add(13 * 24 * time.Hour)), true},
		{"ちょうど14日後", ptrTime(now.Add(window)), false},
		{"20日後", ptrTime(now.Add(20 * 24 * time.Hour)), false},
		{"出発済み", ptrTime(now.Add(-time.Hour)), true},
		{"出発日時未定", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &Flight{DepartureTime: tt.dep}
			assert.Equal(t, tt.want, f.DepartsWithin(window, now))
		})
	}
}

func TestFlight_HasSeats(t *testing.T) {
	f := &Flight{AvailableSeats: 2}
	assert.True(t, f.HasSeats(2))
	assert.False(t, f.HasSeats(3))
}

func TestEarliestDeparture(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	flights := []*Flight{
		{ID: 1, DepartureTime: ptrTime(now.Add(72 * time.Hour))},
		{ID: 2},
		{ID: 3, DepartureTime: ptrTime(now.Add(24 * time.Hour))},
	}

	got := EarliestDeparture(flights)
	require.NotNil(t, got)
	assert.Equal(t, now.Add(24*time.Hour), *got)

	assert.Nil(t, EarliestDeparture([]*Flight{{ID: 9}}))
}

func TestSearchCriteria(t *testing.T) {
	dep := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	ret := dep.Add(7 * 24 * time.Hour)

	c := SearchCriteria{
		DepartureAirportID: 1, ArrivalAirportID: 2,
		DepartureDate: dep, ReturnDate: &ret,
		FlightClass: "Economy", Adults: 2, Children: 1,
	}
	require.NoError(t, c.Validate())
	assert.Equal(t, 3, c.Passengers())

	out := c.Outbound()
	assert.Equal(t, int64(1), out.DepartureAirportID)
	assert.Equal(t, int64(2), out.ArrivalAirportID)

	back, ok := c.Return()
	require.True(t, ok)
	assert.Equal(t, int64(2), back.DepartureAirportID)
	assert.Equal(t, int64(1), back.ArrivalAirportID)
	assert.Equal(t, ret, back.Date)

	c.ReturnDate = nil
	_, ok = c.Return()
	assert.False(t, ok)
}

func TestSearchCriteria_Validate(t *testing.T) {
	dep := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	before := dep.Add(-24 * time.Hour)

	tests := []struct {
		name string
		c    SearchCriteria
	}{
		{"出発空港未指定", SearchCriteria{ArrivalAirportID: 2, DepartureDate: dep, Adults: 1}},
		{"同一空港", SearchCriteria{DepartureAirportID: 2, ArrivalAirportID: 2, DepartureDate: dep, Adults: 1}},
		{"大人0人", SearchCriteria{DepartureAirportID: 1, ArrivalAirportID: 2, DepartureDate: dep}},
		{"復路が往路より前", SearchCriteria{DepartureAirportID: 1, ArrivalAirportID: 2, DepartureDate: dep, ReturnDate: &before, Adults: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.c.Validate(), ErrInvalidSearchCriteria)
		})
	}
}

func TestLeg_Matches(t *testing.T) {
	dep := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	leg := Leg{DepartureAirportID: 1, ArrivalAirportID: 2, Date: dep.Truncate(24 * time.Hour), FlightClass: "Economy", Seats: 2}

	base := Flight{
		DepartureAirportID: 1, ArrivalAirportID: 2, DepartureTime: &dep,
		FlightClass: "Economy", AvailableSeats: 2, Price: decimal.NewFromInt(300),
	}

	f := base
	assert.True(t, leg.Matches(&f))

	f = base
	f.AvailableSeats = 1
	assert.False(t, leg.Matches(&f), "空席不足")

	f = base
	f.FlightClass = "Business"
	assert.False(t, leg.Matches(&f), "クラス違い")

	f = base
	next := dep.Add(24 * time.Hour)
	f.DepartureTime = &next
	assert.False(t, leg.Matches(&f), "日付違い")

	f = base
	f.DepartureTime = nil
	assert.False(t, leg.Matches(&f), "出発日時未定")
}
