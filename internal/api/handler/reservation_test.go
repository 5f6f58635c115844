package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-flight-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-flight-reservation/internal/application"
	"github.com/sanosuguru/go-flight-reservation/internal/domain/flight"
	"github.com/sanosuguru/go-flight-reservation/internal/domain/reservation"
)

var testNow = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func blockedReservation() *reservation.Reservation {
	return reservation.NewBlocked(1, 101, 2, decimal.NewFromInt(1000), "conf-1", testNow)
}

// newContext はリクエストを作り、userID が正なら利用者IDを設定する
func newContext(e *echo.Echo, method, target, body string, userID int64) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if userID > 0 {
		middleware.SetUserID(c, userID)
	}
	return c, rec
}

func withID(c echo.Context, id string) echo.Context {
	c.SetParamNames("id")
	c.SetParamValues(id)
	return c
}

func requireHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "HTTPErrorではない: %v", err)
	assert.Equal(t, code, he.Code)
}

func TestReservationHandler_Block(t *testing.T) {
	e := NewTestEcho()

	t.Run("正常に仮押さえできる", func(t *testing.T) {
		svc := new(MockReservationService)
		res := blockedReservation()
		res.ID = 10
		svc.On("Block", mock.Anything, application.BlockInput{UserID: 1, FlightID: 101, PassengerCount: 2}).Return(res, nil)

		c, rec := newContext(e, http.MethodPost, "/reservations/block", `{"flight_id": 101, "passenger_count": 2}`, 1)
		err := NewReservationHandler(svc).Block(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp ReservationResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(10), resp.ID)
		assert.Equal(t, "Blocked", resp.Status)
		assert.Equal(t, []int64{101}, resp.FlightIDs)
		assert.Equal(t, 2, resp.SeatCount)
		require.NotNil(t, resp.BlockExpiryDate)
		svc.AssertExpectations(t)
	})

	t.Run("利用者IDがない場合401", func(t *testing.T) {
		svc := new(MockReservationService)
		c, _ := newContext(e, http.MethodPost, "/reservations/block", `{"flight_id": 101, "passenger_count": 2}`, 0)

		err := NewReservationHandler(svc).Block(c)

		requireHTTPError(t, err, http.StatusUnauthorized)
		svc.AssertNotCalled(t, "Block", mock.Anything, mock.Anything)
	})

	t.Run("入力値不正で400", func(t *testing.T) {
		for _, body := range []string{`invalid`, `{"flight_id": 101, "passenger_count": 0}`, `{"passenger_count": 1}`} {
			svc := new(MockReservationService)
			c, _ := newContext(e, http.MethodPost, "/reservations/block", body, 1)

			err := NewReservationHandler(svc).Block(c)

			requireHTTPError(t, err, http.StatusBadRequest)
		}
	})

	t.Run("出発まで14日未満は422", func(t *testing.T) {
		svc := new(MockReservationService)
		svc.On("Block", mock.Anything, mock.Anything).Return(nil, reservation.ErrTooCloseToDeparture)
		c, _ := newContext(e, http.MethodPost, "/reservations/block", `{"flight_id": 101, "passenger_count": 1}`, 1)

		err := NewReservationHandler(svc).Block(c)

		requireHTTPError(t, err, http.StatusUnprocessableEntity)
	})

	t.Run("空席不足は409", func(t *testing.T) {
		svc := new(MockReservationService)
		svc.On("Block", mock.Anything, mock.Anything).Return(nil, flight.ErrInsufficientSeats)
		c, _ := newContext(e, http.MethodPost, "/reservations/block", `{"flight_id": 101, "passenger_count": 1}`, 1)

		err := NewReservationHandler(svc).Block(c)

		requireHTTPError(t, err, http.StatusConflict)
	})
}

func TestReservationHandler_Create(t *testing.T) {
	e := NewTestEcho()
	body := `{
		"outbound_flight_id": 101,
		"return_flight_id": 202,
		"total_fare": "1800.50",
		"passengers": [{
			"title": "Mr", "first_name": "Taro", "last_name": "Yamada",
			"date_of_birth": "1990-04-01", "passport_number": "TK1234567", "passport_expiry": "2030-12-31"
		}]
	}`

	t.Run("往復予約を作成できる", func(t *testing.T) {
		svc := new(MockReservationService)
		res := reservation.NewConfirmed(1, []int64{101, 202}, []reservation.Passenger{{FirstName: "Taro"}}, decimal.RequireFromString("1800.50"), "conf-2", testNow)
		res.ID = 11
		svc.On("CreateDirect", mock.Anything, mock.MatchedBy(func(in application.CreateDirectInput) bool {
			return in.UserID == 1 && in.OutboundFlightID == 101 &&
				in.ReturnFlightID != nil && *in.ReturnFlightID == 202 &&
				len(in.Passengers) == 1 &&
				in.Passengers[0].DateOfBirth.Equal(time.Date(1990, 4, 1, 0, 0, 0, 0, time.UTC)) &&
				in.TotalFare.Equal(decimal.RequireFromString("1800.50"))
		})).Return(res, nil)

		c, rec := newContext(e, http.MethodPost, "/reservations", body, 1)
		err := NewReservationHandler(svc).Create(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp ReservationResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Confirmed", resp.Status)
		assert.Equal(t, []int64{101, 202}, resp.FlightIDs)
		assert.Nil(t, resp.BlockExpiryDate)
		svc.AssertExpectations(t)
	})

	t.Run("日付形式が不正", func(t *testing.T) {
		svc := new(MockReservationService)
		bad := strings.Replace(body, "1990-04-01", "01/04/1990", 1)
		c, _ := newContext(e, http.MethodPost, "/reservations", bad, 1)

		err := NewReservationHandler(svc).Create(c)

		requireHTTPError(t, err, http.StatusBadRequest)
		svc.AssertNotCalled(t, "CreateDirect", mock.Anything, mock.Anything)
	})

	t.Run("搭乗者なし", func(t *testing.T) {
		svc := new(MockReservationService)
		c, _ := newContext(e, http.MethodPost, "/reservations", `{"outbound_flight_id": 101, "passengers": []}`, 1)

		err := NewReservationHandler(svc).Create(c)

		requireHTTPError(t, err, http.StatusBadRequest)
	})

	t.Run("サービスの検証エラーは400", func(t *testing.T) {
		svc := new(MockReservationService)
		svc.On("CreateDirect", mock.Anything, mock.Anything).Return(nil, reservation.ErrPassportExpired)
		c, _ := newContext(e, http.MethodPost, "/reservations", body, 1)

		err := NewReservationHandler(svc).Create(c)

		requireHTTPError(t, err, http.StatusBadRequest)
	})
}

func TestReservationHandler_Confirm(t *testing.T) {
	e := NewTestEcho()

	tests := []struct {
		name     string
		id       string
		err      error
		wantCode int
	}{
		{"確定できる", "10", nil, http.StatusOK},
		{"見つからない", "10", reservation.ErrReservationNotFound, http.StatusNotFound},
		{"仮押さえではない", "10", reservation.ErrReservationNotBlocked, http.StatusConflict},
		{"出発が近い", "10", reservation.ErrTooCloseToDeparture, http.StatusUnprocessableEntity},
		{"同時更新", "10", reservation.ErrConcurrencyConflict, http.StatusConflict},
		{"IDが数値でない", "abc", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockReservationService)
			if tt.err != nil {
				svc.On("Confirm", mock.Anything, int64(10), int64(1)).Return(nil, tt.err)
			} else {
				res := blockedReservation()
				require.NoError(t, res.Confirm("conf-9", testNow))
				svc.On("Confirm", mock.Anything, int64(10), int64(1)).Return(res, nil)
			}
			c, rec := newContext(e, http.MethodPost, "/reservations/"+tt.id+"/confirm", "", 1)

			err := NewReservationHandler(svc).Confirm(withID(c, tt.id))

			if tt.wantCode == http.StatusOK {
				require.NoError(t, err)
				assert.Equal(t, http.StatusOK, rec.Code)
				assert.Contains(t, rec.Body.String(), `"status":"Confirmed"`)
				return
			}
			requireHTTPError(t, err, tt.wantCode)
		})
	}
}

func TestReservationHandler_Reschedule(t *testing.T) {
	e := NewTestEcho()

	t.Run("振替できる", func(t *testing.T) {
		svc := new(MockReservationService)
		res := blockedReservation()
		require.NoError(t, res.Reschedule(105, decimal.NewFromInt(800), "conf-3", testNow))
		svc.On("Reschedule", mock.Anything, application.RescheduleInput{ReservationID: 10, UserID: 1, NewFlightID: 105}).Return(res, nil)

		c, rec := newContext(e, http.MethodPut, "/reservations/10/reschedule", `{"new_flight_id": 105}`, 1)
		err := NewReservationHandler(svc).Reschedule(withID(c, "10"))

		require.NoError(t, err)
		var resp ReservationResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, []int64{105}, resp.FlightIDs)
		assert.True(t, decimal.NewFromInt(800).Equal(resp.TotalFare))
	})

	t.Run("往復予約は409", func(t *testing.T) {
		svc := new(MockReservationService)
		svc.On("Reschedule", mock.Anything, mock.Anything).Return(nil, reservation.ErrNotSingleLeg)

		c, _ := newContext(e, http.MethodPut, "/reservations/10/reschedule", `{"new_flight_id": 105}`, 1)
		err := NewReservationHandler(svc).Reschedule(withID(c, "10"))

		requireHTTPError(t, err, http.StatusConflict)
	})

	t.Run("振替先なし", func(t *testing.T) {
		svc := new(MockReservationService)
		c, _ := newContext(e, http.MethodPut, "/reservations/10/reschedule", `{}`, 1)

		err := NewReservationHandler(svc).Reschedule(withID(c, "10"))

		requireHTTPError(t, err, http.StatusBadRequest)
	})
}

func TestReservationHandler_Cancel(t *testing.T) {
	e := NewTestEcho()

	t.Run("払い戻し額とキャンセル番号を返す", func(t *testing.T) {
		svc := new(MockReservationService)
		res := blockedReservation()
		require.NoError(t, res.Cancel(testNow))
		svc.On("Cancel", mock.Anything, int64(10), int64(1)).Return(&application.CancelResult{
			Reservation: res, RefundAmount: decimal.NewFromInt(900), CancellationNumber: "cxl-1",
		}, nil)

		c, rec := newContext(e, http.MethodDelete, "/reservations/10", "", 1)
		err := NewReservationHandler(svc).Cancel(withID(c, "10"))

		require.NoError(t, err)
		var resp CancelResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Cancelled", resp.Reservation.Status)
		assert.True(t, decimal.NewFromInt(900).Equal(resp.RefundAmount))
		assert.Equal(t, "cxl-1", resp.CancellationNumber)
	})

	t.Run("キャンセル済みは409", func(t *testing.T) {
		svc := new(MockReservationService)
		svc.On("Cancel", mock.Anything, int64(10), int64(1)).Return(nil, reservation.ErrReservationAlreadyCancelled)

		c, _ := newContext(e, http.MethodDelete, "/reservations/10", "", 1)
		err := NewReservationHandler(svc).Cancel(withID(c, "10"))

		requireHTTPError(t, err, http.StatusConflict)
	})
}

func TestReservationHandler_CancelRules(t *testing.T) {
	e := NewTestEcho()
	svc := new(MockReservationService)
	svc.On("PreviewCancelRules", mock.Anything, int64(10), int64(1)).Return(&application.CancelPreview{
		ReservationID: 10, DaysUntilDeparture: 10,
		RefundPercentage: decimal.RequireFromString("0.9"), RefundAmount: decimal.NewFromInt(900),
		Rules: reservation.DefaultCancellationRules,
	}, nil)

	c, rec := newContext(e, http.MethodGet, "/reservations/10/cancel-rules", "", 1)
	err := NewReservationHandler(svc).CancelRules(withID(c, "10"))

	require.NoError(t, err)
	var resp CancelRulesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 10, resp.DaysUntilDeparture)
	assert.True(t, decimal.NewFromInt(900).Equal(resp.RefundAmount))
	assert.Equal(t, "Default rules", resp.Rules)
}

func TestReservationHandler_List(t *testing.T) {
	e := NewTestEcho()

	t.Run("状態で絞り込む", func(t *testing.T) {
		svc := new(MockReservationService)
		svc.On("ListByUser", mock.Anything, int64(1), []reservation.Status{reservation.StatusBlocked, reservation.StatusConfirmed}).
			Return([]*reservation.Reservation{blockedReservation()}, nil)

		c, rec := newContext(e, http.MethodGet, "/reservations?status=Blocked,Confirmed", "", 1)
		err := NewReservationHandler(svc).List(c)

		require.NoError(t, err)
		var resp []ReservationResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp, 1)
		svc.AssertExpectations(t)
	})

	t.Run("絞り込みなし", func(t *testing.T) {
		svc := new(MockReservationService)
		svc.On("ListByUser", mock.Anything, int64(1), []reservation.Status(nil)).Return([]*reservation.Reservation{}, nil)

		c, rec := newContext(e, http.MethodGet, "/reservations", "", 1)
		err := NewReservationHandler(svc).List(c)

		require.NoError(t, err)
		assert.Equal(t, "[]\n", rec.Body.String())
	})

	t.Run("不正な状態", func(t *testing.T) {
		svc := new(MockReservationService)
		c, _ := newContext(e, http.MethodGet, "/reservations?status=Pending", "", 1)

		err := NewReservationHandler(svc).List(c)

		requireHTTPError(t, err, http.StatusBadRequest)
	})
}

func TestReservationHandler_GetByID(t *testing.T) {
	e := NewTestEcho()

	t.Run("フライト情報付きで取得", func(t *testing.T) {
		svc := new(MockReservationService)
		dep := testNow.Add(30 * 24 * time.Hour)
		svc.On("GetDetail", mock.Anything, int64(10), int64(1)).Return(&application.ReservationDetail{
			Reservation: blockedReservation(),
			Flights:     []*flight.Flight{{ID: 101, DepartureTime: &dep, Price: decimal.NewFromInt(1000), FlightClass: "Economy"}},
		}, nil)

		c, rec := newContext(e, http.MethodGet, "/reservations/10", "", 1)
		err := NewReservationHandler(svc).GetByID(withID(c, "10"))

		require.NoError(t, err)
		var resp ReservationDetailResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Flights, 1)
		assert.Equal(t, int64(101), resp.Flights[0].ID)
		assert.Equal(t, "Blocked", resp.Status)
	})

	t.Run("他人の予約は404", func(t *testing.T) {
		svc := new(MockReservationService)
		svc.On("GetDetail", mock.Anything, int64(10), int64(2)).Return(nil, reservation.ErrReservationNotFound)

		c, _ := newContext(e, http.MethodGet, "/reservations/10", "", 2)
		err := NewReservationHandler(svc).GetByID(withID(c, "10"))

		requireHTTPError(t, err, http.StatusNotFound)
	})
}

func TestReservationHandler_History(t *testing.T) {
	e := NewTestEcho()
	svc := new(MockReservationService)
	number := "cxl-1"
	svc.On("ListHistory", mock.Anything, int64(10), int64(1)).Return([]*reservation.History{
		{ID: 1, ReservationID: 10, ActionType: reservation.ActionCancel, RefundAmount: decimal.NewFromInt(500), CancellationNumber: &number, ActionDate: testNow},
	}, nil)

	c, rec := newContext(e, http.MethodGet, "/reservations/10/history", "", 1)
	err := NewReservationHandler(svc).History(withID(c, "10"))

	require.NoError(t, err)
	var resp []HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "Cancel", resp[0].ActionType)
	require.NotNil(t, resp[0].CancellationNumber)
	assert.Equal(t, "cxl-1", *resp[0].CancellationNumber)
}

func TestParseStatuses(t *testing.T) {
	got, err := parseStatuses(" Cancelled ,Blocked")
	require.NoError(t, err)
	assert.Equal(t, []reservation.Status{reservation.StatusCancelled, reservation.StatusBlocked}, got)

	got, err = parseStatuses("")
	require.NoError(t, err)
	assert.Nil(t, got)
}
