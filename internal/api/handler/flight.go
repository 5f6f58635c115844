package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/sanosuguru/go-flight-reservation/internal/domain/flight"
)

type FlightHandler struct {
	service FlightServiceInterface
}

func NewFlightHandler(s FlightServiceInterface) *FlightHandler {
	return &FlightHandler{service: s}
}

type FlightResponse struct {
	ID                 int64           `json:"id" example:"101"`
	AirlineID          int64           `json:"airline_id" example:"1"`
	AircraftID         int64           `json:"aircraft_id" example:"3"`
	DepartureAirportID int64           `json:"departure_airport_id" example:"10"`
	ArrivalAirportID   int64           `json:"arrival_airport_id" example:"20"`
	DepartureTime      *time.Time      `json:"departure_time"`
	ArrivalTime        *time.Time      `json:"arrival_time"`
	Stops              int             `json:"stops" example:"0"`
	FlightClass        string          `json:"flight_class" example:"Economy"`
	Price              decimal.Decimal `json:"price" swaggertype:"string" example:"1000.00"`
	Distance           *float64        `json:"distance,omitempty" example:"1200"`
	AvailableSeats     int             `json:"available_seats" example:"42"`
}

func toFlightResponse(f *flight.Flight) FlightResponse {
	return FlightResponse{
		ID: f.ID, AirlineID: f.AirlineID, AircraftID: f.AircraftID,
		DepartureAirportID: f.DepartureAirportID, ArrivalAirportID: f.ArrivalAirportID,
		DepartureTime: f.DepartureTime, ArrivalTime: f.ArrivalTime,
		Stops: f.Stops, FlightClass: f.FlightClass, Price: f.Price,
		Distance: f.Distance, AvailableSeats: f.AvailableSeats,
	}
}

func toFlightResponses(flights []*flight.Flight) []FlightResponse {
	resp := make([]FlightResponse, len(flights))
	for i, f := range flights {
		resp[i] = toFlightResponse(f)
	}
	return resp
}

type SearchFlightsRequest struct {
	DepartureAirportID int64  `json:"departure_airport_id" validate:"required,gt=0" example:"10"`
	ArrivalAirportID   int64  `json:"arrival_airport_id" validate:"required,gt=0,nefield=DepartureAirportID" example:"20"`
	DepartureDate      string `json:"departure_date" validate:"required" example:"2026-07-01"`
	ReturnDate         string `json:"return_date,omitempty" example:"2026-07-08"`
	FlightClass        string `json:"flight_class,omitempty" example:"Economy"`
	Adults             int    `json:"adults" validate:"min=1,max=9" example:"2"`
	Children           int    `json:"children" validate:"min=0,max=9" example:"0"`
}

type SearchFlightsResponse struct {
	Outbound []FlightResponse `json:"outbound"`
	Return   []FlightResponse `json:"return,omitempty"`
}

// GetByID godoc
// @Summary フライトを取得
// @Description 指定IDのフライトを空席数付きで取得します
// @Tags flights
// @Produce json
// @Param id path int true "フライトID"
// @Success 200 {object} FlightResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /flights/{id} [get]
func (h *FlightHandler) GetByID(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	f, err := h.service.GetFlight(ctx, id)
	if err != nil {
		if errors.Is(err, flight.ErrFlightNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return serviceError(err)
	}
	// 空席数はキャッシュ経由で取得する
	count, err := h.service.CountAvailableSeats(ctx, id)
	if err != nil {
		return serviceError(err)
	}
	resp := toFlightResponse(f)
	resp.AvailableSeats = count
	return c.JSON(http.StatusOK, resp)
}

// Search godoc
// @Summary フライトを検索
// @Description 出発・到着空港、日付、人数、クラスでフライトを検索します。return_date を指定すると復路も検索します
// @Tags flights
// @Accept json
// @Produce json
// @Param request body SearchFlightsRequest true "検索条件"
// @Success 200 {object} SearchFlightsResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /flights/search [post]
func (h *FlightHandler) Search(c echo.Context) error {
	var req SearchFlightsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	departure, err := parseDate("departure_date", req.DepartureDate)
	if err != nil {
		return err
	}
	criteria := flight.SearchCriteria{
		DepartureAirportID: req.DepartureAirportID,
		ArrivalAirportID:   req.ArrivalAirportID,
		DepartureDate:      departure,
		FlightClass:        req.FlightClass,
		Adults:             req.Adults,
		Children:           req.Children,
	}
	if req.ReturnDate != "" {
		ret, err := parseDate("return_date", req.ReturnDate)
		if err != nil {
			return err
		}
		criteria.ReturnDate = &ret
	}

	result, err := h.service.SearchFlights(c.Request().Context(), criteria)
	if err != nil {
		return serviceError(err)
	}
	resp := SearchFlightsResponse{Outbound: toFlightResponses(result.Outbound)}
	if criteria.ReturnDate != nil {
		resp.Return = toFlightResponses(result.Return)
	}
	return c.JSON(http.StatusOK, resp)
}
