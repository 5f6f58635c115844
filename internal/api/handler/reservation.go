package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/sanosuguru/go-flight-reservation/internal/application"
	"github.com/sanosuguru/go-flight-reservation/internal/domain/reservation"
)

type ReservationHandler struct {
	service ReservationServiceInterface
}

func NewReservationHandler(s ReservationServiceInterface) *ReservationHandler {
	return &ReservationHandler{service: s}
}

type BlockRequest struct {
	FlightID       int64 `json:"flight_id" validate:"required,gt=0" example:"101"`
	PassengerCount int   `json:"passenger_count" validate:"min=1,max=9" example:"2"`
}

type PassengerRequest struct {
	Title          string `json:"title" validate:"required" example:"Mr"`
	FirstName      string `json:"first_name" validate:"required" example:"Taro"`
	LastName       string `json:"last_name" validate:"required" example:"Yamada"`
	DateOfBirth    string `json:"date_of_birth" validate:"required" example:"1990-04-01"`
	PassportNumber string `json:"passport_number" validate:"required" example:"TK1234567"`
	PassportExpiry string `json:"passport_expiry" validate:"required" example:"2030-12-31"`
}

type CreateReservationRequest struct {
	OutboundFlightID int64              `json:"outbound_flight_id" validate:"required,gt=0" example:"101"`
	ReturnFlightID   *int64             `json:"return_flight_id,omitempty" validate:"omitempty,gt=0" example:"202"`
	Passengers       []PassengerRequest `json:"passengers" validate:"required,min=1,max=9,dive"`
	TotalFare        decimal.Decimal    `json:"total_fare" swaggertype:"string" example:"1800.00"`
}

type RescheduleRequest struct {
	NewFlightID int64 `json:"new_flight_id" validate:"required,gt=0" example:"105"`
}

type PassengerResponse struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	DateOfBirth    string `json:"date_of_birth"`
	PassportNumber string `json:"passport_number"`
	PassportExpiry string `json:"passport_expiry"`
}

type ReservationResponse struct {
	ID                 int64               `json:"id" example:"1"`
	UserID             int64               `json:"user_id" example:"1"`
	Status             string              `json:"status" example:"Blocked"`
	TotalFare          decimal.Decimal     `json:"total_fare" swaggertype:"string" example:"1000.00"`
	SeatCount          int                 `json:"seat_count" example:"2"`
	FlightIDs          []int64             `json:"flight_ids"`
	ReservationDate    time.Time           `json:"reservation_date"`
	BlockExpiryDate    *time.Time          `json:"block_expiry_date,omitempty"`
	ConfirmationNumber string              `json:"confirmation_number" example:"6f1c2b7e-8f0a-4f8e-9d5b-2f4a7c1e9b30"`
	CancellationRules  string              `json:"cancellation_rules" example:"Default rules"`
	Passengers         []PassengerResponse `json:"passengers,omitempty"`
}

func toReservationResponse(r *reservation.Reservation) ReservationResponse {
	resp := ReservationResponse{
		ID: r.ID, UserID: r.UserID, Status: string(r.Status),
		TotalFare: r.TotalFare, SeatCount: r.SeatsPerLeg(), FlightIDs: r.FlightIDs(),
		ReservationDate: r.ReservationDate, BlockExpiryDate: r.BlockExpiryDate,
		ConfirmationNumber: r.ConfirmationNumber, CancellationRules: r.CancellationRules,
	}
	for _, p := range r.Passengers {
		resp.Passengers = append(resp.Passengers, PassengerResponse{
			ID: p.ID, Title: p.Title, FirstName: p.FirstName, LastName: p.LastName,
			DateOfBirth:    p.DateOfBirth.Format(dateLayout),
			PassportNumber: p.PassportNumber,
			PassportExpiry: p.PassportExpiry.Format(dateLayout),
		})
	}
	return resp
}

type ReservationDetailResponse struct {
	ReservationResponse
	Flights []FlightResponse `json:"flights"`
}

type CancelResponse struct {
	Reservation        ReservationResponse `json:"reservation"`
	RefundAmount       decimal.Decimal     `json:"refund_amount" swaggertype:"string" example:"900.00"`
	CancellationNumber string              `json:"cancellation_number"`
}

type CancelRulesResponse struct {
	ReservationID      int64           `json:"reservation_id" example:"1"`
	DaysUntilDeparture int             `json:"days_until_departure" example:"10"`
	RefundPercentage   decimal.Decimal `json:"refund_percentage" swaggertype:"string" example:"0.9"`
	RefundAmount       decimal.Decimal `json:"refund_amount" swaggertype:"string" example:"900.00"`
	Rules              string          `json:"rules" example:"Default rules"`
}

type HistoryResponse struct {
	ID                 int64           `json:"id"`
	ActionType         string          `json:"action_type" example:"Cancel"`
	OldDate            *time.Time      `json:"old_date,omitempty"`
	NewDate            *time.Time      `json:"new_date,omitempty"`
	RefundAmount       decimal.Decimal `json:"refund_amount" swaggertype:"string" example:"900.00"`
	CancellationNumber *string         `json:"cancellation_number,omitempty"`
	ActionDate         time.Time       `json:"action_date"`
}

// Block godoc
// @Summary 座席を仮押さえ
// @Description 出発まで14日以上あるフライトの座席を仮押さえします（14日間有効）
// @Tags reservations
// @Accept json
// @Produce json
// @Param X-User-ID header int false "ユーザーID（JWT未使用時）"
// @Param request body BlockRequest true "仮押さえ内容"
// @Success 201 {object} ReservationResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "空席不足"
// @Failure 422 {object} api.ErrorResponse "出発まで14日未満"
// @Router /reservations/block [post]
func (h *ReservationHandler) Block(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req BlockRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	r, err := h.service.Block(c.Request().Context(), application.BlockInput{
		UserID: userID, FlightID: req.FlightID, PassengerCount: req.PassengerCount,
	})
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusCreated, toReservationResponse(r))
}

// Create godoc
// @Summary 予約を作成
// @Description 搭乗者情報付きで確定予約を作成します。return_flight_id を指定すると往復予約になります
// @Tags reservations
// @Accept json
// @Produce json
// @Param X-User-ID header int false "ユーザーID（JWT未使用時）"
// @Param request body CreateReservationRequest true "予約情報"
// @Success 201 {object} ReservationResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "空席不足"
// @Router /reservations [post]
func (h *ReservationHandler) Create(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req CreateReservationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	passengers := make([]application.PassengerInput, len(req.Passengers))
	for i, p := range req.Passengers {
		dob, err := parseDate("date_of_birth", p.DateOfBirth)
		if err != nil {
			return err
		}
		expiry, err := parseDate("passport_expiry", p.PassportExpiry)
		if err != nil {
			return err
		}
		passengers[i] = application.PassengerInput{
			Title: p.Title, FirstName: p.FirstName, LastName: p.LastName,
			DateOfBirth: dob, PassportNumber: p.PassportNumber, PassportExpiry: expiry,
		}
	}
	r, err := h.service.CreateDirect(c.Request().Context(), application.CreateDirectInput{
		UserID:           userID,
		OutboundFlightID: req.OutboundFlightID,
		ReturnFlightID:   req.ReturnFlightID,
		Passengers:       passengers,
		TotalFare:        req.TotalFare,
	})
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusCreated, toReservationResponse(r))
}

// Confirm godoc
// @Summary 仮押さえを確定
// @Description 仮押さえ中の予約を確定し、確認番号を再発行します
// @Tags reservations
// @Produce json
// @Param id path int true "予約ID"
// @Success 200 {object} ReservationResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "仮押さえ状態ではない"
// @Failure 422 {object} api.ErrorResponse "出発まで14日未満"
// @Router /reservations/{id}/confirm [post]
func (h *ReservationHandler) Confirm(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	r, err := h.service.Confirm(c.Request().Context(), id, userID)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}

// Reschedule godoc
// @Summary 予約を振替
// @Description 片道予約を別のフライトへ振り替えます
// @Tags reservations
// @Accept json
// @Produce json
// @Param id path int true "予約ID"
// @Param request body RescheduleRequest true "振替先"
// @Success 200 {object} ReservationResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /reservations/{id}/reschedule [put]
func (h *ReservationHandler) Reschedule(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req RescheduleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	r, err := h.service.Reschedule(c.Request().Context(), application.RescheduleInput{
		ReservationID: id, UserID: userID, NewFlightID: req.NewFlightID,
	})
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}

// Cancel godoc
// @Summary 予約をキャンセル
// @Description 予約をキャンセルして座席を返却します。確定済み予約は出発までの日数に応じて払い戻します
// @Tags reservations
// @Produce json
// @Param id path int true "予約ID"
// @Success 200 {object} CancelResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "キャンセル済み"
// @Router /reservations/{id} [delete]
func (h *ReservationHandler) Cancel(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	result, err := h.service.Cancel(c.Request().Context(), id, userID)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, CancelResponse{
		Reservation:        toReservationResponse(result.Reservation),
		RefundAmount:       result.RefundAmount,
		CancellationNumber: result.CancellationNumber,
	})
}

// CancelRules godoc
// @Summary キャンセル時の払い戻し額を確認
// @Description 現時点でキャンセルした場合の払い戻し額を返します。予約は変更しません
// @Tags reservations
// @Produce json
// @Param id path int true "予約ID"
// @Success 200 {object} CancelRulesResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "キャンセル済み"
// @Router /reservations/{id}/cancel-rules [get]
func (h *ReservationHandler) CancelRules(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	p, err := h.service.PreviewCancelRules(c.Request().Context(), id, userID)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, CancelRulesResponse{
		ReservationID:      p.ReservationID,
		DaysUntilDeparture: p.DaysUntilDeparture,
		RefundPercentage:   p.RefundPercentage,
		RefundAmount:       p.RefundAmount,
		Rules:              p.Rules,
	})
}

// List godoc
// @Summary 予約一覧を取得
// @Description ログインユーザーの予約一覧を新しい順に取得します
// @Tags reservations
// @Produce json
// @Param status query string false "状態（カンマ区切り: Blocked,Confirmed,Cancelled）"
// @Success 200 {array} ReservationResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Router /reservations [get]
func (h *ReservationHandler) List(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	statuses, err := parseStatuses(c.QueryParam("status"))
	if err != nil {
		return err
	}
	list, err := h.service.ListByUser(c.Request().Context(), userID, statuses)
	if err != nil {
		return serviceError(err)
	}
	resp := make([]ReservationResponse, len(list))
	for i, r := range list {
		resp[i] = toReservationResponse(r)
	}
	return c.JSON(http.StatusOK, resp)
}

// GetByID godoc
// @Summary 予約を取得
// @Description 指定IDの予約をフライト情報付きで取得します
// @Tags reservations
// @Produce json
// @Param id path int true "予約ID"
// @Success 200 {object} ReservationDetailResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /reservations/{id} [get]
func (h *ReservationHandler) GetByID(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	detail, err := h.service.GetDetail(c.Request().Context(), id, userID)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, ReservationDetailResponse{
		ReservationResponse: toReservationResponse(detail.Reservation),
		Flights:             toFlightResponses(detail.Flights),
	})
}

// History godoc
// @Summary 予約の変更履歴を取得
// @Tags reservations
// @Produce json
// @Param id path int true "予約ID"
// @Success 200 {array} HistoryResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /reservations/{id}/history [get]
func (h *ReservationHandler) History(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	rows, err := h.service.ListHistory(c.Request().Context(), id, userID)
	if err != nil {
		return serviceError(err)
	}
	resp := make([]HistoryResponse, len(rows))
	for i, row := range rows {
		resp[i] = HistoryResponse{
			ID: row.ID, ActionType: string(row.ActionType),
			OldDate: row.OldDate, NewDate: row.NewDate,
			RefundAmount: row.RefundAmount, CancellationNumber: row.CancellationNumber,
			ActionDate: row.ActionDate,
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func parseStatuses(q string) ([]reservation.Status, error) {
	if q == "" {
		return nil, nil
	}
	var statuses []reservation.Status
	for _, s := range strings.Split(q, ",") {
		st := reservation.Status(strings.TrimSpace(s))
		switch st {
		case reservation.StatusBlocked, reservation.StatusConfirmed, reservation.StatusCancelled:
			statuses = append(statuses, st)
		default:
			return nil, echo.NewHTTPError(http.StatusBadRequest, "status が不正です: "+s)
		}
	}
	return statuses, nil
}
