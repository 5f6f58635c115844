package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-flight-reservation/internal/domain/flight"
	"github.com/sanosuguru/go-flight-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-flight-reservation/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// StatusFromError はドメインのエラー種別をHTTPステータスに変換する
func StatusFromError(err error) int {
	switch {
	case errors.Is(err, reservation.ErrValidation),
		errors.Is(err, flight.ErrInvalidSearchCriteria),
		errors.Is(err, flight.ErrInvalidSeatCount):
		return http.StatusBadRequest
	case errors.Is(err, reservation.ErrReservationNotFound):
		return http.StatusNotFound
	case errors.Is(err, reservation.ErrTooCloseToDeparture):
		return http.StatusUnprocessableEntity
	case errors.Is(err, flight.ErrFlightUnavailable),
		errors.Is(err, reservation.ErrInvalidState),
		errors.Is(err, reservation.ErrConcurrencyConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// NewHTTPError はドメインのエラーを echo.HTTPError に変換する
// 500 の場合は内部のエラーメッセージを返さず、ログ用に Internal に保持する
func NewHTTPError(err error) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	code := StatusFromError(err)
	if code == http.StatusInternalServerError {
		return echo.NewHTTPError(code, "内部サーバーエラー").SetInternal(err)
	}
	return echo.NewHTTPError(code, err.Error()).SetInternal(err)
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	he := NewHTTPError(err)
	code := he.Code
	message, ok := he.Message.(string)
	if !ok {
		message = http.StatusText(code)
	}

	if code >= 500 {
		logger.Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	var resp error
	if c.Request().Method == http.MethodHead {
		resp = c.NoContent(code)
	} else {
		resp = c.JSON(code, ErrorResponse{Error: message, Code: code})
	}
	if resp != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(resp))
	}
}
