package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-flight-reservation/internal/api/handler"
	"github.com/sanosuguru/go-flight-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-flight-reservation/internal/config"
)

// APIPrefix は業務APIのパスプレフィックス
const APIPrefix = "/api/v1"

// Handlers はルーティング対象のハンドラー
type Handlers struct {
	Flight      *handler.FlightHandler
	Reservation *handler.ReservationHandler
	Loyalty     *handler.LoyaltyHandler
	Health      *handler.HealthHandler
}

// Options はルーティングの設定
type Options struct {
	// JWTSecret が空なら X-User-ID ヘッダーで利用者を識別する
	JWTSecret string
	Metrics   config.MetricsConfig
	// MetricsHandler が nil なら /metrics を公開しない
	MetricsHandler http.Handler
}

// Register はルートを登録する
func Register(e *echo.Echo, h Handlers, opts Options) {
	e.GET("/health", h.Health.Check)
	if opts.MetricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(opts.MetricsHandler), middleware.MetricsBasicAuth(opts.Metrics))
	}

	v1 := e.Group(APIPrefix)

	v1.GET("/flights/:id", h.Flight.GetByID)
	v1.POST("/flights/search", h.Flight.Search)

	identity := middleware.Identity(opts.JWTSecret)

	reservations := v1.Group("/reservations", identity)
	reservations.POST("/block", h.Reservation.Block)
	reservations.POST("", h.Reservation.Create)
	reservations.GET("", h.Reservation.List)
	reservations.GET("/:id", h.Reservation.GetByID)
	reservations.POST("/:id/confirm", h.Reservation.Confirm)
	reservations.PUT("/:id/reschedule", h.Reservation.Reschedule)
	reservations.DELETE("/:id", h.Reservation.Cancel)
	reservations.GET("/:id/cancel-rules", h.Reservation.CancelRules)
	reservations.GET("/:id/history", h.Reservation.History)

	v1.GET("/loyalty", h.Loyalty.GetBalance, identity)
}
