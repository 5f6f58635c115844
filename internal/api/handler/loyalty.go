package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type LoyaltyHandler struct {
	service LoyaltyServiceInterface
}

func NewLoyaltyHandler(s LoyaltyServiceInterface) *LoyaltyHandler {
	return &LoyaltyHandler{service: s}
}

type LoyaltyResponse struct {
	UserID   int64           `json:"user_id" example:"1"`
	SkyMiles decimal.Decimal `json:"sky_miles" swaggertype:"string" example:"240.00"`
}

// GetBalance godoc
// @Summary マイル残高を取得
// @Description ログインユーザーのマイル残高を取得します
// @Tags loyalty
// @Produce json
// @Param X-User-ID header int false "ユーザーID（JWT未使用時）"
// @Success 200 {object} LoyaltyResponse
// @Failure 401 {object} api.ErrorResponse
// @Router /loyalty [get]
func (h *LoyaltyHandler) GetBalance(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	balance, err := h.service.GetLoyaltyBalance(c.Request().Context(), userID)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, LoyaltyResponse{UserID: userID, SkyMiles: balance})
}
