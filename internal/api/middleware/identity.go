package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	// HeaderUserID はJWTを使わない環境での利用者IDヘッダー
	HeaderUserID = "X-User-ID"

	userIDContextKey = "user_id"
)

// Identity は利用者IDを特定してコンテキストに保存するミドルウェア
// secret が設定されていれば Bearer トークン（HS256, sub クレーム）を検証し、
// 未設定なら X-User-ID ヘッダーを利用者IDとして扱う
func Identity(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var (
				id  int64
				err error
			)
			if secret != "" {
				id, err = userIDFromToken(c.Request().Header.Get(echo.HeaderAuthorization), secret)
			} else {
				id, err = parseUserID(c.Request().Header.Get(HeaderUserID))
			}
			if err != nil {
				return err
			}
			c.Set(userIDContextKey, id)
			return next(c)
		}
	}
}

// UserID はコンテキストの利用者IDを返す
func UserID(c echo.Context) (int64, bool) {
	id, ok := c.Get(userIDContextKey).(int64)
	return id, ok && id > 0
}

// SetUserID はコンテキストに利用者IDを保存する（ハンドラーのテスト用）
func SetUserID(c echo.Context, id int64) {
	c.Set(userIDContextKey, id)
}

func userIDFromToken(auth, secret string) (int64, error) {
	if !strings.HasPrefix(auth, "Bearer ") {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "認証トークンが必要です")
	}
	raw := strings.TrimPrefix(auth, "Bearer ")

	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, echo.ErrUnauthorized
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "認証トークンが無効です")
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "認証トークンが無効です")
	}

	// sub は数値でも文字列でも受け付ける
	switch sub := claims["sub"].(type) {
	case float64:
		if sub > 0 && sub == float64(int64(sub)) {
			return int64(sub), nil
		}
	case string:
		return parseUserID(sub)
	}
	return 0, echo.NewHTTPError(http.StatusUnauthorized, "利用者IDを特定できません")
}

func parseUserID(v string) (int64, error) {
	if v == "" {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが不正です")
	}
	return id, nil
}
