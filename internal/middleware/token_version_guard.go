package middleware

import (
	"context"
	"net/http"

	"storefront/internal/domain/model"

	"github.com/labstack/echo/v4"
)

// JWTの中身からセッションを復元する約束（tvがDBと一致するかも確認する）
type SessionResolver interface {
	Session(ctx context.Context, userID int64, tokenVersion int) (model.Session, error)
}

// TokenVersionGuard はAuthJWTの後に置く。
// tvがDBのtoken_versionと一致しなければ強制ログアウト扱い（401）。
func TokenVersionGuard(resolver SessionResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, tv, ok := claimsFromContext(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			sess, err := resolver.Session(c.Request().Context(), userID, tv)
			if err != nil || !sess.Authenticated {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			c.Set(CtxSessionKey, sess)
			return next(c)
		}
	}
}

// OptionalSession はOptionalAuthの後に置く。復元できなければ匿名セッション。
func OptionalSession(resolver SessionResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess := model.AnonymousSession()
			if userID, tv, ok := claimsFromContext(c); ok {
				if s, err := resolver.Session(c.Request().Context(), userID, tv); err == nil {
					sess = s
				}
			}
			c.Set(CtxSessionKey, sess)
			return next(c)
		}
	}
}

// SessionFromContext はミドルウェアが入れたセッションを返す。無ければ匿名。
func SessionFromContext(c echo.Context) model.Session {
	if s, ok := c.Get(CtxSessionKey).(model.Session); ok {
		return s
	}
	return model.AnonymousSession()
}

func claimsFromContext(c echo.Context) (int64, int, bool) {
	userID, ok := c.Get(CtxUserIDKey).(int64)
	if !ok || userID <= 0 {
		return 0, 0, false
	}
	tv, ok := c.Get(CtxTokenVersionKey).(int)
	if !ok || tv < 0 {
		return 0, 0, false
	}
	return userID, tv, true
}
