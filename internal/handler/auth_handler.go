package handler

import (
	"errors"
	"net/http"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AuthHandler struct {
	uc *usecase.SessionUsecase
}

// DI
func NewAuthHandler(uc *usecase.SessionUsecase) *AuthHandler {
	return &AuthHandler{uc: uc}
}

func (h *AuthHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	e.POST("/auth/login", h.login, middleware.RateLimitPerMinute(cfg.LoginRatePerMinute))
	e.GET("/auth/me", h.me, middleware.AuthJWT(cfg), middleware.TokenVersionGuard(h.uc))
}

func (h *AuthHandler) login(c echo.Context) error {
	var req usecase.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.Login(c.Request().Context(), req)
	if err != nil {
		//メール・パスワードどちらが違うかは返さない
		if errors.Is(err, usecase.ErrUnauthorized) {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
		}
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AuthHandler) me(c echo.Context) error {
	return c.JSON(http.StatusOK, middleware.SessionFromContext(c).User)
}
