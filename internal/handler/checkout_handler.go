package handler

import (
	"errors"
	"net/http"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type CheckoutHandler struct {
	uc        *usecase.CheckoutUsecase
	loginPath string
}

func NewCheckoutHandler(uc *usecase.CheckoutUsecase, loginPath string) *CheckoutHandler {
	return &CheckoutHandler{uc: uc, loginPath: loginPath}
}

type SelectAddressRequest struct {
	AddressID int64 `json:"address_id"`
}

type AddAddressResponse struct {
	Address  usecase.AddressDTO   `json:"address"`
	Checkout usecase.CheckoutView `json:"checkout"`
}

// 決済済みだが注文が記録できなかったとき
type ReconciliationResponse struct {
	Error    string               `json:"error"`
	Checkout usecase.CheckoutView `json:"checkout"`
}

func (h *CheckoutHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, sessions middleware.SessionResolver) {
	//開始だけは未ログインでも受けて、ログイン画面への誘導を返す
	e.POST("/checkout", h.begin, middleware.OptionalAuth(cfg), middleware.OptionalSession(sessions))

	auth := []echo.MiddlewareFunc{middleware.AuthJWT(cfg), middleware.TokenVersionGuard(sessions)}
	e.GET("/checkout", h.get, auth...)
	e.DELETE("/checkout", h.close, auth...)
	e.POST("/checkout/next", h.next, auth...)
	e.POST("/checkout/back", h.back, auth...)
	e.POST("/checkout/address", h.addAddress, auth...)
	e.PUT("/checkout/address", h.selectAddress, auth...)
	e.GET("/checkout/summary", h.summary, auth...)
	e.POST("/checkout/pay", h.pay, auth...)
}

func (h *CheckoutHandler) begin(c echo.Context) error {
	view, err := h.uc.Begin(c.Request().Context(), middleware.SessionFromContext(c))
	if errors.Is(err, usecase.ErrLoginRequired) {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "login required", Redirect: h.loginPath})
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, view)
}

func (h *CheckoutHandler) get(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	view, err := h.uc.Get(c.Request().Context(), userID)
	if _, ok := usecase.AsReconciliationError(err); ok {
		return c.JSON(http.StatusBadGateway, ReconciliationResponse{Error: view.Message, Checkout: view})
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *CheckoutHandler) next(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	view, err := h.uc.Proceed(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *CheckoutHandler) back(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	view, err := h.uc.Back(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *CheckoutHandler) addAddress(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req usecase.AddressCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	created, view, err := h.uc.AddAddress(c.Request().Context(), userID, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, AddAddressResponse{Address: created, Checkout: view})
}

func (h *CheckoutHandler) selectAddress(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req SelectAddressRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	view, err := h.uc.SelectAddress(c.Request().Context(), userID, req.AddressID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *CheckoutHandler) summary(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	s, err := h.uc.Summary(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

// 決済結果はwebhookで届くので202で返す
func (h *CheckoutHandler) pay(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	intent, err := h.uc.ConfirmPayment(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusAccepted, intent)
}

func (h *CheckoutHandler) close(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	if err := h.uc.Close(c.Request().Context(), userID); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
