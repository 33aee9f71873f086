package handler

import (
	"errors"
	"net/http"
	"strings"

	"storefront/internal/infra/payment"

	"github.com/labstack/echo/v4"
)

// 署名を確かめて結果待ちの決済に結果を渡す約束
type PaymentResultSink interface {
	Receive(ev payment.CallbackEvent) error
}

// 決済ゲートウェイからのwebhook
type PaymentHandler struct {
	sink PaymentResultSink
}

func NewPaymentHandler(sink PaymentResultSink) *PaymentHandler {
	return &PaymentHandler{sink: sink}
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/payments/callback", h.callback)
}

func (h *PaymentHandler) callback(c echo.Context) error {
	var ev payment.CallbackEvent
	if err := c.Bind(&ev); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if strings.TrimSpace(ev.OrderRef) == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "order_ref is required", Field: "order_ref"})
	}

	err := h.sink.Receive(ev)
	if errors.Is(err, payment.ErrInvalidSignature) {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid signature"})
	}
	if errors.Is(err, payment.ErrUnknownOrderRef) {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "unknown order_ref"})
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "accepted"})
}
