package server

import (
	"net/http"

	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/middleware"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Auth     *handler.AuthHandler
	Product  *handler.ProductHandler
	Cart     *handler.CartHandler
	Address  *handler.AddressHandler
	Checkout *handler.CheckoutHandler
	Order    *handler.OrderHandler
	Payment  *handler.PaymentHandler
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, sessions middleware.SessionResolver, h Handlers) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	//nilのハンドラは登録しない
	if h.Auth != nil {
		h.Auth.RegisterRoutes(e, cfg)
	}
	if h.Product != nil {
		h.Product.RegisterRoutes(e)
	}
	if h.Cart != nil {
		h.Cart.RegisterRoutes(e, cfg, sessions)
	}
	if h.Address != nil {
		h.Address.RegisterRoutes(e, cfg, sessions)
	}
	if h.Checkout != nil {
		h.Checkout.RegisterRoutes(e, cfg, sessions)
	}
	if h.Order != nil {
		h.Order.RegisterRoutes(e, cfg, sessions)
	}
	if h.Payment != nil {
		h.Payment.RegisterRoutes(e)
	}
}
