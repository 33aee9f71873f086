package handler

import (
	"errors"
	"net/http"

	"storefront/internal/domain/model"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
	//項目単位の入力エラーのときだけ
	Field string `json:"field,omitempty"`
	//未ログインでチェックアウトを始めたとき
	Redirect string `json:"redirect,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

// writeError はusecase/modelのエラーをHTTPに変換する。
func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{Error: he.Message})
	}
	if ve, ok := model.AsValidationError(err); ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: ve.Message, Field: ve.Field})
	}

	switch {
	case errors.Is(err, usecase.ErrValidation):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation error"})
	case errors.Is(err, usecase.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	case errors.Is(err, usecase.ErrForbidden):
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
	case errors.Is(err, usecase.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	case errors.Is(err, usecase.ErrCheckoutNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "no active checkout"})
	case errors.Is(err, usecase.ErrConflict):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: "conflict"})
	case errors.Is(err, model.ErrPaymentInFlight):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: "payment already in progress"})
	case errors.Is(err, model.ErrSessionClosed):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: "checkout already finished"})
	case errors.Is(err, model.ErrIllegalTransition):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: "not allowed at this checkout stage"})
	case errors.Is(err, usecase.ErrGatewayUnavailable):
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: "payment gateway unavailable, try again"})
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

// middleware.AuthJWT が c.Set("user_id", int64) した値を取り出す
func getUserIDFromContext(c echo.Context) (int64, bool) {
	id, ok := c.Get(middleware.CtxUserIDKey).(int64)
	return id, ok && id > 0
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
}
