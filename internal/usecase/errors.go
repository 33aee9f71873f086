package usecase

import (
	"errors"
	"fmt"
)

var (
	//400 入力不足
	ErrValidation = errors.New("validation error")
	//401 認証失敗
	ErrUnauthorized = errors.New("unauthorized")
	//401 未ログインでチェックアウト開始（ログイン画面へ）
	ErrLoginRequired = errors.New("login required")
	//403　権限
	ErrForbidden = errors.New("forbidden")
	//409 競合
	ErrConflict = errors.New("conflict")
	//404
	ErrNotFound = errors.New("not found")
	//404 チェックアウト未開始
	ErrCheckoutNotFound = errors.New("checkout session not found")
	//502 決済ゲートウェイに到達できない
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	//500
	ErrInternal = errors.New("internal error")
)

// HandlerでそのままHTTPに変換するエラー
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// ReconciliationErrorは決済成功後に注文の記録に失敗したことを表す。
// 再決済すると二重請求になるので、通常の失敗注文とは区別して扱う。
type ReconciliationError struct {
	CheckoutID    string
	OrderRef      string
	TransactionID string
	Err           error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("payment %s captured but order %s was not recorded: %v", e.TransactionID, e.OrderRef, e.Err)
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}

func AsReconciliationError(err error) (*ReconciliationError, bool) {
	var re *ReconciliationError
	ok := errors.As(err, &re)
	return re, ok
}
