package model

import (
	"errors"
	"fmt"
)

// ValidationErrorは項目単位の入力エラー。状態は変更されない。
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

var (
	// 状態遷移の不正
	ErrIllegalTransition = errors.New("illegal checkout transition")

	// 支払いステータスは一度確定したら変更不可
	ErrPaymentStatusFinal = errors.New("payment status already final")
)
