package validator

import (
	"regexp"
	"strings"

	"storefront/internal/domain/model"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail は前後の空白を落として小文字にする
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ログインの入力を検証
func ValidateLogin(email string, password string) error {
	// 必須チェック
	if email == "" {
		return model.NewValidationError("email", "is required")
	}
	if password == "" {
		return model.NewValidationError("password", "is required")
	}

	// email形式
	if !emailRe.MatchString(email) {
		return model.NewValidationError("email", "is not a valid address")
	}
	return nil
}
