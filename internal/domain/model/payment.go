package model

import "github.com/shopspring/decimal"

type PaymentCustomer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// 決済ゲートウェイに渡す依頼
type PaymentRequest struct {
	OrderRef         string            `json:"order_ref"`
	AmountMinorUnits int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Customer         PaymentCustomer   `json:"customer"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// 100倍して最小通貨単位に丸める
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// PaymentResultは決済の結果。PaymentSuccess / PaymentFailure / PaymentDismissed のどれか1つ。
type PaymentResult interface {
	isPaymentResult()
}

type PaymentSuccess struct {
	TransactionID string
	OrderRef      string
	Signature     string
}

type PaymentFailure struct {
	Reason string
}

// ユーザーが決済ダイアログを閉じた
type PaymentDismissed struct{}

func (PaymentSuccess) isPaymentResult()   {}
func (PaymentFailure) isPaymentResult()   {}
func (PaymentDismissed) isPaymentResult() {}
