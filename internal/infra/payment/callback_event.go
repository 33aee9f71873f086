package payment

import (
	"strings"

	"storefront/internal/domain/model"
)

const (
	EventSuccess = "success"
	EventFailure = "failure"
	EventDismiss = "dismiss"
)

// ゲートウェイのwebhook本文。Signatureは他の全フィールドに対するHMAC（Sign参照）
type CallbackEvent struct {
	OrderRef      string `json:"order_ref"`
	Event         string `json:"event"`
	TransactionID string `json:"transaction_id"`
	Signature     string `json:"signature"`
	Reason        string `json:"reason"`
}

// Result はイベントを結果に変換する。知らないイベントは失敗扱い。
func (e CallbackEvent) Result() model.PaymentResult {
	switch e.normalizedEvent() {
	case EventSuccess:
		return model.PaymentSuccess{
			TransactionID: e.TransactionID,
			OrderRef:      e.OrderRef,
			Signature:     e.Signature,
		}
	case EventDismiss:
		return model.PaymentDismissed{}
	case EventFailure:
		reason := e.Reason
		if reason == "" {
			reason = "payment failed"
		}
		return model.PaymentFailure{Reason: reason}
	default:
		return model.PaymentFailure{Reason: "unrecognized gateway event: " + e.Event}
	}
}

func (e CallbackEvent) normalizedEvent() string {
	return strings.ToLower(strings.TrimSpace(e.Event))
}
