package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"

	"storefront/internal/domain/model"

	"go.uber.org/zap"
)

var (
	ErrUnknownOrderRef   = errors.New("unknown or already settled order_ref")
	ErrDuplicateOrderRef = errors.New("order_ref already pending")
	ErrInvalidRequest    = errors.New("invalid payment request")
	ErrInvalidSignature  = errors.New("payment callback signature mismatch")
)

// CallbackGateway はホスト型の決済ダイアログ向けのゲートウェイ。
// Chargeで結果待ちを登録し、ゲートウェイからのwebhook（Receive）で結果を1回だけ流す。
type CallbackGateway struct {
	mu      sync.Mutex
	pending map[string]chan model.PaymentResult
	secret  []byte
	logger  *zap.Logger
}

func NewCallbackGateway(secret string, logger *zap.Logger) *CallbackGateway {
	return &CallbackGateway{
		pending: map[string]chan model.PaymentResult{},
		secret:  []byte(secret),
		logger:  logger,
	}
}

func (g *CallbackGateway) Charge(ctx context.Context, req model.PaymentRequest) (<-chan model.PaymentResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.OrderRef) == "" || req.AmountMinorUnits <= 0 || req.Currency == "" {
		return nil, ErrInvalidRequest
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.pending[req.OrderRef]; ok {
		return nil, ErrDuplicateOrderRef
	}
	ch := make(chan model.PaymentResult, 1)
	g.pending[req.OrderRef] = ch

	g.logger.Debug("payment attempt registered",
		zap.String("order_ref", req.OrderRef),
		zap.Int64("amount", req.AmountMinorUnits),
		zap.String("currency", req.Currency),
	)
	return ch, nil
}

// Receive はwebhookの署名を確かめてから結果を渡す。
// 署名が合わないイベントは結果待ちを消費しない（試行は処理中のまま）。
func (g *CallbackGateway) Receive(ev CallbackEvent) error {
	if !g.Verify(ev) {
		g.logger.Warn("payment callback signature mismatch",
			zap.String("order_ref", ev.OrderRef),
			zap.String("event", ev.Event),
		)
		return ErrInvalidSignature
	}
	return g.deliver(ev.OrderRef, ev.Result())
}

// deliver は結果を待っている試行に1回だけ渡す。
func (g *CallbackGateway) deliver(orderRef string, result model.PaymentResult) error {
	g.mu.Lock()
	ch, ok := g.pending[orderRef]
	if ok {
		delete(g.pending, orderRef)
	}
	g.mu.Unlock()

	if !ok {
		g.logger.Warn("payment callback for unknown order_ref", zap.String("order_ref", orderRef))
		return ErrUnknownOrderRef
	}

	if s, isSuccess := result.(model.PaymentSuccess); isSuccess && s.OrderRef != orderRef {
		g.logger.Warn("payment success for another order_ref",
			zap.String("order_ref", orderRef),
			zap.String("transaction_id", s.TransactionID),
		)
		result = model.PaymentFailure{Reason: "order_ref mismatch"}
	}

	ch <- result
	close(ch)
	return nil
}

// Pending は結果待ちの件数
func (g *CallbackGateway) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

func (g *CallbackGateway) Verify(ev CallbackEvent) bool {
	want, err := hex.DecodeString(ev.Signature)
	if err != nil || len(want) == 0 {
		return false
	}
	return hmac.Equal(want, mac(g.secret, ev))
}

// Sign は order_ref|event|transaction_id|reason のHMAC-SHA256（hex）。
// eventは小文字に揃えてから署名する
func Sign(secret string, ev CallbackEvent) string {
	return hex.EncodeToString(mac([]byte(secret), ev))
}

func mac(secret []byte, ev CallbackEvent) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(strings.Join([]string{
		ev.OrderRef,
		ev.normalizedEvent(),
		ev.TransactionID,
		ev.Reason,
	}, "|")))
	return h.Sum(nil)
}
