package usecase

import (
	"context"
	"strconv"

	"storefront/internal/domain/model"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentGateway は決済を1件開始し、結果を1回だけ流すチャネルを返す。
// errorはゲートウェイに届かなかった場合（決済は始まっていない）。
type PaymentGateway interface {
	Charge(ctx context.Context, req model.PaymentRequest) (<-chan model.PaymentResult, error)
}

// クライアントが決済ダイアログを開くための情報
type PaymentIntent struct {
	CheckoutID       string                `json:"checkout_id"`
	OrderRef         string                `json:"order_ref"`
	AmountMinorUnits int64                 `json:"amount"`
	Currency         string                `json:"currency"`
	Customer         model.PaymentCustomer `json:"customer"`
	Summary          model.OrderSummary    `json:"summary"`
}

// 確定時点のスナップショット（以後カートが変わっても注文には影響しない）
type paymentAttempt struct {
	checkoutID string
	orderRef   string
	userID     int64
	lines      []model.CartLine
	summary    model.OrderSummary
	address    model.AddressSnapshot
}

// ConfirmPayment は決済を開始する。処理中の二重実行は ErrPaymentInFlight で弾き、
// ゲートウェイは呼ばない。結果はgoroutineで受け取って確定させる。
func (u *CheckoutUsecase) ConfirmPayment(ctx context.Context, userID int64) (PaymentIntent, error) {
	e, err := u.entry(userID)
	if err != nil {
		return PaymentIntent{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.session
	if s.Processing() {
		u.logger.Warn("confirm ignored, payment in flight",
			zap.String("checkout_id", s.ID),
			zap.String("order_ref", s.AttemptID),
		)
		return PaymentIntent{}, model.ErrPaymentInFlight
	}
	if s.Finished() {
		return PaymentIntent{}, model.ErrSessionClosed
	}
	if s.Stage != model.CheckoutStagePayment {
		return PaymentIntent{}, model.ErrIllegalTransition
	}

	//確定の瞬間にカートを読み直す
	cart, err := u.carts.Load(ctx, userID)
	if err != nil {
		u.logger.Error("cart load failed", zap.Int64("user_id", userID), zap.Error(err))
		return PaymentIntent{}, ErrInternal
	}
	if cart.IsEmpty() {
		return PaymentIntent{}, model.NewValidationError("cart", "cart is empty")
	}

	addr, err := u.addresses.FindOwned(ctx, userID, s.SelectedAddressID)
	if err != nil {
		return PaymentIntent{}, err
	}

	summary := u.shipping.Summarize(cart)
	attempt := paymentAttempt{
		checkoutID: s.ID,
		orderRef:   u.newID(),
		userID:     userID,
		lines:      cart.Snapshot(),
		summary:    summary,
		address:    model.SnapshotAddress(addr),
	}

	if err := s.BeginPayment(attempt.orderRef, u.now()); err != nil {
		return PaymentIntent{}, err
	}

	customer := model.PaymentCustomer{
		Name:  e.customer.Name,
		Email: e.customer.Email,
		Phone: e.customer.Phone,
	}
	if customer.Phone == "" {
		customer.Phone = addr.Phone
	}
	if customer.Name == "" {
		customer.Name = addr.FullName
	}

	req := model.PaymentRequest{
		OrderRef:         attempt.orderRef,
		AmountMinorUnits: model.ToMinorUnits(summary.Total),
		Currency:         u.currency,
		Customer:         customer,
		Metadata: map[string]string{
			"checkout_id": s.ID,
			"user_id":     strconv.FormatInt(userID, 10),
			"attempt":     strconv.Itoa(s.Attempts),
		},
	}

	results, err := u.gateway.Charge(ctx, req)
	if err != nil {
		//ゲートウェイに届いていないので注文は作らず支払いステージに戻す
		_ = s.AbortPayment("payment gateway unavailable", u.now())
		u.logger.Error("payment gateway unreachable",
			zap.String("checkout_id", s.ID),
			zap.String("order_ref", attempt.orderRef),
			zap.Error(err),
		)
		return PaymentIntent{}, ErrGatewayUnavailable
	}

	u.logger.Info("payment started",
		zap.String("checkout_id", s.ID),
		zap.String("order_ref", attempt.orderRef),
		zap.Int64("amount", req.AmountMinorUnits),
		zap.String("currency", req.Currency),
		zap.Int("attempt", s.Attempts),
	)

	u.inflight.Add(1)
	go u.awaitPayment(e, attempt, results)

	return PaymentIntent{
		CheckoutID:       s.ID,
		OrderRef:         attempt.orderRef,
		AmountMinorUnits: req.AmountMinorUnits,
		Currency:         req.Currency,
		Customer:         customer,
		Summary:          summary,
	}, nil
}

// 結果は1回だけ読む。閉じられたチャネルは失敗扱い。
func (u *CheckoutUsecase) awaitPayment(e *checkoutEntry, attempt paymentAttempt, results <-chan model.PaymentResult) {
	defer u.inflight.Done()

	res, ok := <-results
	if !ok {
		res = model.PaymentFailure{Reason: "payment gateway closed without a result"}
	}
	u.settle(context.Background(), e, attempt, res)
}

// settle は処理中の試行に対して終了遷移を1回だけ行う。
// 処理中でない・試行IDが違う結果は破棄する。
func (u *CheckoutUsecase) settle(ctx context.Context, e *checkoutEntry, attempt paymentAttempt, res model.PaymentResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.session
	if !s.Processing() || s.AttemptID != attempt.orderRef {
		u.logger.Warn("stale payment result dropped",
			zap.String("checkout_id", s.ID),
			zap.String("order_ref", attempt.orderRef),
			zap.String("status", s.Status.String()),
		)
		return
	}

	switch r := res.(type) {
	case model.PaymentDismissed:
		_ = s.Settle(attempt.orderRef, model.CheckoutStatusCancelledByUser, u.now())
		u.logger.Info("payment dismissed by user",
			zap.String("checkout_id", s.ID),
			zap.String("order_ref", attempt.orderRef),
		)
	case model.PaymentSuccess:
		u.completeOrder(ctx, e, attempt, r)
	case model.PaymentFailure:
		u.recordFailedOrder(ctx, e, attempt, r.Reason)
	default:
		u.recordFailedOrder(ctx, e, attempt, "unrecognized payment result")
	}
}

func (a paymentAttempt) order(status model.OrderStatus, payment model.PaymentStatus) model.Order {
	o := model.Order{
		UserID:          a.userID,
		Items:           model.OrderItemsFromLines(a.lines),
		Subtotal:        a.summary.Subtotal,
		Shipping:        a.summary.Shipping,
		Tax:             a.summary.Tax,
		Discount:        decimal.Zero,
		Status:          status,
		PaymentStatus:   model.PaymentStatusPending,
		DeliveryAddress: a.address,
		IdempotencyKey:  a.orderRef,
	}
	o.ComputeTotal()
	_ = o.SetPaymentStatus(payment)
	return o
}
