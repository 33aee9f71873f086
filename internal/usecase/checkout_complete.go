package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"storefront/internal/domain/model"
	"storefront/internal/repository"

	"go.uber.org/zap"
)

// submitOrder は注文ヘッダと明細を1トランザクションで作る。
// 同じ試行（IdempotencyKey）で既に作られていればそのIDを返す。
func (u *CheckoutUsecase) submitOrder(ctx context.Context, order model.Order) (int64, error) {
	var orderID int64
	err := u.tx.WithinTx(ctx, func(r repository.TxRepos) error {
		existing, found, err := r.Orders().FindByIdempotencyKey(ctx, order.UserID, order.IdempotencyKey)
		if err != nil {
			return err
		}
		if found {
			orderID = existing.ID
			return nil
		}

		id, err := r.Orders().Create(ctx, order)
		if err != nil {
			return err
		}
		if err := r.OrderItems().CreateBulk(ctx, id, order.Items); err != nil {
			return err
		}
		orderID = id
		return nil
	})
	if errors.Is(err, repository.ErrDuplicate) {
		//並行して同じ試行の注文が作られた。作られた方を使う
		err = u.tx.WithinTx(ctx, func(r repository.TxRepos) error {
			existing, found, err := r.Orders().FindByIdempotencyKey(ctx, order.UserID, order.IdempotencyKey)
			if err != nil {
				return err
			}
			if !found {
				return repository.ErrNotFound
			}
			orderID = existing.ID
			return nil
		})
	}
	if err != nil {
		return 0, err
	}
	return orderID, nil
}

// recordFailedOrder は失敗した決済を注文として残す。
// カートはそのまま、在庫も動かさない。
func (u *CheckoutUsecase) recordFailedOrder(ctx context.Context, e *checkoutEntry, attempt paymentAttempt, reason string) {
	s := e.session
	order := attempt.order(model.OrderStatusFailed, model.PaymentStatusFailed)
	order.FailureReason = reason

	orderID, err := u.submitOrder(ctx, order)
	if err != nil {
		//お金は動いていないので照合は不要。ログだけ残す
		u.logger.Error("failed order could not be recorded",
			zap.String("checkout_id", s.ID),
			zap.String("order_ref", attempt.orderRef),
			zap.Error(err),
		)
	}

	s.OrderID = orderID
	s.FailureReason = reason
	_ = s.Settle(attempt.orderRef, model.CheckoutStatusFailed, u.now())

	u.logger.Warn("payment failed",
		zap.String("checkout_id", s.ID),
		zap.String("order_ref", attempt.orderRef),
		zap.Int64("order_id", orderID),
		zap.String("reason", reason),
	)
}

// completeOrder は決済成功時の確定処理。
// 注文作成 → 在庫減算 → カートクリア → セッション終了 の順。
// 注文の記録に失敗しても決済は済んでいるので、在庫とカートは進めて照合待ちにする。
func (u *CheckoutUsecase) completeOrder(ctx context.Context, e *checkoutEntry, attempt paymentAttempt, res model.PaymentSuccess) {
	s := e.session
	order := attempt.order(model.OrderStatusPending, model.PaymentStatusPaid)
	order.PaymentReference = res.TransactionID

	orderID, err := u.submitOrder(ctx, order)
	if err != nil {
		recErr := &ReconciliationError{
			CheckoutID:    s.ID,
			OrderRef:      attempt.orderRef,
			TransactionID: res.TransactionID,
			Err:           err,
		}
		u.writeReconciliation(ctx, attempt, order, recErr)
		e.reconcile = recErr
		s.ReconciliationRequired = true
		u.logger.Error("payment captured without order",
			zap.String("checkout_id", s.ID),
			zap.String("order_ref", attempt.orderRef),
			zap.String("transaction_id", res.TransactionID),
			zap.Error(recErr),
		)
	}

	u.decrementStock(ctx, attempt, orderID)

	if err := u.carts.Delete(ctx, attempt.userID); err != nil {
		u.logger.Error("cart clear failed after payment",
			zap.Int64("user_id", attempt.userID),
			zap.String("order_ref", attempt.orderRef),
			zap.Error(err),
		)
	}

	s.OrderID = orderID
	s.PaymentReference = res.TransactionID
	_ = s.Settle(attempt.orderRef, model.CheckoutStatusSucceeded, u.now())

	u.logger.Info("payment succeeded",
		zap.String("checkout_id", s.ID),
		zap.String("order_ref", attempt.orderRef),
		zap.String("transaction_id", res.TransactionID),
		zap.Int64("order_id", orderID),
		zap.Bool("reconciliation_required", s.ReconciliationRequired),
	)
}

// 在庫は商品ごとに減らす（0で止める）。1件の失敗で他を止めない。
func (u *CheckoutUsecase) decrementStock(ctx context.Context, attempt paymentAttempt, orderID int64) {
	var orderRef *int64
	if orderID > 0 {
		orderRef = &orderID
	}

	for _, l := range attempt.lines {
		line := l
		err := u.tx.WithinTx(ctx, func(r repository.TxRepos) error {
			moved, err := r.Inventory().DecrementStock(ctx, line.ProductID, line.Quantity)
			if err != nil {
				return err
			}
			return r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
				ProductID:   line.ProductID,
				ActorUserID: attempt.userID,
				OrderID:     orderRef,
				Requested:   line.Quantity,
				Delta:       -moved,
				Reason:      model.InventoryReasonSale,
			})
		})
		if err == nil {
			continue
		}

		u.logger.Error("stock decrement failed",
			zap.Int64("product_id", line.ProductID),
			zap.Int64("quantity", line.Quantity),
			zap.String("order_ref", attempt.orderRef),
			zap.Error(err),
		)
		u.audit(ctx, model.AuditLog{
			ActorUserID:  attempt.userID,
			Action:       model.AuditActionStockAdjustFailed,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   strconv.FormatInt(line.ProductID, 10),
			Reference:    attempt.orderRef,
			Detail:       err.Error(),
		})
	}
}

func (u *CheckoutUsecase) writeReconciliation(ctx context.Context, attempt paymentAttempt, order model.Order, recErr *ReconciliationError) {
	snapshot, err := json.Marshal(order)
	if err != nil {
		snapshot = []byte("{}")
	}
	u.audit(ctx, model.AuditLog{
		ActorUserID:  attempt.userID,
		Action:       model.AuditActionReconcilePayment,
		ResourceType: model.AuditResourceCheckout,
		ResourceID:   attempt.checkoutID,
		Reference:    recErr.TransactionID,
		Detail:       recErr.Error(),
		AfterJSON:    string(snapshot),
	})
}

func (u *CheckoutUsecase) audit(ctx context.Context, entry model.AuditLog) {
	entry.CreatedAt = u.now()
	err := u.tx.WithinTx(ctx, func(r repository.TxRepos) error {
		return r.AuditLogs().Create(ctx, entry)
	})
	if err != nil {
		u.logger.Error("audit log write failed",
			zap.String("action", string(entry.Action)),
			zap.String("resource_id", entry.ResourceID),
			zap.Error(err),
		)
	}
}
