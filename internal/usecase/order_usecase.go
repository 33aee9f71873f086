package usecase

import (
	"context"
	"errors"
	"net/http"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
)

type OrderUsecase struct {
	tx repo.TransactionManager
}

func NewOrderUsecase(tx repo.TransactionManager) *OrderUsecase {
	return &OrderUsecase{tx: tx}
}

type OrderItemOutput struct {
	ProductID  int64           `json:"product_id"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TaxPerUnit decimal.Decimal `json:"tax_per_unit"`
	Quantity   int64           `json:"quantity"`
	ImageRef   string          `json:"image_ref,omitempty"`
}

type OrderOutput struct {
	ID               int64                 `json:"id"`
	Status           string                `json:"status"`
	PaymentStatus    string                `json:"payment_status"`
	PaymentReference string                `json:"payment_reference,omitempty"`
	FailureReason    string                `json:"failure_reason,omitempty"`
	Subtotal         decimal.Decimal       `json:"subtotal"`
	Shipping         decimal.Decimal       `json:"shipping"`
	Tax              decimal.Decimal       `json:"tax"`
	Discount         decimal.Decimal       `json:"discount"`
	Total            decimal.Decimal       `json:"total"`
	DeliveryAddress  model.AddressSnapshot `json:"delivery_address"`
	CreatedAt        time.Time             `json:"created_at"`
	Items            []OrderItemOutput     `json:"items"`
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64) ([]OrderOutput, error) {
	if userID <= 0 {
		return []OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	//ページングでまずは固定で取る
	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListByUserID(ctx, userID, 1, 50)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			outs = append(outs, toOrderOutput(o, items))
		}
		return nil
	})

	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if o.UserID != userID {
			//他人の注文は「存在しない扱い」にする
			return NewHTTPError(http.StatusNotFound, "not found")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// 決済済みだが注文が記録されなかったもの（サポート問い合わせ用）
type ReconciliationOutput struct {
	CheckoutID    string    `json:"checkout_id"`
	TransactionID string    `json:"transaction_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

// ListMyReconciliations は本人の照合待ち決済を新しい順に返す。
func (u *OrderUsecase) ListMyReconciliations(ctx context.Context, userID int64) ([]ReconciliationOutput, error) {
	if userID <= 0 {
		return []ReconciliationOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	action := model.AuditActionReconcilePayment
	outs := []ReconciliationOutput{}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		logs, err := r.AuditLogs().List(ctx, repo.AuditLogFilter{
			ActorUserID: &userID,
			Action:      &action,
			Limit:       50,
		})
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		for _, l := range logs {
			outs = append(outs, ReconciliationOutput{
				CheckoutID:    l.ResourceID,
				TransactionID: l.Reference,
				Detail:        l.Detail,
				CreatedAt:     l.CreatedAt,
			})
		}
		return nil
	})

	if err != nil {
		return []ReconciliationOutput{}, err
	}
	return outs, nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID:  it.ProductID,
			Name:       it.ProductNameSnapshot,
			UnitPrice:  it.UnitPriceSnapshot,
			TaxPerUnit: it.TaxPerUnitSnapshot,
			Quantity:   it.Quantity,
			ImageRef:   it.ImageRef,
		})
	}

	return OrderOutput{
		ID:               o.ID,
		Status:           string(o.Status),
		PaymentStatus:    string(o.PaymentStatus),
		PaymentReference: o.PaymentReference,
		FailureReason:    o.FailureReason,
		Subtotal:         o.Subtotal,
		Shipping:         o.Shipping,
		Tax:              o.Tax,
		Discount:         o.Discount,
		Total:            o.Total,
		DeliveryAddress:  o.DeliveryAddress,
		CreatedAt:        o.CreatedAt,
		Items:            outItems,
	}
}
