package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusReturned  OrderStatus = "returned"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// paid/failedは確定済み（再決済は新しい注文で行う）
func (s PaymentStatus) IsFinal() bool {
	return s == PaymentStatusPaid || s == PaymentStatusFailed
}

// 注文時点の住所のコピー
type AddressSnapshot struct {
	Label    string `gorm:"type:varchar(50)" json:"label"`
	FullName string `gorm:"type:varchar(255)" json:"full_name"`
	Phone    string `gorm:"type:varchar(30)" json:"phone"`
	Street   string `gorm:"type:varchar(255)" json:"street"`
	City     string `gorm:"type:varchar(255)" json:"city"`
	State    string `gorm:"type:varchar(100)" json:"state"`
	Pincode  string `gorm:"type:varchar(10)" json:"pincode"`
}

func SnapshotAddress(a Address) AddressSnapshot {
	return AddressSnapshot{
		Label:    a.Label,
		FullName: a.FullName,
		Phone:    a.Phone,
		Street:   a.Street,
		City:     a.City,
		State:    a.State,
		Pincode:  a.Pincode,
	}
}

// total = subtotal + shipping + tax - discount
type Order struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           int64           `gorm:"not null;index" json:"user_id"`
	Items            []OrderItem     `gorm:"foreignKey:OrderID" json:"items"`
	Subtotal         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	Shipping         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"shipping"`
	Tax              decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"tax"`
	Discount         decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"discount"`
	Total            decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	Status           OrderStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentStatus    PaymentStatus   `gorm:"type:varchar(20);not null;index" json:"payment_status"`
	PaymentReference string          `gorm:"type:varchar(255)" json:"payment_reference,omitempty"`
	FailureReason    string          `gorm:"type:varchar(512)" json:"failure_reason,omitempty"`
	DeliveryAddress  AddressSnapshot `gorm:"embedded;embeddedPrefix:delivery_" json:"delivery_address"`
	//決済試行ごとに一意（同じ試行で二重に注文を作らない）
	IdempotencyKey string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"-"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// ComputeTotalは不変条件どおりにTotalを埋める。
func (o *Order) ComputeTotal() {
	o.Total = o.Subtotal.Add(o.Shipping).Add(o.Tax).Sub(o.Discount)
}

// SetPaymentStatusは確定済みの支払いステータスを上書きしない。
func (o *Order) SetPaymentStatus(s PaymentStatus) error {
	if o.PaymentStatus.IsFinal() {
		return ErrPaymentStatusFinal
	}
	o.PaymentStatus = s
	return nil
}
