package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 注文明細（カート行のスナップショット）
type OrderItem struct {
	ID                  int64           `gorm:"primaryKey;autoIncrement" json:"-"`
	OrderID             int64           `gorm:"not null;index" json:"-"`
	ProductID           int64           `gorm:"not null;index" json:"product_id"`
	ProductNameSnapshot string          `gorm:"type:varchar(255);not null" json:"name"`
	UnitPriceSnapshot   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	TaxPerUnitSnapshot  decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"tax_per_unit"`
	Quantity            int64           `gorm:"not null" json:"quantity"`
	ImageRef            string          `gorm:"type:varchar(512)" json:"image_ref,omitempty"`
	Category            string          `gorm:"type:varchar(100)" json:"category,omitempty"`
	CreatedAt           time.Time       `gorm:"not null;autoCreateTime" json:"-"`
}

func OrderItemsFromLines(lines []CartLine) []OrderItem {
	items := make([]OrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, OrderItem{
			ProductID:           l.ProductID,
			ProductNameSnapshot: l.Name,
			UnitPriceSnapshot:   l.UnitPrice,
			TaxPerUnitSnapshot:  l.TaxPerUnit,
			Quantity:            l.Quantity,
			ImageRef:            l.ImageRef,
			Category:            l.Category,
		})
	}
	return items
}
