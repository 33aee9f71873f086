package model

import "time"

type InventoryReason string

const (
	//決済成功による出庫
	InventoryReasonSale InventoryReason = "SALE"
)

// 在庫調整の履歴。Deltaは実際に動いた数（0で下限クランプ後の値）
type InventoryAdjustment struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID   int64           `gorm:"not null;index" json:"product_id"`
	ActorUserID int64           `gorm:"not null;index" json:"actor_user_id"`
	OrderID     *int64          `gorm:"index" json:"order_id,omitempty"`
	Requested   int64           `gorm:"not null" json:"requested"`
	Delta       int64           `gorm:"not null" json:"delta"`
	Reason      InventoryReason `gorm:"type:varchar(50);not null" json:"reason"`
	CreatedAt   time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}
