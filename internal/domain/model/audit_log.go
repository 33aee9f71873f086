package model

import "time"

type AuditAction string

const (
	//決済は成功したが注文の記録に失敗した（要照合）
	AuditActionReconcilePayment AuditAction = "RECONCILE_PAYMENT"
	//在庫の更新に失敗した
	AuditActionStockAdjustFailed AuditAction = "STOCK_ADJUST_FAILED"
)

type AuditResourceType string

const (
	AuditResourceCheckout AuditResourceType = "checkout"
	AuditResourceOrder    AuditResourceType = "order"
	AuditResourceProduct  AuditResourceType = "product"
)

// 監査ログ。サポートが後から照合できるように状態をJSONで残す。
type AuditLog struct {
	ID           int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	ActorUserID  int64             `gorm:"not null;index" json:"actor_user_id"`
	Action       AuditAction       `gorm:"type:varchar(50);not null;index" json:"action"`
	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`
	//checkout id / order id / product id
	ResourceID string `gorm:"type:varchar(64);not null;index" json:"resource_id"`
	//決済のトランザクションID
	Reference string    `gorm:"type:varchar(255);index" json:"reference"`
	Detail    string    `gorm:"type:text" json:"detail"`
	AfterJSON string    `gorm:"type:text" json:"after_json"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
