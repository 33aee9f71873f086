package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type InventoryRepository interface {
	// 在庫を減らす。0未満にはしない。実際に減った数を返す
	DecrementStock(ctx context.Context, productID int64, qty int64) (int64, error)

	// 調整履歴作成
	CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error
}
