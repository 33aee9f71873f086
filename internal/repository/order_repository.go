package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
)

// 一意制約に当たった（同じIdempotencyKeyの注文が並行して作られた）
var ErrDuplicate = errors.New("duplicate record")

type OrderRepository interface {
	// 注文ヘッダを作成してIDを返す（明細はOrderItemRepository）
	// IdempotencyKeyが既にあれば ErrDuplicate
	Create(ctx context.Context, order model.Order) (int64, error)
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)

	//同じキーなら同じ注文
	FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error)
}
