package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// 商品カタログ（カート追加前の価格・在庫確認に使う）
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (model.Product, error)
}
