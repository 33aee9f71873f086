package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// CartRepositoryはカートの永続化アダプタ（save/load）。
// カートの変更ロジックは持たない。
type CartRepository interface {
	// 保存されていなければ空のカートを返す
	Load(ctx context.Context, userID int64) (*model.Cart, error)
	Save(ctx context.Context, cart *model.Cart) error
	Delete(ctx context.Context, userID int64) error

	// Update は load → fn → save をユーザー単位で原子的に行う。
	// 並行した変更があればfnは最新のカートで再実行される。fnがエラーなら保存しない
	Update(ctx context.Context, userID int64, fn func(cart *model.Cart) error) (*model.Cart, error)
}
