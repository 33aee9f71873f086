package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// 住所(Address)を保存・取得する窓口
type AddressRepository interface {
	//住所を新規作成する。ユーザー単位で直列化し、そのユーザーの最初の住所なら
	//defaultにする（address.IsDefaultは無視）。作成後はIDなどが埋まったものを返す
	CreateForUser(ctx context.Context, address model.Address) (model.Address, error)

	//ユーザーが持つ住所一覧（default優先）
	ListByUserID(ctx context.Context, userID int64) ([]model.Address, error)

	//住所IDから1件取得。無ければErrNotFound
	FindByID(ctx context.Context, addressID int64) (model.Address, error)

	CountByUserID(ctx context.Context, userID int64) (int64, error)
}
