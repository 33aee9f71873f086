package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	// IDから1件取得。無ければErrUserNotFound
	FindByID(ctx context.Context, userID int64) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// 最終ログインの更新など
	Update(ctx context.Context, user *model.User) error
}
