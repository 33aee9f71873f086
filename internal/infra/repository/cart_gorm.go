package repository

import (
	"context"
	"errors"
	"time"

	"storefront/internal/domain/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 1ユーザー1行。明細はJSONでまとめて保存する
type cartRecord struct {
	UserID    int64            `gorm:"primaryKey;autoIncrement:false"`
	Lines     []model.CartLine `gorm:"type:jsonb;serializer:json;not null"`
	UpdatedAt time.Time        `gorm:"not null"`
}

func (cartRecord) TableName() string { return "carts" }

// CartGormRepositoryはRedisを使わない構成でのカート保存先。
type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

// AutoMigrate用
func CartModel() interface{} { return &cartRecord{} }

func (r *CartGormRepository) Load(ctx context.Context, userID int64) (*model.Cart, error) {
	var rec cartRecord
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.NewCart(userID), nil
	}
	if err != nil {
		return nil, err
	}

	cart := &model.Cart{UserID: userID, Lines: rec.Lines, UpdatedAt: rec.UpdatedAt}
	if cart.Lines == nil {
		cart.Lines = []model.CartLine{}
	}
	return cart, nil
}

// 丸ごと上書き（upsert）
func (r *CartGormRepository) Save(ctx context.Context, cart *model.Cart) error {
	rec := cartRecord{
		UserID:    cart.UserID,
		Lines:     cart.Lines,
		UpdatedAt: time.Now(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"lines", "updated_at"}),
		}).
		Create(&rec).Error
}

func (r *CartGormRepository) Delete(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&cartRecord{}).Error
}

// Update はユーザーの行を FOR UPDATE で押さえてから fn を適用する。
// 行がなければ空行を先に作ってロック対象にする
func (r *CartGormRepository) Update(ctx context.Context, userID int64, fn func(cart *model.Cart) error) (*model.Cart, error) {
	var out *model.Cart
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := cartRecord{UserID: userID, Lines: []model.CartLine{}, UpdatedAt: time.Now()}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}

		var rec cartRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&rec).Error; err != nil {
			return err
		}

		cart := &model.Cart{UserID: userID, Lines: rec.Lines, UpdatedAt: rec.UpdatedAt}
		if cart.Lines == nil {
			cart.Lines = []model.CartLine{}
		}
		if err := fn(cart); err != nil {
			return err
		}

		if cart.IsEmpty() {
			if err := tx.Where("user_id = ?", userID).Delete(&cartRecord{}).Error; err != nil {
				return err
			}
			out = cart
			return nil
		}

		cart.UpdatedAt = time.Now()
		rec.Lines = cart.Lines
		rec.UpdatedAt = cart.UpdatedAt
		if err := tx.Save(&rec).Error; err != nil {
			return err
		}
		out = cart
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
