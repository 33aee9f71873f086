package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryGormRepository struct {
	db *gorm.DB
}

func NewInventoryGormRepository(db *gorm.DB) *InventoryGormRepository {
	return &InventoryGormRepository{db: db}
}

// 在庫を減らす（0で止める）。行ロックして実際に減った数を返す
func (r *InventoryGormRepository) DecrementStock(ctx context.Context, productID int64, qty int64) (int64, error) {
	if qty <= 0 {
		return 0, nil
	}

	var moved int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p model.Product
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "stock").
			Where("id = ?", productID).
			First(&p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repo.ErrNotFound
		}
		if err != nil {
			return err
		}

		moved = clampDecrement(p.Stock, qty)
		if moved == 0 {
			return nil
		}

		return tx.Model(&model.Product{}).
			Where("id = ?", productID).
			Update("stock", gorm.Expr("stock - ?", moved)).Error
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}

// 調整履歴作成
func (r *InventoryGormRepository) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	if err := r.db.WithContext(ctx).Create(&adj).Error; err != nil {
		return err
	}
	return nil
}

// clampDecrement は在庫から実際に引ける数を返す（在庫は0未満にしない）
func clampDecrement(stock, qty int64) int64 {
	if qty <= 0 || stock <= 0 {
		return 0
	}
	if qty > stock {
		return stock
	}
	return qty
}
