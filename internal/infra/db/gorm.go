package db

import (
	"fmt"
	"os"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	infraRepo "storefront/internal/infra/repository"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect はDBに接続して *gorm.DB を返す。
func Connect(cfg config.Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{}
	if cfg.GoEnv != "dev" {
		gcfg.Logger = gormlogger.Default.LogMode(gormlogger.Warn)
	}

	// DATABASE_URL があれば最優先で使う
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return gorm.Open(postgres.Open(dsn), gcfg)
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresSSLMode,
	)

	return gorm.Open(postgres.Open(dsn), gcfg)
}

// ユーザーごとにdefault住所は1件まで
const oneDefaultAddressIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_addresses_one_default
	ON addresses (user_id) WHERE is_default`

// Migrate はアプリで使うテーブルを作成/更新する。
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.User{},
		&model.Product{},
		&model.Address{},
		&model.Order{},
		&model.OrderItem{},
		&model.InventoryAdjustment{},
		&model.AuditLog{},
		infraRepo.CartModel(),
	); err != nil {
		return err
	}
	return db.Exec(oneDefaultAddressIndex).Error
}
