package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/infra/cache"
	"storefront/internal/infra/db"
	"storefront/internal/infra/payment"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/logger"
	repo "storefront/internal/repository"
	"storefront/internal/server"
	"storefront/internal/usecase"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	//.envは無くてもよい（本番は環境変数で渡す）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.GoEnv, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		return fmt.Errorf("db migrate: %w", err)
	}

	carts, err := newCartRepository(cfg, gormDB, log)
	if err != nil {
		return err
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	addressRepo := infraRepo.NewAddressGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB)

	gateway := payment.NewCallbackGateway(cfg.PaymentWebhookSecret, log)

	shipping := cfg.ShippingPolicy()
	if !shipping.ThresholdEnabled() {
		log.Warn("free shipping threshold disabled; flat fee always applies",
			zap.String("flat_fee", shipping.FlatFee.String()))
	}

	//Usecase生成
	sessionUC := usecase.NewSessionUsecase(cfg, userRepo)
	productUC := usecase.NewProductUsecase(productRepo)
	cartUC := usecase.NewCartUsecase(carts, productRepo, log)
	addressUC := usecase.NewAddressUsecase(addressRepo)
	checkoutUC := usecase.NewCheckoutUsecase(carts, addressUC, txm, gateway, shipping, cfg.Currency, log)
	orderUC := usecase.NewOrderUsecase(txm)

	//Handler生成
	e := server.New(cfg, log, sessionUC, server.Handlers{
		Auth:     handler.NewAuthHandler(sessionUC),
		Product:  handler.NewProductHandler(productUC),
		Cart:     handler.NewCartHandler(cartUC),
		Address:  handler.NewAddressHandler(addressUC),
		Checkout: handler.NewCheckoutHandler(checkoutUC, cfg.LoginPath),
		Order:    handler.NewOrderHandler(orderUC),
		Payment:  handler.NewPaymentHandler(gateway),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := cfg.Port
	if addr != "" && addr[0] != ':' {
		addr = ":" + addr
	}
	return server.Start(ctx, e, addr, log, checkoutUC.Wait)
}

// REDIS_ADDRがあればRedis、なければPostgresにカートを置く
func newCartRepository(cfg config.Config, gormDB *gorm.DB, log *zap.Logger) (repo.CartRepository, error) {
	if cfg.RedisAddr == "" {
		log.Info("cart store: postgres")
		return infraRepo.NewCartGormRepository(gormDB), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Info("cart store: redis", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.CartTTL))
	return cache.NewCartRedisRepository(client, cfg.CartTTL), nil
}
