package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"storefront/internal/config"
	"storefront/internal/middleware"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// New はミドルウェアとルートを登録したechoを返す。
func New(cfg config.Config, logger *zap.Logger, sessions middleware.SessionResolver, h Handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))

	RegisterRoutes(e, cfg, sessions, h)
	return e
}

// Start はctxがキャンセルされるまで待ち受け、終了時は処理中のリクエストを流し切ってからdrainを呼ぶ。
func Start(ctx context.Context, e *echo.Echo, addr string, logger *zap.Logger, drain func(ctx context.Context) error) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		return err
	}

	//決済結果待ちが残っていれば確定させてから抜ける（同じ期限内で打ち切る）
	if drain != nil {
		if err := drain(sctx); err != nil {
			logger.Error("drain incomplete", zap.Error(err))
			return err
		}
	}
	return nil
}
