// Shopify埋め込みアプリのバックエンドのエントリポイント。
// OAuthによるインストール、Webhookの受信、Admin APIのプロキシ、
// フロントエンドのシェル配信を1つのHTTPサーバーで提供する。
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/nao1215/shopapp/internal/app"
	"github.com/nao1215/shopapp/internal/config"
	"github.com/nao1215/shopapp/internal/session"
	"github.com/nao1215/shopapp/internal/shopify"
	"github.com/nao1215/shopapp/internal/webhook"
	"github.com/nao1215/shopapp/pkg/logging"
	"github.com/nao1215/shopapp/pkg/metrics"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

// run はサーバーを起動し、シグナルを受けるまでブロックする。
// 終了時はセッションストアを閉じてから戻る。
func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// .envが無い場合は環境変数のみで動作する
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf(".envの読み込みに失敗: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("ロガーの初期化に失敗: %w", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := session.OpenSQLite(ctx, cfg.DatabasePath, logger)
	if err != nil {
		return fmt.Errorf("セッションストアの初期化に失敗: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.WithError(err).Error("セッションストアのクローズに失敗")
		}
	}()

	m := metrics.New()
	admin := shopify.NewAdmin(shopify.Config{
		APIKey:     cfg.Shopify.APIKey,
		APISecret:  cfg.Shopify.APISecret,
		APIVersion: cfg.Shopify.APIVersion,
		RateLimit:  cfg.Shopify.RateLimit,
		RateBurst:  cfg.Shopify.RateBurst,
	}, m)
	webhooks := webhook.NewDefaultRegistry(store, logger)

	server := app.NewServer(app.Deps{
		Config:   cfg,
		Logger:   logger,
		Sessions: store,
		Shopify:  admin,
		Webhooks: webhooks,
		Metrics:  m,
	})

	logger.WithFields(logrus.Fields{
		"addr":       cfg.Addr(),
		"env":        cfg.Env,
		"static_dir": cfg.StaticDir,
		"embedded":   cfg.Shopify.Embedded,
		"topics":     webhooks.Topics(),
	}).Info("shopappを起動します")
	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("HTTPサーバーの実行に失敗: %w", err)
	}
	logger.Info("shopappを停止しました")
	return nil
}
