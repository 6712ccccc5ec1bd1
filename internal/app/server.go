package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/shopapp/internal/config"
	"github.com/nao1215/shopapp/internal/session"
	"github.com/nao1215/shopapp/internal/shopify"
	"github.com/nao1215/shopapp/internal/webhook"
	"github.com/nao1215/shopapp/pkg/metrics"
	"github.com/nao1215/shopapp/pkg/middleware"
	"github.com/sirupsen/logrus"
)

const (
	// serviceName はヘルスチェックで返すサービス名。
	serviceName = "shopapp"
	// readHeaderTimeout はリクエストヘッダーの読み取りタイムアウト。
	readHeaderTimeout = 10 * time.Second
	// shutdownTimeout はグレースフルシャットダウンの待機時間。
	shutdownTimeout = 15 * time.Second
)

// OAuth はOAuthによるアプリのインストールに必要な操作。
type OAuth interface {
	AuthorizeURL(shop string, scopes []string, state, redirectURI string) string
	ExchangeCode(ctx context.Context, shop, code string) (*shopify.AccessToken, error)
}

// Shopify はゲートウェイが呼び出すShopifyの操作。*shopify.Admin が実装する。
type Shopify interface {
	shopify.AdminAPI
	OAuth
}

var _ Shopify = (*shopify.Admin)(nil)

// Deps はServerの依存関係。
type Deps struct {
	// Config はアプリケーション設定。
	Config *config.Config
	// Logger はリクエストと処理失敗のログ出力先。
	Logger logrus.FieldLogger
	// Sessions はオフラインセッションのストア。
	Sessions session.Store
	// Shopify はAdmin APIとOAuthのクライアント。
	Shopify Shopify
	// Webhooks はトピックごとのWebhookハンドラ。
	Webhooks *webhook.Registry
	// Metrics はPrometheusメトリクス。
	Metrics *metrics.Metrics
}

// Server はアプリのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はアプリケーション設定。
	cfg *config.Config
	// logger はログ出力先。
	logger logrus.FieldLogger
	// sessions はオフラインセッションのストア。
	sessions session.Store
	// shopify はAdmin APIとOAuthのクライアント。
	shopify Shopify
	// webhooks はWebhookハンドラ。
	webhooks *webhook.Registry
	// metrics はPrometheusメトリクス。
	metrics *metrics.Metrics
	// scopes はセッションが満たすべきスコープ。
	scopes session.Scopes
	// now は現在時刻を返す。テストで差し替える。
	now func() time.Time
}

// NewServer は新しいサーバーを生成する。
func NewServer(d Deps) *Server {
	router := gin.New()
	s := &Server{
		router:   router,
		cfg:      d.Config,
		logger:   d.Logger,
		sessions: d.Sessions,
		shopify:  d.Shopify,
		webhooks: d.Webhooks,
		metrics:  d.Metrics,
		scopes:   session.NewScopes(d.Config.Shopify.Scopes...),
		now:      time.Now,
	}

	router.Use(middleware.Recovery(s.logger))
	router.Use(middleware.RequestLogger(s.logger))
	router.Use(s.metrics.Middleware())
	router.Use(middleware.Secure(strings.HasPrefix(s.cfg.Shopify.AppURL, "https://")))
	router.Use(middleware.FrameAncestors(s.cfg.Shopify.Embedded, shopify.SanitizeShop))
	s.setupRoutes()

	return s
}

// Handler はサーバーのHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルシャットダウンする。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// setupRoutes はルーティングを設定する。
func (s *Server) setupRoutes() {
	// インストールとWebhook（セッショントークン不要）
	s.router.GET(config.AuthPath, s.handleAuthBegin())
	s.router.GET(config.AuthCallbackPath, s.handleAuthCallback())
	s.router.POST(config.WebhookPath, s.handleWebhook())

	// セッショントークンとインストール済みセッションが必要なエンドポイント
	api := s.router.Group("/api")
	api.Use(s.validateAuthenticatedSession())
	{
		api.GET("/products", s.handleListProducts())
		api.GET("/orders", s.handleListOrders())
		api.GET("/locations", s.handleListLocations())
		api.GET("/products/count", s.handleCountProducts())
		api.GET("/products/create", s.handleCreateProducts())
	}

	s.router.GET("/health", s.handleHealth())
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	// 上記以外はすべて静的ファイルかフロントエンドのシェル
	s.router.NoRoute(s.handleFallback())
}

// pinger は疎通確認ができるストア。
type pinger interface {
	Ping(ctx context.Context) error
}

// handleHealth はヘルスチェックのハンドラを返す。
// ストアが疎通確認に対応していれば、その結果を反映する。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if p, ok := s.sessions.(pinger); ok {
			if err := p.Ping(c.Request.Context()); err != nil {
				s.logger.WithError(err).Error("セッションストアの疎通確認に失敗")
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": serviceName})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName})
	}
}
