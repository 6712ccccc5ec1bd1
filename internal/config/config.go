// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// 認証・Webhookのルートパス。Shopify側のアプリ設定と一致させること。
const (
	AuthPath         = "/api/auth"
	AuthCallbackPath = "/api/auth/callback"
	WebhookPath      = "/api/webhooks"
)

// EnvProduction は本番モードを表す環境名。
const EnvProduction = "production"

// Config はアプリケーション全体の設定を集約する。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// Env は実行モード（production / development）。
	Env string
	// StaticDir はフロントエンドの静的ファイルを配信するディレクトリ。
	StaticDir string
	// DatabasePath はセッションを保存するSQLiteファイルのパス。
	DatabasePath string
	// LogLevel はログレベル。
	LogLevel string
	// LogFormat はログ出力形式（text / json）。
	LogFormat string
	// Shopify はShopifyアプリとしての設定。
	Shopify ShopifyConfig
}

// ShopifyConfig はShopify APIとOAuthに関する設定。
type ShopifyConfig struct {
	// APIKey はアプリのクライアントID。
	APIKey string
	// APISecret はアプリのクライアントシークレット。HMAC検証とセッショントークン検証に使う。
	APISecret string
	// Scopes はアプリが要求するアクセススコープ。
	Scopes []string
	// AppURL はアプリの公開URL。OAuthのリダイレクト先を組み立てるために使う。
	AppURL string
	// APIVersion はAdmin APIのバージョン。
	APIVersion string
	// Embedded はアプリがShopify管理画面に埋め込まれて動作するかどうか。
	Embedded bool
	// RateLimit はショップごとのAdmin API呼び出し上限（リクエスト/秒）。
	RateLimit float64
	// RateBurst はショップごとのバースト許容量。
	RateBurst int
}

// IsProduction は本番モードで動作しているかどうかを返す。
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Addr はサーバーのリッスンアドレスを返す。
func (c *Config) Addr() string {
	return ":" + c.Port
}

// Load は環境変数から設定を読み込む。
func Load() (*Config, error) {
	port := firstEnv("BACKEND_PORT", "PORT")
	if port == "" {
		port = "8080"
	}
	if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
		return nil, fmt.Errorf("ポート番号が不正です: %q", port)
	}

	env := firstEnv("APP_ENV", "NODE_ENV")
	if env == "" {
		env = "development"
	}

	staticDir := os.Getenv("STATIC_DIR")
	if staticDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("作業ディレクトリの取得に失敗: %w", err)
		}
		staticDir = defaultStaticDir(cwd, env)
	}

	shopify, err := loadShopifyConfig(port)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:         port,
		Env:          env,
		StaticDir:    staticDir,
		DatabasePath: getEnvOr("DATABASE_PATH", "database.sqlite"),
		LogLevel:     getEnvOr("LOG_LEVEL", "info"),
		LogFormat:    getEnvOr("LOG_FORMAT", "text"),
		Shopify:      shopify,
	}, nil
}

// defaultStaticDir は実行モードに応じた静的ファイルのディレクトリを返す。
// 本番ではビルド済みのdist、開発時はソースディレクトリをそのまま配信する。
func defaultStaticDir(cwd, env string) string {
	if env == EnvProduction {
		return filepath.Join(cwd, "web", "frontend", "dist")
	}
	return filepath.Join(cwd, "web", "frontend")
}

// loadShopifyConfig はShopify関連の設定を読み込む。
func loadShopifyConfig(port string) (ShopifyConfig, error) {
	apiKey := strings.TrimSpace(os.Getenv("SHOPIFY_API_KEY"))
	if apiKey == "" {
		return ShopifyConfig{}, fmt.Errorf("SHOPIFY_API_KEYが設定されていません")
	}
	apiSecret := strings.TrimSpace(os.Getenv("SHOPIFY_API_SECRET"))
	if apiSecret == "" {
		return ShopifyConfig{}, fmt.Errorf("SHOPIFY_API_SECRETが設定されていません")
	}

	appURL := firstEnv("SHOPIFY_APP_URL", "HOST")
	if appURL == "" {
		appURL = "http://localhost:" + port
	}
	if !strings.HasPrefix(appURL, "http://") && !strings.HasPrefix(appURL, "https://") {
		appURL = "https://" + appURL
	}

	embedded := true
	if v := os.Getenv("SHOPIFY_EMBEDDED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return ShopifyConfig{}, fmt.Errorf("SHOPIFY_EMBEDDEDが不正です: %q", v)
		}
		embedded = b
	}

	rateLimit := 2.0
	if v := os.Getenv("SHOPIFY_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return ShopifyConfig{}, fmt.Errorf("SHOPIFY_RATE_LIMITが不正です: %q", v)
		}
		rateLimit = f
	}

	rateBurst := 40
	if v := os.Getenv("SHOPIFY_RATE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return ShopifyConfig{}, fmt.Errorf("SHOPIFY_RATE_BURSTが不正です: %q", v)
		}
		rateBurst = n
	}

	return ShopifyConfig{
		APIKey:     apiKey,
		APISecret:  apiSecret,
		Scopes:     splitScopes(getEnvOr("SCOPES", "write_products")),
		AppURL:     strings.TrimRight(appURL, "/"),
		APIVersion: getEnvOr("SHOPIFY_API_VERSION", "2024-10"),
		Embedded:   embedded,
		RateLimit:  rateLimit,
		RateBurst:  rateBurst,
	}, nil
}

// splitScopes はカンマ区切りのスコープ文字列を分割する。
func splitScopes(raw string) []string {
	var scopes []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	return scopes
}

// firstEnv は指定された環境変数を順に調べ、最初に設定されている値を返す。
func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultValue
}
