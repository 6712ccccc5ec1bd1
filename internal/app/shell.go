package app

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/shopapp/internal/config"
	"github.com/nao1215/shopapp/internal/session"
	"github.com/nao1215/shopapp/internal/shopify"
)

const (
	// shellFile はフロントエンドのシェルのファイル名。
	shellFile = "index.html"
	// apiKeyPlaceholder はシェル内でAPIキーに置き換えるプレースホルダー。
	apiKeyPlaceholder = "%SHOPIFY_API_KEY%"
)

// handleFallback はルートが登録されていないパスのハンドラを返す。
// /api配下はセッションを検証して404、それ以外は静的ファイルかシェルを返す。
func (s *Server) handleFallback() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := c.Request.URL.Path
		if p == "/api" || strings.HasPrefix(p, "/api/") {
			if _, ok := s.authenticate(c); !ok {
				return
			}
			c.JSON(http.StatusNotFound, gin.H{"error": "見つかりません"})
			return
		}

		if s.serveStatic(c) {
			return
		}
		if !s.ensureInstalledOnShop(c) {
			return
		}
		s.serveShell(c)
	}
}

// serveStatic はStaticDir配下に該当するファイルがあれば配信する。
// ディレクトリのインデックスとシェル自体は配信しない。
func (s *Server) serveStatic(c *gin.Context) bool {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		return false
	}

	name := path.Clean("/" + c.Request.URL.Path)
	if name == "/" || name == "/"+shellFile {
		return false
	}
	f, err := http.Dir(s.cfg.StaticDir).Open(name)
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return false
	}
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), f)
	return true
}

// ensureInstalledOnShop はshopパラメータのショップにアプリがインストール済みかを確認する。
// 未インストールならOAuthへリダイレクトし、falseを返す。
func (s *Server) ensureInstalledOnShop(c *gin.Context) bool {
	shop := shopify.SanitizeShop(c.Query("shop"))
	if shop == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "shopパラメータが不正です"})
		return false
	}

	// 管理画面の外から開かれた場合は管理画面内のアプリURLへ戻す
	if s.cfg.Shopify.Embedded && c.Query("embedded") != "1" {
		if admin, ok := decodeHost(c.Query("host")); ok {
			target := "https://" + admin + "/apps/" + s.cfg.Shopify.APIKey + c.Request.URL.Path
			c.Redirect(http.StatusFound, target)
			return false
		}
	}

	sess, err := s.sessions.Load(c.Request.Context(), session.OfflineID(shop))
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		s.logger.WithError(err).WithField("shop", shop).Error("セッションの読み込みに失敗")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "セッションの読み込みに失敗しました"})
		return false
	}
	if sess == nil || !sess.IsActive(s.scopes, s.now()) {
		q := url.Values{}
		q.Set("shop", shop)
		c.Redirect(http.StatusFound, config.AuthPath+"?"+q.Encode())
		return false
	}
	return true
}

// serveShell はフロントエンドのシェルを返す。
func (s *Server) serveShell(c *gin.Context) {
	data, err := os.ReadFile(filepath.Join(s.cfg.StaticDir, shellFile))
	if err != nil {
		s.logger.WithError(err).Error("シェルの読み込みに失敗")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "シェルの読み込みに失敗しました"})
		return
	}
	data = bytes.ReplaceAll(data, []byte(apiKeyPlaceholder), []byte(s.cfg.Shopify.APIKey))
	c.Data(http.StatusOK, "text/html; charset=utf-8", data)
}
