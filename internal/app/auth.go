package app

import (
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nao1215/shopapp/internal/config"
	"github.com/nao1215/shopapp/internal/session"
	"github.com/nao1215/shopapp/internal/shopify"
	"github.com/nao1215/shopapp/pkg/middleware"
	"github.com/sirupsen/logrus"
)

const (
	// stateCookie はOAuthのstateを保持するクッキー名。
	stateCookie = "shopify_app_state"
	// stateCookieMaxAge はstateクッキーの有効期間（秒）。
	stateCookieMaxAge = 600

	// sessionContextKey は認証済みセッションを保持するgin.Contextのキー。
	sessionContextKey = "shopify_session"

	headerReauthorize    = "X-Shopify-API-Request-Failure-Reauthorize"
	headerReauthorizeURL = "X-Shopify-API-Request-Failure-Reauthorize-Url"
)

// handleAuthBegin はOAuthを開始し、ショップの認可画面へリダイレクトするハンドラを返す。
func (s *Server) handleAuthBegin() gin.HandlerFunc {
	return func(c *gin.Context) {
		shop := shopify.SanitizeShop(c.Query("shop"))
		if shop == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "shopパラメータが不正です"})
			return
		}

		state := uuid.NewString()
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(stateCookie, state, stateCookieMaxAge, config.AuthCallbackPath, "", s.secureCookies(), true)

		redirectURI := strings.TrimRight(s.cfg.Shopify.AppURL, "/") + config.AuthCallbackPath
		c.Redirect(http.StatusFound, s.shopify.AuthorizeURL(shop, s.cfg.Shopify.Scopes, state, redirectURI))
	}
}

// handleAuthCallback はOAuthのコールバックを処理するハンドラを返す。
// 署名とstateを検証し、認可コードを交換してオフラインセッションを保存する。
func (s *Server) handleAuthCallback() gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Request.URL.Query()
		if !shopify.VerifyQueryHMAC(query, s.cfg.Shopify.APISecret) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "署名の検証に失敗しました"})
			return
		}

		shop := shopify.SanitizeShop(query.Get("shop"))
		if shop == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "shopパラメータが不正です"})
			return
		}

		state, err := c.Cookie(stateCookie)
		if err != nil || state == "" || state != query.Get("state") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "stateが一致しません"})
			return
		}
		c.SetCookie(stateCookie, "", -1, config.AuthCallbackPath, "", s.secureCookies(), true)

		log := s.logger.WithField("shop", shop)
		token, err := s.shopify.ExchangeCode(c.Request.Context(), shop, query.Get("code"))
		if err != nil {
			log.WithError(err).Error("アクセストークンの取得に失敗")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "アクセストークンの取得に失敗しました"})
			return
		}

		if granted := session.ParseScopes(token.Scope); !granted.Covers(s.scopes) {
			log.WithFields(logrus.Fields{
				"granted":  granted.String(),
				"required": s.scopes.String(),
			}).Warn("付与されたスコープが不足しています")
			c.JSON(http.StatusForbidden, gin.H{"error": "付与されたスコープが不足しています"})
			return
		}

		sess := &session.Session{
			ID:          session.OfflineID(shop),
			Shop:        shop,
			State:       state,
			IsOnline:    false,
			Scope:       token.Scope,
			AccessToken: token.AccessToken,
		}
		if err := s.sessions.Store(c.Request.Context(), sess); err != nil {
			log.WithError(err).Error("セッションの保存に失敗")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "セッションの保存に失敗しました"})
			return
		}
		log.WithField("scope", token.Scope).Info("アプリがインストールされました")

		c.Redirect(http.StatusFound, s.appRootURL(shop, query.Get("host")))
	}
}

// appRootURL はインストール完了後のリダイレクト先を返す。
// 埋め込みアプリは管理画面内のアプリURL、そうでなければアプリ自身のルート。
func (s *Server) appRootURL(shop, host string) string {
	if !s.cfg.Shopify.Embedded {
		q := url.Values{}
		q.Set("shop", shop)
		q.Set("host", host)
		return "/?" + q.Encode()
	}
	if admin, ok := decodeHost(host); ok {
		return "https://" + admin + "/apps/" + s.cfg.Shopify.APIKey
	}
	return "https://" + shop + "/admin/apps/" + s.cfg.Shopify.APIKey
}

// decodeHost はhostパラメータ（base64エンコードされた管理画面のホスト）をデコードする。
// 管理画面のホストとして妥当な場合のみokを返す。
func decodeHost(host string) (string, bool) {
	if host == "" {
		return "", false
	}
	var decoded []byte
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(host); err == nil {
			decoded = b
			break
		}
	}
	if decoded == nil {
		return "", false
	}

	admin := string(decoded)
	domain, _, _ := strings.Cut(admin, "/")
	if domain != "admin.shopify.com" && !shopify.ValidShopDomain(domain) {
		return "", false
	}
	if strings.ContainsAny(admin, " \t\r\n?#\\") {
		return "", false
	}
	return admin, true
}

// secureCookies はクッキーにSecure属性を付けるかどうかを返す。
func (s *Server) secureCookies() bool {
	return strings.HasPrefix(s.cfg.Shopify.AppURL, "https://")
}

// validateAuthenticatedSession はセッショントークンとインストール済みセッションを要求するミドルウェアを返す。
// 検証に成功したセッションはgin.Contextに格納される。
func (s *Server) validateAuthenticatedSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := s.authenticate(c); !ok {
			return
		}
		c.Next()
	}
}

// authenticate はリクエストのセッショントークンを検証し、ショップのオフラインセッションを返す。
// 失敗した場合はレスポンスを書き込んでリクエストを中断する。
func (s *Server) authenticate(c *gin.Context) (*session.Session, bool) {
	raw, err := middleware.BearerToken(c)
	if err != nil {
		s.reauthorize(c, "", err)
		return nil, false
	}

	claims, err := middleware.ParseSessionToken(s.cfg.Shopify.APIKey, s.cfg.Shopify.APISecret, raw)
	if err != nil {
		s.reauthorize(c, "", err)
		return nil, false
	}
	shop, err := claims.Shop()
	if err != nil {
		s.reauthorize(c, "", err)
		return nil, false
	}

	sess, err := s.sessions.Load(c.Request.Context(), session.OfflineID(shop))
	switch {
	case errors.Is(err, session.ErrNotFound):
		s.reauthorize(c, shop, err)
		return nil, false
	case err != nil:
		s.logger.WithError(err).WithField("shop", shop).Error("セッションの読み込みに失敗")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "セッションの読み込みに失敗しました"})
		return nil, false
	}

	if !sess.IsActive(s.scopes, s.now()) {
		s.reauthorize(c, shop, errors.New("セッションが無効かスコープが不足しています"))
		return nil, false
	}

	c.Set(sessionContextKey, sess)
	return sess, true
}

// reauthorize は再認証が必要であることをApp Bridgeに伝える401を返す。
func (s *Server) reauthorize(c *gin.Context, shop string, cause error) {
	s.logger.WithFields(logrus.Fields{
		"path": c.Request.URL.Path,
		"shop": shop,
	}).WithError(cause).Warn("セッションの検証に失敗")

	reauthURL := strings.TrimRight(s.cfg.Shopify.AppURL, "/") + config.AuthPath
	if shop != "" {
		reauthURL += "?shop=" + url.QueryEscape(shop)
	}
	c.Header(headerReauthorize, "1")
	c.Header(headerReauthorizeURL, reauthURL)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "認証が必要です"})
}

// currentSession はvalidateAuthenticatedSessionが格納したセッションを返す。
func currentSession(c *gin.Context) *session.Session {
	v, ok := c.Get(sessionContextKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*session.Session)
	return sess
}
