package middleware

import (
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
)

// adminOrigin はShopify管理画面のオリジン。埋め込みアプリはこの配下のiframeで表示される。
const adminOrigin = "https://admin.shopify.com"

// Secure は基本的なセキュリティヘッダーを付与するGinミドルウェアを返す。
// 埋め込みアプリは管理画面のiframe内で表示されるため、X-Frame-Optionsは付与せず
// フレームの許可はFrameAncestorsのCSPで制御する。
func Secure(tls bool) gin.HandlerFunc {
	cfg := secure.Config{
		FrameDeny:          false,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}
	if tls {
		cfg.STSSeconds = 31536000
		cfg.STSIncludeSubdomains = true
	}
	return secure.New(cfg)
}

// FrameAncestors はショップの管理画面からのみiframe表示を許可するCSPを付与するGinミドルウェアを返す。
// normalizeShop はクエリパラメータのshopを正規化し、不正なら空文字列を返す。
// shopが不正な場合や埋め込みアプリでない場合はフレーム表示を禁止する。
func FrameAncestors(embedded bool, normalizeShop func(string) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		shop := ""
		if raw := c.Query("shop"); embedded && raw != "" {
			shop = normalizeShop(raw)
		}
		if shop != "" {
			c.Header("Content-Security-Policy", FrameAncestorsPolicy(shop))
		} else {
			c.Header("Content-Security-Policy", "frame-ancestors 'none';")
		}
		c.Next()
	}
}

// FrameAncestorsPolicy はショップ向けのframe-ancestorsディレクティブを返す。
func FrameAncestorsPolicy(shop string) string {
	return "frame-ancestors https://" + shop + " " + adminOrigin + ";"
}
