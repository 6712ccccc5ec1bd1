package shopify

import (
	"regexp"
	"strings"
)

// shopDomainPattern はショップのmyshopify.comドメインにマッチする。
var shopDomainPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]*\.myshopify\.com$`)

// ValidShopDomain はショップのドメインが "<name>.myshopify.com" 形式かどうかを返す。
func ValidShopDomain(shop string) bool {
	return shopDomainPattern.MatchString(shop)
}

// SanitizeShop はショップ指定を正規化し、不正な場合は空文字列を返す。
// スキームや末尾のスラッシュ、大文字を許容する。
func SanitizeShop(raw string) string {
	shop := strings.TrimSpace(raw)
	shop = strings.TrimPrefix(shop, "https://")
	shop = strings.TrimPrefix(shop, "http://")
	shop = strings.TrimRight(shop, "/")
	shop = strings.ToLower(shop)
	if !ValidShopDomain(shop) {
		return ""
	}
	return shop
}
