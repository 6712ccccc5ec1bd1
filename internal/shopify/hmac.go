package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// SignQuery はOAuthコールバックのクエリに対するHMAC（16進数）を計算する。
// hmacとsignatureを除いたパラメータをキー順に "k=v" で連結したものが署名対象になる。
func SignQuery(values url.Values, secret string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == "hmac" || k == "signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+strings.Join(values[k], ","))
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyQueryHMAC はOAuthコールバックのクエリのhmacパラメータを検証する。
func VerifyQueryHMAC(values url.Values, secret string) bool {
	got := values.Get("hmac")
	if got == "" {
		return false
	}
	want := SignQuery(values, secret)
	return hmac.Equal([]byte(strings.ToLower(got)), []byte(want))
}

// SignWebhook はWebhookボディに対するHMAC（Base64）を計算する。
func SignWebhook(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookHMAC はX-Shopify-Hmac-Sha256ヘッダーの値を検証する。
func VerifyWebhookHMAC(body []byte, header, secret string) bool {
	if header == "" {
		return false
	}
	return hmac.Equal([]byte(header), []byte(SignWebhook(body, secret)))
}
