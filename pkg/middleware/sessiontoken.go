package middleware

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// clockSkew はセッショントークンの時刻検証で許容するずれ。
const clockSkew = 5 * time.Second

// ErrMissingBearer はAuthorizationヘッダーにBearerトークンが無いことを表す。
var ErrMissingBearer = errors.New("bearer token is required")

// SessionTokenClaims は管理画面のApp Bridgeが発行するセッショントークンのクレーム。
// 埋め込みアプリのフロントエンドからのfetchに自動で付与される。
type SessionTokenClaims struct {
	jwt.RegisteredClaims
	// Dest はショップのURL（例: https://example.myshopify.com）。
	Dest string `json:"dest"`
	// SessionID は管理画面のユーザーセッションID。
	SessionID string `json:"sid,omitempty"`
}

// Shop はdestクレームからショップのドメインを取り出す。
func (c *SessionTokenClaims) Shop() (string, error) {
	u, err := url.Parse(c.Dest)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("destクレームが不正です: %q", c.Dest)
	}
	return u.Host, nil
}

// GenerateSessionToken はショップとユーザーのセッショントークンを生成する。
// 本番ではApp Bridgeが発行するため、開発とテストでのみ使用する。
func GenerateSessionToken(apiKey, apiSecret, shop, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://" + shop + "/admin",
			Subject:   userID,
			Audience:  jwt.ClaimStrings{apiKey},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		Dest:      "https://" + shop,
		SessionID: uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(apiSecret))
	if err != nil {
		return "", fmt.Errorf("セッショントークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// ParseSessionToken はセッショントークンの署名・有効期限・audienceを検証してクレームを返す。
// issとdestが同じショップを指していることも確認する。
func ParseSessionToken(apiKey, apiSecret, raw string) (*SessionTokenClaims, error) {
	claims := &SessionTokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(_ *jwt.Token) (any, error) {
		return []byte(apiSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(apiKey),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	if err != nil {
		return nil, fmt.Errorf("セッショントークンの検証に失敗: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("セッショントークンが無効です")
	}

	shop, err := claims.Shop()
	if err != nil {
		return nil, err
	}
	iss, err := url.Parse(claims.Issuer)
	if err != nil || iss.Host != shop {
		return nil, fmt.Errorf("issとdestのショップが一致しません: iss=%q, dest=%q", claims.Issuer, claims.Dest)
	}
	return claims, nil
}

// BearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
func BearerToken(c *gin.Context) (string, error) {
	token, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !found || strings.TrimSpace(token) == "" {
		return "", ErrMissingBearer
	}
	return strings.TrimSpace(token), nil
}
