package shopify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/nao1215/shopapp/pkg/httpclient"
)

// AccessToken はOAuthの認可コード交換で得られるオフラインアクセストークン。
type AccessToken struct {
	// AccessToken はAdmin API呼び出しに使うトークン。
	AccessToken string `json:"access_token"`
	// Scope は実際に付与されたスコープ（カンマ区切り）。
	Scope string `json:"scope"`
}

// accessTokenRequest は認可コード交換のリクエストボディ。
type accessTokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Code         string `json:"code"`
}

// AuthorizeURL はショップの認可画面のURLを組み立てる。
// grant_optionsを指定しないためオフラインアクセストークンが発行される。
func (a *Admin) AuthorizeURL(shop string, scopes []string, state, redirectURI string) string {
	q := url.Values{}
	q.Set("client_id", a.cfg.APIKey)
	q.Set("scope", strings.Join(scopes, ","))
	q.Set("redirect_uri", redirectURI)
	q.Set("state", state)
	return a.cfg.ShopURL(shop) + "/admin/oauth/authorize?" + q.Encode()
}

// ExchangeCode は認可コードをアクセストークンに交換する。
func (a *Admin) ExchangeCode(ctx context.Context, shop, code string) (*AccessToken, error) {
	client := httpclient.New(a.cfg.ShopURL(shop), httpclient.WithHTTPClient(a.hc))

	var token AccessToken
	err := client.PostJSON(ctx, "/admin/oauth/access_token", accessTokenRequest{
		ClientID:     a.cfg.APIKey,
		ClientSecret: a.cfg.APISecret,
		Code:         code,
	}, &token)
	if err == nil && token.AccessToken == "" {
		err = errors.New("レスポンスにaccess_tokenが含まれていません")
	}
	a.observe("oauth_access_token", err)
	if err != nil {
		return nil, fmt.Errorf("アクセストークンの取得に失敗: shop=%s: %w", shop, err)
	}
	return &token, nil
}
