package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/nao1215/shopapp/internal/session"
	"github.com/nao1215/shopapp/pkg/httpclient"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// AdminAPI はゲートウェイが使用するAdmin APIの操作。
// ハンドラのテストではこのインターフェースを差し替える。
type AdminAPI interface {
	// GraphQL はGraphQL Admin APIにクエリを送信し、レスポンスボディをそのまま返す。
	GraphQL(ctx context.Context, sess *session.Session, query string, variables map[string]any) (json.RawMessage, error)
	// ListLocations はロケーションの一覧を返す。
	ListLocations(ctx context.Context, sess *session.Session) (json.RawMessage, error)
	// CountProducts は商品数のレスポンスをそのまま返す。
	CountProducts(ctx context.Context, sess *session.Session) (json.RawMessage, error)
}

// Observer はAdmin API呼び出しの結果を受け取る。
type Observer interface {
	ObserveAdminCall(operation string, err error)
}

// Config はAdminクライアントの設定。
type Config struct {
	// APIKey はアプリのクライアントID。
	APIKey string
	// APISecret はアプリのクライアントシークレット。
	APISecret string
	// APIVersion はAdmin APIのバージョン（例: 2024-10）。
	APIVersion string
	// RateLimit はショップごとの呼び出し上限（リクエスト/秒）。0以下なら制限しない。
	RateLimit float64
	// RateBurst はショップごとのバースト許容量。
	RateBurst int
	// ShopURL はショップのベースURLを返す。nilなら "https://<shop>"。
	ShopURL func(shop string) string
	// HTTPClient は共有するHTTPクライアント。nilならデフォルトを使う。
	HTTPClient *http.Client
}

// Admin はShopify Admin APIのクライアント。
type Admin struct {
	cfg      Config
	hc       *http.Client
	observer Observer

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

var _ AdminAPI = (*Admin)(nil)

// NewAdmin は新しいAdminクライアントを生成する。observerはnilでもよい。
func NewAdmin(cfg Config, observer Observer) *Admin {
	if cfg.ShopURL == nil {
		cfg.ShopURL = func(shop string) string { return "https://" + shop }
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: httpclient.DefaultTimeout}
	}
	return &Admin{
		cfg:      cfg,
		hc:       hc,
		observer: observer,
		limiters: make(map[string]*rate.Limiter),
	}
}

// limiter はショップのレートリミッターを返す。無ければ生成する。
func (a *Admin) limiter(shop string) *rate.Limiter {
	if a.cfg.RateLimit <= 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	l, ok := a.limiters[shop]
	if !ok {
		burst := a.cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		l = rate.NewLimiter(rate.Limit(a.cfg.RateLimit), burst)
		a.limiters[shop] = l
	}
	return l
}

// client はセッションのショップとアクセストークンでHTTPクライアントを生成する。
func (a *Admin) client(sess *session.Session) *httpclient.Client {
	opts := []httpclient.Option{
		httpclient.WithHTTPClient(a.hc),
		httpclient.WithHeader("X-Shopify-Access-Token", sess.AccessToken),
	}
	if l := a.limiter(sess.Shop); l != nil {
		opts = append(opts, httpclient.WithLimiter(l))
	}
	return httpclient.New(a.cfg.ShopURL(sess.Shop), opts...)
}

// apiPath はAdmin APIのバージョン付きパスを返す。
func (a *Admin) apiPath(resource string) string {
	return fmt.Sprintf("/admin/api/%s/%s", a.cfg.APIVersion, resource)
}

func (a *Admin) observe(operation string, err error) {
	if a.observer != nil {
		a.observer.ObserveAdminCall(operation, err)
	}
}

// graphQLRequest はGraphQL Admin APIへのリクエストボディ。
type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// GraphQL はGraphQL Admin APIにクエリを送信する。
// HTTP 200でもerrorsを含むレスポンスは *GraphQLError として返す。
func (a *Admin) GraphQL(ctx context.Context, sess *session.Session, query string, variables map[string]any) (json.RawMessage, error) {
	if sess == nil {
		return nil, errors.New("セッションがありません")
	}

	var body json.RawMessage
	err := a.client(sess).PostJSON(ctx, a.apiPath("graphql.json"), graphQLRequest{Query: query, Variables: variables}, &body)
	if err == nil {
		err = graphQLErrorFrom(body)
	}
	a.observe("graphql", err)
	if err != nil {
		var gqlErr *GraphQLError
		if errors.As(err, &gqlErr) {
			return nil, err
		}
		return nil, fmt.Errorf("GraphQL Admin APIの呼び出しに失敗: shop=%s: %w", sess.Shop, err)
	}
	return body, nil
}

// ListLocations はREST Admin APIからロケーションの一覧を取得する。
// レスポンスのlocations配列をそのまま返す。
func (a *Admin) ListLocations(ctx context.Context, sess *session.Session) (json.RawMessage, error) {
	if sess == nil {
		return nil, errors.New("セッションがありません")
	}

	var body json.RawMessage
	err := a.client(sess).GetJSON(ctx, a.apiPath("locations.json"), &body)
	if err == nil && !gjson.GetBytes(body, "locations").IsArray() {
		err = errors.New("レスポンスにlocations配列が含まれていません")
	}
	a.observe("locations", err)
	if err != nil {
		return nil, fmt.Errorf("ロケーション一覧の取得に失敗: shop=%s: %w", sess.Shop, err)
	}
	return json.RawMessage(gjson.GetBytes(body, "locations").Raw), nil
}

// CountProducts はREST Admin APIから商品数を取得する。
func (a *Admin) CountProducts(ctx context.Context, sess *session.Session) (json.RawMessage, error) {
	if sess == nil {
		return nil, errors.New("セッションがありません")
	}

	var body json.RawMessage
	err := a.client(sess).GetJSON(ctx, a.apiPath("products/count.json"), &body)
	a.observe("products_count", err)
	if err != nil {
		return nil, fmt.Errorf("商品数の取得に失敗: shop=%s: %w", sess.Shop, err)
	}
	return body, nil
}
