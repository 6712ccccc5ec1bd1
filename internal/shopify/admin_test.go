package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/shopapp/internal/session"
	"github.com/nao1215/shopapp/pkg/httpclient"
)

// recordingObserver はAdmin API呼び出しの結果を記録する。
type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) ObserveAdminCall(operation string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	result := "success"
	if err != nil {
		result = "error"
	}
	o.calls = append(o.calls, operation+":"+result)
}

// newTestAdmin はモックのショップサーバーに接続するAdminクライアントを生成する。
func newTestAdmin(t *testing.T, handler http.HandlerFunc) (*Admin, *recordingObserver) {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	observer := &recordingObserver{}
	admin := NewAdmin(Config{
		APIKey:     "test-api-key",
		APISecret:  "test-api-secret",
		APIVersion: "2024-10",
		ShopURL:    func(string) string { return ts.URL },
		HTTPClient: ts.Client(),
	}, observer)
	return admin, observer
}

// testSession はテスト用のオフラインセッション。
func testSession() *session.Session {
	return &session.Session{
		ID:          session.OfflineID("example.myshopify.com"),
		Shop:        "example.myshopify.com",
		Scope:       "write_products",
		AccessToken: "shpat_test",
	}
}

// TestAdminGraphQL はGraphQL Admin APIの呼び出しを検証する。
func TestAdminGraphQL(t *testing.T) {
	t.Parallel()

	t.Run("クエリを送信してレスポンスボディをそのまま返すこと", func(t *testing.T) {
		t.Parallel()

		var (
			gotPath  string
			gotToken string
			gotBody  graphQLRequest
		)
		admin, observer := newTestAdmin(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotToken = r.Header.Get("X-Shopify-Access-Token")
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &gotBody)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"data":{"products":{"edges":[{"node":{"id":"gid://shopify/Product/1","title":"misty lake"}}]}}}`))
		})

		body, err := admin.GraphQL(context.Background(), testSession(), ProductsQuery, nil)
		if err != nil {
			t.Fatalf("GraphQL()でエラーが発生: %v", err)
		}

		if gotPath != "/admin/api/2024-10/graphql.json" {
			t.Errorf("Path = %q", gotPath)
		}
		if gotToken != "shpat_test" {
			t.Errorf("X-Shopify-Access-Token = %q, want %q", gotToken, "shpat_test")
		}
		if gotBody.Query != ProductsQuery {
			t.Errorf("Query = %q, want ProductsQuery", gotBody.Query)
		}
		if !strings.Contains(string(body), "misty lake") {
			t.Errorf("レスポンスボディが転送されていない: %s", body)
		}
		if len(observer.calls) != 1 || observer.calls[0] != "graphql:success" {
			t.Errorf("observer.calls = %v", observer.calls)
		}
	})

	t.Run("errorsを含むレスポンスはGraphQLErrorになること", func(t *testing.T) {
		t.Parallel()

		admin, observer := newTestAdmin(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"errors":[{"message":"Access denied for orders field."}]}`))
		})

		_, err := admin.GraphQL(context.Background(), testSession(), OrdersQuery, nil)
		var gqlErr *GraphQLError
		if !errors.As(err, &gqlErr) {
			t.Fatalf("error = %v, want *GraphQLError", err)
		}
		if gqlErr.Message != "Access denied for orders field." {
			t.Errorf("Message = %q", gqlErr.Message)
		}
		if len(observer.calls) != 1 || observer.calls[0] != "graphql:error" {
			t.Errorf("observer.calls = %v", observer.calls)
		}
	})

	t.Run("2xx以外のレスポンスはStatusErrorとして返ること", func(t *testing.T) {
		t.Parallel()

		admin, _ := newTestAdmin(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"errors":"[API] Invalid API key or access token"}`))
		})

		_, err := admin.GraphQL(context.Background(), testSession(), ProductsQuery, nil)
		var statusErr *httpclient.StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("error = %v, want *httpclient.StatusError", err)
		}
		if statusErr.StatusCode != http.StatusUnauthorized {
			t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, http.StatusUnauthorized)
		}
	})

	t.Run("セッションがnilの場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		admin, _ := newTestAdmin(t, func(w http.ResponseWriter, _ *http.Request) {
			t.Error("リクエストが送信された")
		})
		if _, err := admin.GraphQL(context.Background(), nil, ProductsQuery, nil); err == nil {
			t.Fatal("GraphQL()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestAdminREST はREST Admin APIの呼び出しを検証する。
func TestAdminREST(t *testing.T) {
	t.Parallel()

	t.Run("ロケーション一覧はlocations配列を返すこと", func(t *testing.T) {
		t.Parallel()

		admin, _ := newTestAdmin(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/admin/api/2024-10/locations.json" {
				t.Errorf("Path = %q", r.URL.Path)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"locations":[{"id":1,"name":"Main"},{"id":2,"name":"Warehouse"}]}`))
		})

		body, err := admin.ListLocations(context.Background(), testSession())
		if err != nil {
			t.Fatalf("ListLocations()でエラーが発生: %v", err)
		}

		var locations []map[string]any
		if err := json.Unmarshal(body, &locations); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if len(locations) != 2 {
			t.Errorf("件数 = %d, want 2", len(locations))
		}
	})

	t.Run("locations配列が無い場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		admin, _ := newTestAdmin(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"location":{}}`))
		})

		if _, err := admin.ListLocations(context.Background(), testSession()); err == nil {
			t.Fatal("ListLocations()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("商品数はレスポンスをそのまま返すこと", func(t *testing.T) {
		t.Parallel()

		admin, _ := newTestAdmin(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/admin/api/2024-10/products/count.json" {
				t.Errorf("Path = %q", r.URL.Path)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"count":42}`))
		})

		body, err := admin.CountProducts(context.Background(), testSession())
		if err != nil {
			t.Fatalf("CountProducts()でエラーが発生: %v", err)
		}
		if strings.TrimSpace(string(body)) != `{"count":42}` {
			t.Errorf("body = %s, want {\"count\":42}", body)
		}
	})
}

// TestAdminOAuth は認可URLの生成とコード交換を検証する。
func TestAdminOAuth(t *testing.T) {
	t.Parallel()

	t.Run("認可URLにクライアントIDとスコープとstateが含まれること", func(t *testing.T) {
		t.Parallel()

		admin := NewAdmin(Config{APIKey: "test-api-key"}, nil)
		raw := admin.AuthorizeURL("example.myshopify.com", []string{"write_products", "read_orders"}, "state-1", "https://app.example.com/api/auth/callback")

		u, err := url.Parse(raw)
		if err != nil {
			t.Fatalf("URLのパースに失敗: %v", err)
		}
		if u.Host != "example.myshopify.com" || u.Path != "/admin/oauth/authorize" {
			t.Errorf("URL = %q", raw)
		}
		q := u.Query()
		if q.Get("client_id") != "test-api-key" {
			t.Errorf("client_id = %q", q.Get("client_id"))
		}
		if q.Get("scope") != "write_products,read_orders" {
			t.Errorf("scope = %q", q.Get("scope"))
		}
		if q.Get("state") != "state-1" {
			t.Errorf("state = %q", q.Get("state"))
		}
		if q.Get("redirect_uri") != "https://app.example.com/api/auth/callback" {
			t.Errorf("redirect_uri = %q", q.Get("redirect_uri"))
		}
	})

	t.Run("認可コードをアクセストークンに交換できること", func(t *testing.T) {
		t.Parallel()

		var got accessTokenRequest
		admin, _ := newTestAdmin(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/admin/oauth/access_token" {
				t.Errorf("Path = %q", r.URL.Path)
			}
			_ = json.NewDecoder(r.Body).Decode(&got)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"shpat_new","scope":"write_products"}`))
		})

		token, err := admin.ExchangeCode(context.Background(), "example.myshopify.com", "code-1")
		if err != nil {
			t.Fatalf("ExchangeCode()でエラーが発生: %v", err)
		}
		if token.AccessToken != "shpat_new" || token.Scope != "write_products" {
			t.Errorf("token = %+v", token)
		}
		if got.ClientID != "test-api-key" || got.ClientSecret != "test-api-secret" || got.Code != "code-1" {
			t.Errorf("request = %+v", got)
		}
	})

	t.Run("access_tokenが無い場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		admin, _ := newTestAdmin(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{}`))
		})

		if _, err := admin.ExchangeCode(context.Background(), "example.myshopify.com", "code-1"); err == nil {
			t.Fatal("ExchangeCode()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestAdminLimiter はショップごとのレートリミッターを検証する。
func TestAdminLimiter(t *testing.T) {
	t.Parallel()

	admin := NewAdmin(Config{RateLimit: 2, RateBurst: 40}, nil)
	a1 := admin.limiter("a.myshopify.com")
	a2 := admin.limiter("a.myshopify.com")
	b := admin.limiter("b.myshopify.com")

	if a1 != a2 {
		t.Error("同じショップで異なるリミッターが返された")
	}
	if a1 == b {
		t.Error("異なるショップで同じリミッターが返された")
	}
	if a1.Burst() != 40 {
		t.Errorf("Burst = %d, want 40", a1.Burst())
	}

	unlimited := NewAdmin(Config{}, nil)
	if unlimited.limiter("a.myshopify.com") != nil {
		t.Error("RateLimitが0でもリミッターが生成された")
	}
}
