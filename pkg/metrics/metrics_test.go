package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// scrape はメトリクスエンドポイントの出力を取得する。
func scrape(t *testing.T, m *Metrics) string {
	t.Helper()

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(w.Body)
	if err != nil {
		t.Fatalf("メトリクスの読み取りに失敗: %v", err)
	}
	return string(body)
}

// TestMiddleware はHTTPメトリクスの記録を検証する。
func TestMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("ルートパターンとステータスがラベルに記録されること", func(t *testing.T) {
		t.Parallel()

		m := New()
		router := gin.New()
		router.Use(m.Middleware())
		router.GET("/api/items/:id", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/items/42", nil))

		out := scrape(t, m)
		want := `shopapp_http_requests_total{method="GET",route="/api/items/:id",status="200"} 1`
		if !strings.Contains(out, want) {
			t.Errorf("メトリクスに %q が含まれていない", want)
		}
	})

	t.Run("未登録パスはfallbackにまとめられること", func(t *testing.T) {
		t.Parallel()

		m := New()
		router := gin.New()
		router.Use(m.Middleware())

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

		out := scrape(t, m)
		want := `shopapp_http_requests_total{method="GET",route="fallback",status="404"} 1`
		if !strings.Contains(out, want) {
			t.Errorf("メトリクスに %q が含まれていない", want)
		}
	})
}

// TestObserveAdminCall はAdmin API呼び出しの記録を検証する。
func TestObserveAdminCall(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveAdminCall("products", nil)
	m.ObserveAdminCall("products", errors.New("boom"))
	m.ObserveAdminCall("products", errors.New("boom"))

	out := scrape(t, m)
	for _, want := range []string{
		`shopapp_admin_api_calls_total{operation="products",result="success"} 1`,
		`shopapp_admin_api_calls_total{operation="products",result="error"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("メトリクスに %q が含まれていない", want)
		}
	}
}

// TestObserveWebhook はWebhook受信の記録を検証する。
func TestObserveWebhook(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveWebhook("", http.StatusUnauthorized)

	out := scrape(t, m)
	want := `shopapp_webhooks_deliveries_total{status="401",topic="unknown"} 1`
	if !strings.Contains(out, want) {
		t.Errorf("メトリクスに %q が含まれていない", want)
	}
}
