package shopify

import (
	"net/url"
	"testing"
)

// TestSanitizeShop はショップドメインの正規化と検証を検証する。
func TestSanitizeShop(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "正しいドメインはそのまま返すこと", raw: "example.myshopify.com", want: "example.myshopify.com"},
		{name: "スキームと末尾スラッシュを除去すること", raw: "https://Example.myshopify.com/", want: "example.myshopify.com"},
		{name: "ハイフンを含むドメインを許容すること", raw: "my-shop-1.myshopify.com", want: "my-shop-1.myshopify.com"},
		{name: "別ドメインは拒否すること", raw: "example.com", want: ""},
		{name: "サブドメイン偽装は拒否すること", raw: "example.myshopify.com.evil.com", want: ""},
		{name: "パス付きは拒否すること", raw: "example.myshopify.com/admin", want: ""},
		{name: "空文字列は拒否すること", raw: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := SanitizeShop(tt.raw); got != tt.want {
				t.Errorf("SanitizeShop(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

// TestVerifyQueryHMAC はOAuthコールバックのHMAC検証を検証する。
func TestVerifyQueryHMAC(t *testing.T) {
	t.Parallel()

	const secret = "hush"

	signed := func() url.Values {
		q := url.Values{}
		q.Set("code", "0907a61c0c8d55e99db179b68161bc00")
		q.Set("shop", "some-shop.myshopify.com")
		q.Set("state", "0.6784241404160823")
		q.Set("timestamp", "1337178173")
		q.Set("hmac", SignQuery(q, secret))
		return q
	}

	t.Run("正しい署名は検証に成功すること", func(t *testing.T) {
		t.Parallel()

		if !VerifyQueryHMAC(signed(), secret) {
			t.Error("VerifyQueryHMAC() = false, want true")
		}
	})

	t.Run("パラメータが改ざんされた場合は失敗すること", func(t *testing.T) {
		t.Parallel()

		q := signed()
		q.Set("shop", "other-shop.myshopify.com")
		if VerifyQueryHMAC(q, secret) {
			t.Error("VerifyQueryHMAC() = true, want false")
		}
	})

	t.Run("シークレットが異なる場合は失敗すること", func(t *testing.T) {
		t.Parallel()

		if VerifyQueryHMAC(signed(), "other") {
			t.Error("VerifyQueryHMAC() = true, want false")
		}
	})

	t.Run("hmacが無い場合は失敗すること", func(t *testing.T) {
		t.Parallel()

		q := signed()
		q.Del("hmac")
		if VerifyQueryHMAC(q, secret) {
			t.Error("VerifyQueryHMAC() = true, want false")
		}
	})

	t.Run("署名対象はキー順に連結されること", func(t *testing.T) {
		t.Parallel()

		a := url.Values{"b": {"2"}, "a": {"1"}}
		b := url.Values{"a": {"1"}, "b": {"2"}, "hmac": {"ignored"}}
		if SignQuery(a, secret) != SignQuery(b, secret) {
			t.Error("キーの順序やhmacによって署名が変わった")
		}
	})
}

// TestVerifyWebhookHMAC はWebhookのHMAC検証を検証する。
func TestVerifyWebhookHMAC(t *testing.T) {
	t.Parallel()

	const secret = "hush"
	body := []byte(`{"shop_domain":"example.myshopify.com"}`)

	if !VerifyWebhookHMAC(body, SignWebhook(body, secret), secret) {
		t.Error("正しい署名の検証に失敗した")
	}
	if VerifyWebhookHMAC([]byte(`{}`), SignWebhook(body, secret), secret) {
		t.Error("改ざんされたボディの検証に成功した")
	}
	if VerifyWebhookHMAC(body, "", secret) {
		t.Error("空の署名の検証に成功した")
	}
}
