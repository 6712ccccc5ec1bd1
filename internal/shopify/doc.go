// Package shopify はShopify Admin APIとOAuthエンドポイントを呼び出すクライアントを提供する。
//
// GraphQL Admin APIとREST Admin APIの呼び出し、OAuthの認可コード交換、
// OAuthコールバックとWebhookのHMAC検証、ショップドメインの検証を担当する。
// Admin APIの呼び出しはショップごとのレートリミッターを通して送信する。
package shopify
