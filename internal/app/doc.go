// Package app はShopify埋め込みアプリのHTTPゲートウェイを実装する。
//
// OAuthによるインストール、Webhookの受信、セッショントークンで保護された
// Admin APIのプロキシ、フロントエンドのシェル配信を1つのGinルーターで提供する。
package app
