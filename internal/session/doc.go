// Package session はShopifyアプリのセッションとその永続化を提供する。
//
// セッションはOAuthコールバックでのみ生成され、以降は各リクエストで
// 読み込まれるだけで変更されない。アプリがアンインストールされたときは
// Webhook経由でショップのセッションをすべて削除する。
package session
