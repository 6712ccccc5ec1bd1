// Package httpclient は外部JSON APIとのHTTP通信を行うクライアントを提供する。
//
// Shopify Admin APIやOAuthトークンエンドポイントの呼び出しに使用する。
// 接続先ごとの認証ヘッダーとレート制限を Option で設定し、
// 2xx以外のレスポンスは StatusError として呼び出し元に返す。
package httpclient
