// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// App Bridgeのセッショントークンの検証、アクセスログ、パニックリカバリ、
// セキュリティヘッダーとframe-ancestorsの設定を含む。
package middleware
