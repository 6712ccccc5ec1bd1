// Package webhook はShopifyから配信されるWebhookをトピックごとのハンドラに振り分ける。
//
// 署名の検証はHTTP層で行い、このパッケージは検証済みの配信だけを受け取る。
// 必須のプライバシーWebhook（customers/data_request, customers/redact, shop/redact）は
// 受信内容をログに残すだけで、app/uninstalledはショップのセッションを削除する。
package webhook
