package app

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/shopapp/internal/shopify"
	"github.com/nao1215/shopapp/internal/webhook"
	"github.com/sirupsen/logrus"
)

// maxWebhookBody はWebhookのリクエストボディの上限。
const maxWebhookBody = 1 << 20

// handleWebhook はWebhookの署名を検証し、トピックのハンドラへ振り分けるハンドラを返す。
func (s *Server) handleWebhook() gin.HandlerFunc {
	return func(c *gin.Context) {
		d := webhook.Delivery{
			Topic:      c.GetHeader("X-Shopify-Topic"),
			Shop:       c.GetHeader("X-Shopify-Shop-Domain"),
			WebhookID:  c.GetHeader("X-Shopify-Webhook-Id"),
			APIVersion: c.GetHeader("X-Shopify-API-Version"),
		}
		log := s.logger.WithFields(logrus.Fields{
			"topic": d.Topic,
			"shop":  d.Shop,
		})

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
		if err != nil {
			log.WithError(err).Error("Webhookのボディの読み取りに失敗")
			s.webhookResponse(c, d.Topic, http.StatusBadRequest, "ボディの読み取りに失敗しました")
			return
		}
		if len(body) > maxWebhookBody {
			log.Warn("Webhookのボディが上限を超えています")
			s.webhookResponse(c, d.Topic, http.StatusRequestEntityTooLarge, "ボディが大きすぎます")
			return
		}
		d.Body = body

		if !shopify.VerifyWebhookHMAC(body, c.GetHeader("X-Shopify-Hmac-Sha256"), s.cfg.Shopify.APISecret) {
			log.Warn("Webhookの署名検証に失敗")
			s.webhookResponse(c, d.Topic, http.StatusUnauthorized, "署名の検証に失敗しました")
			return
		}

		err = s.webhooks.Dispatch(c.Request.Context(), d)
		switch {
		case errors.Is(err, webhook.ErrUnknownTopic):
			log.Warn("未登録のトピックのWebhookを受信")
			s.webhookResponse(c, d.Topic, http.StatusNotFound, "未登録のトピックです")
		case err != nil:
			log.WithError(err).Error("Webhookの処理に失敗")
			s.webhookResponse(c, d.Topic, http.StatusInternalServerError, "Webhookの処理に失敗しました")
		default:
			s.metrics.ObserveWebhook(d.Topic, http.StatusOK)
			c.Status(http.StatusOK)
		}
	}
}

// webhookResponse はWebhookの失敗を記録してエラーレスポンスを返す。
func (s *Server) webhookResponse(c *gin.Context, topic string, status int, msg string) {
	s.metrics.ObserveWebhook(topic, status)
	c.JSON(status, gin.H{"error": msg})
}
