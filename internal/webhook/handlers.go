package webhook

import (
	"context"
	"errors"
	"fmt"

	"github.com/nao1215/shopapp/internal/session"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// SessionRemover はショップのセッションを削除する。
type SessionRemover interface {
	DeleteByShop(ctx context.Context, shop string) (int64, error)
}

// SessionFinder はショップのセッションを検索する。
type SessionFinder interface {
	FindByShop(ctx context.Context, shop string) ([]*session.Session, error)
}

// Sessions は既定のハンドラが使うセッションストアの操作。
type Sessions interface {
	SessionRemover
	SessionFinder
}

// NewDefaultRegistry はアプリが購読するすべてのトピックを登録したRegistryを生成する。
func NewDefaultRegistry(sessions Sessions, logger logrus.FieldLogger) *Registry {
	r := NewRegistry()
	r.Handle(TopicCustomersDataRequest, CustomersDataRequest(logger))
	r.Handle(TopicCustomersRedact, CustomersRedact(logger))
	r.Handle(TopicShopRedact, ShopRedact(sessions, logger))
	r.Handle(TopicAppUninstalled, AppUninstalled(sessions, logger))
	return r
}

// deliveryFields は配信のログに共通で付与するフィールドを返す。
func deliveryFields(d Delivery) logrus.Fields {
	return logrus.Fields{
		"topic":      d.Topic,
		"shop":       d.Shop,
		"webhook_id": d.WebhookID,
	}
}

// CustomersDataRequest は顧客が自身のデータの開示を求めたときの配信を処理する。
// このアプリは顧客データを保存しないため、受信内容を記録するだけ。
func CustomersDataRequest(logger logrus.FieldLogger) Handler {
	return func(_ context.Context, d Delivery) error {
		logger.WithFields(deliveryFields(d)).WithFields(logrus.Fields{
			"customer_id":      gjson.GetBytes(d.Body, "customer.id").Int(),
			"data_request_id":  gjson.GetBytes(d.Body, "data_request.id").Int(),
			"orders_requested": gjson.GetBytes(d.Body, "orders_requested.#").Int(),
		}).Info("顧客データの開示要求を受信しました")
		return nil
	}
}

// CustomersRedact はストアオーナーが顧客データの削除を求めたときの配信を処理する。
func CustomersRedact(logger logrus.FieldLogger) Handler {
	return func(_ context.Context, d Delivery) error {
		logger.WithFields(deliveryFields(d)).WithFields(logrus.Fields{
			"customer_id":      gjson.GetBytes(d.Body, "customer.id").Int(),
			"orders_to_redact": gjson.GetBytes(d.Body, "orders_to_redact.#").Int(),
		}).Info("顧客データの削除要求を受信しました")
		return nil
	}
}

// ShopRedact はアンインストールから48時間後にショップデータの削除を求める配信を処理する。
// この時点でセッションは削除済みのはずなので、残っていれば警告する。
func ShopRedact(sessions SessionFinder, logger logrus.FieldLogger) Handler {
	return func(ctx context.Context, d Delivery) error {
		domain := gjson.GetBytes(d.Body, "shop_domain").String()
		log := logger.WithFields(deliveryFields(d)).WithFields(logrus.Fields{
			"shop_id":     gjson.GetBytes(d.Body, "shop_id").Int(),
			"shop_domain": domain,
		})
		if domain == "" {
			domain = d.Shop
		}

		remaining, err := sessions.FindByShop(ctx, domain)
		if err != nil {
			return fmt.Errorf("セッションの検索に失敗: %w", err)
		}
		if len(remaining) > 0 {
			log.WithField("remaining_sessions", len(remaining)).Warn("削除要求を受信したショップのセッションが残っています")
			return nil
		}
		log.Info("ショップデータの削除要求を受信しました")
		return nil
	}
}

// AppUninstalled はアプリがアンインストールされたショップのセッションをすべて削除する。
func AppUninstalled(sessions SessionRemover, logger logrus.FieldLogger) Handler {
	return func(ctx context.Context, d Delivery) error {
		shop := d.Shop
		if shop == "" {
			shop = gjson.GetBytes(d.Body, "myshopify_domain").String()
		}
		if shop == "" {
			return errors.New("ショップを特定できません")
		}

		n, err := sessions.DeleteByShop(ctx, shop)
		if err != nil {
			return fmt.Errorf("セッションの削除に失敗: %w", err)
		}
		logger.WithFields(deliveryFields(d)).WithField("deleted_sessions", n).
			Info("アプリのアンインストールを受信し、セッションを削除しました")
		return nil
	}
}
