package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/shopapp/internal/shopify"
)

// jsonContentType はAdmin APIのレスポンスをそのまま返すときのContent-Type。
const jsonContentType = "application/json; charset=utf-8"

// handleListProducts は商品を最大10件取得するハンドラを返す。
func (s *Server) handleListProducts() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := s.shopify.GraphQL(c.Request.Context(), currentSession(c), shopify.ProductsQuery, nil)
		if err != nil {
			s.remoteError(c, "商品一覧の取得に失敗", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"products": body})
	}
}

// handleListOrders は注文を最大10件取得するハンドラを返す。
func (s *Server) handleListOrders() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := s.shopify.GraphQL(c.Request.Context(), currentSession(c), shopify.OrdersQuery, nil)
		if err != nil {
			s.remoteError(c, "注文一覧の取得に失敗", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": body})
	}
}

// handleListLocations はロケーション一覧を返すハンドラを返す。
func (s *Server) handleListLocations() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := s.shopify.ListLocations(c.Request.Context(), currentSession(c))
		if err != nil {
			s.remoteError(c, "ロケーション一覧の取得に失敗", err)
			return
		}
		c.Data(http.StatusOK, jsonContentType, body)
	}
}

// handleCountProducts は商品数をAdmin APIのレスポンスのまま返すハンドラを返す。
func (s *Server) handleCountProducts() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := s.shopify.CountProducts(c.Request.Context(), currentSession(c))
		if err != nil {
			s.remoteError(c, "商品数の取得に失敗", err)
			return
		}
		c.Data(http.StatusOK, jsonContentType, body)
	}
}

// handleCreateProducts はランダムなタイトルの商品を作成するハンドラを返す。
// 失敗してもレスポンスの形は変えず、successとerrorで結果を伝える。
func (s *Server) handleCreateProducts() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := currentSession(c)
		if err := shopify.CreateProducts(c.Request.Context(), s.shopify, sess, shopify.DefaultProductCount); err != nil {
			s.logger.WithError(err).WithField("shop", sess.Shop).Error("products/createの処理に失敗")
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "error": nil})
	}
}

// remoteError はAdmin API呼び出しの失敗を記録し、500を返す。
func (s *Server) remoteError(c *gin.Context, msg string, err error) {
	fields := s.logger.WithError(err).WithField("path", c.Request.URL.Path)
	if sess := currentSession(c); sess != nil {
		fields = fields.WithField("shop", sess.Shop)
	}
	fields.Error(msg)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
