package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Recovery はハンドラのパニックを500のJSONレスポンスに変換するGinミドルウェアを返す。
// ログにはパニック値とリクエストのショップを残す。
// レスポンスの書き込みが始まっていた場合はボディを追記せずに中断する。
func Recovery(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.WithFields(logrus.Fields{
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
				"shop":   c.Query("shop"),
				"panic":  r,
			}).Error("ハンドラでパニックが発生しました")

			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "内部サーバーエラーが発生しました",
			})
		}()
		c.Next()
	}
}
