package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AllowAllOrigins は全オリジンを許可する場合に許可リストへ指定する値。
const AllowAllOrigins = "*"

// CORS は指定されたオリジンからのクロスオリジンリクエストを許可するGinミドルウェアを返す。
// 許可リストに "*" が含まれる場合は全オリジンを許可する。
// OPTIONSリクエスト（プリフライト）は後続のハンドラを呼ばずに空ボディの200で応答する。
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowAll := false
	originsSet := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == AllowAllOrigins {
			allowAll = true
			continue
		}
		originsSet[o] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowAll:
			c.Header("Access-Control-Allow-Origin", AllowAllOrigins)
			setCORSHeaders(c)
		case origin != "":
			if _, ok := originsSet[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				setCORSHeaders(c)
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}

// setCORSHeaders は許可メソッド・許可ヘッダーを設定する。
func setCORSHeaders(c *gin.Context) {
	c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
	c.Header("Access-Control-Max-Age", "86400")
}
