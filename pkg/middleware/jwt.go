package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer はこのゲートウェイが発行するトークンのissuer。
const TokenIssuer = "interpreter"

// contextKeyClient はGinコンテキストにクライアント名を格納するキー。
const contextKeyClient = "client"

// ClientClaims はゲートウェイのアクセストークンのクレーム。
// Subjectにはトークンを払い出したクライアント（フロントエンドの配備名など）を入れる。
type ClientClaims struct {
	jwt.RegisteredClaims
}

// GenerateToken はクライアント名から署名済みのアクセストークンを生成する。
// ttlが0以下の場合は有効期限なしのトークンを生成する。
func GenerateToken(secret, client string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("署名用シークレットが空です")
	}
	if client == "" {
		return "", errors.New("クライアント名が空です")
	}

	now := time.Now()
	claims := ClientClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  client,
			Issuer:   TokenIssuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// JWTAuth はBearerトークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストにクライアント名を設定する。
func JWTAuth(secret string) gin.HandlerFunc {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
	)

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorizationヘッダーが必要です",
			})
			return
		}

		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer トークン形式が不正です",
			})
			return
		}

		claims := &ClientClaims{}
		token, err := parser.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "トークンが無効です",
			})
			return
		}

		c.Set(contextKeyClient, claims.Subject)
		c.Next()
	}
}

// GetClient はGinコンテキストから認証済みクライアント名を取得する。
// 認証が無効な構成では空文字列を返す。
func GetClient(c *gin.Context) string {
	v, _ := c.Get(contextKeyClient)
	if client, ok := v.(string); ok {
		return client
	}
	return ""
}
