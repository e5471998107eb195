package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/d60-Lab/ideagraph/pkg/response"
)

const callerKey = "ideagraph.caller"

// Caller is the already-authenticated identity attached to a request.
type Caller struct {
	ID    string
	Email string
}

// Claims 身份服务签发的令牌内容，sub 为用户 ID
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Identity 校验 Bearer 令牌（HS256）并把调用方写入上下文
func Identity(secret, issuer string) gin.HandlerFunc {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(c *gin.Context) {
		tokenString := ""
		if parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2); len(parts) == 2 && parts[0] == "Bearer" {
			tokenString = parts[1]
		}
		if tokenString == "" {
			response.Unauthorized(c, "authorization required")
			return
		}

		claims := &Claims{}
		token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid || claims.Subject == "" {
			response.Unauthorized(c, "invalid or expired token")
			return
		}

		c.Set(callerKey, Caller{ID: claims.Subject, Email: claims.Email})
		c.Next()
	}
}

// CallerFrom returns the caller set by Identity.
func CallerFrom(c *gin.Context) (Caller, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return Caller{}, false
	}
	caller, ok := v.(Caller)
	return caller, ok
}

// SetCaller attaches a caller directly; used by tests and trusted internal routes.
func SetCaller(c *gin.Context, caller Caller) {
	c.Set(callerKey, caller)
}
