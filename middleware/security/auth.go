package security

import (
	"net/http"
	"strings"

	"LiveGateway/global"
	errs "LiveGateway/tools/errs"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// —— context key ——
const (
	CtxUserIDKey  = "authUserId"
	CtxIsAdminKey = "authIsAdmin"
)

type Options struct {
	// 读取哪个请求头
	HeaderToken               string // 默认 "Authorization"
	EnableAuthorizationBearer bool   // 默认 true
}

func DefaultOptions() *Options {
	return &Options{
		HeaderToken:               "Authorization",
		EnableAuthorizationBearer: true,
	}
}

// Middleware 校验 Bearer token。未配置密钥时直接放行（开发模式）。
func Middleware(opts *Options) gin.HandlerFunc {
	if opts == nil {
		opts = DefaultOptions()
	}
	return func(c *gin.Context) {
		secret := global.GetJwtSecret()
		if len(secret) == 0 {
			c.Next()
			return
		}

		token := strings.TrimSpace(c.GetHeader(opts.HeaderToken))
		if opts.EnableAuthorizationBearer {
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[len("bearer "):])
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenInvalid)
			return
		}

		claims, err := VerifyToken(token, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenExpired)
			return
		}

		c.Set(CtxUserIDKey, claims.UserID)
		c.Set(CtxIsAdminKey, claims.IsAdmin)
		c.Next()
	}
}

// SessionClaims 平台会话 token 携带的身份声明。
type SessionClaims struct {
	UserID  string `json:"uid"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"admin"`
	jwt.RegisteredClaims
}

// VerifyToken 解析并校验 HMAC 签名的会话 token。
func VerifyToken(tokenStr string, secret []byte) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errs.ErrTokenInvalid.Wrap()
		}
		return secret, nil
	})
	if err != nil {
		return nil, errs.WrapMsg(err, "parse session token")
	}
	if !token.Valid {
		return nil, errs.ErrTokenInvalid.Wrap()
	}
	return claims, nil
}
