package middleware

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gitee.com/flycash/broadcast-platform/internal/errs"
	"gitee.com/flycash/broadcast-platform/internal/web"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

const (
	OrgIDName      = "org_id"
	ExternalIDName = "external_id"
)

type JwtAuth struct {
	key string
}

func NewJwtAuth(key string) *JwtAuth {
	return &JwtAuth{
		key: key,
	}
}

func (a *JwtAuth) Decode(tokenString string) (jwt.MapClaims, error) {
	// 兼容不同客户端实现
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("不支持的签名算法: %v", token.Header["alg"])
		}
		return []byte(a.key), nil
	})
	if err != nil {
		return nil, fmt.Errorf("令牌解析失败: %w", err)
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("无效的令牌")
}

// Encode 生成 HS256 令牌，默认 24 小时过期
func (a *JwtAuth) Encode(customClaims jwt.MapClaims) (string, error) {
	claims := jwt.MapClaims{
		"iat": time.Now().Unix(),
		"iss": "broadcast-platform",
	}
	for k, v := range customClaims {
		claims[k] = v
	}
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(24 * time.Hour).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.key))
}

// Tenant 解析 Authorization 里的令牌，把 org_id 放进上下文
func (a *JwtAuth) Tenant() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authz := ctx.GetHeader("Authorization")
		if authz == "" {
			web.Error(ctx, fmt.Errorf("%w: 缺少访问令牌", errs.ErrUnauthorized))
			return
		}
		claims, err := a.Decode(authz)
		if err != nil {
			web.Error(ctx, fmt.Errorf("%w: %w", errs.ErrUnauthorized, err))
			return
		}
		orgID, err := parseOrgID(claims[OrgIDName])
		if err != nil {
			web.Error(ctx, fmt.Errorf("%w: %w", errs.ErrUnauthorized, err))
			return
		}
		ctx.Set(OrgIDName, orgID)
		ctx.Next()
	}
}

func parseOrgID(val any) (int64, error) {
	switch v := val.(type) {
	case float64:
		if v > 0 {
			return int64(v), nil
		}
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err == nil && id > 0 {
			return id, nil
		}
	}
	return 0, fmt.Errorf("令牌中的 org_id 非法: %v", val)
}

// OrgID 只能在 Tenant 之后的处理器中使用
func OrgID(ctx *gin.Context) int64 {
	return ctx.GetInt64(OrgIDName)
}
