package security

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	JWTSecret         string = "Atrium"
	JWTExpirationTime        = time.Hour * 24
)

// UserClaims 身份服务签发的 Token 载荷，本服务只做校验不做签发
type UserClaims struct {
	UserID uint64 `json:"user_id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	jwt.RegisteredClaims
}
