package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken 表示令牌被篡改、格式错误、已过期或已注销。
var ErrInvalidToken = errors.New("invalid token")

// Revoker 记录并查询已注销的令牌。
type Revoker interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// TokenService 签发与校验身份令牌。
//
// 令牌为 HS256 JWT，subject 存放用户 ID 的十进制形式。
type TokenService struct {
	secret  []byte
	ttl     time.Duration
	revoker Revoker
}

// NewTokenService 创建令牌服务。revoker 可以为 nil（不启用注销检查）。
func NewTokenService(secret string, ttl time.Duration, revoker Revoker) *TokenService {
	return &TokenService{
		secret:  []byte(secret),
		ttl:     ttl,
		revoker: revoker,
	}
}

// TTL 返回令牌有效期。
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue 为用户签发令牌。
func (s *TokenService) Issue(userID uint) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify 校验令牌的签名、有效期与注销状态，返回其中的用户 ID。
// 任何失败都归并为 ErrInvalidToken。
func (s *TokenService) Verify(ctx context.Context, tokenStr string) (uint, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	uid, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}

	if s.revoker != nil {
		revoked, err := s.revoker.IsRevoked(ctx, tokenStr)
		if err != nil || revoked {
			return 0, ErrInvalidToken
		}
	}

	return uint(uid), nil
}

// Revoke 注销令牌，撤销条目的 TTL 取令牌剩余有效期。
// 无效令牌直接忽略：它本来就无法通过校验。
func (s *TokenService) Revoke(ctx context.Context, tokenStr string) error {
	if s.revoker == nil || tokenStr == "" {
		return nil
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.ExpiresAt == nil {
		return nil
	}

	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 {
		return nil
	}
	return s.revoker.Revoke(ctx, tokenStr, remaining)
}
