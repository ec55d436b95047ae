package revoke

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "codequery:revoked:token:"

// Store 记录已注销的令牌，TTL 取令牌的剩余有效期。
//
// 令牌本身是无状态的，注销只能靠一个短期的撤销集合兜底。
type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Revoke 将令牌加入撤销集合。ttl 应为令牌的剩余有效期，过期后条目自动清除。
func (s *Store) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if s == nil || s.rdb == nil || token == "" {
		return nil
	}
	if ttl <= 0 {
		return nil
	}
	key := keyPrefix + hashToken(token)
	if err := s.rdb.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke set: %w", err)
	}
	return nil
}

// IsRevoked 检查令牌是否已被注销。
func (s *Store) IsRevoked(ctx context.Context, token string) (bool, error) {
	if s == nil || s.rdb == nil || token == "" {
		return false, nil
	}
	key := keyPrefix + hashToken(token)
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("revoke exists: %w", err)
	}
	return n > 0, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
