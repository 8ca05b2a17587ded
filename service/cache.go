// file: service/cache.go

package service

import (
	"context"
	"errors"
	"fmt"
	"go-ledger/logger"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// ICacheClient defines the subset of the Redis client used for balance caching.
// *redis.Client satisfies it.
//
// Entries are dropped after a mutation commits. A GetBalance that read the row
// before that commit may still store the old value afterwards, so a cached
// balance can lag by up to LedgerOptions.CacheTTL. Keep the TTL short.
type ICacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ ICacheClient = (*redis.Client)(nil)

func balanceCacheKey(accountID int64) string {
	return fmt.Sprintf("ledger:balance:%d", accountID)
}

// cachedBalance reports a hit only for a well-formed cached value. Any cache
// failure is treated as a miss.
func (s *LedgerService) cachedBalance(ctx context.Context, accountID int64) (decimal.Decimal, bool) {
	if s.cache == nil {
		return decimal.Zero, false
	}
	val, err := s.cache.Get(ctx, balanceCacheKey(accountID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Log.WithError(err).WithField("account_id", accountID).Warn("Balance cache read failed")
		}
		return decimal.Zero, false
	}
	balance, err := decimal.NewFromString(val)
	if err != nil {
		logger.Log.WithError(err).WithField("account_id", accountID).Warn("Discarding malformed cached balance")
		return decimal.Zero, false
	}
	return balance, true
}

func (s *LedgerService) storeBalance(ctx context.Context, accountID int64, balance decimal.Decimal) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, balanceCacheKey(accountID), balance.String(), s.opts.CacheTTL).Err(); err != nil {
		logger.Log.WithError(err).WithField("account_id", accountID).Warn("Balance cache write failed")
	}
}

// invalidateBalance must only be called after the mutating unit of work has
// committed.
func (s *LedgerService) invalidateBalance(ctx context.Context, accountID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, balanceCacheKey(accountID)).Err(); err != nil {
		logger.Log.WithError(err).WithField("account_id", accountID).Warn("Balance cache invalidation failed")
	}
}
