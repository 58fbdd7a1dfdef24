// Package cache provides the key-value memoization layer. Correctness never
// depends on a hit: every consumer falls through to the store or the oracle
// on a miss, so a dead cache only costs latency.
package cache

import (
	"context"
	"time"
)

// Cache is the get/set/del contract shared by the Redis and in-memory
// implementations.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// TTL tiers.
const (
	TTLShort  = 5 * time.Minute
	TTLMedium = time.Hour
	TTLLong   = 24 * time.Hour
)

// Key builders. Kept in one place so invalidation sites and read sites
// cannot drift apart.

func KeyPatternsAll() string {
	return "patterns:all"
}

func KeyPatternsByMerchant(merchantID string) string {
	return "patterns:merchant:" + merchantID
}

func KeyMerchant(merchantID string) string {
	return "merchant:" + merchantID
}

func KeyMerchantNormalization(description string) string {
	return "merchant:resolve:" + description
}

func KeyTransaction(transactionID string) string {
	return "transaction:" + transactionID
}

func KeyRulesAll() string {
	return "merchant:rules:all"
}
