package pool

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SETTINGS - External configuration collaborator
// =============================================================================

// SettingPoolFee is the configuration key for the per-challenger fee
// applied to newly created pools.
const SettingPoolFee = "pool_fee"

// DefaultPoolFee is the static fallback fee. Enrollment must never
// block on a cold configuration store.
var DefaultPoolFee = decimal.New(8888, -2) // 88.88

// Settings reads configuration values. Implementations return the
// fallback when the key is unset; a missing key is not an error.
type Settings interface {
	Setting(ctx context.Context, key string, fallback decimal.Decimal) (decimal.Decimal, error)
}

// StaticSettings is a fixed in-memory Settings implementation for
// tests and single-binary deployments.
type StaticSettings map[string]decimal.Decimal

func (s StaticSettings) Setting(_ context.Context, key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	if v, ok := s[key]; ok {
		return v, nil
	}
	return fallback, nil
}
