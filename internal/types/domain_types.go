// Package types contains shared type definitions used across multiple packages
package types

import "time"

// Domain identifies a logical cross-chain transfer endpoint. Domains map
// one-to-one onto chain identifiers but are a separate namespace.
type Domain uint32

// ChainID identifies the underlying blockchain network a domain settles on.
type ChainID uint64

// Well-known domains used in configuration defaults and tests.
const (
	DomainEthereum  Domain = 0
	DomainAvalanche Domain = 1
	DomainOptimism  Domain = 2
	DomainArbitrum  Domain = 3
	DomainBase      Domain = 6
	DomainPolygon   Domain = 7
)

// Clock supplies the current time to every time-based check (cooldowns,
// deadlines, daily buckets). Injected so tests control it; only the
// composition root passes time.Now.
type Clock func() time.Time

// DayBucket returns the calendar-day bucket a timestamp falls into.
// Daily aggregate counters are keyed by this value.
func DayBucket(t time.Time) int64 {
	return t.UTC().Unix() / 86400
}
