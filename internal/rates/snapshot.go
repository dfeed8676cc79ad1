// Package rates provides the TRY exchange-rate snapshot used by the labor-law
// calculators: a best-effort scraper of the central bank's daily XML
// (Fetcher), a TTL cache with single-flight refills and tag invalidation
// (Cache), pluggable cache stores (MemoryStore, RedisStore) and a cron
// Scheduler that keeps the cache warm.
//
// Callers never see an error: if the upstream cannot supply both USD and EUR
// the whole snapshot degrades to the configured fallback values.
package rates

import (
	"time"

	"github.com/shopspring/decimal"
)

// Source tells whether a snapshot came from the live upstream or the static
// fallback.
type Source string

const (
	SourcePrimary  Source = "PRIMARY"
	SourceFallback Source = "FALLBACK"
)

// dateLayout is the tr-TR short date (dd.MM.yyyy).
const dateLayout = "02.01.2006"

// istanbul is UTC+3 all year round.
var istanbul = time.FixedZone("TRT", 3*60*60)

// Snapshot is an immutable, fully populated rate pair. EUR and USD are TRY
// per one unit of the foreign currency (forex selling).
type Snapshot struct {
	EUR       decimal.Decimal `json:"EUR"`
	USD       decimal.Decimal `json:"USD"`
	Date      string          `json:"date"`
	Source    Source          `json:"source"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// Valid reports whether both rates are positive.
func (s Snapshot) Valid() bool {
	return s.EUR.IsPositive() && s.USD.IsPositive()
}

// Fallback holds the static rates used when the upstream is unavailable.
type Fallback struct {
	USD decimal.Decimal
	EUR decimal.Decimal
}

// Snapshot builds a FALLBACK snapshot stamped with now.
func (f Fallback) Snapshot(now time.Time) Snapshot {
	return Snapshot{
		EUR:       f.EUR,
		USD:       f.USD,
		Date:      FormatDate(now),
		Source:    SourceFallback,
		FetchedAt: now.UTC(),
	}
}

// FormatDate renders t as a Turkish short date in Istanbul time.
func FormatDate(t time.Time) string {
	return t.In(istanbul).Format(dateLayout)
}
