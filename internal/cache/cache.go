package cache

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/navuara/flightsearch/internal/models"
)

const DefaultTTL = 5 * time.Minute

// Cache memoizes search results by query. Implementations are safe for
// concurrent use and treat entries older than their TTL as absent.
type Cache interface {
	Get(ctx context.Context, key Key) (Entry, bool)
	Set(ctx context.Context, key Key, value models.SearchResult) error
	Close() error
}

type Entry struct {
	Value    models.SearchResult `json:"value"`
	StoredAt time.Time           `json:"stored_at"`
}

func (e Entry) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.StoredAt) > ttl
}

// Key is the canonical serialization of a SearchQuery. Field-wise equal
// queries always produce the same Key.
type Key string

func KeyFor(q models.SearchQuery) Key {
	var b strings.Builder
	b.WriteString("o=")
	b.WriteString(q.Origin)
	b.WriteString("|d=")
	b.WriteString(q.Destination)
	b.WriteString("|dep=")
	b.WriteString(q.DepartureDate)
	b.WriteString("|ret=")
	b.WriteString(q.ReturnDate)
	b.WriteString("|adt=")
	b.WriteString(strconv.Itoa(q.Adults))
	b.WriteString("|cur=")
	b.WriteString(q.Currency)
	b.WriteString("|max=")
	b.WriteString(strconv.Itoa(q.MaxResults))
	return Key(b.String())
}

// Digest is a short fixed-width form of the key for external stores.
func (k Key) Digest() string {
	return strconv.FormatUint(xxhash.Sum64String(string(k)), 16)
}

type NoOpCache struct{}

func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

func (c *NoOpCache) Get(ctx context.Context, key Key) (Entry, bool) {
	return Entry{}, false
}

func (c *NoOpCache) Set(ctx context.Context, key Key, value models.SearchResult) error {
	return nil
}

func (c *NoOpCache) Close() error {
	return nil
}
