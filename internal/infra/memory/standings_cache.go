package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"pubquiz-ledger/internal/domain"
)

// StandingsSource computes a quiz scoreboard on demand.
type StandingsSource interface {
	Standings(ctx context.Context, quizID string) (domain.Standings, error)
}

// StandingsCache caches computed standings with TTL so polling presentation
// consumers don't recompute the scoreboard on every request.
type StandingsCache struct {
	source StandingsSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedStandings
}

type cachedStandings struct {
	standings domain.Standings
	expiresAt time.Time
}

func NewStandingsCache(source StandingsSource, ttl time.Duration) *StandingsCache {
	return &StandingsCache{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedStandings),
	}
}

func (c *StandingsCache) Standings(ctx context.Context, quizID string) (domain.Standings, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[quizID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.standings, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[quizID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.standings, nil
		}
		c.mu.RUnlock()

		standings, err := c.source.Standings(ctx, quizID)
		if err != nil {
			return domain.Standings{}, err
		}

		c.mu.Lock()
		c.cache[quizID] = cachedStandings{
			standings: standings,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return standings, nil
	})
	if err != nil {
		return domain.Standings{}, err
	}
	return result.(domain.Standings), nil
}

// Invalidate drops a cached scoreboard, e.g. after a quiz is deleted.
func (c *StandingsCache) Invalidate(quizID string) {
	c.mu.Lock()
	delete(c.cache, quizID)
	c.mu.Unlock()
}

func (c *StandingsCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
