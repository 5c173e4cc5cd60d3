// Package ranking maintains the derived leaderboard sorted sets.
package ranking

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/refx-online/omajinai/pkg/metrics"
)

// Leaderboard writes (user, rating) pairs into the global sorted set per
// mode and the per-country sorted set per (mode, country). Sorted-set
// semantics apply: one score per member, last write wins.
type Leaderboard struct {
	client redis.UniversalClient
}

// New creates a Leaderboard over a redis client.
func New(client redis.UniversalClient) *Leaderboard {
	return &Leaderboard{client: client}
}

// Update overwrites the user's entry in the mode's global and per-country
// sorted sets.
func (l *Leaderboard) Update(ctx context.Context, mode int, userID int64, country string, rating int) error {
	member := redis.Z{Score: float64(rating), Member: userID}

	if err := l.client.ZAdd(ctx, globalKey(mode), member).Err(); err != nil {
		metrics.RecordRankingWriteError()
		return fmt.Errorf("updating global leaderboard for mode %d: %w", mode, err)
	}
	metrics.RecordRankingWrite()

	if err := l.client.ZAdd(ctx, countryKey(mode, country), member).Err(); err != nil {
		metrics.RecordRankingWriteError()
		return fmt.Errorf("updating %s leaderboard for mode %d: %w", country, mode, err)
	}
	metrics.RecordRankingWrite()

	return nil
}

func globalKey(mode int) string {
	return fmt.Sprintf("bancho:leaderboard:%d", mode)
}

func countryKey(mode int, country string) string {
	return fmt.Sprintf("bancho:leaderboard:%d:%s", mode, country)
}
