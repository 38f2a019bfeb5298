// Package redisstream publishes confirmed opportunities to a Redis stream for the
// bundling layer.
package redisstream

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"jitscope/internal/model"
)

const DefaultStream = "jitscope:opportunities"

// Publisher appends profitable preflight results to a stream. Other records are
// ignored.
type Publisher struct {
	rdb    redis.Cmdable
	stream string
	maxLen int64
}

func NewPublisher(rdb redis.Cmdable, stream string, maxLen int64) *Publisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &Publisher{rdb: rdb, stream: stream, maxLen: maxLen}
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func (p *Publisher) PutResults(ctx context.Context, results []model.ResultRecord) error {
	pipe := p.rdb.Pipeline()
	queued := 0
	for _, r := range results {
		if r.Kind != model.ResultKindPreflight || !r.Profitable {
			continue
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: p.stream,
			MaxLen: p.maxLen,
			Approx: p.maxLen > 0,
			Values: map[string]interface{}{
				"candidate_id":   r.CandidateID,
				"pool":           r.Pool,
				"tick_lower":     r.TickLower,
				"tick_upper":     r.TickUpper,
				"lender":         r.Lender,
				"fees_earned":    r.FeesEarned,
				"borrow_fee":     r.BorrowFee,
				"gas_cost":       r.GasCost,
				"net_profit":     r.NetProfit,
				"net_profit_usd": r.NetProfitUSD,
				"simulated_at":   r.SimulatedAt,
			},
		})
		queued++
	}
	if queued == 0 {
		return nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish opportunities: %w", err)
	}
	return nil
}
