package storage

import (
	"context"
	"log/slog"
	"time"
)

// JanitorInterval is how often the janitor sweeps expired session values.
const JanitorInterval = time.Hour

// Purger is implemented by stores without native expiry.
type Purger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Janitor removes session values not written for longer than ttl.
type Janitor struct {
	purger   Purger
	ttl      time.Duration
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time
}

func NewJanitor(p Purger, ttl time.Duration, log *slog.Logger) *Janitor {
	return &Janitor{
		purger:   p,
		ttl:      ttl,
		interval: JanitorInterval,
		log:      log.With(slog.String("component", "janitor")),
		now:      time.Now,
	}
}

func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.Sweep(ctx)
	for {
		select {
		case <-ticker.C:
			j.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Sweep purges once and returns the number of removed values.
func (j *Janitor) Sweep(ctx context.Context) int64 {
	n, err := j.purger.PurgeOlderThan(ctx, j.now().Add(-j.ttl))
	if err != nil {
		j.log.WarnContext(ctx, "failed to purge expired session values", slog.Any("error", err))
		return 0
	}
	if n > 0 {
		j.log.InfoContext(ctx, "purged expired session values", slog.Int64("count", n))
	}
	return n
}
