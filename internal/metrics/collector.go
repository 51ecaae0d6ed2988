package metrics

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// StatsSource provides functions to retrieve current values for gauge metrics.
// A nil function is skipped.
type StatsSource struct {
	ActiveTimeoutCount func(ctx context.Context) (int, error)
	PendingByTag       func(ctx context.Context) (map[string]int, error)
	ContentByKind      func(ctx context.Context) (map[string]int, error)
}

// StartCollector launches a goroutine that periodically updates gauge metrics.
// It runs every interval until the context is cancelled.
func StartCollector(ctx context.Context, src StatsSource, interval time.Duration) {
	// Do an initial collection immediately
	collect(ctx, src)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				collect(ctx, src)
			}
		}
	}()

	log.Info().Dur("interval", interval).Msg("Metrics collector started")
}

func collect(ctx context.Context, src StatsSource) {
	if src.ActiveTimeoutCount != nil {
		if n, err := src.ActiveTimeoutCount(ctx); err != nil {
			log.Warn().Err(err).Msg("metrics: active timeout count failed")
		} else {
			ActiveTimeouts.Set(float64(n))
		}
	}
	if src.PendingByTag != nil {
		if byTag, err := src.PendingByTag(ctx); err != nil {
			log.Warn().Err(err).Msg("metrics: pending case count failed")
		} else {
			PendingCasesByTag.Reset()
			for tag, n := range byTag {
				PendingCasesByTag.WithLabelValues(tag).Set(float64(n))
			}
		}
	}
	if src.ContentByKind != nil {
		if byKind, err := src.ContentByKind(ctx); err != nil {
			log.Warn().Err(err).Msg("metrics: content count failed")
		} else {
			for kind, n := range byKind {
				ContentItemsByKind.WithLabelValues(kind).Set(float64(n))
			}
		}
	}
}
