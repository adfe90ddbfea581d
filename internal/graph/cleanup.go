package graph

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// Cleanup removes weak and stale edges: everything below the cleanup
// threshold, plus edges older than the stale age whose score is under the
// looser stale threshold. An empty ownerID runs globally. Returns the
// number of edges removed.
func (b *Builder) Cleanup(ctx context.Context, ownerID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	removed, err := b.relations.DeleteWeak(ownerID, b.cfg.CleanupMinScore, b.cfg.StaleAfter, b.cfg.StaleMinScore)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		b.logger.Info("relation cleanup removed edges", "owner", ownerID, "count", removed)
	}
	return removed, nil
}

// RunPeriodicCleanup runs global cleanup passes on a ticker until the
// context is canceled.
func RunPeriodicCleanup(ctx context.Context, b *Builder, interval time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := b.Cleanup(ctx, ""); err != nil {
				logger.Warn("periodic relation cleanup failed", "error", err)
			}
		}
	}
}
