package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"storefront-backend/models"
)

const reapBatchSize = 100

// Reaper deletes anonymous carts that have not been touched for TTL and
// returns their reserved units to stock. A zero TTL disables it.
type Reaper struct {
	engine   *Engine
	ttl      time.Duration
	interval time.Duration
	log      *zap.Logger
}

func NewReaper(engine *Engine, ttl, interval time.Duration) *Reaper {
	return &Reaper{engine: engine, ttl: ttl, interval: interval, log: engine.log.Named("reaper")}
}

func (r *Reaper) Enabled() bool { return r.ttl > 0 && r.interval > 0 }

// Run reaps on every tick until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	if !r.Enabled() {
		return
	}
	r.log.Info("anonymous cart reaper started", zap.Duration("ttl", r.ttl), zap.Duration("interval", r.interval))
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := r.ReapOnce(ctx, now)
			if err != nil && !errors.Is(err, context.Canceled) {
				r.log.Error("reaping anonymous carts failed", zap.Error(err))
			}
			if n > 0 {
				r.log.Info("reaped anonymous carts", zap.Int("count", n))
			}
		}
	}
}

// ReapOnce deletes every anonymous cart last updated before now-TTL.
func (r *Reaper) ReapOnce(ctx context.Context, now time.Time) (reaped int, err error) {
	if r.ttl <= 0 {
		return 0, nil
	}
	defer func() { r.engine.metrics.CartsReaped(reaped) }()
	cutoff := now.Add(-r.ttl)
	for {
		var ids []uuid.UUID
		err := r.engine.db.WithContext(ctx).
			Model(&models.Cart{}).
			Where("session_token IS NOT NULL AND updated_at < ?", cutoff).
			Order("updated_at ASC").
			Limit(reapBatchSize).
			Pluck("id", &ids).Error
		if err != nil {
			return reaped, err
		}

		progressed := false
		for _, id := range ids {
			ok, err := r.engine.expire(ctx, id, cutoff)
			if err != nil {
				return reaped, err
			}
			if ok {
				reaped++
				progressed = true
			}
		}
		if len(ids) < reapBatchSize || !progressed {
			return reaped, nil
		}
	}
}

// expire deletes an anonymous cart if it is still stale once locked.
func (e *Engine) expire(ctx context.Context, cartID uuid.UUID, cutoff time.Time) (bool, error) {
	expired := false
	err := e.transaction(ctx, func(tx *gorm.DB) error {
		expired = false
		c, err := lockCart(tx, cartID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !c.IsAnonymous() || !c.UpdatedAt.Before(cutoff) {
			return nil
		}
		if err := releaseItems(ctx, tx, e.catalog.WithTx(tx), cartID); err != nil {
			return err
		}
		if err := tx.Delete(&models.Cart{}, "id = ?", cartID).Error; err != nil {
			return err
		}
		expired = true
		return nil
	})
	e.observe("expire", err)
	return expired, err
}
