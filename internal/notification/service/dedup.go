package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/meiwatch/internal/clock"
	"github.com/smallbiznis/meiwatch/internal/config"
	"github.com/smallbiznis/meiwatch/internal/notification/domain"
	"github.com/smallbiznis/meiwatch/internal/observability/metrics"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const defaultCooldown = 24 * time.Hour

type DedupParams struct {
	fx.In

	DB      *gorm.DB
	Repo    domain.Repository
	Clock   clock.Clock
	Config  config.Config
	Metrics *metrics.Metrics `optional:"true"`
}

// Dedup guards alerts with a mode-dependent mix of band crossing and a
// per-kind cooldown. It tolerates rare duplicates when two processes race;
// callers serialize per entity to narrow that window.
type Dedup struct {
	db       *gorm.DB
	repo     domain.Repository
	clock    clock.Clock
	metrics  *metrics.Metrics
	cooldown time.Duration
	mode     domain.DedupMode
}

func NewDedup(p DedupParams) domain.Deduplicator {
	return newDedup(p.DB, p.Repo, p.Clock, p.Metrics, p.Config.Notification.Cooldown, domain.ParseDedupMode(p.Config.Notification.DedupMode))
}

func newDedup(db *gorm.DB, repo domain.Repository, clk clock.Clock, m *metrics.Metrics, cooldown time.Duration, mode domain.DedupMode) *Dedup {
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	return &Dedup{
		db:       db,
		repo:     repo,
		clock:    clk,
		metrics:  m,
		cooldown: cooldown,
		mode:     mode,
	}
}

func (d *Dedup) ShouldEmit(ctx context.Context, entityID snowflake.ID, kind string) (bool, error) {
	since := d.clock.Now().Add(-d.cooldown)
	exists, err := d.repo.ExistsSince(ctx, d.db, entityID, kind, since)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

func (d *Dedup) Permit(ctx context.Context, entityID snowflake.ID, kind string, crossed bool) (bool, string, error) {
	if d.mode.UsesCrossing() && !crossed {
		return false, domain.SuppressedNoCrossing, nil
	}
	if d.mode.UsesCooldown() {
		ok, err := d.ShouldEmit(ctx, entityID, kind)
		if err != nil {
			return false, "", err
		}
		if !ok {
			d.metrics.RecordNotificationSuppressed(ctx, kind, domain.SuppressedCooldown)
			return false, domain.SuppressedCooldown, nil
		}
	}
	return true, "", nil
}

func (d *Dedup) ClaimOnce(ctx context.Context, entityID snowflake.ID, markerKey string) (bool, error) {
	key := strings.TrimSpace(markerKey)
	if entityID == 0 || key == "" {
		return false, domain.ErrInvalidMarker
	}
	return d.repo.InsertMarker(ctx, d.db, &domain.Marker{
		EntityID:  entityID,
		MarkerKey: key,
		CreatedAt: d.clock.Now(),
	})
}
