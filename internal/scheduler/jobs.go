package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	entitydomain "github.com/smallbiznis/meiwatch/internal/entity/domain"
	"github.com/smallbiznis/meiwatch/internal/lock"
	notificationdomain "github.com/smallbiznis/meiwatch/internal/notification/domain"
	obscontext "github.com/smallbiznis/meiwatch/internal/observability/context"
	obsmetrics "github.com/smallbiznis/meiwatch/internal/observability/metrics"
	"github.com/smallbiznis/meiwatch/internal/observability/tracing"
	obligationdomain "github.com/smallbiznis/meiwatch/internal/obligation/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const releaseTimeout = 5 * time.Second

type entityFunc func(ctx context.Context, entity entitydomain.Entity) error

// forEachEntity fans fn out over the active entities with at most
// Concurrency in flight. A failing entity is logged and counted; the sweep
// goes on. Once ctx is done no new entity starts.
func (s *Scheduler) forEachEntity(ctx context.Context, run *jobRun, fn entityFunc) error {
	entities, err := s.registry.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active entities: %w", err)
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(s.cfg.Concurrency)
	for i, entity := range entities {
		if s.haltErr(ctx) != nil {
			run.AddSkipped(len(entities) - i)
			break
		}
		g.Go(func() error {
			// g.Go may have blocked on a full pool past a shutdown
			if s.haltErr(ctx) != nil {
				run.AddSkipped(1)
				return nil
			}
			if err := s.processEntity(ctx, run, entity, fn); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := s.haltErr(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// haltErr reports why no further entity may start: the run's own deadline
// or a Stop. The base is checked directly because the AfterFunc linking it
// to the run context fires asynchronously.
func (s *Scheduler) haltErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.base.Err()
}

func (s *Scheduler) processEntity(jobCtx context.Context, run *jobRun, entity entitydomain.Entity, fn entityFunc) (err error) {
	ctx, cancel := s.entityContext(jobCtx)
	defer cancel()
	entityID := entity.ID.String()
	ctx = obscontext.WithEntityID(ctx, entityID)
	ctx, span := tracing.StartSpan(ctx, "scheduler.entity",
		attribute.String("job", run.job),
		attribute.String("entity_id", entityID),
	)
	defer func() { tracing.EndSpan(span, err) }()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", obsmetrics.ErrJobPanic, r)
		}
		if err != nil {
			run.IncError()
			s.logEntityError(ctx, run, err)
		}
	}()

	key := lock.EntityKey(entityID)
	// a busy entity is waited for within its own deadline, not skipped
	token, err := lock.Acquire(ctx, s.locker, key, s.cfg.EntityTimeout, lock.DefaultRetryInterval)
	if err != nil {
		return fmt.Errorf("lock entity: %w", err)
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := s.locker.Release(releaseCtx, key, token); err != nil {
			s.logger(ctx).Warn("scheduler.entity.unlock_failed", zap.Error(err))
		}
	}()

	if err := fn(ctx, entity); err != nil {
		return err
	}
	run.AddProcessed(1)
	obsmetrics.Scheduler().AddEntitiesProcessed(run.job, 1)
	return nil
}

// entityContext detaches from shutdown cancellation so in-flight work can
// finish, but keeps the job deadline as an upper bound.
func (s *Scheduler) entityContext(jobCtx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.cfg.EntityTimeout
	if deadline, ok := jobCtx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	return context.WithTimeout(context.WithoutCancel(jobCtx), timeout)
}

// CeilingCheckJob classifies every active entity against its ceiling and
// alerts on upward crossings.
func (s *Scheduler) CeilingCheckJob(ctx context.Context, run *jobRun) error {
	now := s.clock.Now()
	return s.forEachEntity(ctx, run, func(ctx context.Context, entity entitydomain.Entity) error {
		res, err := s.monitor.Check(ctx, entity, now)
		if err != nil {
			return fmt.Errorf("ceiling check: %w", err)
		}
		if res.Emitted {
			run.AddNotified(1)
		}
		return nil
	})
}

// GuideSweepJob brings the guide calendar forward: ensure this year's
// guides, flip the late ones and remind about the ones due soon.
func (s *Scheduler) GuideSweepJob(ctx context.Context, run *jobRun) error {
	now := s.clock.Now()
	year := now.In(s.loc).Year()
	return s.forEachEntity(ctx, run, func(ctx context.Context, entity entitydomain.Entity) error {
		if _, err := s.obligations.EnsureGuidesForYear(ctx, entity.ID, year); err != nil {
			return fmt.Errorf("ensure guides: %w", err)
		}

		overdue, err := s.obligations.SweepOverdue(ctx, entity.ID, now)
		if err != nil {
			return fmt.Errorf("sweep overdue: %w", err)
		}
		var errs []error
		for _, g := range overdue {
			title, body := obligationdomain.OverdueMessage(entity.LegalName, g, s.loc)
			if err := s.emit(ctx, run, entity, notificationdomain.KindGuideOverdue, notificationdomain.SeverityHigh, title, body, guideMetadata(g)); err != nil {
				errs = append(errs, err)
			}
		}

		dueSoon, err := s.obligations.DueSoon(ctx, entity.ID, now, s.cfg.DueSoonWindow)
		if err != nil {
			return errors.Join(append(errs, fmt.Errorf("due soon: %w", err))...)
		}
		for _, g := range dueSoon {
			claimed, err := s.dedup.ClaimOnce(ctx, entity.ID, obligationdomain.DueSoonMarker(g.ID.String()))
			if err != nil {
				errs = append(errs, fmt.Errorf("claim due soon marker: %w", err))
				continue
			}
			if !claimed {
				continue
			}
			title, body := obligationdomain.DueSoonMessage(entity.LegalName, g, s.loc)
			if err := s.emit(ctx, run, entity, notificationdomain.KindGuideDueSoon, notificationdomain.SeverityNormal, title, body, guideMetadata(g)); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// DeclarationReminderJob counts down to the May 31 deadline of the previous
// calendar year's declaration. Outside January to May there is nothing to do.
func (s *Scheduler) DeclarationReminderJob(ctx context.Context, run *jobRun) error {
	now := s.clock.Now()
	local := now.In(s.loc)
	if local.Month() > time.May {
		return nil
	}
	year := local.Year() - 1
	deadline := obligationdomain.DeclarationDeadline(year, s.loc)
	daysLeft := obligationdomain.DaysUntil(deadline, now, s.loc)
	milestone, ok := obligationdomain.DueMilestone(daysLeft)
	if !ok {
		return nil
	}

	return s.forEachEntity(ctx, run, func(ctx context.Context, entity entitydomain.Entity) error {
		if !entity.CreatedAt.IsZero() && entity.CreatedAt.In(s.loc).Year() > year {
			return nil
		}
		submitted, err := s.obligations.DeclarationSubmitted(ctx, entity.ID, year)
		if err != nil {
			return fmt.Errorf("declaration status: %w", err)
		}
		if submitted {
			return nil
		}
		if _, err := s.obligations.CreateDeclaration(ctx, entity.ID, year); err != nil {
			return fmt.Errorf("create declaration: %w", err)
		}
		claimed, err := s.dedup.ClaimOnce(ctx, entity.ID, obligationdomain.DeclarationMarker(year, milestone))
		if err != nil {
			return fmt.Errorf("claim declaration marker: %w", err)
		}
		if !claimed {
			return nil
		}
		title, body := obligationdomain.DeclarationMessage(entity.LegalName, year, daysLeft, deadline, s.loc)
		return s.emit(ctx, run, entity, notificationdomain.KindDeclarationDeadline, obligationdomain.DeclarationSeverity(daysLeft), title, body, map[string]any{
			"year":      year,
			"milestone": milestone,
			"days_left": daysLeft,
		})
	})
}

// HousekeepingJob purges expired markers and old audit logs.
func (s *Scheduler) HousekeepingJob(ctx context.Context, run *jobRun) error {
	res, err := s.housekeeping.Purge(ctx)
	run.AddProcessed(int(res.AuditLogs + res.Markers))
	return err
}

func (s *Scheduler) emit(ctx context.Context, run *jobRun, entity entitydomain.Entity, kind string, severity notificationdomain.Severity, title, body string, metadata map[string]any) error {
	if _, err := s.sink.Emit(ctx, notificationdomain.Emission{
		EntityID:  entity.ID,
		Kind:      kind,
		Severity:  severity,
		Title:     title,
		Body:      body,
		Metadata:  metadata,
		Recipient: entity.Email,
	}); err != nil {
		return fmt.Errorf("emit %s: %w: %w", kind, notificationdomain.ErrEmitFailed, err)
	}
	run.AddNotified(1)
	return nil
}

func guideMetadata(g obligationdomain.DASGuide) map[string]any {
	return map[string]any{
		"guide_id": g.ID.String(),
		"year":     g.Year,
		"month":    g.Month,
		"amount":   g.Amount.StringFixed(2),
		"due_date": g.DueDate.UTC().Format(time.RFC3339),
	}
}
