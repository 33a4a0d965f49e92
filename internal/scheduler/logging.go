package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	entitydomain "github.com/smallbiznis/meiwatch/internal/entity/domain"
	invoicedomain "github.com/smallbiznis/meiwatch/internal/invoice/domain"
	notificationdomain "github.com/smallbiznis/meiwatch/internal/notification/domain"
	obscontext "github.com/smallbiznis/meiwatch/internal/observability/context"
	obslogger "github.com/smallbiznis/meiwatch/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/meiwatch/internal/observability/metrics"
	obligationdomain "github.com/smallbiznis/meiwatch/internal/obligation/domain"
	"go.uber.org/zap"
)

// jobRun tracks one execution of a job. Entity workers update it
// concurrently.
type jobRun struct {
	job       string
	runID     string
	startedAt time.Time

	mu        sync.Mutex
	processed int
	skipped   int
	notified  int
	errors    int
}

func newJobRun(job string) *jobRun {
	return &jobRun{
		job:       job,
		runID:     ulid.Make().String(),
		startedAt: time.Now(),
	}
}

func (r *jobRun) AddProcessed(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.mu.Lock()
	r.processed += count
	r.mu.Unlock()
}

func (r *jobRun) AddSkipped(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.mu.Lock()
	r.skipped += count
	r.mu.Unlock()
}

func (r *jobRun) AddNotified(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.mu.Lock()
	r.notified += count
	r.mu.Unlock()
}

func (r *jobRun) IncError() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.errors++
	r.mu.Unlock()
}

// RunStats is a snapshot of a finished run.
type RunStats struct {
	Job       string
	RunID     string
	Processed int
	Skipped   int
	Notified  int
	Errors    int
}

func (r *jobRun) Stats() RunStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RunStats{
		Job:       r.job,
		RunID:     r.runID,
		Processed: r.processed,
		Skipped:   r.skipped,
		Notified:  r.notified,
		Errors:    r.errors,
	}
}

func withRunContext(ctx context.Context, run *jobRun) context.Context {
	ctx = obscontext.WithActor(ctx, obscontext.ActorScheduler)
	ctx = obscontext.WithJob(ctx, run.job)
	return obscontext.WithRunID(ctx, run.runID)
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logJobStart(ctx context.Context, run *jobRun) {
	s.logger(ctx).Info("scheduler.job.start", zap.Int("concurrency", s.cfg.Concurrency))
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun) {
	stats := run.Stats()
	fields := []zap.Field{
		zap.Int64("duration_ms", time.Since(run.startedAt).Milliseconds()),
		zap.Int("processed_count", stats.Processed),
		zap.Int("skipped_count", stats.Skipped),
		zap.Int("notified_count", stats.Notified),
		zap.Int("error_count", stats.Errors),
	}
	log := s.logger(ctx)
	if stats.Errors > 0 {
		log.Warn("scheduler.job.finish", fields...)
		return
	}
	log.Info("scheduler.job.finish", fields...)
}

// logEntityError expects ctx to carry the job, run and entity ids.
func (s *Scheduler) logEntityError(ctx context.Context, run *jobRun, err error) {
	errorType := classifyError(err)
	obsmetrics.Scheduler().IncEntityFailed(run.job, errorType)
	s.logger(ctx).Error("scheduler.entity.failed",
		zap.String("error_type", errorType),
		zap.Bool("retryable", obsmetrics.IsSchedulerErrorRetryable(err)),
		zap.Error(err),
	)
}

// classifyError folds domain sentinels into the error types used by logs
// and metrics, deferring to the infrastructure classifier otherwise.
func classifyError(err error) string {
	switch {
	case err == nil:
		return obsmetrics.SchedulerErrorTypeUnknown
	case errors.Is(err, notificationdomain.ErrEmitFailed),
		errors.Is(err, notificationdomain.ErrInvalidEmission),
		errors.Is(err, notificationdomain.ErrInvalidMarker):
		return obsmetrics.SchedulerErrorTypeNotification
	case errors.Is(err, entitydomain.ErrEntityNotFound),
		errors.Is(err, entitydomain.ErrInvalidCeiling),
		errors.Is(err, invoicedomain.ErrInvalidInvoice),
		errors.Is(err, obligationdomain.ErrInvalidYear),
		errors.Is(err, obligationdomain.ErrGuideNotFound),
		errors.Is(err, obligationdomain.ErrDeclarationNotFound):
		return obsmetrics.SchedulerErrorTypeData
	case errors.Is(err, obligationdomain.ErrAlreadySubmitted),
		errors.Is(err, invoicedomain.ErrAlreadyCancelled),
		errors.Is(err, entitydomain.ErrInvalidCategory):
		return obsmetrics.SchedulerErrorTypePolicy
	default:
		return obsmetrics.ClassifySchedulerErrorType(err)
	}
}
