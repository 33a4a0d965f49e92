package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	ceilingdomain "github.com/smallbiznis/meiwatch/internal/ceiling/domain"
	"github.com/smallbiznis/meiwatch/internal/clock"
	"github.com/smallbiznis/meiwatch/internal/config"
	entitydomain "github.com/smallbiznis/meiwatch/internal/entity/domain"
	"github.com/smallbiznis/meiwatch/internal/housekeeping"
	"github.com/smallbiznis/meiwatch/internal/lock"
	notificationdomain "github.com/smallbiznis/meiwatch/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/meiwatch/internal/observability/metrics"
	"github.com/smallbiznis/meiwatch/internal/observability/tracing"
	obligationdomain "github.com/smallbiznis/meiwatch/internal/obligation/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobCeilingCheck        = "ceiling_check"
	JobGuideSweep          = "guide_sweep"
	JobDeclarationReminder = "declaration_reminder"
	JobHousekeeping        = "housekeeping"
)

var (
	ErrInvalidConfig = errors.New("invalid_scheduler_config")
	ErrUnknownJob    = errors.New("unknown_scheduler_job")
	// ErrJobRunning is returned by Trigger when the previous run of the job
	// has not finished. The tick is dropped, never queued.
	ErrJobRunning    = errors.New("scheduler_job_running")
)

// Purger is the housekeeping surface the scheduler drives.
type Purger interface {
	Purge(ctx context.Context) (housekeeping.Result, error)
}

type Params struct {
	fx.In

	Log          *zap.Logger
	Clock        clock.Clock
	Config       config.Config
	Registry     entitydomain.Registry
	Monitor      ceilingdomain.Monitor
	Obligations  obligationdomain.Service
	Dedup        notificationdomain.Deduplicator
	Sink         notificationdomain.Sink
	Housekeeping *housekeeping.Service
	Locker       lock.Locker
}

type jobFunc func(ctx context.Context, run *jobRun) error

type job struct {
	name    string
	spec    string
	fn      jobFunc
	running atomic.Bool

	mu      sync.Mutex
	nextRun time.Time
}

// Scheduler runs independently timed reconciliation jobs over the active
// entity set.
type Scheduler struct {
	log          *zap.Logger
	clock        clock.Clock
	cfg          Config
	loc          *time.Location
	registry     entitydomain.Registry
	monitor      ceilingdomain.Monitor
	obligations  obligationdomain.Service
	dedup        notificationdomain.Deduplicator
	sink         notificationdomain.Sink
	housekeeping Purger
	locker       lock.Locker

	jobs  []*job
	byKey map[string]*job

	// base is cancelled on Stop: no new entity starts after that.
	base   context.Context
	cancel context.CancelFunc
	cron   *cron.Cron
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.Registry == nil || p.Monitor == nil || p.Obligations == nil ||
		p.Dedup == nil || p.Sink == nil || p.Housekeeping == nil || p.Locker == nil {
		return nil, ErrInvalidConfig
	}
	return newScheduler(p, p.Housekeeping)
}

func newScheduler(p Params, purger Purger) (*Scheduler, error) {
	cfg := FromAppConfig(p.Config)
	base, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		clock:        p.Clock,
		cfg:          cfg,
		loc:          p.Config.Location(),
		registry:     p.Registry,
		monitor:      p.Monitor,
		obligations:  p.Obligations,
		dedup:        p.Dedup,
		sink:         p.Sink,
		housekeeping: purger,
		locker:       p.Locker,
		byKey:        make(map[string]*job),
		base:         base,
		cancel:       cancel,
	}
	s.register(JobCeilingCheck, cfg.CeilingCheckSpec, s.CeilingCheckJob)
	s.register(JobGuideSweep, cfg.GuideSweepSpec, s.GuideSweepJob)
	s.register(JobDeclarationReminder, cfg.DeclarationReminderSpec, s.DeclarationReminderJob)
	s.register(JobHousekeeping, cfg.HousekeepingSpec, s.HousekeepingJob)

	for _, j := range s.jobs {
		if _, err := cron.ParseStandard(j.spec); err != nil {
			cancel()
			return nil, fmt.Errorf("%w: %s spec %q: %w", ErrInvalidConfig, j.name, j.spec, err)
		}
	}
	return s, nil
}

func (s *Scheduler) register(name, spec string, fn jobFunc) {
	j := &job{name: name, spec: spec, fn: fn}
	s.jobs = append(s.jobs, j)
	s.byKey[name] = j
}

// runJob executes one job under the overlap guard with its own deadline,
// run id and span. A deadline is a soft timeout: counted and logged, never
// returned. Panics are recovered into errors.
func (s *Scheduler) runJob(parent context.Context, j *job) (err error) {
	if !j.running.CompareAndSwap(false, true) {
		obsmetrics.Scheduler().IncJobSkipped(j.name)
		s.log.Info("scheduler.job.skipped", zap.String("job", j.name), zap.String("reason", "still_running"))
		return ErrJobRunning
	}
	defer j.running.Store(false)

	start := time.Now()
	run := newJobRun(j.name)
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()
	// Stop also reaches runs started by Trigger and RunOnce
	stop := context.AfterFunc(s.base, cancel)
	defer stop()
	ctx = withRunContext(ctx, run)
	ctx, span := tracing.StartSpan(ctx, "scheduler.job",
		attribute.String("job", j.name),
		attribute.String("run_id", run.runID),
	)
	defer func() { tracing.EndSpan(span, err) }()

	s.logJobStart(ctx, run)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(j.name)

	err = s.invoke(ctx, j, run)

	schedMetrics.ObserveJobDuration(j.name, time.Since(start))
	if err != nil && run.Stats().Errors == 0 {
		run.IncError()
	}
	s.logJobFinish(ctx, run)

	if err == nil {
		return nil
	}

	schedMetrics.IncJobError(j.name, err)
	// only the run's own deadline or a Stop makes this a soft timeout;
	// entity failures joined alongside it still surface
	if s.haltErr(ctx) != nil {
		schedMetrics.IncJobTimeout(j.name)
		s.logger(ctx).Warn("scheduler.job.timeout",
			zap.String("job", j.name),
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err),
		)
		err = withoutContextErrors(err)
		if err == nil {
			return nil
		}
	}
	return fmt.Errorf("%s: %w", j.name, err)
}

// withoutContextErrors drops cancellation and deadline errors from err,
// looking one level into an errors.Join.
func withoutContextErrors(err error) error {
	isContextErr := func(e error) bool {
		return errors.Is(e, context.DeadlineExceeded) || errors.Is(e, context.Canceled)
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		if isContextErr(err) {
			return nil
		}
		return err
	}
	var kept []error
	for _, e := range joined.Unwrap() {
		if !isContextErr(e) {
			kept = append(kept, e)
		}
	}
	return errors.Join(kept...)
}

func (s *Scheduler) invoke(ctx context.Context, j *job, run *jobRun) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", obsmetrics.ErrJobPanic, r)
			s.logger(ctx).Error("scheduler.job.panic", zap.String("job", j.name), zap.Any("panic", r))
		}
	}()
	return j.fn(ctx, run)
}

// RunOnce runs every enabled job once, in registration order.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	for _, j := range s.jobs {
		if !s.isJobEnabled(j.name) {
			continue
		}
		if jobErr := s.runJob(parent, j); jobErr != nil && !errors.Is(jobErr, ErrJobRunning) {
			err = errors.Join(err, jobErr)
		}
	}
	return err
}

// Trigger runs a single job now under the same overlap guard as the cron
// ticks.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	j, ok := s.byKey[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.runJob(ctx, j)
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// An empty list enables every job.
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// Start registers one cron entry per enabled job in the fiscal time zone.
func (s *Scheduler) Start() error {
	c := cron.New(cron.WithLocation(s.loc))
	for _, j := range s.jobs {
		if !s.isJobEnabled(j.name) {
			s.log.Info("scheduler.job.disabled", zap.String("job", j.name))
			continue
		}
		sched, err := cron.ParseStandard(j.spec)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, j.name, err)
		}
		j.setNextRun(sched.Next(time.Now().In(s.loc)))
		c.Schedule(sched, cron.FuncJob(func() { s.tick(j, sched) }))
		s.log.Info("scheduler.job.scheduled", zap.String("job", j.name), zap.String("spec", j.spec))
	}
	s.cron = c
	c.Start()
	return nil
}

func (s *Scheduler) tick(j *job, sched cron.Schedule) {
	now := time.Now().In(s.loc)
	obsmetrics.Scheduler().ObserveRunLoopLag(now.Sub(j.swapNextRun(sched.Next(now))))
	if s.base.Err() != nil {
		return
	}
	if err := s.runJob(s.base, j); err != nil && !errors.Is(err, ErrJobRunning) {
		s.log.Warn("scheduler.job.failed", zap.String("job", j.name), zap.Error(err))
	}
}

// Stop cancels the base context so no new entity starts, then waits for
// in-flight runs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	if s.cron == nil {
		return nil
	}
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *job) setNextRun(t time.Time) {
	j.mu.Lock()
	j.nextRun = t
	j.mu.Unlock()
}

func (j *job) swapNextRun(next time.Time) time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	prev := j.nextRun
	j.nextRun = next
	return prev
}
