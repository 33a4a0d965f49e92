package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: SchedulerJobReasonDeadlineExceeded},
		{name: "panic", err: fmt.Errorf("%w: boom", ErrJobPanic), want: SchedulerJobReasonPanic},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: SchedulerJobReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: SchedulerJobReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: SchedulerJobReasonUniqueViolation},
		{name: "unknown", err: errors.New("boom"), want: SchedulerJobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifySchedulerJobReason(tc.err))
		})
	}
}

func TestClassifySchedulerErrorType(t *testing.T) {
	assert.Equal(t, SchedulerErrorTypeDeadlineExceeded, ClassifySchedulerErrorType(fmt.Errorf("wrap: %w", context.DeadlineExceeded)))
	assert.Equal(t, SchedulerErrorTypeDB, ClassifySchedulerErrorType(&pgconn.PgError{Code: "08006"}))
	assert.Equal(t, SchedulerErrorTypeUnknown, ClassifySchedulerErrorType(gorm.ErrRecordNotFound))
	assert.True(t, IsSchedulerErrorRetryable(gorm.ErrInvalidDB))
	assert.False(t, IsSchedulerErrorRetryable(errors.New("bad data")))
}

func TestEntityCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newSchedulerMetrics(registry, Config{ServiceName: "meiwatch", Environment: "test"})

	m.AddEntitiesProcessed("ceiling_check", 3)
	m.AddEntitiesProcessed("ceiling_check", 0)
	m.IncEntityFailed("ceiling_check", "")
	m.IncJobSkipped("guide_sweep")

	assert.Equal(t, float64(3), testutil.ToFloat64(m.entitiesProcessed.WithLabelValues("ceiling_check")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.entitiesFailed.WithLabelValues("ceiling_check", SchedulerErrorTypeUnknown)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.jobSkipped.WithLabelValues("guide_sweep")))
}
