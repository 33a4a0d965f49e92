package housekeeping

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/smallbiznis/meiwatch/internal/audit/domain"
	auditrepo "github.com/smallbiznis/meiwatch/internal/audit/repository"
	"github.com/smallbiznis/meiwatch/internal/clock"
	"github.com/smallbiznis/meiwatch/internal/config"
	notificationdomain "github.com/smallbiznis/meiwatch/internal/notification/domain"
	notificationrepo "github.com/smallbiznis/meiwatch/internal/notification/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestPurgeHonorsRetention(t *testing.T) {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&auditdomain.AuditLog{}, &notificationdomain.Marker{}))

	now := time.Date(2025, time.June, 1, 4, 0, 0, 0, time.UTC)
	ctx := context.Background()
	audits := auditrepo.Provide()
	markers := notificationrepo.Provide()

	for i, age := range []time.Duration{91 * 24 * time.Hour, 89 * 24 * time.Hour} {
		require.NoError(t, audits.Insert(ctx, db, &auditdomain.AuditLog{
			ID:         snowflake.ID(101 + i),
			EntityID:   1,
			Actor:      "scheduler",
			Action:     auditdomain.ActionGuideOverdue,
			TargetType: "das_guide",
			TargetID:   "1",
			CreatedAt:  now.Add(-age),
		}))
	}
	for i, age := range []time.Duration{401 * 24 * time.Hour, 30 * 24 * time.Hour} {
		_, err := markers.InsertMarker(ctx, db, &notificationdomain.Marker{
			EntityID:  1,
			MarkerKey: fmt.Sprintf("marker:%d", i),
			CreatedAt: now.Add(-age),
		})
		require.NoError(t, err)
	}

	svc := NewService(Params{
		DB:         db,
		Log:        zap.NewNop(),
		Clock:      clock.NewFakeClock(now),
		Config:     config.Config{Housekeeping: config.HousekeepingConfig{RetentionDays: 90}},
		AuditRepo:  audits,
		MarkerRepo: markers,
	})

	res, err := svc.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.AuditLogs)
	assert.Equal(t, int64(1), res.Markers)

	var remaining int64
	require.NoError(t, db.Model(&auditdomain.AuditLog{}).Count(&remaining).Error)
	assert.Equal(t, int64(1), remaining)

	res, err = svc.Purge(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.AuditLogs)
	assert.Zero(t, res.Markers)
}
