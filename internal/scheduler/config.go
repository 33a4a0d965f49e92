package scheduler

import (
	"strings"
	"time"

	"github.com/smallbiznis/meiwatch/internal/config"
)

// Config controls cron specs, pool size and deadlines.
type Config struct {
	EnabledJobs []string
	Concurrency int

	CeilingCheckSpec        string
	GuideSweepSpec          string
	DeclarationReminderSpec string
	HousekeepingSpec        string

	JobTimeout    time.Duration
	EntityTimeout time.Duration
	DueSoonWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		Concurrency:             8,
		CeilingCheckSpec:        "0 8 * * *",
		GuideSweepSpec:          "0 9 * * *",
		DeclarationReminderSpec: "0 10 * 1-5 *",
		HousekeepingSpec:        "0 4 * * 0",
		JobTimeout:              30 * time.Minute,
		EntityTimeout:           30 * time.Second,
		DueSoonWindow:           5 * 24 * time.Hour,
	}
}

// FromAppConfig copies the SCHEDULER_* settings.
func FromAppConfig(cfg config.Config) Config {
	sc := cfg.Scheduler
	return Config{
		EnabledJobs:             sc.EnabledJobs,
		Concurrency:             sc.Concurrency,
		CeilingCheckSpec:        sc.CeilingCheckSpec,
		GuideSweepSpec:          sc.GuideSweepSpec,
		DeclarationReminderSpec: sc.DeclarationReminderSpec,
		HousekeepingSpec:        sc.HousekeepingSpec,
		JobTimeout:              sc.JobTimeout,
		EntityTimeout:           sc.EntityTimeout,
		DueSoonWindow:           sc.DueSoonWindow,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = defaults.Concurrency
	}
	if strings.TrimSpace(c.CeilingCheckSpec) == "" {
		c.CeilingCheckSpec = defaults.CeilingCheckSpec
	}
	if strings.TrimSpace(c.GuideSweepSpec) == "" {
		c.GuideSweepSpec = defaults.GuideSweepSpec
	}
	if strings.TrimSpace(c.DeclarationReminderSpec) == "" {
		c.DeclarationReminderSpec = defaults.DeclarationReminderSpec
	}
	if strings.TrimSpace(c.HousekeepingSpec) == "" {
		c.HousekeepingSpec = defaults.HousekeepingSpec
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.EntityTimeout <= 0 {
		c.EntityTimeout = defaults.EntityTimeout
	}
	if c.DueSoonWindow <= 0 {
		c.DueSoonWindow = defaults.DueSoonWindow
	}
	return c
}
