package service

import (
	"context"
	"time"

	"clearlot/internal/repository"
	"clearlot/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	defaultRetentionDays   = 30
	defaultCleanupSchedule = "@daily"
)

// Cleaner runs background retention: purging notifications past their
// retention window and trimming the deduplication ledger.
type Cleaner struct {
	notifications *repository.NotificationRepository
	dedup         repository.DedupStore
	cron          *cron.Cron
	now           func() time.Time
	log           *zap.Logger
	retentionDays int
	schedule      string
}

// CleanerOption customises the Cleaner.
type CleanerOption func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) CleanerOption {
	return func(cl *Cleaner) {
		if c != nil {
			cl.cron = c
		}
	}
}

// WithNow overrides the clock used for retention cutoffs.
func WithNow(now func() time.Time) CleanerOption {
	return func(cl *Cleaner) {
		if now != nil {
			cl.now = now
		}
	}
}

// WithRetentionDays adjusts how long notifications are kept.
func WithRetentionDays(days int) CleanerOption {
	return func(cl *Cleaner) {
		if days > 0 {
			cl.retentionDays = days
		}
	}
}

// WithSchedule overrides the cron specification for the retention job.
func WithSchedule(spec string) CleanerOption {
	return func(cl *Cleaner) {
		if spec != "" {
			cl.schedule = spec
		}
	}
}

func NewCleaner(notifications *repository.NotificationRepository, dedup repository.DedupStore, opts ...CleanerOption) *Cleaner {
	cl := &Cleaner{
		notifications: notifications,
		dedup:         dedup,
		now:           time.Now,
		log:           logger.WithModule("cleanup"),
		retentionDays: defaultRetentionDays,
		schedule:      defaultCleanupSchedule,
	}
	for _, opt := range opts {
		opt(cl)
	}
	if cl.cron == nil {
		cl.cron = cron.New()
	}
	return cl
}

// Start schedules the retention job and launches the cron loop.
func (c *Cleaner) Start() error {
	if _, err := c.cron.AddFunc(c.schedule, func() { c.RunOnce(context.Background()) }); err != nil {
		return err
	}
	c.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (c *Cleaner) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

// RunOnce performs one retention pass.
func (c *Cleaner) RunOnce(ctx context.Context) {
	cutoff := c.now().AddDate(0, 0, -c.retentionDays)
	purged, err := c.notifications.DeleteOlderThan(cutoff)
	if err != nil {
		c.log.Error("notification retention failed", zap.Error(err))
	} else if purged > 0 {
		c.log.Info("stale notifications purged", zap.Int64("count", purged), zap.Time("cutoff", cutoff))
	}
	if trimmer, ok := c.dedup.(interface{ Trim(context.Context) error }); ok {
		if err := trimmer.Trim(ctx); err != nil {
			c.log.Error("dedup ledger trim failed", zap.Error(err))
		}
	}
}
