package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared"
	"github.com/wawire/RentCollectionApp-sub000/internal/infrastructure/config"
)

// JobSubmitter accepts billing jobs
type JobSubmitter interface {
	Schedule(jobType JobType, year int, month time.Month) (*Job, error)
}

// BillingTriggerConfig holds the billing calendar
type BillingTriggerConfig struct {
	// GenerationDay and GenerationHour are when the month's invoices are issued
	GenerationDay  int
	GenerationHour int

	// LateFeeHour is the hour of the daily late-fee pass
	LateFeeHour int

	// CheckInterval is how often to check if it's time to run
	CheckInterval time.Duration

	// Location is the billing timezone the calendar is read in
	Location *time.Location
}

// DefaultBillingTriggerConfig returns default trigger configuration
func DefaultBillingTriggerConfig() BillingTriggerConfig {
	return BillingTriggerConfig{
		GenerationDay:  1,
		GenerationHour: 0,
		LateFeeHour:    6,
		CheckInterval:  time.Minute,
		Location:       time.UTC,
	}
}

// BillingTriggerConfigFrom reads the calendar from the billing section
func BillingTriggerConfigFrom(cfg config.BillingConfig) (BillingTriggerConfig, error) {
	loc, err := cfg.Location()
	if err != nil {
		return BillingTriggerConfig{}, err
	}
	return BillingTriggerConfig{
		GenerationDay:  cfg.GenerationDay,
		GenerationHour: cfg.GenerationHour,
		LateFeeHour:    cfg.LateFeeHour,
		CheckInterval:  cfg.CheckInterval,
		Location:       loc,
	}, nil
}

// BillingTrigger submits the monthly generation job and the daily late-fee
// jobs. A period whose generation day has passed while the worker was down is
// generated on the next check; generation is idempotent per tenant and period.
type BillingTrigger struct {
	config    BillingTriggerConfig
	submitter JobSubmitter
	clock     shared.Clock
	logger    *zap.Logger

	cancel          context.CancelFunc
	wg              sync.WaitGroup
	mu              sync.Mutex
	isRunning       bool
	lastGenerated   string // billing month last submitted for generation, e.g. 2024-03
	lastLateFeeDate string // day the late-fee pass was fully submitted, e.g. 2024-03-09

	// late-fee months already submitted on lateFeeDay
	lateFeeDay       string
	lateFeeSubmitted map[string]bool
}

// NewBillingTrigger creates a new billing trigger
func NewBillingTrigger(cfg BillingTriggerConfig, submitter JobSubmitter, clock shared.Clock, logger *zap.Logger) *BillingTrigger {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingTrigger{
		config:    cfg,
		submitter: submitter,
		clock:     clock,
		logger:    logger,
	}
}

// Start starts the check loop; the first check runs immediately
func (c *BillingTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Billing trigger started",
		zap.Int("generation_day", c.config.GenerationDay),
		zap.Int("generation_hour", c.config.GenerationHour),
		zap.Int("late_fee_hour", c.config.LateFeeHour),
		zap.String("timezone", c.config.Location.String()),
		zap.Duration("check_interval", c.config.CheckInterval),
	)
	return nil
}

// Stop stops the billing trigger
func (c *BillingTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Billing trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *BillingTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	c.checkAndTrigger()

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkAndTrigger()
		}
	}
}

// checkAndTrigger submits whatever is due at the current time
func (c *BillingTrigger) checkAndTrigger() {
	now := c.clock.Now().In(c.config.Location)
	c.maybeGenerate(now)
	c.maybeApplyLateFees(now)
}

func (c *BillingTrigger) generationDue(now time.Time) bool {
	switch {
	case now.Day() > c.config.GenerationDay:
		return true
	case now.Day() == c.config.GenerationDay:
		return now.Hour() >= c.config.GenerationHour
	}
	return false
}

func (c *BillingTrigger) maybeGenerate(now time.Time) {
	period := now.Format("2006-01")

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastGenerated == period || !c.generationDue(now) {
		return
	}

	job, err := c.submitter.Schedule(JobTypeGenerateInvoices, now.Year(), now.Month())
	if err != nil {
		c.logger.Error("Failed to schedule monthly invoice generation", zap.String("period", period), zap.Error(err))
		return
	}
	c.lastGenerated = period
	c.logger.Info("Scheduled monthly invoice generation",
		zap.String("period", period),
		zap.String("job_id", job.ID.String()),
	)
}

// maybeApplyLateFees runs the late-fee pass once a day over the previous and
// current billing months
func (c *BillingTrigger) maybeApplyLateFees(now time.Time) {
	today := now.Format("2006-01-02")

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastLateFeeDate == today || now.Hour() < c.config.LateFeeHour {
		return
	}

	if c.lateFeeDay != today {
		c.lateFeeDay = today
		c.lateFeeSubmitted = make(map[string]bool, 2)
	}

	previous := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, c.config.Location).AddDate(0, -1, 0)
	pending := 0
	for _, m := range []time.Time{previous, now} {
		period := m.Format("2006-01")
		if c.lateFeeSubmitted[period] {
			continue
		}
		if _, err := c.submitter.Schedule(JobTypeApplyLateFees, m.Year(), m.Month()); err != nil {
			c.logger.Error("Failed to schedule late fee pass",
				zap.String("period", period),
				zap.Error(err),
			)
			pending++
			continue
		}
		c.lateFeeSubmitted[period] = true
	}
	if pending > 0 {
		return
	}
	c.lastLateFeeDate = today
	c.logger.Info("Scheduled late fee pass", zap.String("date", today))
}

// LastGenerated returns the billing month last submitted for generation
func (c *BillingTrigger) LastGenerated() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastGenerated
}
