package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/mansoorceksport/freightdesk/internal/domain"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Fixed triggers. Reminders and the sweep follow the scheduler's location;
// reconciliation covers UTC days, so it always fires after UTC midnight.
const (
	ReminderSchedule  = "0 9 * * *"             // daily 09:00
	SweepSchedule     = "0 8 * * 1"             // Mondays 08:00
	ReconcileSchedule = "CRON_TZ=UTC 5 0 * * *" // daily 00:05 UTC
)

// Job names
const (
	JobReminders = "send-reminders"
	JobSweep     = "overdue-sweep"
	JobReconcile = "reconcile"
)

// Runner is the batch work the scheduler triggers
type Runner interface {
	SendOverdueReminders(ctx context.Context) (*domain.ReminderResult, error)
	WeeklyOverdueSweep(ctx context.Context) (*domain.SweepResult, error)
	DailyReconciliation(ctx context.Context, date time.Time) (*domain.DailyReport, error)
}

// Scheduler runs the reminder, sweep and reconciliation jobs on their cron triggers.
// A run that is still in progress when its next trigger fires is skipped.
type Scheduler struct {
	cron    *cron.Cron
	entries map[string]cron.EntryID
	runner  Runner
	timeout time.Duration
	logger  zerolog.Logger
	now     func() time.Time
}

// New registers the three jobs. timeout bounds a single run.
func New(runner Runner, loc *time.Location, timeout time.Duration, logger zerolog.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	adapter := cronLogger{logger: logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		entries: map[string]cron.EntryID{},
		runner:  runner,
		timeout: timeout,
		logger:  logger,
		now:     func() time.Time { return time.Now().In(loc) },
	}

	jobs := []struct {
		name string
		spec string
		run  func(ctx context.Context) error
	}{
		{JobReminders, ReminderSchedule, s.reminders},
		{JobSweep, SweepSchedule, s.sweep},
		{JobReconcile, ReconcileSchedule, s.reconcile},
	}
	for _, job := range jobs {
		job := job
		id, err := s.cron.AddFunc(job.spec, func() { s.execute(job.name, job.run) })
		if err != nil {
			return nil, fmt.Errorf("failed to schedule %s: %w", job.name, err)
		}
		s.entries[job.name] = id
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
	for name, id := range s.entries {
		s.logger.Info().Str("job", name).Time("next_run", s.cron.Entry(id).Next).Msg("job scheduled")
	}
}

// Stop prevents new runs. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Entry returns the cron entry of a named job
func (s *Scheduler) Entry(name string) cron.Entry {
	return s.cron.Entry(s.entries[name])
}

func (s *Scheduler) execute(name string, run func(ctx context.Context) error) {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	log := s.logger.With().Str("job", name).Logger()
	if err := run(ctx); err != nil {
		log.Error().Err(err).Dur("took", time.Since(start)).Msg("job failed")
		return
	}
	log.Info().Dur("took", time.Since(start)).Msg("job finished")
}

func (s *Scheduler) reminders(ctx context.Context) error {
	_, err := s.runner.SendOverdueReminders(ctx)
	return err
}

func (s *Scheduler) sweep(ctx context.Context) error {
	_, err := s.runner.WeeklyOverdueSweep(ctx)
	return err
}

func (s *Scheduler) reconcile(ctx context.Context) error {
	_, err := s.runner.DailyReconciliation(ctx, previousUTCDay(s.now()))
	return err
}

// previousUTCDay is the start of the last UTC day that has fully ended at now
func previousUTCDay(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
