package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/tphakala/pokerwatch/internal/conf"
	"github.com/tphakala/pokerwatch/internal/datastore"
	"github.com/tphakala/pokerwatch/internal/errors"
	"github.com/tphakala/pokerwatch/internal/logger"
)

// JobKind identifies what a schedule entry runs.
type JobKind string

const (
	JobCollect JobKind = "collect"
	JobHealth  JobKind = "health"
	JobSummary JobKind = "summary"
)

// missedAfter is how late a job may start before its slot counts as missed.
const missedAfter = 5 * time.Minute

// defaultTick is how often the scheduler compares the clock to its jobs.
const defaultTick = 30 * time.Second

// Runner executes scheduled jobs.
type Runner interface {
	RunCycle(ctx context.Context, trigger string) (*datastore.CycleRun, error)
	CheckHealth(ctx context.Context) HealthReport
	SendWeeklySummary(ctx context.Context) error
}

// Schedule is one recurring job.
type Schedule struct {
	Kind     JobKind
	Hour     int          // 0-23
	Minute   int          // 0-59
	Weekday  time.Weekday // only used when IsWeekly
	IsWeekly bool
	LastRun  time.Time
	NextRun  time.Time
}

// Scheduler fires jobs at wall-clock times in a fixed timezone.
type Scheduler struct {
	runner    Runner
	loc       *time.Location
	tick      time.Duration
	now       func() time.Time
	schedules []Schedule
	mu        sync.Mutex
	wg        sync.WaitGroup
	log       logger.Logger
}

// NewScheduler builds the collection, health check and weekly summary
// schedules from settings.
func NewScheduler(settings *conf.Settings, runner Runner) (*Scheduler, error) {
	s := &Scheduler{
		runner: runner,
		loc:    settings.Location(),
		tick:   defaultTick,
		now:    time.Now,
		log:    GetLogger().Module("scheduler"),
	}

	for _, clock := range settings.Schedule.CollectionTimes {
		if err := s.addClock(JobCollect, clock, time.Sunday, false); err != nil {
			return nil, err
		}
	}
	if settings.Schedule.HealthCheckTime != "" {
		if err := s.addClock(JobHealth, settings.Schedule.HealthCheckTime, time.Sunday, false); err != nil {
			return nil, err
		}
	}
	if settings.Schedule.SummaryDay != "" {
		weekday, err := conf.ParseWeekday(settings.Schedule.SummaryDay)
		if err != nil {
			return nil, scheduleError(err, "summary_day", settings.Schedule.SummaryDay)
		}
		if err := s.addClock(JobSummary, settings.Schedule.SummaryTime, weekday, true); err != nil {
			return nil, err
		}
	}

	if len(s.schedules) == 0 {
		return nil, errors.Newf("no schedules configured").
			Component("orchestrator").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return s, nil
}

func (s *Scheduler) addClock(kind JobKind, clock string, weekday time.Weekday, weekly bool) error {
	hour, minute, err := conf.ParseClock(clock)
	if err != nil {
		return scheduleError(err, string(kind), clock)
	}
	s.AddSchedule(kind, hour, minute, weekday, weekly)
	return nil
}

func scheduleError(err error, key, value string) error {
	return errors.New(err).
		Component("orchestrator").
		Category(errors.CategoryConfiguration).
		Context("schedule", key).
		Context("value", value).
		Build()
}

// AddSchedule adds a job. Daily jobs ignore weekday.
func (s *Scheduler) AddSchedule(kind JobKind, hour, minute int, weekday time.Weekday, weekly bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.schedules = append(s.schedules, Schedule{
		Kind:     kind,
		Hour:     hour,
		Minute:   minute,
		Weekday:  weekday,
		IsWeekly: weekly,
		NextRun:  nextRun(s.now().In(s.loc), hour, minute, weekday, weekly),
	})
}

// Schedules returns a copy of the configured jobs.
func (s *Scheduler) Schedules() []Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Schedule, len(s.schedules))
	copy(out, s.schedules)
	return out
}

// Run blocks until ctx is done, then waits for running jobs to return.
// Jobs receive ctx, so shutdown also aborts a pending retry delay.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for _, sc := range s.Schedules() {
		s.log.Info("job scheduled",
			logger.String("job", string(sc.Kind)),
			logger.Time("next_run", sc.NextRun))
	}

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			s.log.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			s.checkSchedules(ctx, s.now())
		}
	}
}

// checkSchedules starts every job whose slot has come. Slots more than
// missedAfter in the past are skipped, never caught up.
func (s *Scheduler) checkSchedules(ctx context.Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now = now.In(s.loc)
	for i := range s.schedules {
		sc := &s.schedules[i]
		if now.Before(sc.NextRun) {
			continue
		}

		if late := now.Sub(sc.NextRun); late > missedAfter {
			s.log.Warn("missed scheduled job",
				logger.String("job", string(sc.Kind)),
				logger.Time("scheduled", sc.NextRun),
				logger.Duration("late", late))
		} else {
			s.dispatch(ctx, sc.Kind)
		}

		sc.LastRun = now
		sc.NextRun = nextRun(now, sc.Hour, sc.Minute, sc.Weekday, sc.IsWeekly)
	}
}

func (s *Scheduler) dispatch(ctx context.Context, kind JobKind) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runJob(ctx, kind)
	}()
}

func (s *Scheduler) runJob(ctx context.Context, kind JobKind) {
	switch kind {
	case JobCollect:
		if _, err := s.runner.RunCycle(ctx, TriggerSchedule); err != nil && !errors.Is(err, ErrCycleRunning) {
			s.log.Error("scheduled collection cycle failed", logger.Error(err))
		}
	case JobHealth:
		s.runner.CheckHealth(ctx)
	case JobSummary:
		if err := s.runner.SendWeeklySummary(ctx); err != nil {
			s.log.Warn("scheduled weekly summary failed", logger.Error(err))
		}
	default:
		s.log.Warn("unknown job kind", logger.String("job", string(kind)))
	}
}

// nextRun returns the first slot strictly after now. now carries the
// schedule location.
func nextRun(now time.Time, hour, minute int, weekday time.Weekday, weekly bool) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())

	if weekly {
		days := int(weekday - next.Weekday())
		if days < 0 || (days == 0 && !next.After(now)) {
			days += 7
		}
		return next.AddDate(0, 0, days)
	}

	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
