package service

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
)

// Scheduler wraps cron-based jobs. A panicking job is recovered and logged.
type Scheduler struct {
	cron *cron.Cron
}

func NewScheduler(loc *time.Location, logger *log.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(logger.WithPrefix("cron").StandardLog())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithSeconds(),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
	}
}

// ScheduleDaily registers a daily job at hour:minute.
func (s *Scheduler) ScheduleDaily(hour, minute int, job func()) (cron.EntryID, error) {
	spec, err := DailySpec(hour, minute)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(spec, job)
}

// ScheduleInterval registers a periodic job every given duration.
func (s *Scheduler) ScheduleInterval(interval time.Duration, job func()) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be positive")
	}
	seconds := max(int(interval.Seconds()), 1)
	return s.cron.AddFunc(fmt.Sprintf("@every %ds", seconds), job)
}

func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// DailySpec converts a time of day into a seconds-enabled cron spec.
func DailySpec(hour, minute int) (string, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid time of day %02d:%02d", hour, minute)
	}
	// second minute hour dom month dow
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}
