// Package asynqadp schedules the core's background-task plane (periodic
// event-store flush/recovery and product-cache warm-up/adaptive management)
// on asynq, against the same Redis instance the KV adapter uses, instead of
// raw goroutine tickers running loose in the process.
package asynqadp

import (
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	TaskEventFlush    = "event:flush"
	TaskEventRecovery = "event:recovery"
	TaskCacheWarmup   = "cache:warmup"
	TaskCacheAdaptive = "cache:adaptive"
)

// Scheduler registers the core's periodic background tasks on a cron-style
// schedule against asynq, so a crashed worker process resumes on restart
// instead of silently dropping its next tick.
type Scheduler struct {
	sched *asynq.Scheduler
}

// NewScheduler constructs a Scheduler against redisURL (same DSN shape as
// the KV adapter's connection string).
func NewScheduler(redisURL string) (*Scheduler, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("op=asynq.NewScheduler: %w", err)
	}
	return &Scheduler{sched: asynq.NewScheduler(opt, nil)}, nil
}

// Register adds a periodic entry running taskType on cronSpec (five-field
// cron syntax or an "@every <duration>" descriptor). Returns the entry ID,
// which callers may ignore.
func (s *Scheduler) Register(cronSpec, taskType string) (string, error) {
	task := asynq.NewTask(taskType, nil)
	return s.sched.Register(cronSpec, task)
}

// Run blocks processing the schedule until the process is asked to stop.
func (s *Scheduler) Run() error { return s.sched.Run() }

// Shutdown stops the scheduler.
func (s *Scheduler) Shutdown() { s.sched.Shutdown() }
