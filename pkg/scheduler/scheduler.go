// Package scheduler starts capture sessions at cron-scheduled times, e.g.
// a nightly logging run. One schedule is active at a time; replacing it
// recalculates the timer.
package scheduler

import (
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// NotifyFunc receives schedule notifications (task errors).
type NotifyFunc func(msg string)

// TaskFunc starts the scheduled work.
type TaskFunc func() error

// idleWait is how long the loop parks when no schedule is set; it wakes
// earlier on any schedule change.
const idleWait = 24 * time.Hour

type Scheduler struct {
	// OnError is called when a scheduled run fails. May be nil.
	OnError NotifyFunc

	task   TaskFunc
	parser cron.Parser

	mu       sync.Mutex
	schedule cron.Schedule
	expr     string
	nextRun  time.Time
	running  bool

	recalc chan struct{}
	stopc  chan struct{}
}

func New(task TaskFunc, onError NotifyFunc) *Scheduler {
	if task == nil {
		panic("task function cannot be nil")
	}
	return &Scheduler{
		OnError: onError,
		task:    task,
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour |
			cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		recalc: make(chan struct{}, 1),
		stopc:  make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	go s.loop()
}

func (s *Scheduler) Stop() {
	select {
	case <-s.stopc: // already closed
	default:
		close(s.stopc)
	}
}

// Set replaces the active schedule.
func (s *Scheduler) Set(cronExpr string) error {
	sh, err := s.parser.Parse(cronExpr)
	if err != nil {
		return pkgerrors.Wrapf(err, "invalid cron expression %q", cronExpr)
	}

	s.mu.Lock()
	s.schedule = sh
	s.expr = cronExpr
	s.nextRun = sh.Next(time.Now())
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"cron": cronExpr,
		"next": s.nextRun,
	}).Info("capture schedule set")
	s.kick()
	return nil
}

// Clear removes the schedule.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	s.schedule = nil
	s.expr = ""
	s.nextRun = time.Time{}
	s.mu.Unlock()

	logrus.Info("capture schedule cleared")
	s.kick()
}

// Next reports the configured expression and the next run time. A zero
// time means no schedule is set.
func (s *Scheduler) Next() (string, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expr, s.nextRun
}

func (s *Scheduler) kick() {
	select {
	case s.recalc <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop() {
	for {
		s.mu.Lock()
		sched := s.schedule
		next := s.nextRun
		s.mu.Unlock()

		wait := idleWait
		if sched != nil {
			wait = time.Until(next)
			if wait < 0 {
				wait = 0
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-s.stopc:
			timer.Stop()
			return
		case <-s.recalc:
			timer.Stop()
			continue
		case <-timer.C:
			if sched == nil {
				continue
			}
			if err := s.task(); err != nil {
				logrus.WithError(err).Error("scheduled capture start failed")
				if s.OnError != nil {
					s.OnError(err.Error())
				}
			}
			s.mu.Lock()
			if s.schedule != nil {
				s.nextRun = s.schedule.Next(time.Now())
			}
			s.mu.Unlock()
		}
	}
}
