// Package scheduler runs the daily assignment reminder check.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/uni-helper/internal/model"
)

// Store lists and stamps assignments needing reminders.
type Store interface {
	DueForReminder(ctx context.Context, within time.Duration) ([]model.Assignment, error)
	MarkReminded(ctx context.Context, id int64) error
}

// Notifier delivers a reminder.
type Notifier interface {
	SendReminder(ctx context.Context, a model.Assignment) error
}

// Scheduler fires RunOnce once a day at a fixed UTC time.
type Scheduler struct {
	store    Store
	notifier Notifier
	hour     int
	minute   int
	within   time.Duration
	log      zerolog.Logger
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Scheduler. An unparseable reminder time falls back to
// 09:00.
func New(st Store, n Notifier, cfg model.ReminderConfig, logger zerolog.Logger) *Scheduler {
	logger = logger.With().Str("module", "scheduler").Logger()

	hour, minute, err := model.ParseClock(cfg.Time)
	if err != nil {
		logger.Warn().Err(err).Msg("Using default reminder time 09:00")
		hour, minute = 9, 0
	}
	hours := cfg.HoursBefore
	if hours <= 0 {
		hours = 24
	}

	return &Scheduler{
		store:    st,
		notifier: n,
		hour:     hour,
		minute:   minute,
		within:   time.Duration(hours) * time.Hour,
		log:      logger,
		now:      time.Now,
	}
}

// NextRun returns the first hour:minute UTC strictly after now.
func NextRun(now time.Time, hour, minute int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// RunOnce sends a reminder for every pending assignment due within the
// window and not yet reminded. A failed send leaves the assignment
// unmarked so the next run retries it.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	due, err := s.store.DueForReminder(ctx, s.within)
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		s.log.Info().Msg("No reminders to send")
		return 0, nil
	}

	s.log.Info().Int("count", len(due)).Msg("Sending assignment reminders")

	sent := 0
	for _, a := range due {
		logger := s.log.With().Int64("assignment", a.ID).Str("title", a.Title).Logger()

		if err := s.notifier.SendReminder(ctx, a); err != nil {
			logger.Error().Err(err).Msg("Sending reminder failed")
			continue
		}
		if err := s.store.MarkReminded(ctx, a.ID); err != nil {
			logger.Error().Err(err).Msg("Marking assignment reminded failed")
			continue
		}
		sent++
	}
	return sent, nil
}

// Start launches the daily loop. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()

	s.log.Info().Str("at", NextRun(s.now(), s.hour, s.minute).Format(time.RFC3339)).
		Msg("Reminder scheduler started")
}

// Stop ends the loop and waits for an in-progress run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		wait := NextRun(s.now(), s.hour, s.minute).Sub(s.now())
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if n, err := s.RunOnce(ctx); err != nil {
			s.log.Error().Err(err).Msg("Reminder check failed")
		} else {
			s.log.Info().Int("sent", n).Msg("Reminder check complete")
		}
	}
}
