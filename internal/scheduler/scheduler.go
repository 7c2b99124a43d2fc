package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// RegistrationCounter counts users registered since a moment
type RegistrationCounter interface {
	CountRegisteredSince(ctx context.Context, since time.Time) (int, error)
}

// DigestMailer delivers the digest
type DigestMailer interface {
	SendDigest(to string, count int, since time.Time) error
}

// Scheduler runs the daily registration digest
type Scheduler struct {
	cron    *cron.Cron
	counter RegistrationCounter
	mailer  DigestMailer
	to      string
	window  time.Duration
	log     *logrus.Logger
	now     func() time.Time
}

// NewScheduler creates a scheduler. mailer may be nil, in which case the
// digest is only logged.
func NewScheduler(counter RegistrationCounter, mailer DigestMailer, to string, log *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		counter: counter,
		mailer:  mailer,
		to:      to,
		window:  24 * time.Hour,
		log:     log,
		now:     time.Now,
	}
}

// Start registers the digest job on spec and starts the cron loop
func (s *Scheduler) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := s.RunDigest(ctx); err != nil {
			s.log.Errorf("Registration digest failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid digest schedule %q: %w", spec, err)
	}
	s.cron.Start()
	s.log.Infof("Registration digest scheduled: %s", spec)
	return nil
}

// Stop stops the cron loop and waits for a running job
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunDigest counts registrations over the last window and reports them
func (s *Scheduler) RunDigest(ctx context.Context) error {
	since := s.now().Add(-s.window)
	count, err := s.counter.CountRegisteredSince(ctx, since)
	if err != nil {
		return err
	}

	s.log.WithField("count", count).Infof("Registrations since %s", since.Format(time.RFC3339))
	if s.mailer == nil || s.to == "" {
		return nil
	}
	return s.mailer.SendDigest(s.to, count, since)
}
