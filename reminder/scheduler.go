package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/booking-engine/booking"
)

// Source is the read side of the reservation store.
type Source interface {
	List(ctx context.Context) ([]booking.Reservation, error)
}

// StaffSource supplies digest recipients on every run.
type StaffSource interface {
	Addresses(ctx context.Context) ([]string, error)
}

// Result summarizes one run.
type Result struct {
	Target    booking.Date
	Reminders int
	Digests   int
	Failed    int
	Skipped   bool // already sent for Target by this process
}

// Scheduler periodically sends reminders for today + DaysAhead. A target
// date is done once a run delivers everything; until then later runs retry
// only the notifications that failed.
type Scheduler struct {
	Source   Source
	Notifier booking.Notifier

	// Digest recipients: the fixed list plus Staff, read on every run.
	StaffRecipients []string
	Staff           StaffSource // optional

	DaysAhead       int
	CheckInterval   time.Duration
	Enabled         bool

	Location *time.Location
	Clock    func() time.Time
	Logger   *zap.Logger

	sentMu    sync.Mutex
	done      map[booking.Date]bool
	delivered map[booking.Date]map[string]bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewScheduler checks hourly for tomorrow's reservations.
func NewScheduler(source Source, notifier booking.Notifier, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		Source:        source,
		Notifier:      notifier,
		DaysAhead:     1,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Location:      time.UTC,
		Clock:         time.Now,
		Logger:        logger.Named("reminder"),
		done:          make(map[booking.Date]bool),
		delivered:     make(map[booking.Date]map[string]bool),
	}
}

// Start begins the scheduler. It runs once immediately.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info("scheduler disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.Logger.Info("scheduler started",
		zap.Duration("interval", s.CheckInterval),
		zap.Int("days_ahead", s.DaysAhead),
	)
}

// Stop stops the scheduler and waits for an in-flight run.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.Logger.Info("scheduler stopped")
	}
}

func (s *Scheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	s.runLogged(ctx)
	for {
		select {
		case <-ticker.C:
			s.runLogged(ctx)
		case <-stop:
			return
		}
	}
}

func (s *Scheduler) runLogged(ctx context.Context) {
	if _, err := s.RunNow(ctx); err != nil {
		s.Logger.Error("reminder run failed", zap.Error(err))
	}
}

// Target is the date reminders are sent for right now.
func (s *Scheduler) Target() booking.Date {
	return booking.Today(s.Clock, s.Location).AddDays(s.DaysAhead)
}

// RunNow sends for the current target unless it is done. Notifications a
// previous run delivered for the same target are not sent again.
func (s *Scheduler) RunNow(ctx context.Context) (Result, error) {
	target := s.Target()

	s.sentMu.Lock()
	defer s.sentMu.Unlock()
	if s.done[target] {
		return Result{Target: target, Skipped: true}, nil
	}
	delivered := s.delivered[target]
	if delivered == nil {
		delivered = make(map[string]bool)
		s.delivered[target] = delivered
	}

	res, err := s.send(ctx, target, delivered)
	if err != nil {
		return res, err
	}
	if res.Failed == 0 {
		s.done[target] = true
		delete(s.delivered, target)
	}
	return res, nil
}

// Send delivers the reminders for target unconditionally. A failed
// notification is logged and counted; only a store failure is returned.
func (s *Scheduler) Send(ctx context.Context, target booking.Date) (Result, error) {
	return s.send(ctx, target, nil)
}

// send skips keys in delivered and records new successes there. A nil map
// sends everything.
func (s *Scheduler) send(ctx context.Context, target booking.Date, delivered map[string]bool) (Result, error) {
	res := Result{Target: target}

	reservations, err := s.Source.List(ctx)
	if err != nil {
		return res, fmt.Errorf("list reservations: %w", err)
	}

	for _, n := range Plan(reservations, target, s.staffRecipients(ctx), s.Clock()) {
		key := deliveryKey(n)
		if delivered[key] {
			continue
		}
		if err := s.Notifier.Notify(ctx, n); err != nil {
			res.Failed++
			s.Logger.Error("notification failed",
				zap.String("kind", string(n.Kind)),
				zap.Strings("recipients", n.Recipients),
				zap.Error(err),
			)
			continue
		}
		if delivered != nil {
			delivered[key] = true
		}
		switch n.Kind {
		case booking.KindReservationReminder:
			res.Reminders++
		case booking.KindStaffDigest:
			res.Digests++
		}
	}

	s.Logger.Info("reminders sent",
		zap.Stringer("target", target),
		zap.Int("reminders", res.Reminders),
		zap.Int("digests", res.Digests),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// staffRecipients falls back to the fixed list when Staff cannot be read.
func (s *Scheduler) staffRecipients(ctx context.Context) []string {
	out := append([]string(nil), s.StaffRecipients...)
	if s.Staff == nil {
		return out
	}
	listed, err := s.Staff.Addresses(ctx)
	if err != nil {
		s.Logger.Error("staff mail list unavailable", zap.Error(err))
		return out
	}
	return append(out, listed...)
}

// NextRunTime returns when the next scheduled check will occur.
func (s *Scheduler) NextRunTime() time.Time {
	return s.Clock().Add(s.CheckInterval)
}
