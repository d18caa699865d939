/*
app.go - Dependency wiring shared by the binaries

PURPOSE:
  Turns a config.Config into the stores, notifiers, booking service and
  reminder scheduler. cmd/server and cmd/remind both start from here so a
  setting means the same thing in each.

STARTUP SEQUENCE:
  1. Resolve the timezone
  2. Open the data directory (flock + atomic rename backend)
  3. Build the stores (reservations, blocked dates, credentials, staff)
  4. Build the notifier fan-out (log, outbox, amqp as configured)
  5. Assemble booking.Service and reminder.Scheduler

SEE ALSO:
  - config/config.go: settings
  - cmd/server/main.go, cmd/remind/main.go: callers
*/
package app

import (
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/config"
	"github.com/warp/booking-engine/notify"
	"github.com/warp/booking-engine/reminder"
	"github.com/warp/booking-engine/store"
	"github.com/warp/booking-engine/store/sqlite"
)

// App holds the wired components. Close releases the outbox database and
// the broker connection.
type App struct {
	Config       config.Config
	Location     *time.Location
	Reservations *store.Reservations
	Blocked      *store.BlockedDates
	Credentials  *store.Credentials
	Staff        *store.StaffEmails
	Notifier     booking.Notifier
	Service      *booking.Service
	Reminders    *reminder.Scheduler
	Logger       *zap.Logger

	closers []io.Closer
}

// Build wires everything cfg describes.
func Build(cfg config.Config, logger *zap.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	disk, err := store.NewDisk(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	opts := store.Options{Location: loc, Logger: logger.Named("store")}

	a := &App{
		Config:       cfg,
		Location:     loc,
		Reservations: store.NewReservations(disk, cfg.ReservationsFile, opts),
		Blocked:      store.NewBlockedDates(disk, cfg.BlockedFile, opts),
		Credentials:  store.NewCredentials(disk, cfg.CredentialsFile, opts),
		Staff:        store.NewStaffEmails(disk, cfg.StaffEmailsFile, opts),
		Logger:       logger,
	}

	notifier, err := a.buildNotifier()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Notifier = notifier

	svc := booking.NewService(a.Reservations, a.Blocked, notifier)
	svc.Policy = cfg.Policy()
	svc.AdminRecipients = cfg.AdminEmails
	svc.BlockReservedDates = cfg.BlockReservedDates
	svc.Location = loc
	svc.Logger = logger.Named("booking")
	a.Service = svc

	sched := reminder.NewScheduler(a.Reservations, notifier, logger)
	sched.StaffRecipients = cfg.StaffEmails
	sched.Staff = a.Staff
	sched.DaysAhead = cfg.ReminderDaysAhead
	sched.CheckInterval = cfg.ReminderInterval
	sched.Enabled = cfg.ReminderEnabled
	sched.Location = loc
	a.Reminders = sched

	return a, nil
}

func (a *App) buildNotifier() (booking.Notifier, error) {
	sinks := notify.Multi{notify.NewLog(a.Logger)}

	if a.Config.NotifierEnabled("outbox") {
		ob, err := sqlite.New(a.Config.OutboxFile())
		if err != nil {
			return nil, fmt.Errorf("open outbox: %w", err)
		}
		a.closers = append(a.closers, ob)
		sinks = append(sinks, notify.NewOutbox(ob))
		a.Logger.Info("outbox notifier enabled", zap.String("path", a.Config.OutboxFile()))
	}

	if a.Config.NotifierEnabled("amqp") {
		pub, err := notify.DialAMQP(a.Config.AMQPURL, a.Config.AMQPExchange)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pub)
		sinks = append(sinks, pub)
		a.Logger.Info("amqp notifier enabled", zap.String("exchange", a.Config.AMQPExchange))
	}

	return sinks, nil
}

// Close releases external resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
