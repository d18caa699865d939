/*
main.go - One-shot reminder run

PURPOSE:
  Sends the reminders and the staff digest for one date and exits. Meant
  for cron on hosts that do not run the in-process scheduler. Unlike the
  scheduler it does not remember earlier runs: invoking it twice sends twice.

COMMAND-LINE FLAGS:
  -env          Optional .env file (default: .env)
  -days-ahead   Target = today + N (default: BOOKING_REMINDER_DAYS_AHEAD)
  -date         Explicit target YYYY-MM-DD, wins over -days-ahead

EXIT CODES:
  0  sent (individual notification failures are logged, not fatal)
  1  configuration or store failure

EXAMPLES:
  # Tomorrow's reminders
  ./remind

  # A specific date, published to the broker too
  BOOKING_NOTIFIERS=log,amqp ./remind -date=2025-03-20
*/
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/warp/booking-engine/app"
	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/config"
)

func main() {
	envFile := flag.String("env", ".env", "optional .env file")
	daysAhead := flag.Int("days-ahead", -1, "target = today + N days")
	date := flag.String("date", "", "explicit target date (YYYY-MM-DD)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	a, err := app.Build(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize", zap.Error(err))
	}
	defer a.Close()

	if *daysAhead >= 0 {
		a.Reminders.DaysAhead = *daysAhead
	}
	target := a.Reminders.Target()
	if *date != "" {
		target, err = booking.ValidateDate("date", *date)
		if err != nil {
			logger.Fatal("invalid -date", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res, err := a.Reminders.Send(ctx, target)
	if err != nil {
		logger.Fatal("reminder run failed", zap.Stringer("target", target), zap.Error(err))
	}
	logger.Info("done",
		zap.Stringer("target", res.Target),
		zap.Int("reminders", res.Reminders),
		zap.Int("digests", res.Digests),
		zap.Int("failed", res.Failed),
	)
}
