/*
main.go - Outbox inspection tool

PURPOSE:
  Lists undelivered notification requests and acknowledges them by id.
  A mailer script can pipe `list` output, send, then call `ack`.

USAGE:
  outbox [-env .env] list [-limit N]   one JSON notification per line
  outbox [-env .env] ack <id>...       mark delivered

The database path comes from BOOKING_DATA_DIR and BOOKING_OUTBOX_PATH.
*/
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/warp/booking-engine/config"
	"github.com/warp/booking-engine/store/sqlite"
)

func main() {
	envFile := flag.String("env", ".env", "optional .env file")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: outbox [-env file] list [-limit N] | ack <id>...")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(*envFile, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "outbox:", err)
		os.Exit(1)
	}
}

func run(envFile string, args []string) error {
	if len(args) == 0 {
		flag.Usage()
		return fmt.Errorf("missing command")
	}

	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	ob, err := sqlite.New(cfg.OutboxFile())
	if err != nil {
		return err
	}
	defer ob.Close()

	ctx := context.Background()
	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("list", flag.ContinueOnError)
		limit := fs.Int("limit", 0, "maximum rows (0 = all)")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		msgs, err := ob.Pending(ctx, *limit)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		for _, m := range msgs {
			if err := enc.Encode(m.Notification); err != nil {
				return err
			}
		}
		return nil

	case "ack":
		if len(args) < 2 {
			return fmt.Errorf("ack needs at least one id")
		}
		for _, id := range args[1:] {
			if err := ob.MarkDelivered(ctx, id); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}
