package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/warp/booking-engine/booking"
)

// Log writes each request as one structured log line.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger.Named("notify")}
}

func (l *Log) Notify(_ context.Context, n booking.Notification) error {
	n = Stamp(n)
	fields := []zap.Field{
		zap.String("id", n.ID),
		zap.String("kind", string(n.Kind)),
		zap.Strings("recipients", n.Recipients),
	}
	if n.TargetDate != "" {
		fields = append(fields, zap.String("target_date", n.TargetDate))
	}
	if n.Reservation != nil {
		fields = append(fields,
			zap.Int("reservation_id", n.Reservation.ID),
			zap.String("name", n.Reservation.DisplayName()),
		)
	}
	if len(n.Reservations) > 0 {
		fields = append(fields, zap.Int("reservations", len(n.Reservations)))
	}
	l.logger.Info("notification requested", fields...)
	return nil
}
