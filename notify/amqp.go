package notify

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/warp/booking-engine/booking"
)

// Channel is the publishing half of *amqp.Channel.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQP publishes each request as JSON on a topic exchange. The routing key
// is the notification kind, e.g. "reservation.created".
type AMQP struct {
	conn     *amqp.Connection
	ch       Channel
	closer   func() error
	exchange string
}

// DialAMQP connects and declares a durable topic exchange.
func DialAMQP(url, exchange string) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQP{conn: conn, ch: ch, closer: ch.Close, exchange: exchange}, nil
}

// NewAMQP publishes on an existing channel. Close does not close it.
func NewAMQP(ch Channel, exchange string) *AMQP {
	return &AMQP{ch: ch, exchange: exchange}
}

func (a *AMQP) Notify(ctx context.Context, n booking.Notification) error {
	n = Stamp(n)
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	err = a.ch.PublishWithContext(ctx, a.exchange, string(n.Kind), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    n.ID,
		Timestamp:    n.RequestedAt,
		Type:         string(n.Kind),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", n.Kind, err)
	}
	return nil
}

func (a *AMQP) Close() error {
	if a.closer != nil {
		_ = a.closer()
	}
	if a.conn != nil {
		return a.conn.Close()
	}
	return nil
}
