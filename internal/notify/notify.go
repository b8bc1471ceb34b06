package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iurnickita/squaresync/internal/notify/config"
)

// Сообщение с текстом ежедневного отчета
type DailyReportMessage struct {
	RangeType string `json:"range_type"`
	BeginISO  string `json:"begin_iso"`
	EndISO    string `json:"end_iso"`
	Report    string `json:"report"`
}

type Notifier interface {
	PublishDailyReport(ctx context.Context, msg DailyReportMessage) error
	Close() error
}

type rabbitNotifier struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     config.Config
}

// NewNotifier returns nil without error when no broker is configured.
func NewNotifier(cfg config.Config) (Notifier, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &rabbitNotifier{conn: conn, channel: channel, cfg: cfg}, nil
}

func (n *rabbitNotifier) PublishDailyReport(ctx context.Context, msg DailyReportMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return n.channel.PublishWithContext(ctx,
		n.cfg.Exchange,   // exchange
		n.cfg.RoutingKey, // routing key
		false,            // mandatory
		false,            // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		})
}

func (n *rabbitNotifier) Close() error {
	if err := n.channel.Close(); err != nil {
		n.conn.Close()
		return err
	}
	return n.conn.Close()
}
