package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/iurnickita/squaresync/internal/notify/config"
)

func TestNewNotifierDisabled(t *testing.T) {
	notifier, err := NewNotifier(config.Config{})
	require.NoError(t, err)
	require.Nil(t, notifier)
}

// startRabbitMQ поднимает RabbitMQ в контейнере и возвращает AMQP URL
func startRabbitMQ(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3-management",
			ExposedPorts: []string{"5672/tcp"},
			Env: map[string]string{
				"RABBITMQ_DEFAULT_USER": "guest",
				"RABBITMQ_DEFAULT_PASS": "guest",
			},
			WaitingFor: wait.ForLog("Server startup complete"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate rabbitmq container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5672")
	require.NoError(t, err)

	return fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())
}

func TestPublishDailyReport(t *testing.T) {
	url := startRabbitMQ(t)
	cfg := config.Config{URL: url, Exchange: "squaresync.reports", RoutingKey: "reports.daily"}

	notifier, err := NewNotifier(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { notifier.Close() })

	// отдельное соединение-подписчик
	conn, err := amqp.Dial(url)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	ch, err := conn.Channel()
	require.NoError(t, err)

	queue, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(queue.Name, "reports.*", cfg.Exchange, false, nil))
	deliveries, err := ch.Consume(queue.Name, "", true, true, false, false, nil)
	require.NoError(t, err)

	msg := DailyReportMessage{
		RangeType: "last_24_hours",
		BeginISO:  "2024-05-01T08:30:00.000Z",
		EndISO:    "2024-05-02T08:30:00.000Z",
		Report:    "Resumen de ventas (últimas 24 horas):",
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, notifier.PublishDailyReport(ctx, msg))

	select {
	case delivery := <-deliveries:
		require.Equal(t, "application/json", delivery.ContentType)
		var got DailyReportMessage
		require.NoError(t, json.Unmarshal(delivery.Body, &got))
		require.Equal(t, msg, got)
	case <-time.After(10 * time.Second):
		t.Fatal("daily report was not delivered")
	}
}
