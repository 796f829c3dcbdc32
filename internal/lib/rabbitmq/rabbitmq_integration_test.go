package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRabbitMQ(ctx context.Context, t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test: skipped in short mode")
	}
	if url := os.Getenv("TEST_RABBITMQ_URL"); url != "" {
		return url
	}

	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3-management",
		ExposedPorts: []string{"5672/tcp"},
		Env: map[string]string{
			"RABBITMQ_DEFAULT_USER": "guest",
			"RABBITMQ_DEFAULT_PASS": "guest",
		},
		WaitingFor: wait.ForListeningPort("5672/tcp").WithStartupTimeout(2 * time.Minute),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate rabbitmq container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5672/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())
}

func TestPublishAndConsume(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	conn, err := Connect(setupRabbitMQ(ctx, t), 5, time.Second)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	ch, err := SetupChannel(conn, GetNotificationQueues())
	require.NoError(t, err)
	defer func() { _ = ch.Close() }()

	type msg struct {
		Subject string `json:"subject"`
	}
	got := make(chan msg, 1)
	var attempts atomic.Int32
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	err = ConsumerMessage(ctx, ch, NotifyQueue, log, func(_ context.Context, body []byte) error {
		if attempts.Add(1) == 1 {
			return errors.New("temporary failure")
		}
		var m msg
		if err := json.Unmarshal(body, &m); err != nil {
			return err
		}
		got <- m
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, PublishMessage(ch, NotificationsExchange, NotifyRoutingKey, msg{Subject: "hello"}))

	select {
	case m := <-got:
		assert.Equal(t, "hello", m.Subject)
		assert.Equal(t, int32(2), attempts.Load())
	case <-ctx.Done():
		t.Fatal("timeout waiting for message")
	}
}
