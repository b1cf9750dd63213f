package deployamqp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/k11v/sitegen/internal/deploy"
)

func TestBroker(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	t.Run("publishes events to bound queues", func(t *testing.T) {
		ctx := context.Background()
		broker, connectionString := NewTestBroker(t, ctx)

		// Bind a queue before publishing so the fanout has somewhere to deliver.
		conn, err := amqp091.Dial(connectionString)
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}
		defer func() {
			_ = conn.Close()
		}()
		ch, err := conn.Channel()
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}
		if err = broker.DeclareExchange(ch); err != nil {
			t.Fatalf("didn't want %q", err)
		}
		q, err := ch.QueueDeclare("", false, true, true, false, nil)
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}
		if err = ch.QueueBind(q.Name, "", broker.exchange, false, nil); err != nil {
			t.Fatalf("didn't want %q", err)
		}
		deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}

		event := &deploy.Event{
			ID:          uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000"),
			Task:        "counter-app",
			Round:       1,
			RepoURL:     "https://github.com/octocat/counter-app",
			CommitSHA:   "0123456789abcdef0123456789abcdef01234567",
			PagesURL:    "https://octocat.github.io/counter-app/",
			CompletedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		}
		if err = broker.Publish(ctx, event); err != nil {
			t.Fatalf("didn't want %q", err)
		}

		select {
		case d := <-deliveries:
			if d.MessageId != event.ID.String() {
				t.Errorf("got message id %q, want %q", d.MessageId, event.ID)
			}
			if d.RoutingKey != RoutingKey {
				t.Errorf("got routing key %q, want %q", d.RoutingKey, RoutingKey)
			}
			var got deploy.Event
			if err = json.Unmarshal(d.Body, &got); err != nil {
				t.Fatalf("didn't want %q", err)
			}
			if !reflect.DeepEqual(&got, event) {
				t.Logf("got %v", &got)
				t.Fatalf("want %v", event)
			}
		case <-time.After(10 * time.Second):
			t.Fatal("didn't receive the event")
		}
	})
}

func NewTestBroker(tb testing.TB, ctx context.Context) (*Broker, string) {
	tb.Helper()

	username := "guest"
	password := "guest"

	req := testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: "rabbitmq:4.0-alpine",
			Env: map[string]string{
				"RABBITMQ_DEFAULT_USER": username,
				"RABBITMQ_DEFAULT_PASS": password,
			},
			ExposedPorts: []string{"5672/tcp"},
			WaitingFor:   wait.ForLog(".*Server startup complete.*").AsRegexp().WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	}

	c, err := testcontainers.GenericContainer(ctx, req)
	testcontainers.CleanupContainer(tb, c)
	if err != nil {
		tb.Fatalf("didn't want %q", err)
	}

	endpoint, err := c.PortEndpoint(ctx, nat.Port("5672/tcp"), "")
	if err != nil {
		tb.Fatalf("didn't want %q", err)
	}

	connectionString := fmt.Sprintf("amqp://%s:%s@%s", username, password, endpoint)

	config := &Config{ConnectionString: connectionString}
	return NewBroker(config, slog.New(slog.NewTextHandler(io.Discard, nil))), connectionString
}
