// Package deployamqp announces finished deployments on a RabbitMQ exchange.
package deployamqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/rabbitmq/amqp091-go"

	"github.com/k11v/sitegen/internal/deploy"
)

var _ deploy.Broker = (*Broker)(nil)

const RoutingKey = "deployment.completed"

// Config holds the broker configuration.
type Config struct {
	ConnectionString string `env:"CONNECTION_STRING"` // optional, events are off when empty
	Exchange         string `env:"EXCHANGE"`          // default: "sitegen.deployments"
}

func (c *Config) ExchangeName() string {
	e := c.Exchange
	if e == "" {
		e = "sitegen.deployments"
	}
	return e
}

// Broker publishes events to a durable fanout exchange.
// Every call dials its own connection.
type Broker struct {
	connectionString string
	exchange         string
	log              *slog.Logger
}

func NewBroker(config *Config, log *slog.Logger) *Broker {
	return &Broker{
		connectionString: config.ConnectionString,
		exchange:         config.ExchangeName(),
		log:              log.With("component", "broker"),
	}
}

// DeclareExchange declares the broker's exchange on ch.
func (b *Broker) DeclareExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(
		b.exchange, // name
		"fanout",   // kind
		true,       // durable
		false,      // autoDelete
		false,      // internal
		false,      // noWait
		nil,        // args
	)
}

func (b *Broker) Publish(ctx context.Context, event *deploy.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("deployamqp.Broker: %w", err)
	}

	conn, err := amqp091.Dial(b.connectionString)
	if err != nil {
		return fmt.Errorf("deployamqp.Broker: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("deployamqp.Broker: %w", err)
	}
	defer func() {
		_ = ch.Close()
	}()

	if err = b.DeclareExchange(ch); err != nil {
		return fmt.Errorf("deployamqp.Broker: %w", err)
	}

	err = ch.PublishWithContext(
		ctx,
		b.exchange, // exchange
		RoutingKey, // key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    event.ID.String(),
			Timestamp:    event.CompletedAt,
			Type:         RoutingKey,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("deployamqp.Broker: %w", err)
	}

	b.log.Info("published event", "event_id", event.ID, "task", event.Task, "round", event.Round)
	return nil
}
