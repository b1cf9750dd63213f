package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rabbitmq/amqp091-go"

	"github.com/k11v/sitegen/internal/deploy/deployamqp"
	"github.com/k11v/sitegen/internal/deploy/deploys3"
	"github.com/k11v/sitegen/internal/run/runs3"
)

// config holds the setup configuration.
type config struct {
	S3   deploys3.Config   `envPrefix:"SITEGEN_S3_"`
	AMQP deployamqp.Config `envPrefix:"SITEGEN_AMQP_"`
}

// main creates the bucket and the exchange the server's optional side channels use.
func main() {
	run := func() int {
		ctx := context.Background()
		log := slog.New(slog.NewTextHandler(os.Stderr, nil))

		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		var cfg config
		if err := env.ParseWithOptions(&cfg, env.Options{Environment: env.ToMap(os.Environ())}); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}

		if cfg.S3.ConnectionString != "" {
			client, err := runs3.NewClient(cfg.S3.ConnectionString)
			if err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
				return 1
			}
			if err = runs3.Setup(ctx, client, cfg.S3.BucketName()); err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
				return 1
			}
			log.Info("bucket ready", "bucket", cfg.S3.BucketName())
		}

		if cfg.AMQP.ConnectionString != "" {
			if err := declareExchange(&cfg.AMQP, log); err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
				return 1
			}
			log.Info("exchange ready", "exchange", cfg.AMQP.ExchangeName())
		}

		return 0
	}
	os.Exit(run())
}

func declareExchange(cfg *deployamqp.Config, log *slog.Logger) error {
	conn, err := amqp091.Dial(cfg.ConnectionString)
	if err != nil {
		return err
	}
	defer func() {
		_ = conn.Close()
	}()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() {
		_ = ch.Close()
	}()

	return deployamqp.NewBroker(cfg, log).DeclareExchange(ch)
}
