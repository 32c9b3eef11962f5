package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/LovationAdmin/financas-api/events"
	"github.com/LovationAdmin/financas-api/services"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume the reminder queue and send emails",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.AMQPURL == "" {
			return fmt.Errorf("AMQP_URL is required to run the worker")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		mail := services.NewEmailService(cfg.ResendAPIKey, cfg.FromEmail, cfg.FrontendURL)
		return runWorker(ctx, services.ReminderHandler(mail))
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

// runWorker consumes until ctx is done, reconnecting with backoff when the
// broker connection drops.
func runWorker(ctx context.Context, handler func(context.Context, *events.Event) error) error {
	return reconnect(ctx, func(ctx context.Context) (bool, error) {
		return consumeOnce(ctx, handler)
	}, events.Backoff)
}

// reconnect calls consume until ctx is done or it fails with something other
// than a lost connection. The backoff starts over after a session that got
// connected.
func reconnect(ctx context.Context, consume func(context.Context) (bool, error), backoff func(int) time.Duration) error {
	attempt := 0
	for {
		connected, err := consume(ctx)
		if ctx.Err() != nil {
			slog.Info("worker stopped")
			return nil
		}
		if err != nil && !events.IsConnectionError(err) {
			return err
		}
		if connected {
			attempt = 0
		}
		wait := backoff(attempt)
		attempt++
		slog.Warn("amqp connection lost, reconnecting", "attempt", attempt, "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// consumeOnce runs one broker session. connected reports whether it got past
// dialing the broker.
func consumeOnce(ctx context.Context, handler func(context.Context, *events.Event) error) (connected bool, err error) {
	client, err := openBroker(cfg)
	if err != nil {
		return false, err
	}
	defer client.Close()
	err = client.Consume(ctx, handler)
	if errors.Is(err, context.Canceled) {
		return true, nil
	}
	return true, err
}
