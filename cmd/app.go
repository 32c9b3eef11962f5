package cmd

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/LovationAdmin/financas-api/config"
	"github.com/LovationAdmin/financas-api/events"
	"github.com/LovationAdmin/financas-api/repository"
)

// openRepository returns the configured backend and a close func. Postgres is
// migrated before use.
func openRepository(c *config.Config) (repository.Repository, func() error, error) {
	if c.DataBackend == config.BackendMemory {
		slog.Warn("using the in-memory backend: data is lost on restart")
		return repository.NewMemory(), func() error { return nil }, nil
	}

	db, err := config.InitDB(c.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("database connected")
	if err := config.RunMigrations(db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return repository.NewPostgres(db), db.Close, nil
}

func openDB(c *config.Config) (*sql.DB, error) {
	if c.DataBackend != config.BackendPostgres {
		return nil, fmt.Errorf("migrations need the postgres backend, got %q", c.DataBackend)
	}
	return config.InitDB(c.DatabaseURL)
}

// openBroker connects to AMQP when it is configured. It returns nil without
// an error when AMQP_URL is empty.
func openBroker(c *config.Config) (*events.AMQPClient, error) {
	if c.AMQPURL == "" {
		return nil, nil
	}
	client, err := events.NewAMQPClient(c.AMQPURL, c.AMQPExchange, c.AMQPQueue)
	if err != nil {
		return nil, fmt.Errorf("connect to amqp: %w", err)
	}
	return client, nil
}
