package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loadwise/loadwise/modules"
	"github.com/loadwise/loadwise/pkg/application"
	"github.com/loadwise/loadwise/pkg/configuration"
	"github.com/loadwise/loadwise/pkg/eventbus"
)

func connectDB(ctx context.Context) (*pgxpool.Pool, error) {
	conf := configuration.Use()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		return nil, fmt.Errorf("db connect failed: %w", err)
	}
	return pool, nil
}

// loadApplication wires the module registry over a live pool so every
// embedded schema is registered before migrations run.
func loadApplication(ctx context.Context) (application.Application, *pgxpool.Pool, error) {
	conf := configuration.Use()
	pool, err := connectDB(ctx)
	if err != nil {
		return nil, nil, err
	}
	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		EventBus: eventbus.NewEventPublisher(conf.Logger()),
		Logger:   conf.Logger(),
	})
	if err := modules.Load(app, modules.BuiltInModules...); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return app, pool, nil
}
