// Package worker bootstraps the River job queue and its periodic jobs.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/voltio/gridbase/internal/model"
	"gorm.io/gorm"
)

// QueueCheckArgs is a trivial job used to validate queue wiring at startup.
type QueueCheckArgs struct{}

// Kind returns the unique job type identifier for queue check jobs.
func (QueueCheckArgs) Kind() string { return "queue_check" }

type queueCheckWorker struct {
	river.WorkerDefaults[QueueCheckArgs]
	log *slog.Logger
}

func (w *queueCheckWorker) Work(_ context.Context, _ *river.Job[QueueCheckArgs]) error {
	w.log.Debug("queue check job executed")
	return nil
}

// TokenPruneArgs is a periodic job that removes expired and revoked refresh
// tokens so the table does not grow without bound.
type TokenPruneArgs struct{}

// Kind returns the unique job type identifier for token prune jobs.
func (TokenPruneArgs) Kind() string { return "refresh_token_prune" }

type tokenPruneWorker struct {
	river.WorkerDefaults[TokenPruneArgs]
	db  *gorm.DB
	log *slog.Logger
}

func (w *tokenPruneWorker) Work(ctx context.Context, _ *river.Job[TokenPruneArgs]) error {
	res := w.db.WithContext(ctx).
		Where("expires_at < ? OR revoked_at IS NOT NULL", time.Now().UTC()).
		Delete(&model.RefreshToken{})
	if res.Error != nil {
		return fmt.Errorf("prune refresh tokens: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		w.log.Info("pruned refresh tokens", "count", res.RowsAffected)
	}
	return nil
}

// Queue is the interface exposed by both the real River client and noopQueue.
type Queue interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Client wraps river.Client and exposes a Start/Stop lifecycle.
type Client struct {
	client *river.Client[pgx.Tx]
	log    *slog.Logger
}

// Start begins processing queued jobs.
func (c *Client) Start(ctx context.Context) error { return c.client.Start(ctx) }

// Stop gracefully shuts down the worker client.
func (c *Client) Stop(ctx context.Context) error { return c.client.Stop(ctx) }

// noopQueue is used when River is unavailable (e.g. DB_DRIVER=sqlite).
type noopQueue struct{ log *slog.Logger }

func (n *noopQueue) Start(_ context.Context) error {
	n.log.Info("worker queue disabled (sqlite driver — River requires postgres)")
	return nil
}
func (n *noopQueue) Stop(_ context.Context) error { return nil }

// New creates a queue implementation appropriate for the given driver.
//   - "postgres": returns a fully-functional River client backed by pool,
//     with the token-prune job scheduled hourly.
//   - anything else: returns a no-op queue that logs a startup notice.
//
// pool may be nil when driver != "postgres".
func New(ctx context.Context, pool *pgxpool.Pool, gdb *gorm.DB, driver string, concurrency int, log *slog.Logger) (Queue, error) {
	if driver != "postgres" {
		return &noopQueue{log: log}, nil
	}
	workers := river.NewWorkers()
	river.AddWorker(workers, &queueCheckWorker{log: log})
	river.AddWorker(workers, &tokenPruneWorker{db: gdb, log: log})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: concurrency},
		},
		Workers: workers,
		Logger:  log,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(time.Hour),
				func() (river.JobArgs, *river.InsertOpts) {
					return TokenPruneArgs{}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create river client: %w", err)
	}
	return &Client{client: client, log: log}, nil
}

// MigrateRiver runs River's built-in schema migrations against the given pool.
// Only call this when DB_DRIVER=postgres.
func MigrateRiver(ctx context.Context, db *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(db), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("run river migrations: %w", err)
	}
	return nil
}
