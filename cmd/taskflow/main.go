package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/yukikurage/taskflow-api/internal/config"
	"github.com/yukikurage/taskflow-api/internal/database"
	"github.com/yukikurage/taskflow-api/internal/logging"
	"github.com/yukikurage/taskflow-api/internal/queue"
	"github.com/yukikurage/taskflow-api/internal/server"
	"github.com/yukikurage/taskflow-api/internal/worker"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

// app holds what every subcommand needs once configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	a := &app{}

	root := &cobra.Command{
		Use:           "taskflow",
		Short:         "TaskFlow task tracking API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.cfg = config.Load()
			if a.cfg.Version == "dev" {
				a.cfg.Version = version
			}
			a.logger = logging.New(os.Stdout, a.cfg.LogLevel, a.cfg.LogFormat, a.cfg.IsProduction())
			slog.SetDefault(a.logger)
			for _, w := range a.cfg.Warnings {
				a.logger.Warn(w, "event", "config_warning")
			}
		},
	}

	var embeddedWorker bool
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context(), embeddedWorker)
		},
	}
	serveCmd.Flags().BoolVar(&embeddedWorker, "embedded-worker", false,
		"Run the mail worker in-process (always on with the in-memory queue)")

	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the background mail worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.work(cmd.Context())
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.connect(true)
			if err != nil {
				return err
			}
			defer database.Close(db)
			a.logger.Info("migrations complete", "event", "migrations_complete")
			return nil
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), a.cfg.Version)
		},
	}

	root.AddCommand(serveCmd, workerCmd, migrateCmd, versionCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func (a *app) connect(migrate bool) (*gorm.DB, error) {
	db, err := database.Connect(a.cfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if migrate {
		if err := database.Migrate(db); err != nil {
			database.Close(db)
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	return db, nil
}

func (a *app) serve(ctx context.Context, embeddedWorker bool) error {
	db, err := a.connect(true)
	if err != nil {
		return err
	}
	defer database.Close(db)

	q, err := queue.Open(a.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to open queue: %w", err)
	}
	defer q.Close()

	srv, err := server.New(a.cfg, a.logger, db, q)
	if err != nil {
		return err
	}

	var pool *worker.Pool
	// The in-memory queue is invisible to other processes, so it needs a worker here.
	if _, inMemory := q.(*queue.MemoryQueue); inMemory || embeddedWorker {
		if pool, err = server.NewWorkerPool(a.cfg, a.logger, db, q); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	if pool != nil {
		g.Go(func() error { return pool.Run(ctx) })
	}

	return g.Wait()
}

func (a *app) work(ctx context.Context) error {
	db, err := a.connect(false)
	if err != nil {
		return err
	}
	defer database.Close(db)

	q, err := queue.Open(a.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to open queue: %w", err)
	}
	defer q.Close()

	if _, inMemory := q.(*queue.MemoryQueue); inMemory {
		a.logger.Warn("REDIS_URL is not set; this worker only sees its own in-memory queue", "event", "worker_memory_queue")
	}

	pool, err := server.NewWorkerPool(a.cfg, a.logger, db, q)
	if err != nil {
		return err
	}
	return pool.Run(ctx)
}
