package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mtlprog/taskgate/internal/approval"
	"github.com/mtlprog/taskgate/internal/config"
	"github.com/mtlprog/taskgate/internal/handler"
	"github.com/mtlprog/taskgate/internal/logger"
	"github.com/mtlprog/taskgate/internal/service"
	"github.com/urfave/cli/v2"
)

func main() {
	// Values from .env never override variables already set in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	app := &cli.App{
		Name:  "taskgate",
		Usage: "Approval policy and task lifecycle engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:     "database-url",
				Aliases:  []string{"d"},
				Value:    config.DefaultDatabaseURL,
				Usage:    "PostgreSQL database URL",
				EnvVars:  []string{"DATABASE_URL"},
				Required: true,
			},
			&cli.IntFlag{
				Name:    "max-conns",
				Value:   config.DefaultMaxConns,
				Usage:   "Database pool size",
				EnvVars: []string{"DATABASE_MAX_CONNS"},
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Aliases: []string{"r"},
				Value:   config.DefaultRedisURL,
				Usage:   "Redis URL; enables the policy cache, sweep leases and stream notifications",
				EnvVars: []string{"REDIS_URL"},
			},
			&cli.StringFlag{
				Name:    "notify-stream",
				Value:   config.DefaultNotifyStream,
				Usage:   "Redis stream for approval notifications",
				EnvVars: []string{"NOTIFY_STREAM"},
			},
			&cli.DurationFlag{
				Name:    "policy-cache-ttl",
				Value:   config.DefaultPolicyCacheTTL,
				Usage:   "How long cached approval policies stay valid",
				EnvVars: []string{"POLICY_CACHE_TTL"},
			},
			&cli.IntFlag{
				Name:    "sweep-workers",
				Value:   config.DefaultSweepWorkers,
				Usage:   "Tasks processed concurrently by a sweep",
				EnvVars: []string{"SWEEP_WORKERS"},
			},
		},
		Before: func(c *cli.Context) error {
			logger.Setup(logger.ParseLevel(c.String("log-level")))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start the web server",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Value:   config.DefaultPort,
						Usage:   "HTTP server port",
						EnvVars: []string{"PORT"},
					},
					&cli.BoolFlag{
						Name:    "run-scheduler",
						Usage:   "Also run the sweep scheduler in this process",
						EnvVars: []string{"RUN_SCHEDULER"},
					},
				}, intervalFlags()...),
				Action: runServe,
			},
			{
				Name:  "sweep",
				Usage: "Run one auto-approval and escalation sweep and exit",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "kind",
						Value: approval.SweepAll.String(),
						Usage: "Sweep kind (auto_approve, escalation, all)",
					},
					&cli.TimestampFlag{
						Name:   "at",
						Layout: time.RFC3339,
						Usage:  "Evaluate deadlines at this time instead of now",
					},
				},
				Action: runSweep,
			},
			{
				Name:   "scheduler",
				Usage:  "Run the sweep scheduler until interrupted",
				Flags:  intervalFlags(),
				Action: runScheduler,
			},
		},
		Action: runServe,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func intervalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:    "auto-approve-interval",
			Value:   config.DefaultAutoApproveInterval,
			Usage:   "How often to sweep for due auto-approvals",
			EnvVars: []string{"AUTO_APPROVE_INTERVAL"},
		},
		&cli.DurationFlag{
			Name:    "escalation-interval",
			Value:   config.DefaultEscalationInterval,
			Usage:   "How often to sweep for due escalation reminders",
			EnvVars: []string{"ESCALATION_INTERVAL"},
		},
	}
}

func runServe(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	port := c.String("port")
	if port == "" {
		port = config.DefaultPort
	}

	a, err := newApp(ctx, c)
	if err != nil {
		return err
	}
	defer a.Close()

	h := handler.New(a.db.Pool(), a.approvals, a.policies, a.metrics)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	schedulerDone := make(chan struct{})
	if c.Bool("run-scheduler") {
		go func() {
			defer close(schedulerDone)
			if err := a.scheduler(c).Run(ctx); err != nil {
				slog.Error("scheduler error", "error", err)
			}
		}()
	} else {
		close(schedulerDone)
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "server_addr", "http://localhost:"+port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		stop()
		<-schedulerDone
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.DefaultShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	<-schedulerDone

	slog.Info("server stopped")
	return nil
}

func runSweep(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	kind, err := parseSweepKind(c.String("kind"))
	if err != nil {
		return err
	}

	now := time.Now()
	if at := c.Timestamp("at"); at != nil {
		now = *at
	}

	a, err := newApp(ctx, c)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.sweeper.Sweep(ctx, now, kind)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	if failed := result.Failed(); failed > 0 {
		return fmt.Errorf("sweep finished with %d failed tasks", failed)
	}
	return nil
}

func runScheduler(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, c)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.scheduler(c).Run(ctx)
}

func parseSweepKind(s string) (approval.SweepKind, error) {
	for _, kind := range []approval.SweepKind{approval.SweepAutoApprove, approval.SweepEscalation, approval.SweepAll} {
		if kind.String() == s {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown sweep kind %q, must be: auto_approve, escalation, all", s)
}

// scheduler builds the sweep scheduler from the interval flags of the running command.
func (a *app) scheduler(c *cli.Context) *service.Scheduler {
	var locker service.Locker
	if a.locker != nil {
		locker = a.locker
	}
	return service.NewScheduler(a.sweeper, locker, c.Duration("auto-approve-interval"), c.Duration("escalation-interval"))
}
