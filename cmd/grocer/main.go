package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dukerupert/grocer/internal/backup"
	"github.com/dukerupert/grocer/internal/config"
	"github.com/dukerupert/grocer/internal/database"
	"github.com/dukerupert/grocer/internal/event"
	"github.com/dukerupert/grocer/internal/logging"
	"github.com/dukerupert/grocer/internal/server"
	"github.com/spf13/cobra"
)

const Version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:           "grocer",
		Short:         "Customer and grocery list REST service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	load := func() (*config.Config, *slog.Logger, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, nil, err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		return cfg, logging.Setup(cfg.Log.Level, cfg.Log.Format), nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and print the schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			db, err := database.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			v, err := database.Version(db)
			if err != nil {
				return err
			}
			fmt.Printf("%s is at schema version %d\n", cfg.DBPath, v)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "backup",
		Short: "Upload an encrypted snapshot of the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			db, err := database.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			b, err := backup.New(db, cfg.Backup, logger.With("component", "backup"))
			if err != nil {
				return err
			}
			key, err := b.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(key)
			return nil
		},
	})

	var restoreOut string
	restoreCmd := &cobra.Command{
		Use:   "restore <key>",
		Short: "Download and decrypt a snapshot into a new database file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			if err := checkRestoreTarget(restoreOut, cfg.DBPath); err != nil {
				return err
			}
			b, err := backup.New(nil, cfg.Backup, logger.With("component", "backup"))
			if err != nil {
				return err
			}
			return b.Restore(cmd.Context(), args[0], restoreOut)
		},
	}
	restoreCmd.Flags().StringVarP(&restoreOut, "out", "o", "grocer-restored.db", "Path to write the restored database")
	cmd.AddCommand(restoreCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("grocer version %s\n", Version)
		},
	})

	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	opts := server.Options{
		RateLimit:      cfg.HTTP.RateLimit,
		TrustProxy:     cfg.HTTP.TrustProxy,
		OriginPatterns: cfg.HTTP.Origins,
	}
	if cfg.AMQP.URL != "" {
		pub, err := event.DialRabbit(cfg.AMQP.URL, cfg.AMQP.Exchange, logger.With("component", "amqp"))
		if err != nil {
			return err
		}
		defer pub.Close()
		opts.Publisher = pub
		logger.Info("publishing change events", "exchange", cfg.AMQP.Exchange)
	}

	srv := server.New(db, opts, logger)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Expire stale rate limit windows.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("grocer listening", "addr", httpServer.Addr, "db", cfg.DBPath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// checkRestoreTarget refuses a restore destination that resolves to the live
// database file.
func checkRestoreTarget(out, dbPath string) error {
	outAbs, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", out, err)
	}
	dbAbs, err := filepath.Abs(dbPath)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dbPath, err)
	}
	if outAbs == dbAbs {
		return fmt.Errorf("refusing to overwrite the live database %s", dbPath)
	}
	if fi, err := os.Stat(outAbs); err == nil {
		if di, err := os.Stat(dbAbs); err == nil && os.SameFile(fi, di) {
			return fmt.Errorf("refusing to overwrite the live database %s", dbPath)
		}
	}
	return nil
}
