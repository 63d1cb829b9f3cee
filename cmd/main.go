package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	jsonhandler "github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
	"github.com/bwise1/waste_patrol/config"
	"github.com/bwise1/waste_patrol/internal/db"
	deps "github.com/bwise1/waste_patrol/internal/debs"
	api "github.com/bwise1/waste_patrol/internal/http/rest"
	"github.com/bwise1/waste_patrol/internal/metrics"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	allowConnectionsAfterShutdown = 1 * time.Second
	migrationTimeout              = 2 * time.Minute
)

// Version is overridden at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cfg := config.New()

	cmd := &cobra.Command{
		Use:           "waste-patrol",
		Short:         "Waste reporting and collection API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setUpLogging(cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cfg)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cfg)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.Context(), cfg)
		},
	})

	var fixtures string
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Load users and locations from a YAML fixtures file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return seed(cmd.Context(), cfg, fixtures)
		},
	}
	seedCmd.Flags().StringVarP(&fixtures, "file", "f", "fixtures.yaml", "fixtures file")
	cmd.AddCommand(seedCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("waste-patrol %s\n", Version)
		},
	})

	return cmd
}

func setUpLogging(cfg *config.Config) {
	if cfg.LogFormat == "json" {
		log.SetHandler(jsonhandler.New(os.Stderr))
	} else {
		log.SetHandler(text.New(os.Stderr))
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func serve(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	d, err := deps.New(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	metrics.Register()
	metrics.SetClientCounter(d.WebSocket.ClientCount)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go d.WebSocket.Run(ctx)

	a := api.New(cfg, d)
	serveErr := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{"port": cfg.Port, "env": cfg.Environment}).Info("server running")
		if err := a.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return errors.Wrap(err, "serve")
		}
		return nil
	case <-ctx.Done():
	}

	log.WithField("grace", allowConnectionsAfterShutdown).Info("request to shutdown server")
	time.Sleep(allowConnectionsAfterShutdown)

	log.Info("shutting down server")
	if err := a.Shutdown(context.Background()); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	log.Info("server stopped")
	return nil
}

func migrate(ctx context.Context, cfg *config.Config) error {
	if cfg.Dsn == "" {
		return errors.New("DSN is required")
	}
	database, err := db.New(cfg.Dsn)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(ctx, migrationTimeout)
	defer cancel()

	applied, err := db.Migrate(ctx, database.Pool())
	if err != nil {
		return err
	}
	log.WithField("applied", applied).Info("migrations complete")
	return nil
}

func seed(ctx context.Context, cfg *config.Config, path string) error {
	if cfg.Dsn == "" {
		return errors.New("DSN is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open fixtures")
	}
	defer f.Close()

	fixtures, err := db.ParseFixtures(f)
	if err != nil {
		return err
	}

	database, err := db.New(cfg.Dsn)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer database.Close()

	return db.Seed(ctx, database.Pool(), fixtures)
}
