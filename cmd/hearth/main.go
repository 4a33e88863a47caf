package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/jbweber/hearth/internal/config"
	"github.com/jbweber/hearth/internal/libvirt"
	"github.com/jbweber/hearth/internal/logging"
	"github.com/jbweber/hearth/internal/store"
)

var (
	version = "dev"
	commit  = "unknown"
)

// Global flags
var (
	configPath   string
	envFiles     []string
	outputFormat string
	noHeaders    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hearth",
	Short: "Hearth - a small IaaS control plane for libvirt",
	Long: `Hearth serves a REST API for creating, listing and destroying VMs on a
single libvirt host, with projects, users and role-based access.

Run "hearth migrate" once to prepare the database, then "hearth serve".`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to the configuration file")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load before reading HEARTH_* variables (default .env)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(vmsCmd)
	rootCmd.AddCommand(testConnCmd)
}

// setup loads the configuration and builds the process logger.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath, envFiles...)
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)

	return cfg, logger, nil
}

// openDatabase opens the metadata database and brings its schema up to date.
func openDatabase(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	db, err := store.Open(cfg.StoreConfig())
	if err != nil {
		return nil, err
	}

	if err := store.NewMigrator(db).Run(ctx); err != nil {
		_ = store.Close(db)
		return nil, err
	}
	if err := store.Seed(ctx, db, cfg.SeedImages()); err != nil {
		_ = store.Close(db)
		return nil, err
	}

	return db, nil
}

func connectLibvirt(ctx context.Context, cfg *config.Config) (*libvirt.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Libvirt.ConnectTimeout+time.Second)
	defer cancel()

	client, err := libvirt.ConnectWithContext(ctx, cfg.LibvirtOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to libvirt: %w", err)
	}
	return client, nil
}

func closeLibvirt(client *libvirt.Client, logger *slog.Logger) {
	if err := client.Close(); err != nil {
		logger.Warn("failed to close libvirt connection", "error", err)
	}
}
