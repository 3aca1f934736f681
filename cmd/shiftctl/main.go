package main

import (
	"fmt"
	"os"

	"github.com/arnavshah/shiftflow-api/pkg/config"
	"github.com/arnavshah/shiftflow-api/pkg/database"
	"github.com/arnavshah/shiftflow-api/pkg/docstore"
	"github.com/arnavshah/shiftflow-api/pkg/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

// env is what every store-backed command works against.
type env struct {
	cfg    *config.Config
	store  docstore.Store
	logger *zap.Logger
	close  func()
}

// openEnv connects to the configured database. Tests replace it.
var openEnv = func() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New("warn", "console", "shiftctl")
	if err != nil {
		return nil, err
	}
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	return &env{
		cfg:    cfg,
		store:  docstore.NewGormStore(db, cfg.App.Namespace, logger),
		logger: logger,
		close: func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
			_ = logger.Sync()
		},
	}, nil
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "shiftctl",
		Short:         "ShiftFlow administration",
		Long:          "shiftctl inspects and maintains the shared state of a ShiftFlow deployment.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newCalendarCmd())
	cmd.AddCommand(newCredentialsCmd())
	cmd.AddCommand(newTasksCmd())
	cmd.AddCommand(newSummaryCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "shiftctl %s (commit: %s)\n", Version, Commit)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
