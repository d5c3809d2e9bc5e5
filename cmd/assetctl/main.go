// Command assetctl runs maintenance tasks against the asset database:
// schema migration, account bootstrap, history import, tag pre-generation
// and demo data.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/xelth-com/assetledger/internal/buildinfo"
	"github.com/xelth-com/assetledger/internal/config"
	"github.com/xelth-com/assetledger/internal/database"
	"github.com/xelth-com/assetledger/internal/utils"
)

var verbose bool

func main() {
	root := &cobra.Command{
		Use:           "assetctl",
		Short:         "Maintenance CLI for the IT asset ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")

	root.AddCommand(
		newMigrateCmd(),
		newCreateAdminCmd(),
		newImportCmd(),
		newTagsCmd(),
		newSeedDemoCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// env is the configuration and open database shared by the subcommands
type env struct {
	cfg *config.Config
	log *logrus.Logger
	db  *database.DB
}

// openEnv loads configuration, connects and migrates. The caller closes db.
func openEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	log := utils.NewLogger(level, cfg.Log.Format)

	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db.DB); err != nil {
		db.Close()
		return nil, err
	}
	return &env{cfg: cfg, log: log, db: db}, nil
}

func (e *env) close() {
	if err := e.db.Close(); err != nil {
		e.log.WithError(err).Warn("database close error")
	}
}

// ctx carries the CLI logger so services log the way they do under the server
func (e *env) ctx(cmd *cobra.Command) context.Context {
	return utils.WithLogger(cmd.Context(), logrus.NewEntry(e.log).WithField("command", cmd.Name()))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			info := buildinfo.Current()
			fmt.Fprintf(cmd.OutOrStdout(), "assetctl %s", info.Version)
			if info.Commit != "" {
				fmt.Fprintf(cmd.OutOrStdout(), " (%s)", info.Commit)
			}
			fmt.Fprintln(cmd.OutOrStdout())
		},
	}
}
