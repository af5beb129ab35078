package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/mediakit/pkg/config"
	"github.com/dmitrymomot/mediakit/pkg/logger"
	"github.com/dmitrymomot/mediakit/pkg/requestid"
)

// app carries what every subcommand shares. open is swapped in tests.
type app struct {
	envFiles []string
	settings settings
	output   string

	log  *slog.Logger
	open func(ctx context.Context, st settings, log *slog.Logger) (*backend, error)
}

func newApp() *app {
	return &app{open: openBackend}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "mediactl",
		Short:         "Attach, list and remove media files of application records",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringSliceVar(&a.envFiles, "env-file", nil, "extra .env files to load, later files win")
	flags.StringVar(&a.settings.Storage, "storage", "", "blob storage: local or s3 (env MEDIA_STORAGE)")
	flags.StringVar(&a.settings.Records, "records", "", "record store: memory, postgres, mongodb or redis (env MEDIA_RECORDS)")
	flags.StringVarP(&a.output, "output", "o", "table", "output format: table, json or yaml")

	root.AddCommand(
		newMigrateCmd(a),
		newAttachCmd(a),
		newListCmd(a),
		newUpdateCmd(a),
		newRemoveCmd(a),
		newPurgeCmd(a),
		newCloneCmd(a),
		newServeCmd(a),
	)
	return root
}

// setup loads env files and settings, then builds the logger. Flag values
// take precedence over the environment.
func (a *app) setup(cmd *cobra.Command) error {
	if err := config.LoadEnv(a.envFiles...); err != nil {
		return err
	}

	var st settings
	if err := config.Load(&st); err != nil {
		return err
	}
	if a.settings.Storage != "" {
		st.Storage = a.settings.Storage
	}
	if a.settings.Records != "" {
		st.Records = a.settings.Records
	}
	a.settings = st

	if _, err := newPrinter(a.output, nil); err != nil {
		return err
	}

	if a.log != nil {
		return nil
	}
	var logCfg logger.Config
	if err := config.Load(&logCfg); err != nil {
		return err
	}
	log, err := logger.FromConfig(logCfg, "mediactl",
		logger.WithOutput(cmd.ErrOrStderr()),
		logger.WithContextExtractors(requestid.LoggerExtractor),
	)
	if err != nil {
		return err
	}
	a.log = log
	return nil
}

// withBackend opens the configured backend for the duration of fn.
func (a *app) withBackend(cmd *cobra.Command, fn func(*backend) error) error {
	b, err := a.open(cmd.Context(), a.settings, a.log)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(b)
}
