package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/dialcodes/internal/bootstrap"
	"github.com/JonMunkholm/dialcodes/internal/config"
	"github.com/JonMunkholm/dialcodes/internal/logging"
)

// cli carries what every subcommand needs once the root has set it up.
type cli struct {
	cfg *config.Config
	app *bootstrap.App

	logFile *os.File
}

// logFileFlag is declared by commands that own the terminal; their logs go
// to that file instead of stderr.
const logFileFlag = "log-file"

// newRootCmd returns the command tree and a function that releases the
// store and log file opened by whichever subcommand ran.
func newRootCmd() (*cobra.Command, func() error) {
	c := &cli{}

	root := &cobra.Command{
		Use:           "dialcodes",
		Short:         "Import order records and generate dial codes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}

	root.AddCommand(
		newImportCmd(c),
		newListCmd(c),
		newClearCmd(c),
		newExportCmd(c),
		newReviewCmd(c),
	)
	return root, c.teardown
}

func (c *cli) setup(cmd *cobra.Command) error {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	c.cfg = cfg

	if path := logFilePath(cmd); path != "" {
		f, err := setupFileLogging(path, cfg.Logging)
		if err != nil {
			return err
		}
		c.logFile = f
	} else {
		logging.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	}
	slog.Debug("configuration loaded", "config", cfg.String())

	app, err := bootstrap.Open(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	c.app = app
	return nil
}

func (c *cli) teardown() error {
	var errs []error
	if c.app != nil {
		errs = append(errs, c.app.Close())
		c.app = nil
	}
	if c.logFile != nil {
		slog.Info("review session ended")
		errs = append(errs, c.logFile.Close())
		c.logFile = nil
	}
	return errors.Join(errs...)
}

func logFilePath(cmd *cobra.Command) string {
	if f := cmd.Flags().Lookup(logFileFlag); f != nil {
		return f.Value.String()
	}
	return ""
}
