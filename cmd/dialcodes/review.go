package main

import (
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/dialcodes/internal/application"
	"github.com/JonMunkholm/dialcodes/internal/bootstrap"
	"github.com/JonMunkholm/dialcodes/internal/config"
	"github.com/JonMunkholm/dialcodes/internal/core"
	"github.com/JonMunkholm/dialcodes/internal/logging"
)

func newReviewCmd(c *cli) *cobra.Command {
	var (
		dir     string
		mode    string
		baseURL string
	)

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Step through records and their codes in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := application.Options{
				ExportDir: dir,
				BaseURL:   baseURL,
				StoreInfo: bootstrap.StoreInfo(c.cfg),
				Clipboard: application.SystemClipboard{},
			}
			if mode != "" {
				m, err := core.ParsePayloadMode(mode)
				if err != nil {
					return err
				}
				opts.Mode = m
			}

			p := tea.NewProgram(application.NewModel(c.app.Service, opts),
				tea.WithAltScreen(),
				tea.WithContext(cmd.Context()),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			)
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("review: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "Directory saved PNGs are written to")
	cmd.Flags().StringVar(&mode, "mode", "", "direct-dial or link-redirect (default: CODE_DEFAULT_MODE)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Origin for link-redirect codes (default: CODE_BASE_URL)")
	cmd.Flags().String(logFileFlag, "dialcodes.log", "Log file; the terminal belongs to the UI")
	return cmd
}

// setupFileLogging sends logs to path so they do not tear the UI. The caller
// closes the returned file.
func setupFileLogging(path string, cfg config.LoggingConfig) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logging.SetupWriter(f, cfg.Level, cfg.Format)
	slog.Info("review session started")
	return f, nil
}
