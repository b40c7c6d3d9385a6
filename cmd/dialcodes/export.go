package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/dialcodes/internal/application"
	"github.com/JonMunkholm/dialcodes/internal/core"
)

var errNoBaseURL = errors.New("link-redirect codes need CODE_BASE_URL or --base-url")

type exportOptions struct {
	dir     string
	mode    string
	baseURL string
}

func newExportCmd(c *cli) *cobra.Command {
	var opts exportOptions

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a PNG code for every record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, c, opts)
		},
	}

	cmd.Flags().StringVar(&opts.dir, "dir", ".", "Directory to write PNGs to")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "direct-dial or link-redirect (default: CODE_DEFAULT_MODE)")
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "", "Origin for link-redirect codes (default: CODE_BASE_URL)")
	return cmd
}

func runExport(cmd *cobra.Command, c *cli, opts exportOptions) error {
	svc := c.app.Service

	mode := svc.DefaultMode()
	if opts.mode != "" {
		m, err := core.ParsePayloadMode(opts.mode)
		if err != nil {
			return err
		}
		mode = m
	}
	if mode == core.ModeLinkRedirect && svc.BaseURL(opts.baseURL) == "" {
		return errNoBaseURL
	}

	records := svc.Records()
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No records to export.")
		return nil
	}
	if err := os.MkdirAll(opts.dir, 0o755); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	var written atomic.Int64
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(c.cfg.Render.MaxConcurrent)

	for _, rec := range records {
		g.Go(func() error {
			path := filepath.Join(opts.dir, core.ExportFileName(rec))
			err := application.WriteFileAtomic(path, func(w io.Writer) error {
				_, err := svc.WriteCodePNG(ctx, w, rec.ID, mode, opts.baseURL)
				return err
			})
			if err != nil {
				return fmt.Errorf("%s: %w", rec.OrderID, err)
			}
			written.Add(1)
			return nil
		})
	}

	err := g.Wait()
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d of %d codes to %s\n", written.Load(), len(records), opts.dir)
	return err
}
