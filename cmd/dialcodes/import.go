package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newImportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Import order id and phone columns from a file or stdin",
		Long: `Import reads text copied from a spreadsheet: one record per line, order id
and phone separated by a tab or two or more spaces. Lines that cannot be
parsed are reported and skipped. With no file, or with "-", stdin is read.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			res, err := c.app.Service.ImportReader(cmd.Context(), r, c.cfg.UI.MaxImportBytes)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d records (%d total)\n", len(res.Added), res.Total)
			for _, pe := range res.Skipped {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s\n", pe.Error())
			}
			return nil
		},
	}
}
