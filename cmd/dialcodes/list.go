package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/dialcodes/internal/core"
)

func newListCmd(c *cli) *cobra.Command {
	var (
		page   int
		all    bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List imported records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var p core.Page
			if all {
				records := c.app.Service.Records()
				p = core.Page{Records: records, Page: 1, PageSize: len(records), TotalPages: 1, Total: len(records)}
			} else {
				p = c.app.Service.Page(page)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			}

			if p.Total == 0 {
				fmt.Fprintln(out, "No records.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tORDER ID\tPHONE\tID")
			for i, rec := range p.Records {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.Offset+i+1, rec.OrderID, rec.Phone, rec.ID)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if !all {
				fmt.Fprintf(out, "Page %d of %d, %d records\n", p.Page, p.TotalPages, p.Total)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page to show (1-based)")
	cmd.Flags().BoolVar(&all, "all", false, "Show every record")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
