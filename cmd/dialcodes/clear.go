package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errClearNotConfirmed = errors.New("refusing to delete every record without --yes")

func newClearCmd(c *cli) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errClearNotConfirmed
			}
			n := c.app.Service.Store().Len()
			if err := c.app.Service.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d records\n", n)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deleting every record")
	return cmd
}
