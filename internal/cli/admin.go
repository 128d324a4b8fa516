package cli

import (
	"errors"
	"slices"

	"github.com/spf13/cobra"
)

// errUnhealthy makes talkctl health exit non-zero when the server is down.
var errUnhealthy = errors.New("server unhealthy")

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List indexed collections",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		resp, err := client.Sources(ctx)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd, resp)
		}
		if len(resp.Collections) == 0 {
			cmd.Println("No sources indexed.")
			return nil
		}
		for _, c := range resp.Collections {
			cmd.Printf("  %-12s %-24s %d chunks\n", c.Source, dim(c.Collection), c.Chunks)
		}
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		resp, err := client.Health(ctx)
		if err != nil {
			return err
		}
		if jsonOut {
			if err := printJSON(cmd, resp); err != nil {
				return err
			}
		} else {
			cmd.Printf("status: %s\n", statusLabel(resp.Status))
			names := make([]string, 0, len(resp.Checks))
			for name := range resp.Checks {
				names = append(names, name)
			}
			slices.Sort(names)
			for _, name := range names {
				cmd.Printf("  %-14s %s\n", name, statusLabel(resp.Checks[name]))
			}
		}
		if resp.Status == "error" {
			return errUnhealthy
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd, healthCmd)
}
