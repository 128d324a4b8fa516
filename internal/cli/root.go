// Package cli implements the talkctl command line client.
package cli

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	talkdb "github.com/kailas-cloud/talkdb/pkg/sdk"
)

var (
	serverURL string
	apiKey    string
	timeout   time.Duration
	jsonOut   bool

	// client is built before every command from the persistent flags.
	client *talkdb.Client
)

var rootCmd = &cobra.Command{
	Use:   "talkctl",
	Short: "Talk to your documents and databases",
	Long: `talkctl is the command line client of a talkdb server.
It searches indexed Confluence, SharePoint, OneDrive and Teams content,
chats with the agent, registers SQL databases and triggers ingestion.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		c, err := talkdb.New(serverURL,
			talkdb.WithAPIKey(apiKey),
			// --timeout bounds each command through its context.
			talkdb.WithHTTPClient(&http.Client{}),
		)
		if err != nil {
			return err
		}
		client = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("TALKDB_URL", "http://localhost:8000"), "talkdb server URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("TALKDB_API_KEY"), "API key (Bearer token)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "request timeout")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print raw JSON replies")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, timeout)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
