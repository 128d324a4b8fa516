package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	talkdb "github.com/kailas-cloud/talkdb/pkg/sdk"
)

var (
	indexConfigFile string
	indexSet        map[string]string
	indexReplace    bool
)

var indexCmd = &cobra.Command{
	Use:   "index [source]",
	Short: "Ingest a source into the vector store",
	Long: `Loads documents from confluence, sharepoint, onedrive or teams and
indexes their chunks. Connector settings come from a YAML file (--config)
and individual --set key=value pairs, which take precedence. --reindex
deletes the chunks already stored for the source before ingesting.

Example config for confluence:

  base_url: https://acme.atlassian.net/wiki
  username: bot@acme.com
  api_token: ${CONFLUENCE_TOKEN}
  space_key: ENG`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVarP(&indexConfigFile, "config", "c", "", "YAML file with connector settings")
	indexCmd.Flags().StringToStringVar(&indexSet, "set", nil, "connector setting key=value")
	indexCmd.Flags().BoolVar(&indexReplace, "reindex", false, "replace the stored chunks of the source")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConnectorConfig(indexConfigFile, indexSet)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	index := client.Index
	if indexReplace {
		index = client.Reindex
	}
	rep, err := index(ctx, args[0], cfg)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(cmd, rep)
	}
	if rep.Purged > 0 {
		cmd.Printf("%s %d stale chunks of %s\n", warn("purged"), rep.Purged, rep.Source)
	}
	cmd.Printf("%s %s: %d documents, %d chunks\n", good("indexed"), rep.Source, rep.Documents, rep.Chunks)
	return nil
}

// loadConnectorConfig reads path (if set), expands environment variables in
// it and overlays set.
func loadConnectorConfig(path string, set map[string]string) (talkdb.ConnectorConfig, error) {
	cfg := talkdb.ConnectorConfig{}
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("read connector config: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
			return nil, fmt.Errorf("parse connector config %s: %w", path, err)
		}
	}
	for k, v := range set {
		cfg[k] = v
	}
	return cfg, nil
}
