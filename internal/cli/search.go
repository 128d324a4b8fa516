package cli

import (
	"github.com/spf13/cobra"

	talkdb "github.com/kailas-cloud/talkdb/pkg/sdk"
)

// searchFlags are shared by search and chat.
type searchFlags struct {
	scope   string
	sources []string
	noHyb   bool
	dbName  string
	topK    int
	session string
}

func (f *searchFlags) register(cmd *cobra.Command, defScope string) {
	cmd.Flags().StringVarP(&f.scope, "scope", "s", defScope, "retrieval scope: vector, sql, all, kg")
	cmd.Flags().StringSliceVar(&f.sources, "sources", nil, "sources to search (default all): confluence, sharepoint, onedrive, teams")
	cmd.Flags().BoolVar(&f.noHyb, "no-hybrid", false, "vector search only, without BM25 fusion")
	cmd.Flags().StringVar(&f.dbName, "db", "", "registered database for sql and all scopes")
	cmd.Flags().IntVarP(&f.topK, "top-k", "k", 0, "number of chunks to retrieve (server default 5)")
	cmd.Flags().StringVar(&f.session, "session", "", "session id for chat memory")
}

func (f *searchFlags) request(query string) talkdb.SearchRequest {
	hybrid := !f.noHyb
	return talkdb.SearchRequest{
		Query:     query,
		Sources:   f.sources,
		Scope:     f.scope,
		UseHybrid: &hybrid,
		DBName:    f.dbName,
		TopK:      f.topK,
		SessionID: f.session,
	}
}

var searchOpts searchFlags

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Answer a question from indexed sources",
	Long: `Routes the question by scope: vector search over indexed documents
(hybrid BM25 + vector by default), text-to-SQL over a registered database,
both joined, or the knowledge graph.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchOpts.register(searchCmd, "vector")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	resp, err := client.Search(ctx, searchOpts.request(args[0]))
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(cmd, resp)
	}

	if resp.Fallback != nil {
		cmd.Println(warn("note:") + dim(" scope "+resp.Fallback.From+" fell back to "+resp.Fallback.To+" ("+resp.Fallback.Reason+")"))
	}
	cmd.Println(resp.Answer)
	if resp.SQL != nil {
		printSQL(cmd, resp.SQL.Database, resp.SQL.SQL)
		printTable(cmd, resp.SQL.Table.Columns, resp.SQL.Table.Rows, 20)
	}
	printCitations(cmd, resp.Citations)
	return nil
}
