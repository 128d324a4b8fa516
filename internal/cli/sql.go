package cli

import (
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/talkdb/internal/domain/sqlreg"
	talkdb "github.com/kailas-cloud/talkdb/pkg/sdk"
)

var (
	sqlDB      string
	sqlMaxRows int

	registerName   string
	registerDSN    string
	registerTables []string
	registerSchema string
)

var sqlCmd = &cobra.Command{
	Use:   "sql",
	Short: "Register databases and ask them questions",
}

var sqlRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register or replace a named database",
	Long: `Registers a Postgres, MySQL or SQLite database under a name.
Registering an existing name replaces it.`,
	Args: cobra.NoArgs,
	RunE: runSQLRegister,
}

var sqlAskCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question with generated SQL",
	Args:  cobra.ExactArgs(1),
	RunE:  runSQLAsk,
}

var sqlExportCmd = &cobra.Command{
	Use:   "export [question]",
	Short: "Run a question and save the rows to an Excel file on the server",
	Args:  cobra.ExactArgs(1),
	RunE:  runSQLExport,
}

func init() {
	sqlRegisterCmd.Flags().StringVar(&registerName, "name", "", `database name (default "default")`)
	sqlRegisterCmd.Flags().StringVar(&registerDSN, "dsn", "", "connection URL: postgres://, mysql:// or sqlite://")
	sqlRegisterCmd.Flags().StringSliceVar(&registerTables, "tables", nil, "tables exposed to the model (default all)")
	sqlRegisterCmd.Flags().StringVar(&registerSchema, "schema", "", "schema to read tables from")
	_ = sqlRegisterCmd.MarkFlagRequired("dsn")

	for _, c := range []*cobra.Command{sqlAskCmd, sqlExportCmd} {
		c.Flags().StringVar(&sqlDB, "db", sqlreg.DefaultName, "registered database")
	}
	sqlAskCmd.Flags().IntVar(&sqlMaxRows, "max-rows", 20, "rows to print")

	sqlCmd.AddCommand(sqlRegisterCmd, sqlAskCmd, sqlExportCmd)
	rootCmd.AddCommand(sqlCmd)
}

func runSQLRegister(cmd *cobra.Command, _ []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	resp, err := client.RegisterSQL(ctx, talkdb.RegisterSQLRequest{
		Name:          registerName,
		DSN:           registerDSN,
		IncludeTables: registerTables,
		Schema:        registerSchema,
	})
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(cmd, resp)
	}
	verb := "registered"
	if resp.Replaced {
		verb = "replaced"
	}
	cmd.Printf("%s %s\n", good(verb), resp.Name)
	return nil
}

func runSQLAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	resp, err := client.AskSQL(ctx, talkdb.SQLRequest{Question: args[0], DBName: sqlDB})
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(cmd, resp)
	}
	if resp.Answer != "" {
		cmd.Println(resp.Answer)
	}
	printSQL(cmd, resp.Database, resp.SQL)
	printTable(cmd, resp.Columns, resp.Rows, sqlMaxRows)
	return nil
}

func runSQLExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	resp, err := client.ExportSQL(ctx, talkdb.SQLRequest{Question: args[0], DBName: sqlDB})
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(cmd, resp)
	}
	cmd.Printf("%s %d rows to %s\n", good("saved"), resp.Rows, resp.FilePath)
	printSQL(cmd, "", resp.SQL)
	return nil
}
