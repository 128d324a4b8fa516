package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/talkdb/internal/domain/answer"
	talkdb "github.com/kailas-cloud/talkdb/pkg/sdk"
)

var (
	heading = color.New(color.FgCyan, color.Bold).SprintFunc()
	dim     = color.New(color.Faint).SprintFunc()
	good    = color.New(color.FgGreen, color.Bold).SprintFunc()
	warn    = color.New(color.FgYellow, color.Bold).SprintFunc()
	bad     = color.New(color.FgRed, color.Bold).SprintFunc()
)

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal reply: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func printCitations(cmd *cobra.Command, citations []answer.Citation) {
	if len(citations) == 0 {
		return
	}
	cmd.Println()
	cmd.Println(heading("Sources:"))
	for i, c := range citations {
		cmd.Printf("  [%d] %s %s\n", i+1, c.Path, dim(fmt.Sprintf("(%s, %.3f)", c.Source, c.Score)))
	}
}

func printSQL(cmd *cobra.Command, database, sql string) {
	if sql == "" {
		return
	}
	cmd.Println()
	if database != "" {
		cmd.Println(heading("SQL") + dim(" on "+database))
	} else {
		cmd.Println(heading("SQL"))
	}
	cmd.Println("  " + sql)
}

// printTable renders rows as aligned plain-text columns.
func printTable(cmd *cobra.Command, columns []string, rows [][]any, maxRows int) {
	if len(columns) == 0 {
		return
	}
	cells := make([][]string, 0, len(rows)+1)
	cells = append(cells, columns)
	for i, row := range rows {
		if maxRows > 0 && i == maxRows {
			break
		}
		line := make([]string, len(columns))
		for j := range columns {
			if j < len(row) {
				line[j] = fmt.Sprint(row[j])
			}
		}
		cells = append(cells, line)
	}

	widths := make([]int, len(columns))
	for _, line := range cells {
		for j, cell := range line {
			widths[j] = max(widths[j], len(cell))
		}
	}

	cmd.Println()
	for i, line := range cells {
		parts := make([]string, len(line))
		for j, cell := range line {
			parts[j] = cell + strings.Repeat(" ", widths[j]-len(cell))
		}
		text := "  " + strings.TrimRight(strings.Join(parts, "  "), " ")
		if i == 0 {
			text = heading(text)
		}
		cmd.Println(text)
	}
	if maxRows > 0 && len(rows) > maxRows {
		cmd.Println(dim(fmt.Sprintf("  ... %d more rows", len(rows)-maxRows)))
	}
}

func printArtifacts(cmd *cobra.Command, artifacts []talkdb.Artifact) {
	for _, a := range artifacts {
		switch a.Kind {
		case "excel", "plot":
			cmd.Printf("%s %s\n", good("saved "+a.Kind+":"), a.Path)
		case "sql":
			printSQL(cmd, a.Database, a.SQL)
		}
	}
}

func statusLabel(status string) string {
	switch status {
	case "ok":
		return good(status)
	case "degraded":
		return warn(status)
	default:
		return bad(status)
	}
}
