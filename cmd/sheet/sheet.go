// Package sheet provides CLI commands for working with the sheets stored in
// the database without going through a chat.
package sheet

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/sheetbot/internal/app"
	"github.com/klytics/sheetbot/internal/docstore"
	"github.com/klytics/sheetbot/internal/output"
)

// NewCommand returns the sheet subcommand group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheet",
		Short: "Import, export and inspect stored sheets",
		Long:  "Commands for the sheets kept in the database file: import spreadsheets, export a sheet to .xlsx, and print its rows.",
	}

	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newImportCommand())
	cmd.AddCommand(newExportCommand())
	cmd.AddCommand(newShowCommand())

	return cmd
}

type sheetInfo struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
}

type listResult struct {
	Path        string      `json:"path"`
	Sheets      []sheetInfo `json:"sheets"`
	LastUpdated string      `json:"last_updated,omitempty"`
	SourceFile  string      `json:"source_file,omitempty"`
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"status", "ls"},
		Short:   "List sheets and row counts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.FromFlags(cmd.Flags())
			if err != nil {
				return err
			}
			doc, err := a.Store.ReadAll()
			if err != nil {
				return err
			}

			res := summarize(a.Store.Path(), doc)
			if jsonFlag, _ := cmd.Flags().GetBool("json"); jsonFlag {
				return output.WriteJSON(cmd.OutOrStdout(), "sheet list", res)
			}
			printList(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func summarize(path string, doc *docstore.Document) listResult {
	res := listResult{Path: path, Sheets: []sheetInfo{}}
	for _, s := range doc.Sheets {
		res.Sheets = append(res.Sheets, sheetInfo{Name: s.Name, Rows: len(s.Rows)})
	}
	if doc.Metadata.LastUpdated != nil {
		res.LastUpdated = docstore.FormatTimestamp(*doc.Metadata.LastUpdated)
	}
	if doc.Metadata.SourceFile != nil {
		res.SourceFile = *doc.Metadata.SourceFile
	}
	return res
}

func printList(w io.Writer, res listResult) {
	bold := color.New(color.Bold)
	dim := color.New(color.FgHiBlack)

	bold.Fprintf(w, "Database: %s\n", res.Path)
	if len(res.Sheets) == 0 {
		dim.Fprintln(w, "  (empty) import a file with 'sheetbot sheet import <file>'")
		return
	}
	for _, s := range res.Sheets {
		fmt.Fprintf(w, "  %-30s %d rows\n", s.Name, s.Rows)
	}
	if res.LastUpdated != "" {
		dim.Fprintf(w, "Last updated: %s\n", res.LastUpdated)
	}
	if res.SourceFile != "" {
		dim.Fprintf(w, "Source file:  %s\n", res.SourceFile)
	}
}

func sheetNotFound(name string, doc *docstore.Document) error {
	if len(doc.Sheets) == 0 {
		return fmt.Errorf("sheet %q not found: the database is empty, import a file first", name)
	}
	return fmt.Errorf("sheet %q not found (available: %v)", name, doc.SheetNames())
}
