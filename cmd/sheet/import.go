package sheet

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/sheetbot/internal/app"
	"github.com/klytics/sheetbot/internal/output"
	"github.com/klytics/sheetbot/internal/progress"
	"github.com/klytics/sheetbot/internal/tabular"
)

type importResult struct {
	File   string      `json:"file"`
	Sheets []sheetInfo `json:"sheets"`
}

func newImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file> [file...]",
		Short: "Import spreadsheets into the database",
		Long: `Reads each .xlsx/.xlsm/.csv file and stores its sheets in the database.
A sheet with the same name as an existing one replaces it; other sheets are kept.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonFlag, _ := cmd.Flags().GetBool("json")
			a, err := app.FromFlags(cmd.Flags())
			if err != nil {
				return err
			}

			bar := progress.New("Importing", len(args))
			results := make([]importResult, 0, len(args))
			for _, path := range args {
				if !tabular.Supported(path) {
					return fmt.Errorf("unsupported file type %q (supported: %v)", path, tabular.Extensions)
				}
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("could not read %s: %w", path, err)
				}
				sheets, err := tabular.Read(path, data)
				if err != nil {
					return fmt.Errorf("could not parse %s: %w", path, err)
				}
				if err := a.Store.SaveTabularData(sheets, filepath.Base(path)); err != nil {
					return err
				}
				a.Logger.Debug("imported", "file", path, "sheets", len(sheets))

				res := importResult{File: path}
				for _, s := range sheets {
					res.Sheets = append(res.Sheets, sheetInfo{Name: s.Name, Rows: len(s.Rows)})
				}
				results = append(results, res)
				bar.Increment(filepath.Base(path))
			}
			bar.Finish(fmt.Sprintf("Imported %d file(s)", len(args)))

			if jsonFlag {
				return output.WriteJSON(cmd.OutOrStdout(), "sheet import", results)
			}
			w := cmd.OutOrStdout()
			for _, r := range results {
				color.New(color.FgGreen).Fprintf(w, "✓ %s\n", r.File)
				for _, s := range r.Sheets {
					fmt.Fprintf(w, "  %s: %d rows\n", s.Name, s.Rows)
				}
			}
			return nil
		},
	}
}
