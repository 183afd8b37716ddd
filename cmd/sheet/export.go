package sheet

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/klytics/sheetbot/internal/app"
	"github.com/klytics/sheetbot/internal/output"
	"github.com/klytics/sheetbot/internal/tabular"
)

func newExportCommand() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export <sheet>",
		Short: "Export one sheet to an .xlsx file",
		Long:  "Writes the named sheet to <sheet>_export.xlsx in the exports directory, or to the path given with --output.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.FromFlags(cmd.Flags())
			if err != nil {
				return err
			}
			doc, err := a.Store.ReadAll()
			if err != nil {
				return err
			}
			rows, ok := doc.Sheet(args[0])
			if !ok {
				return sheetNotFound(args[0], doc)
			}

			data, err := tabular.WriteSheet(args[0], rows)
			if err != nil {
				return err
			}

			path := outPath
			if path == "" {
				path = filepath.Join(a.Config.ExportsDir, tabular.ExportFileName(args[0]))
			}
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("could not create %s: %w", dir, err)
				}
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("could not write %s: %w", path, err)
			}

			if jsonFlag, _ := cmd.Flags().GetBool("json"); jsonFlag {
				return output.WriteJSON(cmd.OutOrStdout(), "sheet export", map[string]interface{}{
					"sheet": args[0],
					"rows":  len(rows),
					"file":  path,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d rows from %q to %s\n", len(rows), args[0], path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Output file path")
	return cmd
}
