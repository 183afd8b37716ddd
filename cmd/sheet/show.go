package sheet

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/sheetbot/internal/app"
	"github.com/klytics/sheetbot/internal/docstore"
	"github.com/klytics/sheetbot/internal/output"
	"github.com/klytics/sheetbot/internal/tabular"
)

const maxColumnWidth = 40

func newShowCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "show <sheet>",
		Short: "Print the rows of a stored sheet",
		Long:  "Prints a sheet as a table with a row index column. The index is the row_index the assistant uses in edit actions.",
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

			if jsonFlag, _ := cmd.Flags().GetBool("json"); jsonFlag {
				return output.WriteJSON(cmd.OutOrStdout(), "sheet show", map[string]interface{}{
					"sheet": args[0],
					"rows":  rows,
				})
			}

			var buf bytes.Buffer
			renderTable(&buf, args[0], rows, limit)
			out := cmd.OutOrStdout()
			if output.ShouldPage(out, buf.String()) {
				return output.Page(out, buf.String())
			}
			_, err = io.Copy(out, &buf)
			return err
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most N rows (0 = all)")
	return cmd
}

// renderTable prints rows with the union of their columns as the header.
func renderTable(w io.Writer, name string, rows []docstore.Row, limit int) {
	headerStyle := color.New(color.Bold, color.FgCyan)
	dim := color.New(color.FgHiBlack)

	headerStyle.Fprintf(w, "Sheet: %s\n", name)
	if len(rows) == 0 {
		dim.Fprintln(w, "  (empty)")
		return
	}

	shown := rows
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}

	header := append([]string{"#"}, tabular.Columns(rows)...)
	table := make([][]string, 0, len(shown))
	for i, r := range shown {
		cells := make([]string, len(header))
		cells[0] = strconv.Itoa(i)
		for c, col := range header[1:] {
			if v, ok := r.Get(col); ok {
				cells[c+1] = formatCell(v)
			}
		}
		table = append(table, cells)
	}

	widths := make([]int, len(header))
	for j, h := range header {
		widths[j] = utf8.RuneCountInString(h)
	}
	for _, cells := range table {
		for j, cell := range cells {
			if n := utf8.RuneCountInString(cell); n > widths[j] {
				widths[j] = n
			}
		}
	}
	for j := range widths {
		if widths[j] > maxColumnWidth {
			widths[j] = maxColumnWidth
		}
	}

	printRow(w, header, widths, color.New(color.Bold))
	dim.Fprint(w, "  ")
	for j, width := range widths {
		if j > 0 {
			dim.Fprint(w, "+-")
		}
		dim.Fprint(w, strings.Repeat("-", width+1))
	}
	dim.Fprintln(w)
	for _, cells := range table {
		printRow(w, cells, widths, nil)
	}

	if len(shown) < len(rows) {
		dim.Fprintf(w, "  (%d of %d rows)\n", len(shown), len(rows))
		return
	}
	dim.Fprintf(w, "  (%d rows)\n", len(rows))
}

func printRow(w io.Writer, cells []string, widths []int, style *color.Color) {
	fmt.Fprint(w, "  ")
	for j, width := range widths {
		if j > 0 {
			fmt.Fprint(w, "| ")
		}
		cell := ""
		if j < len(cells) {
			cell = cells[j]
		}
		if utf8.RuneCountInString(cell) > width {
			cell = string([]rune(cell)[:width-1]) + "~"
		}
		padded := cell + strings.Repeat(" ", width-utf8.RuneCountInString(cell)+1)
		if style != nil {
			style.Fprint(w, padded)
		} else {
			fmt.Fprint(w, padded)
		}
	}
	fmt.Fprintln(w)
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
