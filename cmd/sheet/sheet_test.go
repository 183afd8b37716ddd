package sheet

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/klytics/sheetbot/internal/docstore"
	"github.com/klytics/sheetbot/internal/tabular"
)

type env struct {
	dir string
	db  string
}

func setup(t *testing.T) env {
	t.Helper()
	color.NoColor = true
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("SHEETBOT_CONFIG_DIR", t.TempDir())
	dir := t.TempDir()
	return env{dir: dir, db: filepath.Join(dir, "database.json")}
}

func (e env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "sheetbot", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().String("db", "", "")
	root.PersistentFlags().Bool("json", false, "")
	root.AddCommand(NewCommand())

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(append(args, "--db", e.db))
	err := root.Execute()
	return out.String(), err
}

func (e env) writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestImportAndList(t *testing.T) {
	e := setup(t)
	path := e.writeCSV(t, "people.csv", "Name,City\nAlice,Paris\nBob,Rome\n")

	out, err := e.run(t, "sheet", "import", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "people: 2 rows") {
		t.Errorf("unexpected import output:\n%s", out)
	}

	out, err = e.run(t, "sheet", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "people") || !strings.Contains(out, "2 rows") || !strings.Contains(out, "Source file:  people.csv") {
		t.Errorf("unexpected list output:\n%s", out)
	}
}

func TestImportRejectsUnsupported(t *testing.T) {
	e := setup(t)
	path := e.writeCSV(t, "notes.txt", "hello")
	if _, err := e.run(t, "sheet", "import", path); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("expected unsupported error, got %v", err)
	}
}

func TestListJSONOnEmptyDatabase(t *testing.T) {
	e := setup(t)
	out, err := e.run(t, "sheet", "list", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var res struct {
		OK   bool `json:"ok"`
		Data struct {
			Sheets []sheetInfo `json:"sheets"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if !res.OK || res.Data.Sheets == nil || len(res.Data.Sheets) != 0 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestShowPrintsIndexedRows(t *testing.T) {
	e := setup(t)
	e.run(t, "sheet", "import", e.writeCSV(t, "people.csv", "Name,Age\nAlice,30\nBob,25\n"))

	out, err := e.run(t, "sheet", "show", "people")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Sheet: people", "# | Name  | Age", "0 | Alice | 30", "1 | Bob   | 25", "(2 rows)"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}

	out, _ = e.run(t, "sheet", "show", "people", "--limit", "1")
	if !strings.Contains(out, "(1 of 2 rows)") {
		t.Errorf("limit not applied:\n%s", out)
	}
}

func TestShowUnknownSheet(t *testing.T) {
	e := setup(t)
	if _, err := e.run(t, "sheet", "show", "Nope"); err == nil || !strings.Contains(err.Error(), "database is empty") {
		t.Errorf("expected empty database error, got %v", err)
	}
}

func TestExportWritesWorkbook(t *testing.T) {
	e := setup(t)
	e.run(t, "sheet", "import", e.writeCSV(t, "people.csv", "Name,Age\nAlice,30\n"))

	target := filepath.Join(e.dir, "out", "people.xlsx")
	if _, err := e.run(t, "sheet", "export", "people", "-o", target); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	sheets, err := tabular.Read(target, data)
	if err != nil {
		t.Fatal(err)
	}
	if len(sheets) != 1 || len(sheets[0].Rows) != 1 {
		t.Fatalf("unexpected export %+v", sheets)
	}
	if v, _ := sheets[0].Rows[0].Get("Name"); v != "Alice" {
		t.Errorf("Name = %v", v)
	}
}

func TestFormatCell(t *testing.T) {
	for _, tc := range []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{int64(3), "3"},
		{2.5, "2.5"},
		{1e6, "1000000"},
		{true, "true"},
	} {
		if got := formatCell(tc.in); got != tc.want {
			t.Errorf("formatCell(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	doc := docstore.Empty()
	doc.SetSheet("A", []docstore.Row{docstore.NewRow()})
	res := summarize("/db.json", doc)
	if len(res.Sheets) != 1 || res.Sheets[0].Rows != 1 || res.LastUpdated != "" {
		t.Errorf("unexpected summary %+v", res)
	}
}
