package ask

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/klytics/sheetbot/internal/docstore"
)

const editDecision = `{"response": "Bob moved to Milan.", "needs_update": true, "update_actions": [{"action": "update_field", "sheet_name": "People", "row_index": 1, "field_name": "City", "new_value": "Milan"}]}`

func fakeOllama(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message": map[string]string{"role": "assistant", "content": content},
			"done":    true,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setup(t *testing.T, content string) (db, outDir string) {
	t.Helper()
	color.NoColor = true
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("SHEETBOT_CONFIG_DIR", t.TempDir())
	t.Setenv("SHEETBOT_OLLAMA_HOST", fakeOllama(t, content).URL)

	dir := t.TempDir()
	db = filepath.Join(dir, "database.json")
	store, err := docstore.Open(db)
	if err != nil {
		t.Fatal(err)
	}
	err = store.SaveTabularData([]docstore.Sheet{{Name: "People", Rows: []docstore.Row{
		docstore.NewRow(docstore.Field{Name: "Name", Value: "Alice"}, docstore.Field{Name: "City", Value: "Paris"}),
		docstore.NewRow(docstore.Field{Name: "Name", Value: "Bob"}, docstore.Field{Name: "City", Value: "Rome"}),
	}}}, "people.xlsx")
	if err != nil {
		t.Fatal(err)
	}
	return db, filepath.Join(dir, "exports")
}

func run(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "sheetbot", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().String("db", "", "")
	root.PersistentFlags().String("provider", "", "")
	root.PersistentFlags().Bool("json", false, "")
	root.AddCommand(NewCommand())

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"ask", "--db", db, "--provider", "ollama"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestAskAnswersQuestion(t *testing.T) {
	db, _ := setup(t, `{"response": "There are 2 people.", "needs_update": false, "update_actions": []}`)
	out, err := run(t, db, "How", "many", "people?")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "There are 2 people." {
		t.Errorf("unexpected output %q", out)
	}
}

func TestAskAppliesEditAndShowsDiff(t *testing.T) {
	db, outDir := setup(t, editDecision)
	out, err := run(t, db, "--diff", "--output-dir", outDir, "Move Bob to Milan")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Bob moved to Milan.", "Database updated", `-        "City": "Rome"`, `+        "City": "Milan"`, "saved to"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	store, _ := docstore.Open(db)
	rows, _, _ := store.GetSheet("People")
	if v, _ := rows[1].Get("City"); v != "Milan" {
		t.Errorf("City = %v, want Milan", v)
	}
	if _, err := os.Stat(filepath.Join(outDir, "People_export.xlsx")); err != nil {
		t.Errorf("export not written: %v", err)
	}
}

func TestAskJSON(t *testing.T) {
	db, outDir := setup(t, editDecision)
	out, err := run(t, db, "--json", "--diff", "--output-dir", outDir, "Move Bob to Milan")
	if err != nil {
		t.Fatal(err)
	}
	var res struct {
		OK   bool   `json:"ok"`
		Data result `json:"data"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if !res.OK || !strings.HasPrefix(res.Data.Reply, "Bob moved to Milan.") {
		t.Errorf("unexpected result %+v", res)
	}
	if len(res.Data.Files) != 1 || len(res.Data.Diff) == 0 {
		t.Errorf("expected one file and a diff, got %+v", res.Data)
	}
}

func TestAskStatusCommandMakesNoChanges(t *testing.T) {
	db, _ := setup(t, "")
	out, err := run(t, db, "--diff", "/status")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "People: 2 rows") || !strings.Contains(out, "No changes to the database.") {
		t.Errorf("unexpected output:\n%s", out)
	}
}
