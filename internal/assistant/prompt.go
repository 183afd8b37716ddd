// Package assistant turns a user question plus the current document into a
// model prompt and parses the model's reply into a Decision.
package assistant

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/klytics/sheetbot/internal/docstore"
)

const (
	databaseHeader = "=== DATABASE (JSON) ==="
	databaseFooter = "=== END OF DATABASE ==="
)

// SystemPrompt describes the reply contract and the action format.
const SystemPrompt = `You are an assistant that works with a database stored as JSON.
The database holds data imported from spreadsheet files, organised by sheets.

Your job:
1. Analyse the JSON data and answer the user's questions about it.
2. If the user asks to change the data, work out exactly which changes are needed.
3. Always reply with a JSON object with the fields:
   - "response": the text answer for the user
   - "needs_update": true/false, whether the database must be changed
   - "update_actions": an array of actions to apply (when needs_update is true)

Action format:
{
  "action": "update_field" | "add_row" | "delete_row" | "update_sheet",
  "sheet_name": "name of the sheet",
  "row_index": zero-based row number (for update_field, delete_row),
  "field_name": "column name" (for update_field),
  "new_value": the new value (for update_field),
  "row_data": an object with the row's columns (for add_row),
  "sheet_data": an array with every row of the sheet (for update_sheet)
}

Row indexes refer to the state after the previous actions in the same array have been applied.
Be precise and careful when working with the data.`

// RenderDocument returns the indented, unescaped JSON form of doc that is
// embedded in the prompt.
func RenderDocument(doc *docstore.Document) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("could not render database for the prompt: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// UserMessage builds the user turn: the delimited database followed by the
// question.
func UserMessage(doc *docstore.Document, query string) (string, error) {
	rendered, err := RenderDocument(doc)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(databaseHeader)
	b.WriteString("\n\n")
	b.WriteString(rendered)
	b.WriteString("\n\n")
	b.WriteString(databaseFooter)
	b.WriteString("\n\n")
	b.WriteString("User question: ")
	b.WriteString(query)
	b.WriteString("\n\nAnswer in JSON format.")
	return b.String(), nil
}
