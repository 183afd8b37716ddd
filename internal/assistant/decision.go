package assistant

import (
	"encoding/json"
	"strings"

	"github.com/klytics/sheetbot/internal/actions"
)

// DefaultResponse is used when the model returns an object without a
// "response" field.
const DefaultResponse = "Could not get an answer."

// Decision is the parsed model reply.
type Decision struct {
	Response    string       `json:"response"`
	NeedsUpdate bool         `json:"needs_update"`
	Actions     actions.List `json:"update_actions"`
}

type decisionWire struct {
	Response    *string      `json:"response"`
	NeedsUpdate bool         `json:"needs_update"`
	Actions     actions.List `json:"update_actions"`
}

// ParseDecision extracts the JSON object between the first '{' and the last
// '}' of text. When there is no such span or it does not decode, the whole
// trimmed text becomes the response and no update is requested.
func ParseDecision(text string) Decision {
	text = strings.TrimSpace(text)
	plain := Decision{Response: text, Actions: actions.List{}}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return plain
	}

	var w decisionWire
	if err := json.Unmarshal([]byte(text[start:end+1]), &w); err != nil {
		return plain
	}

	d := Decision{Response: DefaultResponse, NeedsUpdate: w.NeedsUpdate, Actions: w.Actions}
	if w.Response != nil {
		d.Response = *w.Response
	}
	if d.Actions == nil {
		d.Actions = actions.List{}
	}
	return d
}

// WantsUpdate reports whether the decision asks for a non-empty batch.
func (d Decision) WantsUpdate() bool {
	return d.NeedsUpdate && len(d.Actions) > 0
}
