package bot

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/klytics/sheetbot/internal/docstore"
	"github.com/klytics/sheetbot/internal/tabular"
)

const welcomeText = `🤖 Welcome! I keep your spreadsheet data and answer questions about it.

Commands:
/start - Show this message
/help - Show usage help
/status - Show what is stored in the database

What I can do:
📁 Send a spreadsheet file (.xlsx, .xlsm, .csv) and I will read it into the database
💬 Send a text message and I will answer using the data in the database
📊 Ask me to change the data and I will update it and send the sheet back as Excel`

const helpText = `📖 How to use the bot:

1. 📤 UPLOAD A SPREADSHEET
   Send an .xlsx, .xlsm or .csv file.
   Every sheet is read and stored in the database (JSON).

2. 💬 ASK ABOUT THE DATA
   Write any question about the stored data.
   The assistant reads the data and answers.

3. ✏️ EDIT THE DATA
   Ask for a change, for example:
   "Change the Name in row 5 to 'Ivan'"
   The database is updated automatically.

4. 📊 EXPORT
   Ask for an export, for example:
   "Export the sheet 'Report' to Excel"
   You get the sheet back as an .xlsx file.

Example requests:
- "How many rows are in the database?"
- "List the unique values of the 'City' column"
- "Set the status in row 3 to 'Done'"
- "Export all data of the sheet 'Report' to Excel"`

func unsupportedText(filename string) string {
	if strings.EqualFold(filepath.Ext(filename), ".xls") {
		return "❌ Legacy .xls workbooks are not supported. Save the file as .xlsx and send it again."
	}
	return "❌ Please send a spreadsheet file (" + strings.Join(tabular.Extensions, ", ") + ")."
}

func uploadSummary(filename string, sheets []docstore.Sheet) string {
	var b strings.Builder
	b.WriteString("✅ File processed successfully!\n\n")
	fmt.Fprintf(&b, "📁 File: %s\n", filename)
	fmt.Fprintf(&b, "📊 Sheets processed: %d\n\n", len(sheets))
	for _, s := range sheets {
		fmt.Fprintf(&b, "📋 %s: %d rows\n", s.Name, len(s.Rows))
	}
	return strings.TrimRight(b.String(), "\n")
}

func statusText(doc *docstore.Document, assistantState string) string {
	var b strings.Builder
	b.WriteString("📊 Database status:\n\n")
	fmt.Fprintf(&b, "📁 Sheets: %d\n\n", len(doc.Sheets))
	for _, s := range doc.Sheets {
		fmt.Fprintf(&b, "📋 %s: %d rows\n", s.Name, len(s.Rows))
	}
	if doc.Metadata.LastUpdated != nil {
		fmt.Fprintf(&b, "\n🕐 Last updated: %s", docstore.FormatTimestamp(*doc.Metadata.LastUpdated))
	}
	if doc.Metadata.SourceFile != nil {
		fmt.Fprintf(&b, "\n📄 Source file: %s", *doc.Metadata.SourceFile)
	}
	fmt.Fprintf(&b, "\n🤖 Assistant: %s", assistantState)
	if len(doc.Sheets) == 0 {
		b.WriteString("\n\n⚠️ The database is empty. Upload a spreadsheet file.")
	}
	return b.String()
}

func exportCaption(sheet string) string {
	return fmt.Sprintf("📊 Exported data from sheet '%s'", sheet)
}
