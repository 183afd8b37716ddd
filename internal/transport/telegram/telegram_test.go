package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/klytics/sheetbot/internal/bot"
	"github.com/klytics/sheetbot/internal/logging"
)

const testToken = "123:abc"

type apiCall struct {
	method   string
	form     url.Values
	fileName string
	fileData []byte
}

type fakeAPI struct {
	mu       sync.Mutex
	calls    []apiCall
	nextID   int
	fileData []byte
	updates  []string
	srv      *httptest.Server
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{nextID: 100}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/file/bot"+testToken+"/") {
		w.Write(f.fileData)
		return
	}
	method := strings.TrimPrefix(r.URL.Path, "/bot"+testToken+"/")
	call := apiCall{method: method}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(10 << 20); err == nil {
			call.form = r.MultipartForm.Value
			if file, hdr, err := r.FormFile("document"); err == nil {
				call.fileName = hdr.Filename
				call.fileData, _ = io.ReadAll(file)
				file.Close()
			}
		}
	} else {
		r.ParseForm()
		call.form = r.PostForm
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.nextID++
	id := f.nextID
	var pending string
	if method == "getUpdates" && len(f.updates) > 0 {
		pending, f.updates = f.updates[0], f.updates[1:]
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "getMe":
		fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Sheet","username":"sheet_bot"}}`)
	case "sendChatAction":
		fmt.Fprint(w, `{"ok":true,"result":true}`)
	case "getFile":
		fmt.Fprintf(w, `{"ok":true,"result":{"file_id":"F1","file_unique_id":"U1","file_size":%d,"file_path":"documents/file_1.csv"}}`, len(f.fileData))
	case "getUpdates":
		if pending == "" {
			time.Sleep(10 * time.Millisecond)
			pending = "[]"
		}
		fmt.Fprintf(w, `{"ok":true,"result":%s}`, pending)
	default:
		fmt.Fprintf(w, `{"ok":true,"result":{"message_id":%d,"date":0,"chat":{"id":42,"type":"private"}}}`, id)
	}
}

func (f *fakeAPI) callsTo(method string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

type upload struct {
	name string
	data []byte
}

type recordingHandler struct {
	mu      sync.Mutex
	texts   []string
	uploads []upload
	seen    chan struct{}
}

func (h *recordingHandler) Dispatch(ctx context.Context, conv bot.Conversation, text string) error {
	h.mu.Lock()
	h.texts = append(h.texts, text)
	h.mu.Unlock()
	if h.seen != nil {
		h.seen <- struct{}{}
	}
	return conv.Reply(ctx, "ok")
}

func (h *recordingHandler) HandleUpload(ctx context.Context, conv bot.Conversation, filename string, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.uploads = append(h.uploads, upload{name: filename, data: data})
	return nil
}

func newTestTransport(t *testing.T, api *fakeAPI, h Handler, maxUpload int64) *Transport {
	t.Helper()
	tr, err := New(Options{
		Token:          testToken,
		APIEndpoint:    api.srv.URL + "/bot%s/%s",
		FileEndpoint:   api.srv.URL + "/file/bot%s/%s",
		HTTPClient:     api.srv.Client(),
		MaxUploadBytes: maxUpload,
		PollTimeout:    1,
		Logger:         logging.Nop(),
	}, h)
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func TestNewRequiresToken(t *testing.T) {
	_, err := New(Options{Token: "  "}, &recordingHandler{})
	if err == nil || !strings.Contains(err.Error(), "telegram.token") {
		t.Fatalf("expected token hint, got %v", err)
	}
}

func TestNewReadsBotIdentity(t *testing.T) {
	api := newFakeAPI(t)
	tr := newTestTransport(t, api, &recordingHandler{}, 0)
	if tr.Username() != "sheet_bot" {
		t.Errorf("Username() = %q", tr.Username())
	}
}

func TestReplyEditsStatusMessage(t *testing.T) {
	api := newFakeAPI(t)
	tr := newTestTransport(t, api, &recordingHandler{}, 0)
	conv := &conversation{t: tr, chatID: 42}
	ctx := context.Background()

	done := conv.Working(ctx, "⏳ Processing spreadsheet...")
	done()
	if err := conv.Reply(ctx, "✅ done"); err != nil {
		t.Fatal(err)
	}

	sent := api.callsTo("sendMessage")
	if len(sent) != 1 || sent[0].form.Get("text") != "⏳ Processing spreadsheet..." {
		t.Fatalf("expected only the status message to be sent, got %+v", sent)
	}
	edits := api.callsTo("editMessageText")
	if len(edits) != 1 {
		t.Fatalf("expected one edit, got %d", len(edits))
	}
	if edits[0].form.Get("text") != "✅ done" || edits[0].form.Get("message_id") == "" {
		t.Errorf("unexpected edit %+v", edits[0].form)
	}

	conv.Reply(ctx, "second")
	if n := len(api.callsTo("sendMessage")); n != 2 {
		t.Errorf("second reply should be a new message, sendMessage calls = %d", n)
	}
}

func TestReplySplitsLongText(t *testing.T) {
	api := newFakeAPI(t)
	tr := newTestTransport(t, api, &recordingHandler{}, 0)
	conv := &conversation{t: tr, chatID: 42}

	text := strings.Repeat("word ", 1500)
	if err := conv.Reply(context.Background(), text); err != nil {
		t.Fatal(err)
	}
	sent := api.callsTo("sendMessage")
	if len(sent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(sent))
	}
	for _, c := range sent {
		if n := len([]rune(c.form.Get("text"))); n > MaxMessageLength {
			t.Errorf("message too long: %d", n)
		}
	}
}

func TestSendFileUploadsDocument(t *testing.T) {
	api := newFakeAPI(t)
	tr := newTestTransport(t, api, &recordingHandler{}, 0)
	conv := &conversation{t: tr, chatID: 42}

	if err := conv.SendFile(context.Background(), "People_export.xlsx", []byte("PK.."), "📊 Exported"); err != nil {
		t.Fatal(err)
	}
	docs := api.callsTo("sendDocument")
	if len(docs) != 1 {
		t.Fatalf("expected one document, got %d", len(docs))
	}
	d := docs[0]
	if d.fileName != "People_export.xlsx" || string(d.fileData) != "PK.." {
		t.Errorf("unexpected upload %q %q", d.fileName, d.fileData)
	}
	if got := d.form["caption"]; len(got) == 0 || got[0] != "📊 Exported" {
		t.Errorf("caption = %v", got)
	}
	if got := d.form["chat_id"]; len(got) == 0 || got[0] != "42" {
		t.Errorf("chat_id = %v", got)
	}
}

func documentUpdate(name string, size int) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: 42},
		Document: &tgbotapi.Document{FileID: "F1", FileName: name, FileSize: size},
	}}
}

func TestHandleUpdateDownloadsDocument(t *testing.T) {
	api := newFakeAPI(t)
	api.fileData = []byte("Name,Age\nAlice,30\n")
	h := &recordingHandler{}
	tr := newTestTransport(t, api, h, 0)

	tr.handleUpdate(context.Background(), documentUpdate("people.csv", len(api.fileData)))

	if len(h.uploads) != 1 {
		t.Fatalf("expected one upload, got %d", len(h.uploads))
	}
	if h.uploads[0].name != "people.csv" || string(h.uploads[0].data) != string(api.fileData) {
		t.Errorf("unexpected upload %+v", h.uploads[0])
	}
}

func TestHandleUpdateUnsupportedSkipsDownload(t *testing.T) {
	api := newFakeAPI(t)
	h := &recordingHandler{}
	tr := newTestTransport(t, api, h, 0)

	tr.handleUpdate(context.Background(), documentUpdate("slides.pptx", 10))

	if len(api.callsTo("getFile")) != 0 {
		t.Error("unsupported files must not be downloaded")
	}
	if len(h.uploads) != 1 || h.uploads[0].data != nil {
		t.Errorf("handler should see the rejected name, got %+v", h.uploads)
	}
}

func TestHandleUpdateTooLarge(t *testing.T) {
	api := newFakeAPI(t)
	h := &recordingHandler{}
	tr := newTestTransport(t, api, h, 1<<20)

	tr.handleUpdate(context.Background(), documentUpdate("big.xlsx", 2<<20))

	if len(h.uploads) != 0 || len(api.callsTo("getFile")) != 0 {
		t.Error("oversized files must not reach the handler")
	}
	sent := api.callsTo("sendMessage")
	if len(sent) != 1 || !strings.Contains(sent[0].form.Get("text"), "too large") {
		t.Errorf("expected size warning, got %+v", sent)
	}
}

func TestHandleUpdateText(t *testing.T) {
	api := newFakeAPI(t)
	h := &recordingHandler{}
	tr := newTestTransport(t, api, h, 0)

	tr.handleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: 42},
		Text: "how many rows?",
	}})
	tr.handleUpdate(context.Background(), tgbotapi.Update{})

	if len(h.texts) != 1 || h.texts[0] != "how many rows?" {
		t.Errorf("unexpected dispatch %v", h.texts)
	}
}

func TestRunDeliversUpdates(t *testing.T) {
	api := newFakeAPI(t)
	api.updates = []string{`[{"update_id":7,"message":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"},"text":"/status"}}]`}
	h := &recordingHandler{seen: make(chan struct{}, 1)}
	tr := newTestTransport(t, api, h, 0)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- tr.Run(ctx) }()

	select {
	case <-h.seen:
	case <-time.After(5 * time.Second):
		t.Fatal("update not delivered")
	}
	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
	if h.texts[0] != "/status" {
		t.Errorf("unexpected text %q", h.texts[0])
	}
}

func TestSplitMessage(t *testing.T) {
	if got := SplitMessage("short", 10); len(got) != 1 || got[0] != "short" {
		t.Errorf("short text split: %q", got)
	}

	text := "first paragraph here\n\nsecond paragraph"
	got := SplitMessage(text, 30)
	if len(got) != 2 || got[0] != "first paragraph here" || got[1] != "second paragraph" {
		t.Errorf("paragraph split = %q", got)
	}

	long := strings.Repeat("я", 25)
	got = SplitMessage(long, 10)
	if len(got) != 3 || strings.Join(got, "") != long {
		t.Errorf("rune split = %q", got)
	}
}
