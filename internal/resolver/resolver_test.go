package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/storage"
)

type fakeLinks map[string]string

func (f fakeLinks) ResolveTitle(target string) (string, error) {
	p, ok := f[target]
	if !ok {
		return "", apperr.ErrNotFound
	}
	return p, nil
}

// fakePrompts maps prompt names to their frontmatter-stripped text.
type fakePrompts map[string]string

func (f fakePrompts) LoadSystemPrompt(name string) (string, error) {
	text, ok := f[name]
	if !ok {
		return "", apperr.ErrNotFound
	}
	return text, nil
}

func newResolver(t *testing.T, links LinkResolver) (*Resolver, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return New(store, links, nil, 500*time.Millisecond), dir
}

func ctxDirective(kind parser.ContextKind, arg string) parser.Directive {
	return parser.Directive{Kind: parser.DirContext, Context: kind, Arg: arg}
}

func TestResolve_CurrentDocumentAboveBlockOnly(t *testing.T) {
	r, _ := newResolver(t, nil)
	doc := "above the block\n<ai!>\n<this!>\nq\n<reply!>\n</ai!>\n"
	blockStart := strings.Index(doc, "<ai!>")

	res := r.Resolve(context.Background(), ctxDirective(parser.CtxCurrentDocument, ""), doc, blockStart)
	if res.Outcome != Ok {
		t.Fatalf("outcome = %v, detail %q", res.Outcome, res.Detail)
	}
	if res.Text != "above the block\n" {
		t.Errorf("text = %q", res.Text)
	}
}

func TestResolve_NoteLink(t *testing.T) {
	links := fakeLinks{"Target Note": "notes/target.md"}
	r, dir := newResolver(t, links)
	full := filepath.Join(dir, "notes", "target.md")
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte("note body\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	res := r.Resolve(context.Background(), ctxDirective(parser.CtxNoteLink, "[[Target Note|alias]]"), "", 0)
	if res.Outcome != Ok {
		t.Fatalf("outcome = %v, detail %q", res.Outcome, res.Detail)
	}
	if res.Text != "note body\n" {
		t.Errorf("text = %q", res.Text)
	}
	if res.Name != "notes/target.md" {
		t.Errorf("name = %q", res.Name)
	}
}

func TestResolve_NoteLinkNotFound(t *testing.T) {
	r, _ := newResolver(t, fakeLinks{})
	res := r.Resolve(context.Background(), ctxDirective(parser.CtxNoteLink, "[[Missing]]"), "", 0)
	if res.Outcome != NotFound {
		t.Errorf("outcome = %v, want NotFound", res.Outcome)
	}
	if res.Detail == "" {
		t.Error("expected a failure detail")
	}
}

func TestResolve_URL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("plain payload"))
	}))
	defer srv.Close()

	r, _ := newResolver(t, nil)
	res := r.Resolve(context.Background(), ctxDirective(parser.CtxURL, srv.URL), "", 0)
	if res.Outcome != Ok {
		t.Fatalf("outcome = %v, detail %q", res.Outcome, res.Detail)
	}
	if res.Text != "plain payload" {
		t.Errorf("text = %q", res.Text)
	}
}

func TestResolve_URLHTMLToText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><head><script>junk()</script></head><body><p>hello</p><p>world</p></body></html>"))
	}))
	defer srv.Close()

	r, _ := newResolver(t, nil)
	res := r.Resolve(context.Background(), ctxDirective(parser.CtxURL, srv.URL), "", 0)
	if res.Outcome != Ok {
		t.Fatalf("outcome = %v, detail %q", res.Outcome, res.Detail)
	}
	if strings.Contains(res.Text, "junk") || strings.Contains(res.Text, "<p>") {
		t.Errorf("markup leaked through: %q", res.Text)
	}
	if !strings.Contains(res.Text, "hello") || !strings.Contains(res.Text, "world") {
		t.Errorf("text content lost: %q", res.Text)
	}
}

func TestResolve_URLServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	r, _ := newResolver(t, nil)
	res := r.Resolve(context.Background(), ctxDirective(parser.CtxURL, srv.URL), "", 0)
	if res.Outcome != FetchError {
		t.Errorf("outcome = %v, want FetchError", res.Outcome)
	}
	if !strings.Contains(res.Detail, "500") {
		t.Errorf("detail = %q", res.Detail)
	}
}

func TestResolve_URLTimeoutIsInlineFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	r, _ := newResolver(t, nil)
	res := r.Resolve(context.Background(), ctxDirective(parser.CtxURL, srv.URL), "", 0)
	if res.Outcome != FetchError {
		t.Errorf("timeout must resolve to FetchError, got %v", res.Outcome)
	}
}

func TestResolve_PDFBinary(t *testing.T) {
	r, dir := newResolver(t, nil)
	payload := []byte("%PDF-1.4 fake")
	if err := os.WriteFile(filepath.Join(dir, "doc.pdf"), payload, 0o644); err != nil {
		t.Fatal(err)
	}

	res := r.Resolve(context.Background(), ctxDirective(parser.CtxPDF, "doc.pdf"), "", 0)
	if res.Outcome != Ok {
		t.Fatalf("outcome = %v, detail %q", res.Outcome, res.Detail)
	}
	if string(res.Data) != string(payload) {
		t.Errorf("data = %q", res.Data)
	}
	if res.MIME != "application/pdf" {
		t.Errorf("mime = %q", res.MIME)
	}
}

func TestResolve_ImageMIMEFromExtension(t *testing.T) {
	r, dir := newResolver(t, nil)
	if err := os.WriteFile(filepath.Join(dir, "pic.png"), []byte{0x89, 'P', 'N', 'G'}, 0o644); err != nil {
		t.Fatal(err)
	}

	res := r.Resolve(context.Background(), ctxDirective(parser.CtxImage, "pic.png"), "", 0)
	if res.Outcome != Ok {
		t.Fatalf("outcome = %v, detail %q", res.Outcome, res.Detail)
	}
	if res.MIME != "image/png" {
		t.Errorf("mime = %q", res.MIME)
	}
}

func TestResolve_Prompt(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	r := New(store, nil, fakePrompts{"summarizer": "You summarize documents.\n"}, time.Second)

	res := r.Resolve(context.Background(), ctxDirective(parser.CtxPrompt, "summarizer"), "", 0)
	if res.Outcome != Ok {
		t.Fatalf("outcome = %v, detail = %q", res.Outcome, res.Detail)
	}
	if res.Text != "You summarize documents.\n" {
		t.Errorf("text = %q", res.Text)
	}
	if res.Name != "summarizer" {
		t.Errorf("name = %q", res.Name)
	}
}

func TestResolve_PromptNotFound(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	r := New(store, nil, fakePrompts{}, time.Second)

	res := r.Resolve(context.Background(), ctxDirective(parser.CtxPrompt, "missing"), "", 0)
	if res.Outcome != NotFound {
		t.Errorf("outcome = %v, want NotFound", res.Outcome)
	}
}

func TestStripWikilink(t *testing.T) {
	cases := []struct{ in, want string }{
		{"[[Note]]", "Note"},
		{"[[Note|alias]]", "Note"},
		{"plain", "plain"},
		{"[[ Spaced ]]", "Spaced"},
	}
	for _, c := range cases {
		if got := stripWikilink(c.in); got != c.want {
			t.Errorf("stripWikilink(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
