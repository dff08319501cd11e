// Package resolver fetches and normalises the context sources a directive
// block references: the current document, other notes, URLs, PDFs, and
// images.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/storage"
)

// maxFetchBytes caps a URL response body.
const maxFetchBytes = 2 << 20

// Outcome classifies a resolution attempt.
type Outcome int

const (
	Ok Outcome = iota
	NotFound
	FetchError
)

// Resolved pairs a context directive with its fetched payload. Failures
// are carried, not dropped: the prompt assembler renders them as explicit
// inline failure notes so the model knows a source is missing.
type Resolved struct {
	Directive parser.Directive
	Outcome   Outcome
	Detail    string // failure detail when Outcome != Ok

	Text string // text payload (document, note, URL)
	Name string // display name of the source (path, URL)
	Data []byte // binary payload (pdf, image)
	MIME string
}

// LinkResolver resolves a wikilink-style note target to a vault path.
type LinkResolver interface {
	ResolveTitle(target string) (string, error)
}

// PromptLoader loads a named prompt from the vault prompts folder, with
// frontmatter stripped. Missing names must return apperr.ErrNotFound.
type PromptLoader interface {
	LoadSystemPrompt(name string) (string, error)
}

// Resolver resolves context directives against the vault and the network.
type Resolver struct {
	store   storage.Provider
	links   LinkResolver
	prompts PromptLoader
	client  *http.Client
}

// New creates a Resolver. timeout bounds each URL fetch; retries belong to
// callers, never here.
func New(store storage.Provider, links LinkResolver, prompts PromptLoader, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Resolver{
		store:   store,
		links:   links,
		prompts: prompts,
		client:  &http.Client{Timeout: timeout},
	}
}

// Resolve fetches the payload for one context directive. docText is the
// full document and blockStart the byte offset of the block being
// processed; the current-document kind includes only the text above the
// block so the model never sees its own unanswered directive.
func (r *Resolver) Resolve(ctx context.Context, d parser.Directive, docText string, blockStart int) Resolved {
	res := Resolved{Directive: d}

	switch d.Context {
	case parser.CtxCurrentDocument:
		if blockStart > len(docText) {
			blockStart = len(docText)
		}
		res.Text = docText[:blockStart]
		res.Name = "current document"

	case parser.CtxNoteLink:
		path, err := r.links.ResolveTitle(stripWikilink(d.Arg))
		if err != nil {
			return failed(res, err)
		}
		data, err := r.store.Read(path)
		if err != nil {
			return failed(res, err)
		}
		res.Text = string(data)
		res.Name = path

	case parser.CtxURL:
		return r.fetchURL(ctx, res, d.Arg)

	case parser.CtxPDF, parser.CtxImage:
		data, err := r.store.Read(stripWikilink(d.Arg))
		if err != nil {
			return failed(res, err)
		}
		res.Data = data
		res.Name = d.Arg
		res.MIME = mimeForPath(d.Arg, d.Context)

	case parser.CtxPrompt:
		name := stripWikilink(d.Arg)
		res.Name = name
		if r.prompts == nil {
			return failed(res, fmt.Errorf("resolver: prompt %q: %w", name, apperr.ErrNotFound))
		}
		text, err := r.prompts.LoadSystemPrompt(name)
		if err != nil {
			return failed(res, err)
		}
		res.Text = text
	}

	return res
}

func (r *Resolver) fetchURL(ctx context.Context, res Resolved, rawURL string) Resolved {
	res.Name = rawURL

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		res.Outcome = FetchError
		res.Detail = err.Error()
		return res
	}
	resp, err := r.client.Do(req)
	if err != nil {
		res.Outcome = FetchError
		res.Detail = err.Error()
		return res
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		res.Outcome = FetchError
		res.Detail = fmt.Sprintf("unexpected status %s", resp.Status)
		return res
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		res.Outcome = FetchError
		res.Detail = err.Error()
		return res
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/html") {
		res.Text = htmlToText(body)
	} else {
		res.Text = string(body)
	}
	return res
}

func failed(res Resolved, err error) Resolved {
	if errors.Is(err, apperr.ErrNotFound) {
		res.Outcome = NotFound
	} else {
		// Ambiguity is a fetch error, not a silent pick.
		res.Outcome = FetchError
	}
	res.Detail = err.Error()
	return res
}

// stripWikilink unwraps [[Target|alias]] to Target; plain values pass
// through unchanged.
func stripWikilink(arg string) string {
	if strings.HasPrefix(arg, "[[") && strings.HasSuffix(arg, "]]") {
		arg = arg[2 : len(arg)-2]
		if i := strings.Index(arg, "|"); i >= 0 {
			arg = arg[:i]
		}
	}
	return strings.TrimSpace(arg)
}

func mimeForPath(path string, kind parser.ContextKind) string {
	if kind == parser.CtxPDF {
		return "application/pdf"
	}
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
