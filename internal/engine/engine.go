// Package engine processes directive blocks end to end: parse the note,
// resolve contexts, assemble the prompt, drive the tool loop, and splice
// the answer back into the file.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/confirm"
	"github.com/starford/ansuz/internal/llm"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/prompt"
	"github.com/starford/ansuz/internal/resolver"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/toolsets"
)

// MockFactory builds the invoker used when a block carries the mock
// directive. Each block gets a fresh instance so scripted responses replay
// from the start.
type MockFactory func() llm.Invoker

// Engine owns the per-document processing pipeline. One Engine serves all
// documents; blocks within a document run sequentially, distinct documents
// may be processed concurrently by the coordinator.
type Engine struct {
	store     storage.Provider
	invoker   llm.Invoker
	registry  *toolsets.Registry
	confirmer confirm.Confirmer
	resolver  *resolver.Resolver
	prompts   prompt.SystemLoader
	defaults  prompt.Defaults
	loopCap   int
	newMock   MockFactory
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLoopCap overrides the tool loop iteration cap.
func WithLoopCap(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.loopCap = n
		}
	}
}

// WithMockFactory overrides the invoker used for mock blocks.
func WithMockFactory(f MockFactory) Option {
	return func(e *Engine) { e.newMock = f }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine. The confirmer is wrapped in a session so an
// always-allow decision covers the rest of the process lifetime.
func New(store storage.Provider, invoker llm.Invoker, registry *toolsets.Registry, confirmer confirm.Confirmer, res *resolver.Resolver, prompts prompt.SystemLoader, defaults prompt.Defaults, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		invoker:   invoker,
		registry:  registry,
		confirmer: confirm.NewSession(confirmer),
		resolver:  res,
		prompts:   prompts,
		defaults:  defaults,
		loopCap:   defaultLoopCap,
		newMock: func() llm.Invoker {
			return llm.NewMock(&llm.Response{Text: "This is a mock response."})
		},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// ProcessDocument reads the note at path, processes every pending block,
// and writes the updated document back atomically. It reports whether a
// write happened and, if so, the checksum of the written content so the
// coordinator can suppress the resulting change event. A document with no
// pending blocks is left untouched.
//
// Block failures never fail the document: each failed block gets an error
// region and processing continues with the next block.
func (e *Engine) ProcessDocument(ctx context.Context, path string) (bool, string, error) {
	data, err := e.store.Read(path)
	if err != nil {
		return false, "", fmt.Errorf("engine: read %s: %w", path, err)
	}

	doc, diags := parser.Parse(string(data))
	for _, d := range diags {
		e.logger.Warn("engine: parse diagnostic",
			slog.String("path", path),
			slog.Int("offset", d.Span.Start),
			slog.String("detail", d.Message))
	}

	pending := doc.Pending()
	if len(pending) == 0 {
		return false, "", nil
	}
	e.logger.Info("engine: processing document",
		slog.String("path", path),
		slog.Int("pending", len(pending)))

	var outcomes []parser.Outcome
	for _, block := range pending {
		outcome := e.processBlock(ctx, doc.Text, path, block)
		outcomes = append(outcomes, outcome)
		if ctx.Err() != nil {
			return false, "", fmt.Errorf("engine: %s: %w", path, ctx.Err())
		}
	}

	rendered := parser.Render(doc.Text, outcomes)
	if rendered == doc.Text {
		return false, "", nil
	}

	out := []byte(rendered)
	if err := e.store.Write(path, out); err != nil {
		return false, "", fmt.Errorf("engine: write %s: %w", path, err)
	}
	fp := checksum.Sum(out)
	e.logger.Info("engine: document updated",
		slog.String("path", path),
		slog.String("checksum", fp))
	return true, fp, nil
}

// processBlock runs the full pipeline for one pending block. All failures
// collapse into an error outcome spliced under the error marker, which
// does not re-trigger on save because the reply marker is consumed.
func (e *Engine) processBlock(ctx context.Context, docText, path string, block *parser.Block) parser.Outcome {
	outcome := parser.Outcome{Block: block}

	var resolved []resolver.Resolved
	for _, d := range block.Directives {
		if d.Kind != parser.DirContext {
			continue
		}
		res := e.resolver.Resolve(ctx, d, docText, block.Span.Start)
		if res.Outcome != resolver.Ok {
			e.logger.Warn("engine: context resolution failed",
				slog.String("path", path),
				slog.String("kind", res.Directive.Context.String()),
				slog.String("source", res.Name),
				slog.String("detail", res.Detail))
		}
		resolved = append(resolved, res)
	}

	assembled, diags := prompt.Assemble(block, resolved, e.defaults, e.prompts)

	tools, unknown := e.registry.Merge(assembled.Toolsets)
	for _, name := range unknown {
		diags = append(diags, parser.Diagnostic{Span: block.Span, Message: fmt.Sprintf("unknown toolset %q", name)})
		e.logger.Warn("engine: unknown toolset",
			slog.String("path", path),
			slog.String("toolset", name))
	}
	assembled.Request.Tools = toolsets.Definitions(tools)
	enabled := toolsets.ByName(tools)

	inv := e.invoker
	if assembled.Mock {
		inv = e.newMock()
	}

	resp, steps, finalReq, err := e.runLoop(ctx, inv, assembled.Request, enabled, e.confirmer)
	if err != nil {
		e.logger.Error("engine: block failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		outcome.IsError = true
		outcome.Text = renderError(err)
		return outcome
	}

	// The replace and document options strip the block markup entirely,
	// so their answers carry no markers or usage beacon.
	switch block.Option {
	case parser.OptionReplace, parser.OptionDocument:
		outcome.Text = renderBareAnswer(resp, steps)
	default:
		outcome.Text = renderAnswer(assembled, finalReq, resp, steps, diags)
	}
	return outcome
}
