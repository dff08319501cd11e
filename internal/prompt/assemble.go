// Package prompt turns a parsed block and its resolved contexts into a
// single structured model request, and parses prior answer regions back
// into conversation history.
package prompt

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/llm"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/resolver"
)

// Defaults supplies the values used when a block omits a directive.
type Defaults struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// SystemLoader loads a named system prompt. Missing names must return
// apperr.ErrNotFound.
type SystemLoader interface {
	LoadSystemPrompt(name string) (string, error)
}

// Assembled is the full processing instruction for one block.
type Assembled struct {
	Request  llm.Request
	Toolsets []string // enabled toolset names, in directive order
	Debug    bool
	Mock     bool
	Think    bool
}

// Assemble merges directives, resolved contexts, and the block conversation
// into one request. Invalid numeric directives are clamped, a missing
// system prompt falls back to none; both are recorded as diagnostics, never
// hard failures.
func Assemble(block *parser.Block, resolved []resolver.Resolved, defaults Defaults, sys SystemLoader) (*Assembled, []parser.Diagnostic) {
	var diags []parser.Diagnostic

	a := &Assembled{
		Request: llm.Request{
			Model:       defaults.Model,
			Temperature: defaults.Temperature,
			MaxTokens:   defaults.MaxTokens,
		},
	}

	for _, d := range block.Directives {
		switch d.Kind {
		case parser.DirModel:
			if d.Arg != "" {
				a.Request.Model = d.Arg
			}
		case parser.DirTemperature:
			v, err := strconv.ParseFloat(d.Arg, 64)
			switch {
			case err != nil, math.IsNaN(v), math.IsInf(v, 0):
				diags = append(diags, parser.Diagnostic{Span: d.Span, Message: fmt.Sprintf("invalid temperature %q, using default", d.Arg)})
			case v < 0:
				diags = append(diags, parser.Diagnostic{Span: d.Span, Message: fmt.Sprintf("temperature %v clamped to 0", v)})
				a.Request.Temperature = 0
			case v > 1:
				diags = append(diags, parser.Diagnostic{Span: d.Span, Message: fmt.Sprintf("temperature %v clamped to 1", v)})
				a.Request.Temperature = 1
			default:
				a.Request.Temperature = v
			}
		case parser.DirMaxTokens:
			n, err := strconv.Atoi(d.Arg)
			switch {
			case err != nil:
				diags = append(diags, parser.Diagnostic{Span: d.Span, Message: fmt.Sprintf("invalid max_tokens %q, using default", d.Arg)})
			case n <= 0:
				diags = append(diags, parser.Diagnostic{Span: d.Span, Message: fmt.Sprintf("max_tokens %d clamped to 1", n)})
				a.Request.MaxTokens = 1
			default:
				a.Request.MaxTokens = n
			}
		case parser.DirSystemPrompt:
			text, err := sys.LoadSystemPrompt(d.Arg)
			if err != nil {
				if errors.Is(err, apperr.ErrNotFound) {
					diags = append(diags, parser.Diagnostic{Span: d.Span, Message: fmt.Sprintf("system prompt %q not found, proceeding without one", d.Arg)})
				} else {
					diags = append(diags, parser.Diagnostic{Span: d.Span, Message: fmt.Sprintf("system prompt %q: %v", d.Arg, err)})
				}
			} else {
				a.Request.System = text
			}
		case parser.DirThink:
			a.Think = true
			a.Request.Think = true
		case parser.DirDebug:
			a.Debug = true
		case parser.DirMock:
			a.Mock = true
		case parser.DirTools:
			if d.Arg != "" {
				a.Toolsets = append(a.Toolsets, d.Arg)
			}
		}
	}

	a.Request.Messages = buildMessages(block.Conversation, resolved)
	return a, diags
}

// buildMessages parses the conversation into turns and prepends the
// resolved context parts to the first user turn, in directive order.
func buildMessages(conversation string, resolved []resolver.Resolved) []llm.Message {
	messages := ParseConversation(conversation)

	var ctxParts []llm.Part
	for _, res := range resolved {
		ctxParts = append(ctxParts, contextPart(res))
	}
	if len(ctxParts) == 0 {
		return messages
	}

	if len(messages) == 0 || messages[0].Role != llm.RoleUser {
		messages = append([]llm.Message{{Role: llm.RoleUser}}, messages...)
	}
	messages[0].Parts = append(ctxParts, messages[0].Parts...)
	return messages
}

// contextPart renders one resolved context as a message part. Failures
// become explicit inline notes: the model must be told a source failed,
// silent omission is not an option.
func contextPart(res resolver.Resolved) llm.Part {
	if res.Outcome != resolver.Ok {
		return llm.Part{
			Kind: llm.PartText,
			Text: fmt.Sprintf("[context unavailable: %s %q: %s]\n", res.Directive.Context, res.Name, res.Detail),
		}
	}

	switch res.Directive.Context {
	case parser.CtxCurrentDocument:
		return llm.Part{Kind: llm.PartText, Text: "<document>" + res.Text + "</document>\n"}
	case parser.CtxURL:
		return llm.Part{Kind: llm.PartText, Text: "<url>" + res.Name + "</url>\n<content>" + res.Text + "</content>\n"}
	case parser.CtxPDF, parser.CtxImage:
		return llm.Part{Kind: llm.PartBinary, Data: res.Data, MIME: res.MIME}
	case parser.CtxPrompt:
		// Prompt text is inserted as-is; it is already authored as
		// instruction material, not a quoted source.
		return llm.Part{Kind: llm.PartText, Text: strings.TrimRight(res.Text, "\n") + "\n"}
	default: // note link
		return llm.Part{
			Kind: llm.PartText,
			Text: "<document><filename>" + res.Name + "</filename>\n<contents>" + res.Text + "</contents></document>\n",
		}
	}
}
