package engine

import (
	"fmt"
	"strings"

	"github.com/starford/ansuz/internal/llm"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/prompt"
)

// renderAnswer assembles the body of an answer region: optional reasoning,
// the tool transcript, the final text, an optional debug section, and the
// token usage beacon. The body is escaped before the beacon is appended so
// the beacon itself stays actionable markup.
func renderAnswer(a *prompt.Assembled, finalReq llm.Request, resp *llm.Response, steps []step, diags []parser.Diagnostic) string {
	var b strings.Builder

	if a.Think && resp.Reasoning != "" {
		b.WriteString(parser.MarkerThought + "\n")
		b.WriteString(strings.TrimRight(resp.Reasoning, "\n"))
		b.WriteString("\n" + parser.MarkerEndThought + "\n\n")
	}

	for _, s := range steps {
		b.WriteString(prompt.FormatToolCall(s.Call))
		b.WriteString(prompt.FormatToolResult(s.Result))
		b.WriteString("\n")
	}

	b.WriteString(strings.TrimRight(resp.Text, "\n"))

	if a.Debug && len(diags) > 0 {
		b.WriteString("\n\n```\n")
		for _, d := range diags {
			b.WriteString(d.Message + "\n")
		}
		b.WriteString("```")
	}

	body := parser.EscapeAnswer(b.String())

	in, out := prompt.EstimateUsage(finalReq, resp.Text, resp.Reasoning)
	return body + "\n\n" + tokenBeacon(in, out)
}

// renderBareAnswer assembles the body for a block whose entry option
// replaces the block (or the whole document) with the answer: the tool
// transcript and final text, escaped, with no reasoning, debug section,
// or usage beacon.
func renderBareAnswer(resp *llm.Response, steps []step) string {
	var b strings.Builder

	for _, s := range steps {
		b.WriteString(prompt.FormatToolCall(s.Call))
		b.WriteString(prompt.FormatToolResult(s.Result))
		b.WriteString("\n")
	}

	b.WriteString(strings.TrimRight(resp.Text, "\n"))
	return parser.EscapeAnswer(b.String())
}

// renderError turns a processing failure into the fenced detail placed
// under the error marker.
func renderError(err error) string {
	return "```\n" + strings.TrimRight(err.Error(), "\n") + "\n```"
}

func tokenBeacon(in, out int) string {
	return fmt.Sprintf("%sIn=%d,Out=%d%s", parser.TokensPrefix, in, out, parser.TokensSuffix)
}
