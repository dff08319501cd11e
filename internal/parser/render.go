package parser

import (
	"regexp"
	"sort"
	"strings"
)

// Outcome is the processed result for one block, ready to splice.
type Outcome struct {
	Block *Block
	// Text is the answer body (already escaped) or, for errors, the
	// detail rendered inside a fenced code block.
	Text    string
	IsError bool
}

// Render splices outcomes back into the document text. By default each
// outcome replaces its block's reply-marker line with a rendered answer
// region; entry/exit markers, directive tags, and everything outside block
// spans stay byte-identical. The entry options change the splice: "rep"
// replaces the whole block with the bare answer, "all" replaces the entire
// document. Errors always use the in-block error region, regardless of
// option, so the block survives for another attempt. Splicing runs in
// descending offset order so earlier spans remain valid.
func Render(text string, outcomes []Outcome) string {
	sorted := append([]Outcome(nil), outcomes...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Block.Span.Start > sorted[j].Block.Span.Start
	})

	out := text
	newDoc := ""
	hasNewDoc := false
	for _, oc := range sorted {
		if !oc.Block.HasReply {
			continue
		}
		if oc.IsError {
			region := MarkerError + "\n" + oc.Text + "\n"
			out = out[:oc.Block.Reply.Start] + region + out[oc.Block.Reply.End:]
			continue
		}
		switch oc.Block.Option {
		case OptionDocument:
			// Descending order, so the first hit is the last such
			// block in the document; it wins.
			if !hasNewDoc {
				newDoc = oc.Text + "\n"
				hasNewDoc = true
			}
		case OptionReplace:
			out = out[:oc.Block.Span.Start] + oc.Text + "\n" + out[oc.Block.Span.End:]
		default:
			region := MarkerAI + "\n" + oc.Text + "\n" + MarkerMe + "\n"
			out = out[:oc.Block.Reply.Start] + region + out[oc.Block.Reply.End:]
		}
	}
	if hasNewDoc {
		return newDoc
	}
	return out
}

var escapeRe = regexp.MustCompile(`(?m)^(</?)(ai|reply|model|temperature|max_tokens|system|think|debug|mock|tools|this|doc|file|url|pdf|image|prompt)!`)

// EscapeAnswer uppercases tag names at line starts inside model output so
// an answer can never introduce actionable markup into the note.
func EscapeAnswer(s string) string {
	return escapeRe.ReplaceAllStringFunc(s, strings.ToUpper)
}
