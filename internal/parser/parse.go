package parser

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	entryRe     = regexp.MustCompile(`^<ai!([^>\s<]*)>$`)
	directiveRe = regexp.MustCompile(`^<([a-z_]+)!([^>\n]*)>$`)
)

// line is a byte range for one line: [start, end) excludes the newline,
// next is the offset just past it.
type line struct {
	start, end, next int
}

func linesIn(text string, start, end int) []line {
	var out []line
	for pos := start; pos < end; {
		nl := strings.IndexByte(text[pos:end], '\n')
		if nl < 0 {
			out = append(out, line{pos, end, end})
			break
		}
		out = append(out, line{pos, pos + nl, pos + nl + 1})
		pos += nl + 1
	}
	return out
}

// Parse scans a document for directive blocks. It never fails: structural
// problems surface as Malformed blocks and diagnostics while the rest of
// the document still parses.
//
// Pass 1 matches entry/exit marker pairs with a stack; pass 2 tokenizes
// directive tags inside each matched span. All spans are byte offsets into
// the original text so Render can splice without re-scanning.
func Parse(text string) (*Document, []Diagnostic) {
	doc := &Document{Text: text}
	var diags []Diagnostic

	type openEntry struct {
		ln     line
		option string
	}
	var stack []openEntry
	nested := false

	for _, ln := range linesIn(text, 0, len(text)) {
		raw := strings.TrimRight(text[ln.start:ln.end], " \t")

		if m := entryRe.FindStringSubmatch(raw); m != nil {
			stack = append(stack, openEntry{ln, m[1]})
			if len(stack) > 1 {
				nested = true
			}
			continue
		}

		if raw == ExitMarker {
			if len(stack) == 0 {
				sp := Span{ln.start, ln.next}
				doc.Blocks = append(doc.Blocks, Block{Span: sp, Status: StatusMalformed})
				diags = append(diags, Diagnostic{sp, "unmatched exit marker"})
				continue
			}
			bottom := stack[0]
			stack = stack[:len(stack)-1]
			if len(stack) > 0 {
				// Still inside the outer block; the imbalance is
				// reported when the outer span closes.
				continue
			}
			sp := Span{bottom.ln.start, ln.next}
			if nested {
				doc.Blocks = append(doc.Blocks, Block{Span: sp, Option: bottom.option, Status: StatusMalformed})
				diags = append(diags, Diagnostic{sp, "nested entry marker"})
				nested = false
				continue
			}
			b, ds := parseBlock(text, sp, bottom.option, bottom.ln.next, ln.start)
			doc.Blocks = append(doc.Blocks, b)
			diags = append(diags, ds...)
			continue
		}
	}

	if len(stack) > 0 {
		sp := Span{stack[0].ln.start, len(text)}
		doc.Blocks = append(doc.Blocks, Block{Span: sp, Option: stack[0].option, Status: StatusMalformed})
		diags = append(diags, Diagnostic{sp, "unterminated block: missing exit marker"})
	}

	return doc, diags
}

// singular reports whether a directive kind may appear at most once per block.
func singular(k DirectiveKind) bool {
	switch k {
	case DirTools, DirContext:
		return false
	}
	return true
}

// parseBlock runs pass 2 on a matched entry/exit span. Directive tags are
// recognized only at line starts until the first non-directive, non-blank
// line; everything from there to the reply marker is conversation text.
func parseBlock(text string, sp Span, option string, innerStart, innerEnd int) (Block, []Diagnostic) {
	b := Block{Span: sp, Option: option}
	var diags []Diagnostic

	lines := linesIn(text, innerStart, innerEnd)
	seen := make(map[DirectiveKind]bool)

	i := 0
	for ; i < len(lines); i++ {
		raw := strings.TrimRight(text[lines[i].start:lines[i].end], " \t")
		if raw == "" {
			continue
		}
		m := directiveRe.FindStringSubmatch(raw)
		if m == nil {
			break // instruction text starts here
		}
		name := m[1]
		if name == "reply" {
			break // the reply marker ends the directive section
		}
		lsp := Span{lines[i].start, lines[i].next}
		d, ok := makeDirective(name, m[2], lsp)
		if !ok {
			diags = append(diags, Diagnostic{lsp, fmt.Sprintf("unknown directive %q", name)})
			continue
		}
		if singular(d.Kind) && seen[d.Kind] {
			diags = append(diags, Diagnostic{lsp, fmt.Sprintf("duplicate directive %q ignored", name)})
			continue
		}
		seen[d.Kind] = true
		b.Directives = append(b.Directives, d)
	}

	phaseEnd := innerEnd
	if i < len(lines) {
		phaseEnd = lines[i].start
	}

	// Locate the reply marker and any previously rendered answer region.
	replyIdx, aiIdx, meIdx := -1, -1, -1
	for j := i; j < len(lines); j++ {
		raw := strings.TrimRight(text[lines[j].start:lines[j].end], " \t")
		switch {
		case raw == ReplyMarker && replyIdx < 0:
			replyIdx = j
		case raw == MarkerAI && aiIdx < 0:
			aiIdx = j
		case raw == MarkerMe:
			meIdx = j // keep the last one
		}
	}

	if replyIdx >= 0 {
		b.Reply = Span{lines[replyIdx].start, lines[replyIdx].next}
		b.HasReply = true
	}
	if aiIdx >= 0 && meIdx > aiIdx {
		b.Answer = Span{lines[aiIdx].start, lines[meIdx].next}
		b.HasAnswer = true
	}

	convEnd := innerEnd
	if b.HasReply {
		convEnd = b.Reply.Start
	}
	if phaseEnd < convEnd {
		b.Conversation = text[phaseEnd:convEnd]
	}

	// A reply marker makes the block actionable, even when a prior answer
	// region exists: the user asked for another turn. Without one the
	// block is left alone.
	if b.HasReply {
		b.Status = StatusPending
	} else {
		b.Status = StatusAnswered
	}

	return b, diags
}

func makeDirective(name, rawArg string, sp Span) (Directive, bool) {
	arg := cookArg(rawArg)
	switch name {
	case "model":
		return Directive{Kind: DirModel, Arg: arg, Span: sp}, true
	case "temperature":
		return Directive{Kind: DirTemperature, Arg: arg, Span: sp}, true
	case "max_tokens":
		return Directive{Kind: DirMaxTokens, Arg: arg, Span: sp}, true
	case "system":
		return Directive{Kind: DirSystemPrompt, Arg: arg, Span: sp}, true
	case "think":
		return Directive{Kind: DirThink, Arg: arg, Span: sp}, true
	case "debug":
		return Directive{Kind: DirDebug, Span: sp}, true
	case "mock":
		return Directive{Kind: DirMock, Span: sp}, true
	case "tools":
		return Directive{Kind: DirTools, Arg: arg, Span: sp}, true
	case "this":
		return Directive{Kind: DirContext, Context: CtxCurrentDocument, Span: sp}, true
	case "doc", "file":
		return Directive{Kind: DirContext, Context: CtxNoteLink, Arg: arg, Span: sp}, true
	case "url":
		return Directive{Kind: DirContext, Context: CtxURL, Arg: arg, Span: sp}, true
	case "pdf":
		return Directive{Kind: DirContext, Context: CtxPDF, Arg: arg, Span: sp}, true
	case "image":
		return Directive{Kind: DirContext, Context: CtxImage, Arg: arg, Span: sp}, true
	case "prompt":
		return Directive{Kind: DirContext, Context: CtxPrompt, Arg: arg, Span: sp}, true
	}
	return Directive{}, false
}

var unescapeRe = regexp.MustCompile(`\\(.)`)

// cookArg normalises a directive argument. Quoted values lose their quotes
// and escapes; wikilinks keep their brackets verbatim (the resolver strips
// them); unquoted values resolve escaped spaces.
func cookArg(raw string) string {
	if len(raw) >= 2 && strings.HasPrefix(raw, `"`) && strings.HasSuffix(raw, `"`) {
		return unescapeRe.ReplaceAllString(raw[1:len(raw)-1], "$1")
	}
	if strings.HasPrefix(raw, "[[") && strings.HasSuffix(raw, "]]") {
		return raw
	}
	return strings.ReplaceAll(raw, `\ `, " ")
}
