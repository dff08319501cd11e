package parser

import (
	"strings"
	"testing"
)

func TestParse_MinimalPendingBlock(t *testing.T) {
	text := "# Note\n\n<ai!>\nSummarize.\n<reply!>\n</ai!>\n\ntrailing text\n"
	doc, diags := Parse(text)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(doc.Blocks) != 1 {
		t.Fatalf("len(blocks) = %d, want 1", len(doc.Blocks))
	}

	b := doc.Blocks[0]
	if b.Status != StatusPending {
		t.Errorf("status = %v, want pending", b.Status)
	}
	if !b.HasReply {
		t.Error("expected reply marker")
	}
	if got := text[b.Span.Start:b.Span.End]; got != "<ai!>\nSummarize.\n<reply!>\n</ai!>\n" {
		t.Errorf("span text = %q", got)
	}
	if strings.TrimSpace(b.Conversation) != "Summarize." {
		t.Errorf("conversation = %q", b.Conversation)
	}
}

func TestParse_EntryOption(t *testing.T) {
	doc, _ := Parse("<ai!rep>\nhi\n<reply!>\n</ai!>\n")
	if len(doc.Blocks) != 1 {
		t.Fatal("expected one block")
	}
	if doc.Blocks[0].Option != "rep" {
		t.Errorf("option = %q, want %q", doc.Blocks[0].Option, "rep")
	}
}

func TestParse_Directives(t *testing.T) {
	text := "<ai!>\n<model!gemini-2.5-pro>\n<temperature!0.3>\n<tools!vault>\n<tools!system>\n<url!https://example.com>\n\nWhat changed?\n<reply!>\n</ai!>\n"
	doc, diags := Parse(text)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	b := doc.Blocks[0]
	if len(b.Directives) != 5 {
		t.Fatalf("len(directives) = %d, want 5", len(b.Directives))
	}
	if b.Directives[0].Kind != DirModel || b.Directives[0].Arg != "gemini-2.5-pro" {
		t.Errorf("directive[0] = %+v", b.Directives[0])
	}
	if b.Directives[4].Kind != DirContext || b.Directives[4].Context != CtxURL {
		t.Errorf("directive[4] = %+v", b.Directives[4])
	}
	if strings.TrimSpace(b.Conversation) != "What changed?" {
		t.Errorf("conversation = %q", b.Conversation)
	}
}

func TestParse_DirectiveSectionEndsAtFirstText(t *testing.T) {
	// A tag-shaped line after the first text line is conversation, not a
	// directive.
	text := "<ai!>\n<model!m>\nInstruction here.\n<temperature!0.5>\n<reply!>\n</ai!>\n"
	doc, _ := Parse(text)
	b := doc.Blocks[0]
	if len(b.Directives) != 1 {
		t.Fatalf("len(directives) = %d, want 1", len(b.Directives))
	}
	if !strings.Contains(b.Conversation, "<temperature!0.5>") {
		t.Errorf("conversation should keep the late tag, got %q", b.Conversation)
	}
}

func TestParse_DuplicateSingularDirective(t *testing.T) {
	text := "<ai!>\n<model!a>\n<model!b>\nhi\n<reply!>\n</ai!>\n"
	doc, diags := Parse(text)
	b := doc.Blocks[0]
	if len(b.Directives) != 1 || b.Directives[0].Arg != "a" {
		t.Errorf("first occurrence should win, got %+v", b.Directives)
	}
	if len(diags) != 1 {
		t.Errorf("expected one diagnostic, got %v", diags)
	}
}

func TestParse_UnknownDirective(t *testing.T) {
	doc, diags := Parse("<ai!>\n<frobnicate!x>\nhi\n<reply!>\n</ai!>\n")
	if len(doc.Blocks[0].Directives) != 0 {
		t.Errorf("unknown directive should be dropped")
	}
	if len(diags) != 1 || !strings.Contains(diags[0].Message, "frobnicate") {
		t.Errorf("diags = %v", diags)
	}
	if doc.Blocks[0].Status != StatusPending {
		t.Error("block should still be pending")
	}
}

func TestParse_PromptDirective(t *testing.T) {
	doc, diags := Parse("<ai!>\n<prompt!summarizer>\nGo.\n<reply!>\n</ai!>\n")
	if len(diags) != 0 {
		t.Fatalf("diags = %v", diags)
	}
	ds := doc.Blocks[0].Directives
	if len(ds) != 1 {
		t.Fatalf("directives = %+v, want 1", ds)
	}
	if ds[0].Kind != DirContext || ds[0].Context != CtxPrompt || ds[0].Arg != "summarizer" {
		t.Errorf("directive = %+v", ds[0])
	}
}

func TestParse_NoReplyMarkerIsNotPending(t *testing.T) {
	doc, _ := Parse("<ai!>\nthinking out loud\n</ai!>\n")
	if doc.Blocks[0].Status != StatusAnswered {
		t.Errorf("status = %v, want answered", doc.Blocks[0].Status)
	}
	if len(doc.Pending()) != 0 {
		t.Error("no pending blocks expected")
	}
}

func TestParse_AnsweredBlockWithNewReplyIsPending(t *testing.T) {
	text := "<ai!>\nFirst question.\n|AI|\nFirst answer.\n|ME|\nFollow-up question.\n<reply!>\n</ai!>\n"
	doc, _ := Parse(text)
	b := doc.Blocks[0]
	if b.Status != StatusPending {
		t.Errorf("status = %v, want pending", b.Status)
	}
	if !b.HasAnswer {
		t.Error("expected prior answer region")
	}
	if got := text[b.Answer.Start:b.Answer.End]; got != "|AI|\nFirst answer.\n|ME|\n" {
		t.Errorf("answer region = %q", got)
	}
}

func TestParse_UnterminatedBlock(t *testing.T) {
	text := "fine text\n<ai!>\nno exit marker\n"
	doc, diags := Parse(text)
	if len(doc.Blocks) != 1 {
		t.Fatalf("len(blocks) = %d, want 1", len(doc.Blocks))
	}
	if doc.Blocks[0].Status != StatusMalformed {
		t.Errorf("status = %v, want malformed", doc.Blocks[0].Status)
	}
	if doc.Blocks[0].Span.End != len(text) {
		t.Errorf("span should reach EOF")
	}
	if len(diags) != 1 {
		t.Errorf("diags = %v", diags)
	}
}

func TestParse_StrayExitMarker(t *testing.T) {
	doc, diags := Parse("</ai!>\n")
	if len(doc.Blocks) != 1 || doc.Blocks[0].Status != StatusMalformed {
		t.Fatalf("expected one malformed block, got %+v", doc.Blocks)
	}
	if len(diags) != 1 || !strings.Contains(diags[0].Message, "unmatched") {
		t.Errorf("diags = %v", diags)
	}
}

func TestParse_NestedBlockIsMalformed(t *testing.T) {
	text := "<ai!>\n<ai!>\ninner\n</ai!>\n</ai!>\n"
	doc, diags := Parse(text)
	if len(doc.Blocks) != 1 {
		t.Fatalf("len(blocks) = %d, want 1", len(doc.Blocks))
	}
	if doc.Blocks[0].Status != StatusMalformed {
		t.Errorf("status = %v, want malformed", doc.Blocks[0].Status)
	}
	if len(diags) != 1 || !strings.Contains(diags[0].Message, "nested") {
		t.Errorf("diags = %v", diags)
	}
}

func TestParse_MalformedDoesNotPoisonLaterBlocks(t *testing.T) {
	text := "</ai!>\n\n<ai!>\nstill works\n<reply!>\n</ai!>\n"
	doc, _ := Parse(text)
	if len(doc.Blocks) != 2 {
		t.Fatalf("len(blocks) = %d, want 2", len(doc.Blocks))
	}
	if doc.Blocks[0].Status != StatusMalformed {
		t.Error("first block should be malformed")
	}
	if doc.Blocks[1].Status != StatusPending {
		t.Error("second block should be pending")
	}
}

func TestParse_MultipleBlocksInOrder(t *testing.T) {
	text := "<ai!>\none\n<reply!>\n</ai!>\n\ntext between\n\n<ai!>\ntwo\n<reply!>\n</ai!>\n"
	doc, _ := Parse(text)
	if len(doc.Blocks) != 2 {
		t.Fatalf("len(blocks) = %d, want 2", len(doc.Blocks))
	}
	if doc.Blocks[0].Span.End > doc.Blocks[1].Span.Start {
		t.Error("blocks should not overlap and must stay in document order")
	}
	if len(doc.Pending()) != 2 {
		t.Errorf("pending = %d, want 2", len(doc.Pending()))
	}
}

func TestParse_TagInCodeFenceStillMatches(t *testing.T) {
	// Marker matching is line-based and does not interpret Markdown
	// structure; a marker alone on a line counts even inside a fence.
	text := "```\n<ai!>\n```\nhi\n<reply!>\n</ai!>\n"
	doc, _ := Parse(text)
	if len(doc.Blocks) != 1 {
		t.Fatalf("len(blocks) = %d, want 1", len(doc.Blocks))
	}
}

func TestCookArg(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`plain`, `plain`},
		{`"quoted value"`, `quoted value`},
		{`"with \"escapes\""`, `with "escapes"`},
		{`[[Note Name]]`, `[[Note Name]]`},
		{`[[Note|alias]]`, `[[Note|alias]]`},
		{`My\ File.pdf`, `My File.pdf`},
	}
	for _, c := range cases {
		if got := cookArg(c.in); got != c.want {
			t.Errorf("cookArg(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
