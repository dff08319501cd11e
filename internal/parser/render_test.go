package parser

import (
	"strings"
	"testing"
)

func TestRender_ReplacesReplyMarkerOnly(t *testing.T) {
	text := "# Title\n\n<ai!>\nSummarize.\n<reply!>\n</ai!>\n\nafter\n"
	doc, _ := Parse(text)
	out := Render(text, []Outcome{{Block: &doc.Blocks[0], Text: "Summary text"}})

	want := "# Title\n\n<ai!>\nSummarize.\n|AI|\nSummary text\n|ME|\n</ai!>\n\nafter\n"
	if out != want {
		t.Errorf("rendered = %q, want %q", out, want)
	}
}

func TestRender_ByteIdenticalOutsideSpans(t *testing.T) {
	prefix := "untouched prefix \t with whitespace  \n"
	suffix := "\nuntouched suffix, no trailing newline"
	text := prefix + "<ai!>\nq\n<reply!>\n</ai!>\n" + suffix

	doc, _ := Parse(text)
	out := Render(text, []Outcome{{Block: &doc.Blocks[0], Text: "a"}})

	if !strings.HasPrefix(out, prefix) {
		t.Error("prefix changed")
	}
	if !strings.HasSuffix(out, suffix) {
		t.Error("suffix changed")
	}
}

func TestRender_MultipleBlocksDescendingSplice(t *testing.T) {
	text := "<ai!>\none\n<reply!>\n</ai!>\n<ai!>\ntwo\n<reply!>\n</ai!>\n"
	doc, _ := Parse(text)
	out := Render(text, []Outcome{
		{Block: &doc.Blocks[0], Text: "answer one"},
		{Block: &doc.Blocks[1], Text: "answer two"},
	})

	want := "<ai!>\none\n|AI|\nanswer one\n|ME|\n</ai!>\n<ai!>\ntwo\n|AI|\nanswer two\n|ME|\n</ai!>\n"
	if out != want {
		t.Errorf("rendered = %q, want %q", out, want)
	}
}

func TestRender_ErrorOutcome(t *testing.T) {
	text := "<ai!>\nq\n<reply!>\n</ai!>\n"
	doc, _ := Parse(text)
	out := Render(text, []Outcome{{Block: &doc.Blocks[0], Text: "```\nboom\n```", IsError: true}})

	want := "<ai!>\nq\n|ERROR|\n```\nboom\n```\n</ai!>\n"
	if out != want {
		t.Errorf("rendered = %q, want %q", out, want)
	}

	// The reply marker is consumed, so re-parsing finds nothing pending.
	doc2, _ := Parse(out)
	if len(doc2.Pending()) != 0 {
		t.Error("error outcome must not leave the block pending")
	}
}

func TestRender_OutputIsIdempotentOnReparse(t *testing.T) {
	text := "<ai!>\nq\n<reply!>\n</ai!>\n"
	doc, _ := Parse(text)
	out := Render(text, []Outcome{{Block: &doc.Blocks[0], Text: "done"}})

	doc2, _ := Parse(out)
	if len(doc2.Pending()) != 0 {
		t.Fatal("rendered document must have no pending blocks")
	}
	if Render(out, nil) != out {
		t.Error("rendering with no outcomes must be the identity")
	}
}

func TestRender_ReplaceOptionDropsBlockMarkup(t *testing.T) {
	text := "before\n<ai!rep>\nGive me a line.\n<reply!>\n</ai!>\nafter\n"
	doc, _ := Parse(text)
	out := Render(text, []Outcome{{Block: &doc.Blocks[0], Text: "A bare line."}})

	want := "before\nA bare line.\nafter\n"
	if out != want {
		t.Errorf("rendered = %q, want %q", out, want)
	}
}

func TestRender_DocumentOptionReplacesEverything(t *testing.T) {
	text := "# Heading\n\n<ai!all>\nRewrite this note.\n<reply!>\n</ai!>\n\ntrailing text\n"
	doc, _ := Parse(text)
	out := Render(text, []Outcome{{Block: &doc.Blocks[0], Text: "The fresh document."}})

	want := "The fresh document.\n"
	if out != want {
		t.Errorf("rendered = %q, want %q", out, want)
	}
}

func TestRender_ErrorKeepsBlockDespiteOption(t *testing.T) {
	text := "before\n<ai!rep>\nq\n<reply!>\n</ai!>\nafter\n"
	doc, _ := Parse(text)
	out := Render(text, []Outcome{{Block: &doc.Blocks[0], Text: "```\nboom\n```", IsError: true}})

	want := "before\n<ai!rep>\nq\n|ERROR|\n```\nboom\n```\n</ai!>\nafter\n"
	if out != want {
		t.Errorf("rendered = %q, want %q", out, want)
	}
}

func TestEscapeAnswer(t *testing.T) {
	in := "text\n<ai!>\n</ai!>\n<reply!>\n<model!x>\nmid <ai!> stays\n"
	got := EscapeAnswer(in)
	want := "text\n<AI!>\n</AI!>\n<REPLY!>\n<MODEL!x>\nmid <ai!> stays\n"
	if got != want {
		t.Errorf("escaped = %q, want %q", got, want)
	}
}

func TestEscapeAnswer_RoundTripSafe(t *testing.T) {
	answer := EscapeAnswer("<ai!>\ninjected\n<reply!>\n</ai!>")
	text := "<ai!>\nq\n<reply!>\n</ai!>\n"
	doc, _ := Parse(text)
	out := Render(text, []Outcome{{Block: &doc.Blocks[0], Text: answer}})

	doc2, diags := Parse(out)
	if len(diags) != 0 {
		t.Errorf("escaped answer produced diagnostics: %v", diags)
	}
	if len(doc2.Blocks) != 1 || len(doc2.Pending()) != 0 {
		t.Errorf("escaped answer changed block structure: %+v", doc2.Blocks)
	}
}
