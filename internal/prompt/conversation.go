package prompt

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/starford/ansuz/internal/llm"
	"github.com/starford/ansuz/internal/parser"
)

var (
	thoughtRe    = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(parser.MarkerThought) + `.*?` + regexp.QuoteMeta(parser.MarkerEndThought) + `\n?`)
	tokensLineRe = regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(parser.TokensPrefix) + `.*` + regexp.QuoteMeta(parser.TokensSuffix) + `$\n?`)

	toolSectionRe = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(parser.MarkerToolStart) + `\n(.*?)` + regexp.QuoteMeta(parser.MarkerToolEnd) + `\n?`)
	toolIDRe      = regexp.MustCompile(`(?m)^ID: (.*)$`)
	toolNameRe    = regexp.MustCompile(`(?m)^Tool: (.*)$`)
	toolArgsRe    = regexp.MustCompile("(?s)Arguments:\n```json\n(.*?)\n```")
	toolResultRe  = regexp.MustCompile("(?s)Result:\n```json\n(.*?)\n```")
)

// ParseConversation converts a block's conversation text into structured
// turns. Text before the first AI marker is the opening user message; AI
// and human role markers alternate turns from there. Thought blocks and
// token beacons are presentation only and are stripped; embedded tool
// sections are reconstructed into tool call and result parts so the model
// sees the same history it produced.
func ParseConversation(text string) []llm.Message {
	text = thoughtRe.ReplaceAllString(text, "")
	text = tokensLineRe.ReplaceAllString(text, "")

	type segment struct {
		role llm.Role
		text string
	}
	var segs []segment
	role := llm.RoleUser
	var b strings.Builder
	flush := func() {
		segs = append(segs, segment{role, b.String()})
		b.Reset()
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		trimmed := strings.TrimRight(line, " \t\n")
		if trimmed == parser.MarkerAI {
			flush()
			role = llm.RoleAssistant
			continue
		}
		if trimmed == parser.MarkerMe {
			flush()
			role = llm.RoleUser
			continue
		}
		b.WriteString(line)
	}
	flush()

	var msgs []llm.Message
	appendMsg := func(m llm.Message) {
		if len(m.Parts) == 0 {
			return
		}
		// Coalesce consecutive turns of the same role.
		if n := len(msgs); n > 0 && msgs[n-1].Role == m.Role {
			msgs[n-1].Parts = append(msgs[n-1].Parts, m.Parts...)
			return
		}
		msgs = append(msgs, m)
	}

	for _, s := range segs {
		if s.role == llm.RoleAssistant {
			asst, results := parseAssistantSegment(s.text)
			appendMsg(asst)
			appendMsg(llm.Message{Role: llm.RoleUser, Parts: results})
			continue
		}
		if t := strings.TrimSpace(s.text); t != "" {
			appendMsg(llm.Message{Role: llm.RoleUser, Parts: []llm.Part{{Kind: llm.PartText, Text: t}}})
		}
	}
	return msgs
}

// parseAssistantSegment splits one assistant turn into its text and tool
// activity. Tool results travel back as user-role parts, matching how the
// model collaborator expects history to be shaped.
func parseAssistantSegment(text string) (llm.Message, []llm.Part) {
	asst := llm.Message{Role: llm.RoleAssistant}
	var results []llm.Part

	last := 0
	for _, loc := range toolSectionRe.FindAllStringSubmatchIndex(text, -1) {
		if lead := strings.TrimSpace(text[last:loc[0]]); lead != "" {
			asst.Parts = append(asst.Parts, llm.Part{Kind: llm.PartText, Text: lead})
		}
		last = loc[1]

		section := text[loc[2]:loc[3]]
		call, result, ok := parseToolSection(section)
		if !ok {
			continue
		}
		asst.Parts = append(asst.Parts, llm.Part{Kind: llm.PartToolCall, ToolCall: call})
		results = append(results, llm.Part{Kind: llm.PartToolResult, ToolResult: result})
	}
	if tail := strings.TrimSpace(text[last:]); tail != "" {
		asst.Parts = append(asst.Parts, llm.Part{Kind: llm.PartText, Text: tail})
	}
	return asst, results
}

func parseToolSection(section string) (*llm.ToolCall, *llm.ToolResult, bool) {
	idM := toolIDRe.FindStringSubmatch(section)
	nameM := toolNameRe.FindStringSubmatch(section)
	if idM == nil || nameM == nil {
		return nil, nil, false
	}
	call := &llm.ToolCall{ID: strings.TrimSpace(idM[1]), Name: strings.TrimSpace(nameM[1])}

	if argsM := toolArgsRe.FindStringSubmatch(section); argsM != nil {
		_ = json.Unmarshal([]byte(argsM[1]), &call.Args)
	}

	result := &llm.ToolResult{ID: call.ID, Name: call.Name}
	if resM := toolResultRe.FindStringSubmatch(section); resM != nil {
		var payload struct {
			Result json.RawMessage `json:"result"`
			Error  *string         `json:"error"`
		}
		if err := json.Unmarshal([]byte(resM[1]), &payload); err == nil {
			if payload.Error != nil {
				result.Content = *payload.Error
				result.IsError = true
			} else {
				result.Content = rawToString(payload.Result)
			}
		}
	}
	return call, result, true
}

func rawToString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// FormatToolCall renders a tool call for splicing into the answer region.
// The format round-trips through ParseConversation.
func FormatToolCall(call llm.ToolCall) string {
	args, _ := json.MarshalIndent(call.Args, "", "  ")
	return parser.MarkerToolStart + "\n" +
		"ID: " + call.ID + "\n" +
		"Tool: " + call.Name + "\n" +
		"Arguments:\n```json\n" + string(args) + "\n```\n"
}

// FormatToolResult renders a tool result, closing the section opened by
// FormatToolCall.
func FormatToolResult(result llm.ToolResult) string {
	payload := map[string]any{"result": result.Content, "error": nil}
	if result.IsError {
		payload = map[string]any{"result": nil, "error": result.Content}
	}
	body, _ := json.MarshalIndent(payload, "", "  ")
	return "Result:\n```json\n" + string(body) + "\n```\n" + parser.MarkerToolEnd + "\n"
}
