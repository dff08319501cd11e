package prompt

import (
	"encoding/json"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/starford/ansuz/internal/llm"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// countTokens estimates the token count of text. It uses the cl100k_base
// encoding when available and falls back to the chars/4 heuristic when the
// encoding cannot be loaded (e.g. no network for the vocabulary fetch).
func countTokens(text string) int {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			enc = e
		}
	})
	if enc == nil {
		return (len(text) + 3) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// EstimateUsage estimates cumulative input/output tokens for a finished
// conversation. Input covers the system prompt, user text, tool arguments,
// and tool results; output covers assistant text, the final answer, and
// any reasoning.
func EstimateUsage(req llm.Request, answer, reasoning string) (in, out int) {
	in = countTokens(req.System)

	for _, msg := range req.Messages {
		for _, p := range msg.Parts {
			switch p.Kind {
			case llm.PartText:
				if msg.Role == llm.RoleAssistant {
					out += countTokens(p.Text)
				} else {
					in += countTokens(p.Text)
				}
			case llm.PartToolCall:
				if p.ToolCall != nil {
					args, _ := json.Marshal(p.ToolCall.Args)
					in += countTokens(string(args))
				}
			case llm.PartToolResult:
				if p.ToolResult != nil {
					in += countTokens(p.ToolResult.Content)
				}
			}
			// Binary parts are not counted.
		}
	}

	out += countTokens(answer)
	out += countTokens(reasoning)
	return in, out
}
