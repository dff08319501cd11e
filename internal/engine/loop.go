package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/confirm"
	"github.com/starford/ansuz/internal/llm"
	"github.com/starford/ansuz/internal/toolsets"
)

// defaultLoopCap bounds model invocations per block when the config does
// not override it.
const defaultLoopCap = 8

// step records one dispatched tool call for the transcript.
type step struct {
	Call   llm.ToolCall
	Result llm.ToolResult
}

// runLoop drives the invoke/dispatch cycle for one block until the model
// returns a final answer without tool calls. Lookup is restricted to the
// tools the block enabled. Each requested call is dispatched exactly once;
// sensitive tools go through the confirmer first, and a denial is reported
// back to the model as an error result rather than ending the loop.
// Exceeding the iteration cap aborts with apperr.ErrLoopAborted.
func (e *Engine) runLoop(ctx context.Context, inv llm.Invoker, req llm.Request, enabled map[string]toolsets.Tool, conf confirm.Confirmer) (*llm.Response, []step, llm.Request, error) {
	var steps []step

	for i := 0; i < e.loopCap; i++ {
		resp, err := inv.Invoke(ctx, req)
		if err != nil {
			return nil, steps, req, fmt.Errorf("engine: invoke: %w", err)
		}
		if len(resp.ToolCalls) == 0 {
			return resp, steps, req, nil
		}

		assistant := llm.Message{Role: llm.RoleAssistant}
		if resp.Text != "" {
			assistant.Parts = append(assistant.Parts, llm.Part{Kind: llm.PartText, Text: resp.Text})
		}
		results := llm.Message{Role: llm.RoleUser}

		for _, call := range resp.ToolCalls {
			call := call
			assistant.Parts = append(assistant.Parts, llm.Part{Kind: llm.PartToolCall, ToolCall: &call})

			result := e.dispatch(ctx, call, enabled, conf)
			if ctx.Err() != nil {
				return nil, steps, req, fmt.Errorf("engine: dispatch %s: %w", call.Name, ctx.Err())
			}
			steps = append(steps, step{Call: call, Result: result})
			results.Parts = append(results.Parts, llm.Part{Kind: llm.PartToolResult, ToolResult: &result})
		}

		req.Messages = append(req.Messages, assistant, results)
	}

	return nil, steps, req, fmt.Errorf("engine: %d invocations without a final answer: %w", e.loopCap, apperr.ErrLoopAborted)
}

// dispatch executes one tool call, gating sensitive tools behind the
// confirmer. A call naming a tool outside the enabled set is refused the
// same way as a nonexistent one. Every failure mode becomes an error
// result the model sees.
func (e *Engine) dispatch(ctx context.Context, call llm.ToolCall, enabled map[string]toolsets.Tool, conf confirm.Confirmer) llm.ToolResult {
	result := llm.ToolResult{ID: call.ID, Name: call.Name}

	tool, ok := enabled[call.Name]
	if !ok {
		result.IsError = true
		result.Content = fmt.Sprintf("unknown tool %q", call.Name)
		return result
	}

	if tool.Sensitive {
		decision, msg, err := conf.Confirm(ctx, call.Name, call.Args)
		if err != nil {
			result.IsError = true
			result.Content = fmt.Sprintf("confirmation failed: %v", err)
			return result
		}
		if decision == confirm.Deny {
			e.logger.Info("engine: tool call denied", slog.String("tool", call.Name))
			result.IsError = true
			if msg != "" {
				result.Content = fmt.Sprintf("%s: %s", apperr.ErrDenied, msg)
			} else {
				result.Content = apperr.ErrDenied.Error()
			}
			return result
		}
	}

	e.logger.Debug("engine: dispatching tool", slog.String("tool", call.Name))
	out, err := tool.Run(ctx, call.Args)
	if err != nil {
		result.IsError = true
		result.Content = err.Error()
		return result
	}
	result.Content = out
	return result
}
