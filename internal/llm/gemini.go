package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Gemini is an Invoker backed by the Google GenAI API.
type Gemini struct {
	client *genai.Client
}

// NewGemini creates a Gemini invoker.
func NewGemini(ctx context.Context, apiKey string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm: gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("llm: create gemini client: %w", err)
	}
	return &Gemini{client: client}, nil
}

// Invoke sends one request and maps the response back onto the collaborator
// types. Function calls come back as ToolCalls; the caller owns results.
func (g *Gemini) Invoke(ctx context.Context, req Request) (*Response, error) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		role := genai.RoleUser
		if msg.Role == RoleAssistant {
			role = genai.RoleModel
		}
		var parts []*genai.Part
		for _, p := range msg.Parts {
			switch p.Kind {
			case PartText:
				parts = append(parts, genai.NewPartFromText(p.Text))
			case PartBinary:
				parts = append(parts, genai.NewPartFromBytes(p.Data, p.MIME))
			case PartToolCall:
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					Name: p.ToolCall.Name,
					Args: p.ToolCall.Args,
				}})
			case PartToolResult:
				resp := map[string]any{"result": p.ToolResult.Content}
				if p.ToolResult.IsError {
					resp = map[string]any{"error": p.ToolResult.Content}
				}
				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					Name:     p.ToolResult.Name,
					Response: resp,
				}})
			}
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	temp := float32(req.Temperature)
	cfg := &genai.GenerateContentConfig{
		Temperature: &temp,
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Think {
		cfg.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}
	}
	if len(req.Tools) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: toDeclarations(req.Tools)}}
	}

	result, err := g.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("llm: gemini invoke: %w", err)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return nil, fmt.Errorf("llm: gemini returned no candidates")
	}

	out := &Response{}
	callSeq := 0
	for _, part := range result.Candidates[0].Content.Parts {
		switch {
		case part.FunctionCall != nil:
			callSeq++
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:   fmt.Sprintf("call_%d", callSeq),
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			})
		case part.Text != "":
			if part.Thought {
				out.Reasoning += part.Text
			} else {
				out.Text += part.Text
			}
		}
	}
	return out, nil
}

func toDeclarations(tools []ToolDefinition) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		props := make(map[string]*genai.Schema, len(t.Params))
		var required []string
		for name, spec := range t.Params {
			props[name] = &genai.Schema{
				Type:        schemaType(spec.Type),
				Description: spec.Description,
			}
			if spec.Required {
				required = append(required, name)
			}
		}
		out = append(out, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   required,
			},
		})
	}
	return out
}

func schemaType(t string) genai.Type {
	switch t {
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}
