// Package toolsets provides the static registry of tools the model may
// invoke, grouped into named toolsets that blocks enable individually.
package toolsets

import (
	"context"
	"fmt"
	"sort"

	"github.com/starford/ansuz/internal/llm"
)

// Func executes one tool call.
type Func func(ctx context.Context, args map[string]any) (string, error)

// Tool is one registered capability. Sensitive tools require an explicit
// confirmation decision before dispatch.
type Tool struct {
	Name        string
	Description string
	Params      map[string]llm.ParamSpec
	Sensitive   bool
	Run         Func
}

// Registry is a static mapping from toolset name to its tools, resolved
// once at startup. Unknown toolset names surface at parse/assembly time as
// diagnostics instead of failing deep inside the tool loop.
type Registry struct {
	sets   map[string][]Tool
	byName map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sets:   make(map[string][]Tool),
		byName: make(map[string]Tool),
	}
}

// Register adds a named toolset. Tool names are global: registering two
// tools with the same name is a programming error.
func (r *Registry) Register(set string, tools ...Tool) error {
	for _, t := range tools {
		if _, dup := r.byName[t.Name]; dup {
			return fmt.Errorf("toolsets: duplicate tool name %q", t.Name)
		}
		r.byName[t.Name] = t
		r.sets[set] = append(r.sets[set], t)
	}
	return nil
}

// SetNames returns the registered toolset names, sorted.
func (r *Registry) SetNames() []string {
	out := make([]string, 0, len(r.sets))
	for name := range r.sets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Merge returns the union of the named toolsets plus the names that are
// not registered.
func (r *Registry) Merge(names []string) ([]Tool, []string) {
	var tools []Tool
	var unknown []string
	seen := make(map[string]struct{})
	for _, name := range names {
		set, ok := r.sets[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		for _, t := range set {
			if _, dup := seen[t.Name]; dup {
				continue
			}
			seen[t.Name] = struct{}{}
			tools = append(tools, t)
		}
	}
	return tools, unknown
}

// Lookup finds a tool by its global name.
func (r *Registry) Lookup(toolName string) (Tool, bool) {
	t, ok := r.byName[toolName]
	return t, ok
}

// ByName indexes a tool slice for dispatch lookups. Dispatch must only see
// the tools a block enabled, never the whole registry.
func ByName(tools []Tool) map[string]Tool {
	out := make(map[string]Tool, len(tools))
	for _, t := range tools {
		out[t.Name] = t
	}
	return out
}

// Definitions converts tools to the model collaborator's definition type.
func Definitions(tools []Tool) []llm.ToolDefinition {
	out := make([]llm.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		out = append(out, llm.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Params:      t.Params,
		})
	}
	return out
}

// StringArg extracts a required string argument.
func StringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	return s, nil
}
