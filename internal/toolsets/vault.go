package toolsets

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/llm"
	"github.com/starford/ansuz/internal/storage"
)

// VaultToolset returns the "vault" tools: note search, reading, listing,
// backlinks, and (sensitive) creation.
func VaultToolset(store storage.Provider, db index.NoteIndex) []Tool {
	return []Tool{
		{
			Name:        "search_notes",
			Description: "Full-text search through note content and titles.",
			Params: map[string]llm.ParamSpec{
				"query": {Type: "string", Description: "Search query string", Required: true},
			},
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				query, err := StringArg(args, "query")
				if err != nil {
					return "", err
				}
				results, err := db.Search(query, 20)
				if err != nil {
					return "", err
				}
				out, _ := json.MarshalIndent(results, "", "  ")
				return string(out), nil
			},
		},
		{
			Name:        "read_note",
			Description: "Read the full content of a Markdown note.",
			Params: map[string]llm.ParamSpec{
				"path": {Type: "string", Description: "Relative path to the note (e.g. folder/note.md)", Required: true},
			},
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				path, err := StringArg(args, "path")
				if err != nil {
					return "", err
				}
				data, err := store.Read(path)
				if err != nil {
					return "", err
				}
				return string(data), nil
			},
		},
		{
			Name:        "list_notes",
			Description: "List all notes or notes in a specific folder.",
			Params: map[string]llm.ParamSpec{
				"folder": {Type: "string", Description: "Optional folder to list (empty for all)"},
			},
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				folder := ""
				if f, err := StringArg(args, "folder"); err == nil {
					folder = f
				}
				metas, err := store.List(folder)
				if err != nil {
					return "", err
				}
				var paths []string
				for _, m := range metas {
					paths = append(paths, m.Path)
				}
				return strings.Join(paths, "\n"), nil
			},
		},
		{
			Name:        "get_backlinks",
			Description: "Find all notes that link to the specified note.",
			Params: map[string]llm.ParamSpec{
				"path": {Type: "string", Description: "Path of the note to find backlinks for", Required: true},
			},
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				path, err := StringArg(args, "path")
				if err != nil {
					return "", err
				}
				bl, err := db.Backlinks(path)
				if err != nil {
					return "", err
				}
				if len(bl) == 0 {
					return "no backlinks found", nil
				}
				return strings.Join(bl, "\n"), nil
			},
		},
		{
			Name:        "create_note",
			Description: "Create a new Markdown note at the specified path.",
			Params: map[string]llm.ParamSpec{
				"path":    {Type: "string", Description: "Relative path for the new note (must end with .md)", Required: true},
				"content": {Type: "string", Description: "Markdown content of the note", Required: true},
			},
			Sensitive: true,
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				path, err := StringArg(args, "path")
				if err != nil {
					return "", err
				}
				content, err := StringArg(args, "content")
				if err != nil {
					return "", err
				}
				if _, readErr := store.Read(path); readErr == nil {
					return "", &existsError{path}
				}
				if err := store.Write(path, []byte(content)); err != nil {
					return "", err
				}
				return "created: " + path, nil
			},
		},
	}
}

type existsError struct{ path string }

func (e *existsError) Error() string { return "note already exists: " + e.path }
