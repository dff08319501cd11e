package prompt

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/storage"
)

// VaultPrompts loads named system prompts from a folder inside the vault
// (conventionally "Prompts"). The prompt name maps to "<dir>/<name>.md";
// YAML frontmatter, if present, is stripped.
type VaultPrompts struct {
	store storage.Provider
	dir   string
}

// NewVaultPrompts creates a loader reading from dir under the vault root.
func NewVaultPrompts(store storage.Provider, dir string) *VaultPrompts {
	if dir == "" {
		dir = "Prompts"
	}
	return &VaultPrompts{store: store, dir: dir}
}

// LoadSystemPrompt implements SystemLoader.
func (p *VaultPrompts) LoadSystemPrompt(name string) (string, error) {
	rel := path.Join(p.dir, name+".md")
	data, err := p.store.Read(rel)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("prompt %q: %w", name, apperr.ErrNotFound)
		}
		return "", err
	}
	return stripFrontmatter(string(data)), nil
}

// stripFrontmatter removes a leading YAML frontmatter fence so prompt
// metadata never leaks into the system instruction.
func stripFrontmatter(text string) string {
	const delim = "---"
	trimmed := strings.TrimLeft(text, "\n\r")
	if !strings.HasPrefix(trimmed, delim) {
		return text
	}
	rest := trimmed[len(delim):]
	idx := strings.Index(rest, "\n"+delim)
	if idx < 0 {
		return text
	}
	after := rest[idx+1+len(delim):]
	return strings.TrimLeft(after, "\n\r")
}
