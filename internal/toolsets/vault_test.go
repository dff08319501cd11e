package toolsets

import (
	"context"
	"strings"
	"testing"

	"github.com/starford/ansuz/internal/testutil"
)

func vaultTools(t *testing.T) (map[string]Tool, string) {
	t.Helper()
	vaultDir, store := testutil.TestVault(t)
	db := testutil.TestDB(t)

	byName := map[string]Tool{}
	for _, tool := range VaultToolset(store, db) {
		byName[tool.Name] = tool
	}
	return byName, vaultDir
}

func TestVaultToolset_ReadNote(t *testing.T) {
	tools, vaultDir := vaultTools(t)
	testutil.WriteNote(t, vaultDir, "a.md", "# A\nbody\n")

	out, err := tools["read_note"].Run(context.Background(), map[string]any{"path": "a.md"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "# A\nbody\n" {
		t.Errorf("out = %q", out)
	}
}

func TestVaultToolset_ListNotes(t *testing.T) {
	tools, vaultDir := vaultTools(t)
	testutil.WriteNote(t, vaultDir, "a.md", "a")
	testutil.WriteNote(t, vaultDir, "sub/b.md", "b")

	out, err := tools["list_notes"].Run(context.Background(), map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "a.md") || !strings.Contains(out, "sub/b.md") {
		t.Errorf("out = %q", out)
	}
}

func TestVaultToolset_CreateNote(t *testing.T) {
	tools, _ := vaultTools(t)

	tool := tools["create_note"]
	if !tool.Sensitive {
		t.Error("create_note must be sensitive")
	}

	args := map[string]any{"path": "new.md", "content": "# New\n"}
	out, err := tool.Run(context.Background(), args)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "created") {
		t.Errorf("out = %q", out)
	}

	// Creating over an existing note fails instead of overwriting.
	if _, err := tool.Run(context.Background(), args); err == nil {
		t.Error("overwrite should fail")
	}
}

func TestVaultToolset_BacklinksEmpty(t *testing.T) {
	tools, _ := vaultTools(t)
	out, err := tools["get_backlinks"].Run(context.Background(), map[string]any{"path": "nothing.md"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "no backlinks") {
		t.Errorf("out = %q", out)
	}
}
