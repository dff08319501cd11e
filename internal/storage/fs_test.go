package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func tempVault(t *testing.T) (*FS, string) {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs, dir
}

func TestWriteAndRead(t *testing.T) {
	s, _ := tempVault(t)
	content := []byte("# Hello\nWorld\n")
	if err := s.Write("note.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("note.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s, _ := tempVault(t)
	if err := s.Write("a/b/c.md", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	s, dir := tempVault(t)
	if err := s.Write("note.md", []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".ansuz-tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestWriteReplacesExisting(t *testing.T) {
	s, _ := tempVault(t)
	_ = s.Write("note.md", []byte("old"))
	if err := s.Write("note.md", []byte("new")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("note.md")
	if string(got) != "new" {
		t.Errorf("content = %q, want %q", got, "new")
	}
}

func TestPathTraversalRejected(t *testing.T) {
	s, _ := tempVault(t)
	for _, p := range []string{"../escape.md", "a/../../escape.md", "/etc/passwd"} {
		if _, err := s.Read(p); err == nil {
			t.Errorf("Read(%q) should fail", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("Write(%q) should fail", p)
		}
	}
}

func TestListOnlyMarkdown(t *testing.T) {
	s, dir := tempVault(t)
	_ = s.Write("a.md", []byte("a"))
	_ = s.Write("sub/b.md", []byte("b"))
	if err := os.WriteFile(filepath.Join(dir, "img.png"), []byte{1, 2}, 0o644); err != nil {
		t.Fatal(err)
	}

	metas, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("len(metas) = %d, want 2", len(metas))
	}
	for _, m := range metas {
		if !strings.HasSuffix(m.Path, ".md") {
			t.Errorf("unexpected entry %q", m.Path)
		}
		if m.Checksum == "" {
			t.Errorf("missing checksum for %q", m.Path)
		}
	}
}

func TestListChecksumTracksContent(t *testing.T) {
	s, _ := tempVault(t)
	_ = s.Write("a.md", []byte("one"))
	before, _ := s.List("")

	_ = s.Write("a.md", []byte("two"))
	after, _ := s.List("")

	if before[0].Checksum == after[0].Checksum {
		t.Error("checksum should change with content")
	}
}
