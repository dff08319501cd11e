// Package storage defines the vault file-system abstraction.
package storage

import "time"

// FileMeta is a lightweight description of one vault file.
type FileMeta struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for vault file operations. All paths are
// relative to the vault root.
type Provider interface {
	// List returns metadata for every .md file under dir.
	List(dir string) ([]FileMeta, error)
	// Read returns the raw bytes of the file at path. Unlike List it is
	// not restricted to Markdown; context directives may reference PDFs
	// and images stored in the vault.
	Read(path string) ([]byte, error)
	// Write atomically replaces the content of path.
	Write(path string, content []byte) error
	// Root returns the absolute vault root directory.
	Root() string
}
