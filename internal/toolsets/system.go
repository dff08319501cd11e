package toolsets

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/starford/ansuz/internal/llm"
)

// commandTimeout bounds run_command so a hung process cannot stall the
// tool loop past its own deadline.
const commandTimeout = 60 * time.Second

// SystemToolset returns the "system" tools. Everything that mutates state
// or executes code is sensitive and gated behind confirmation.
func SystemToolset() []Tool {
	return []Tool{
		{
			Name:        "read_file",
			Description: "Read a file from the local file system.",
			Params: map[string]llm.ParamSpec{
				"path": {Type: "string", Description: "Absolute path of the file to read", Required: true},
			},
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				path, err := StringArg(args, "path")
				if err != nil {
					return "", err
				}
				data, err := os.ReadFile(path)
				if err != nil {
					return "", err
				}
				return string(data), nil
			},
		},
		{
			Name:        "write_file",
			Description: "Write content to a file on the local file system, replacing it if it exists.",
			Params: map[string]llm.ParamSpec{
				"path":    {Type: "string", Description: "Absolute path of the file to write", Required: true},
				"content": {Type: "string", Description: "Content to write", Required: true},
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
				if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
					return "", err
				}
				return "written: " + path, nil
			},
		},
		{
			Name:        "run_command",
			Description: "Execute a shell command and return its combined output.",
			Params: map[string]llm.ParamSpec{
				"command": {Type: "string", Description: "Shell command to execute", Required: true},
			},
			Sensitive: true,
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				command, err := StringArg(args, "command")
				if err != nil {
					return "", err
				}
				ctx, cancel := context.WithTimeout(ctx, commandTimeout)
				defer cancel()

				cmd := exec.CommandContext(ctx, "sh", "-c", command)
				var buf bytes.Buffer
				cmd.Stdout = &buf
				cmd.Stderr = &buf
				if err := cmd.Run(); err != nil {
					return "", fmt.Errorf("%w\noutput:\n%s", err, buf.String())
				}
				return buf.String(), nil
			},
		},
	}
}
