package chm

import (
	"context"
	"errors"
	"os/exec"
	"strings"
)

// CmdRunner is interface for executing external commands
type CmdRunner interface {
	// Run executes name with args in dir and returns its combined output
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)

	// LookPath resolves name against PATH
	LookPath(name string) (string, error)
}

// execRunner implements CmdRunner using os/exec
type execRunner struct{}

// NewCmdRunner creates a new CmdRunner
func NewCmdRunner() CmdRunner {
	return &execRunner{}
}

// Run executes external command with given arguments
func (r *execRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// LookPath resolves name against PATH
func (r *execRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// ExitCode returns the exit status carried by err, 0 for a nil error and -1
// when the process did not exit normally
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr interface{ ExitCode() int }
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

const maxToolOutput = 500

// toolOutput trims tool output for error messages
func toolOutput(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > maxToolOutput {
		s = "..." + s[len(s)-maxToolOutput:]
	}
	return s
}

// tool describes one external program and how to call it
type tool struct {
	name     string
	binaries []string
	args     func(input, output string) []string
}

// resolve returns the first binary of t found on PATH
func (t tool) resolve(runner CmdRunner) (string, bool) {
	for _, bin := range t.binaries {
		if path, err := runner.LookPath(bin); err == nil {
			return path, true
		}
	}
	return "", false
}

func toolNames(tools []tool) string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.name
	}
	return strings.Join(names, ", ")
}

// selectTools returns the tools matching choice, which is either ToolAuto
// or a tool name
func selectTools(tools []tool, choice string) ([]tool, bool) {
	choice = strings.ToLower(strings.TrimSpace(choice))
	if choice == "" || choice == ToolAuto {
		return tools, true
	}
	for _, t := range tools {
		if strings.ToLower(t.name) == choice {
			return []tool{t}, true
		}
	}
	return nil, false
}

// ToolAuto tries every known tool in order
const ToolAuto = "auto"
