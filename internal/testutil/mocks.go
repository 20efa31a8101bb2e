package testutil

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// ExitError mimics *exec.ExitError for a process that exited with Code
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode returns the exit status
func (e *ExitError) ExitCode() int {
	return e.Code
}

// MockCmdRunner mocks external command execution
type MockCmdRunner struct {
	// Installed lists the binaries LookPath finds. Nil means every binary
	// is installed.
	Installed map[string]bool

	// Handler produces the output of a command. Nil means every command
	// succeeds without output.
	Handler func(dir, name string, args []string) ([]byte, error)

	mu    sync.Mutex
	calls []string
}

// Run records the call and delegates to Handler
func (m *MockCmdRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, strings.TrimSpace(name+" "+strings.Join(args, " ")))
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Handler == nil {
		return nil, nil
	}
	return m.Handler(dir, name, args)
}

// LookPath returns name when it is installed
func (m *MockCmdRunner) LookPath(name string) (string, error) {
	if m.Installed == nil || m.Installed[name] {
		return name, nil
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

// Calls returns the recorded command lines
func (m *MockCmdRunner) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// MockBackend mocks a batch translation backend
type MockBackend struct {
	// Translations overrides the default "[lang] text" output
	Translations map[string]string

	// Fail, when set, is consulted before every request
	Fail func(call int, texts []string) error

	mu    sync.Mutex
	calls int
	texts int
}

// Name returns the backend name
func (m *MockBackend) Name() string { return "mock" }

// Translate translates one text
func (m *MockBackend) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	out, err := m.TranslateBatch(ctx, []string{text}, sourceLang, targetLang)
	if err != nil {
		return "", err
	}
	return out[0], nil
}

// TranslateBatch translates texts in order
func (m *MockBackend) TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.texts += len(texts)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Fail != nil {
		if err := m.Fail(call, texts); err != nil {
			return nil, err
		}
	}

	out := make([]string, len(texts))
	for i, text := range texts {
		if translated, ok := m.Translations[text]; ok {
			out[i] = translated
			continue
		}
		out[i] = fmt.Sprintf("[%s] %s", targetLang, text)
	}
	return out, nil
}

// Calls returns the number of requests made
func (m *MockBackend) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Texts returns the number of texts sent
func (m *MockBackend) Texts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.texts
}
