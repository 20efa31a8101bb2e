package testutil

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

// CreateTestFile creates a test file with content
func CreateTestFile(t *testing.T, path string, content []byte) {
	t.Helper()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create directory for test file: %v", err)
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("Failed to create test file %s: %v", path, err)
	}
}

// CreateTestTree creates files below root. Keys are slash-separated
// relative paths.
func CreateTestTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for rel, content := range files {
		CreateTestFile(t, filepath.Join(root, filepath.FromSlash(rel)), []byte(content))
	}
}

// CreateHelpTree creates a small extracted help file tree and returns its
// root
func CreateHelpTree(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	CreateTestTree(t, root, map[string]string{
		"index.html":          `<html><head><title>Welcome</title></head><body><h1>Welcome</h1><p>Open the File menu.</p></body></html>`,
		"topics/settings.htm": `<html><body><p>Settings</p><pre>rm -rf /tmp</pre></body></html>`,
		"images/logo.gif":     "GIF89a",
		"style.css":           "body { color: black; }",
	})
	return root
}

// DiscardLogger returns a logger that writes nowhere
func DiscardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// AssertFileExists checks if a file exists
func AssertFileExists(t *testing.T, path string) {
	t.Helper()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("Expected file to exist: %s", path)
	}
}

// AssertFileNotExists checks if a file does not exist
func AssertFileNotExists(t *testing.T, path string) {
	t.Helper()

	if _, err := os.Stat(path); err == nil {
		t.Errorf("Expected file to not exist: %s", path)
	}
}

// AssertFileContent checks if a file has expected content
func AssertFileContent(t *testing.T, path string, expected []byte) {
	t.Helper()

	actual, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}

	if string(actual) != string(expected) {
		t.Errorf("File content mismatch in %s\nExpected: %q\nActual: %q", path, expected, actual)
	}
}

// AssertFileContains checks if a file contains a substring
func AssertFileContains(t *testing.T, path string, substring string) {
	t.Helper()

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}

	if !strings.Contains(string(content), substring) {
		t.Errorf("File %s does not contain expected substring: %q", path, substring)
	}
}
