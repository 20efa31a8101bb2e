package archive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestArchiveFile(t *testing.T) {
	// Create temp directory
	tmpDir := t.TempDir()

	// Create a previous output
	output := filepath.Join(tmpDir, "manual_de.chm")
	if err := os.WriteFile(output, []byte("old output"), 0644); err != nil {
		t.Fatalf("Failed to create output file: %v", err)
	}

	archived, err := ArchiveFile(output)
	if err != nil {
		t.Fatalf("ArchiveFile failed: %v", err)
	}

	// Check that the output no longer exists
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Error("Output still exists after archiving")
	}

	// Check that the archived file is in the archive directory
	if filepath.Dir(archived) != filepath.Join(tmpDir, DirName) {
		t.Errorf("Archived to unexpected directory: %s", archived)
	}

	// Verify name format (should be manual_de-YYYYMMDD-HHMMSS.chm)
	name := filepath.Base(archived)
	if !strings.HasPrefix(name, "manual_de-") || !strings.HasSuffix(name, ".chm") {
		t.Errorf("Unexpected archive name: %s", name)
	}

	content, err := os.ReadFile(archived)
	if err != nil {
		t.Fatalf("Failed to read archived file: %v", err)
	}
	if string(content) != "old output" {
		t.Errorf("Archived content mismatch: %q", content)
	}
}

func TestArchiveFile_NonExistent(t *testing.T) {
	tmpDir := t.TempDir()

	_, err := ArchiveFile(filepath.Join(tmpDir, "nonexistent.chm"))
	if err == nil {
		t.Fatal("Expected error for non-existent file")
	}

	if !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("Expected 'does not exist' error, got: %v", err)
	}
}

func TestArchiveFile_Directory(t *testing.T) {
	if _, err := ArchiveFile(t.TempDir()); err == nil {
		t.Error("Expected error for a directory")
	}
}

func TestArchiveFile_MultipleArchives(t *testing.T) {
	tmpDir := t.TempDir()
	output := filepath.Join(tmpDir, "manual_de.chm")

	// Archive twice to ensure unique names
	for i := 0; i < 2; i++ {
		if err := os.WriteFile(output, []byte{byte('a' + i)}, 0644); err != nil {
			t.Fatalf("Failed to create output file: %v", err)
		}

		// Small delay to ensure different timestamps
		if i == 1 {
			time.Sleep(10 * time.Millisecond)
		}

		if _, err := ArchiveFile(output); err != nil {
			t.Fatalf("ArchiveFile failed on iteration %d: %v", i, err)
		}
	}

	entries, err := os.ReadDir(filepath.Join(tmpDir, DirName))
	if err != nil {
		t.Fatalf("Failed to read archive directory: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries in archive directory, got %d", len(entries))
	}

	if entries[0].Name() == entries[1].Name() {
		t.Error("Archive names are not unique")
	}
}
