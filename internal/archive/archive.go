// Package archive keeps outputs of earlier runs instead of overwriting them.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DirName is the directory next to an output file that holds replaced
// outputs
const DirName = "archive"

// ArchiveFile moves file into an archive directory beside it, adding a
// timestamp to its name, and returns the new path
func ArchiveFile(file string) (string, error) {
	// Check if the file exists
	info, err := os.Stat(file)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("file does not exist: %s", file)
	}
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", file, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("not a regular file: %s", file)
	}

	// Create archive directory if it doesn't exist
	archiveDir := filepath.Join(filepath.Dir(file), DirName)
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	ext := filepath.Ext(file)
	stem := strings.TrimSuffix(filepath.Base(file), ext)

	now := time.Now()
	archivePath := filepath.Join(archiveDir, fmt.Sprintf("%s-%s%s", stem, now.Format("20060102-150405"), ext))

	// Check if archive already exists (unlikely but possible)
	if _, err := os.Stat(archivePath); err == nil {
		// Add microseconds to make it unique
		archivePath = filepath.Join(archiveDir, fmt.Sprintf("%s-%s%s", stem, now.Format("20060102-150405.000000"), ext))
	}

	if err := os.Rename(file, archivePath); err != nil {
		return "", fmt.Errorf("failed to archive %s: %w", file, err)
	}

	return archivePath, nil
}
