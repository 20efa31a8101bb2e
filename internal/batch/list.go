package batch

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"codeberg.org/snonux/chmtrans/internal/apperr"
)

// ReadListFile reads CHM paths from a file, one per line. Blank lines and
// lines starting with '#' are ignored. Relative paths are resolved against
// the directory of the list file.
func ReadListFile(filename string) ([]string, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeConfig, "failed to read list file")
	}
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))

	baseDir := filepath.Dir(filename)
	seen := make(map[string]bool)
	var files []string

	scanner := bufio.NewScanner(bytes.NewReader(content))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		path := filepath.FromSlash(line)
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		path = filepath.Clean(path)

		if !isCHM(path) {
			return nil, apperr.Newf(apperr.CodeConfig, "%s:%d: not a .chm file: %s", filename, lineNo, line)
		}
		if seen[path] {
			continue
		}
		seen[path] = true
		files = append(files, path)
	}
	if err := scanner.Err(); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeConfig, "failed to read list file")
	}

	return files, nil
}
