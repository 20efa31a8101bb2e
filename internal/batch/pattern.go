package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"codeberg.org/snonux/chmtrans/internal/apperr"
	"codeberg.org/snonux/chmtrans/internal/archive"
)

// ExpandPattern resolves a comma-separated list of glob patterns below
// baseDir. Patterns containing a path separator or "**" are matched against
// the slash-separated path relative to baseDir, all others against the
// file's base name at any depth. A pattern without glob characters names a
// file directly. Only .chm files are returned, largest first.
func ExpandPattern(pattern, baseDir string) ([]string, error) {
	var patterns []string
	for _, p := range strings.Split(pattern, ",") {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, filepath.ToSlash(p))
		}
	}
	if len(patterns) == 0 {
		return nil, apperr.New(apperr.CodeConfig, "file pattern is empty")
	}

	for _, p := range patterns {
		if _, err := path.Match(p, ""); err != nil {
			return nil, apperr.Wrap(err, apperr.CodeConfig, fmt.Sprintf("invalid file pattern %q", p))
		}
	}

	found := make(map[string]int64)

	var globs []string
	for _, p := range patterns {
		if hasMeta(p) {
			globs = append(globs, p)
			continue
		}
		file := filepath.FromSlash(p)
		if !filepath.IsAbs(file) {
			file = filepath.Join(baseDir, file)
		}
		if info, err := os.Stat(file); err == nil && info.Mode().IsRegular() && isCHM(file) {
			found[filepath.Clean(file)] = info.Size()
		}
	}

	if len(globs) > 0 {
		err := filepath.WalkDir(baseDir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if p != baseDir && d.Name() == archive.DirName {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || !isCHM(p) {
				return nil
			}

			rel, err := filepath.Rel(baseDir, p)
			if err != nil {
				return err
			}
			if !matchAny(globs, filepath.ToSlash(rel)) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return err
			}
			found[filepath.Clean(p)] = info.Size()
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to search %s: %w", baseDir, err)
		}
	}

	return bySizeDescending(found), nil
}

func hasMeta(p string) bool {
	return strings.ContainsAny(p, "*?[")
}

func isCHM(p string) bool {
	return strings.EqualFold(filepath.Ext(p), ".chm")
}

// matchAny reports whether rel matches one of the patterns
func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if strings.Contains(p, "/") || strings.Contains(p, "**") {
			if matchSegments(strings.Split(p, "/"), strings.Split(rel, "/")) {
				return true
			}
			continue
		}
		if ok, _ := path.Match(p, path.Base(rel)); ok {
			return true
		}
	}
	return false
}

// matchSegments matches path segments where "**" spans zero or more
// directories
func matchSegments(pattern, segments []string) bool {
	if len(pattern) == 0 {
		return len(segments) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(segments); i++ {
			if matchSegments(pattern[1:], segments[i:]) {
				return true
			}
		}
		return false
	}
	if len(segments) == 0 {
		return false
	}
	ok, _ := path.Match(pattern[0], segments[0])
	return ok && matchSegments(pattern[1:], segments[1:])
}

// bySizeDescending orders files so the longest jobs start first
func bySizeDescending(files map[string]int64) []string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		if files[paths[i]] != files[paths[j]] {
			return files[paths[i]] > files[paths[j]]
		}
		return paths[i] < paths[j]
	})
	return paths
}

// IsOutputFor reports whether file looks like an earlier translation into
// lang, e.g. manual_zh-cn.chm for zh-CN
func IsOutputFor(file, lang string) bool {
	stem := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	return strings.HasSuffix(strings.ToLower(stem), "_"+strings.ToLower(lang))
}

// SkipOutputs drops files produced by earlier runs for lang
func SkipOutputs(files []string, lang string) (kept, skipped []string) {
	for _, f := range files {
		if IsOutputFor(f, lang) {
			skipped = append(skipped, f)
			continue
		}
		kept = append(kept, f)
	}
	return kept, skipped
}
