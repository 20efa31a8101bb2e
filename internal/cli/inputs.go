package cli

import (
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"codeberg.org/snonux/chmtrans/internal/apperr"
	"codeberg.org/snonux/chmtrans/internal/batch"
)

// ResolveInputs collects the CHM files of a run from positional
// arguments, the list file and the file pattern, in that order. Duplicates
// and outputs of earlier runs for the same target language are dropped.
func ResolveInputs(args []string, s *Settings, logger *logrus.Logger) ([]string, error) {
	var files []string
	for _, arg := range args {
		if !strings.EqualFold(filepath.Ext(arg), ".chm") {
			return nil, apperr.Newf(apperr.CodeConfig, "%s is not a .chm file", arg)
		}
		files = append(files, arg)
	}

	if s.ListFile != "" {
		listed, err := batch.ReadListFile(s.ListFile)
		if err != nil {
			return nil, err
		}
		files = append(files, listed...)
	}

	// The pattern only applies when nothing was named explicitly
	if s.FilePattern != "" && len(files) == 0 {
		baseDir := s.BaseDir
		if baseDir == "" {
			baseDir = "."
		}
		matched, err := batch.ExpandPattern(s.FilePattern, baseDir)
		if err != nil {
			return nil, err
		}
		files = append(files, matched...)
	}

	files = dedupe(files)
	kept, skipped := batch.SkipOutputs(files, s.TargetLang)
	for _, file := range skipped {
		logger.WithField("file", file).Debug("Skipping earlier output")
	}

	if len(kept) == 0 {
		return nil, apperr.New(apperr.CodeConfig, "no CHM files to process (pass files, --list or --pattern)")
	}
	return kept, nil
}

func dedupe(files []string) []string {
	seen := make(map[string]bool, len(files))
	out := files[:0]
	for _, file := range files {
		key := filepath.Clean(file)
		if abs, err := filepath.Abs(file); err == nil {
			key = abs
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, file)
	}
	return out
}
