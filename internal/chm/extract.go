package chm

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"codeberg.org/snonux/chmtrans/internal/apperr"
)

// Extraction tools in the order they are tried
var extractTools = []tool{
	{
		name:     "7z",
		binaries: []string{"7z", "7za", "7zz"},
		args: func(input, output string) []string {
			return []string{"x", input, "-o" + output, "-y"}
		},
	},
	{
		name:     "extract_chmLib",
		binaries: []string{"extract_chmLib"},
		args: func(input, output string) []string {
			return []string{input, output}
		},
	},
	{
		name:     "hh",
		binaries: []string{"hh", "hh.exe"},
		args: func(input, output string) []string {
			return []string{"-decompile", output, input}
		},
	},
}

// ExtractToolNames lists the accepted extract_tool values besides auto
func ExtractToolNames() string {
	return toolNames(extractTools)
}

// Extractor unpacks CHM files into a directory tree
type Extractor struct {
	runner CmdRunner
	tools  []tool
	logger *logrus.Logger
}

// NewExtractor creates an extractor. choice pins one tool or is "auto".
func NewExtractor(runner CmdRunner, choice string, logger *logrus.Logger) (*Extractor, error) {
	tools, ok := selectTools(extractTools, choice)
	if !ok {
		return nil, apperr.Newf(apperr.CodeConfig, "unknown extract tool %q (expected auto, %s)", choice, ExtractToolNames())
	}
	return &Extractor{runner: runner, tools: tools, logger: logger}, nil
}

// Extract unpacks input into outDir. The first tool that exits zero and
// leaves at least one file behind wins.
func (e *Extractor) Extract(ctx context.Context, input, outDir string) error {
	if _, err := os.Stat(input); err != nil {
		return apperr.Wrap(err, apperr.CodeTool, "cannot read input file")
	}

	absInput, err := filepath.Abs(input)
	if err != nil {
		return fmt.Errorf("failed to resolve input path: %w", err)
	}
	absOut, err := filepath.Abs(outDir)
	if err != nil {
		return fmt.Errorf("failed to resolve output path: %w", err)
	}

	var lastErr error
	tried := 0

	for _, t := range e.tools {
		bin, found := t.resolve(e.runner)
		if !found {
			e.logger.WithField("tool", t.name).Debug("Extraction tool not installed")
			continue
		}
		tried++

		// Start every attempt from an empty directory
		if err := resetDir(absOut); err != nil {
			return err
		}

		log := e.logger.WithFields(logrus.Fields{
			"tool":  t.name,
			"input": absInput,
		})
		log.Debug("Extracting CHM")

		out, err := e.runner.Run(ctx, absOut, bin, t.args(absInput, absOut)...)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("extraction with %s interrupted: %w", t.name, ctxErr)
		}
		if err != nil {
			lastErr = apperr.Newf(apperr.CodeTool, "%s exited with code %d: %s", t.name, ExitCode(err), toolOutput(out))
			log.WithError(lastErr).Warn("Extraction tool failed")
			continue
		}

		empty, err := isEmptyTree(absOut)
		if err != nil {
			return fmt.Errorf("failed to inspect extracted files: %w", err)
		}
		if empty {
			lastErr = apperr.Newf(apperr.CodeTool, "%s produced no files", t.name)
			log.Warn("Extraction tool produced no files")
			continue
		}

		log.Info("CHM extracted")
		return nil
	}

	if tried == 0 {
		return apperr.Newf(apperr.CodeTool, "no CHM extraction tool found on PATH (looked for %s)", toolNames(e.tools))
	}
	return lastErr
}

func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clear %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}

// isEmptyTree reports whether dir contains no regular files
func isEmptyTree(dir string) (bool, error) {
	empty := true
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			empty = false
			return filepath.SkipAll
		}
		return nil
	})
	return empty, err
}
