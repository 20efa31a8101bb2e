package chm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"codeberg.org/snonux/chmtrans/internal/apperr"
)

// Compilers in the order they are tried
var compileTools = []tool{
	{
		name:     "hhc",
		binaries: []string{"hhc", "hhc.exe"},
		args: func(project, _ string) []string {
			return []string{project}
		},
	},
	{
		name:     "chmcmd",
		binaries: []string{"chmcmd"},
		args: func(project, _ string) []string {
			return []string{project}
		},
	},
}

// CompileToolNames lists the accepted compile_tool values besides auto
func CompileToolNames() string {
	return toolNames(compileTools)
}

// compileSucceeded interprets a compiler's exit status. hhc exits 1 on
// success and 0 on failure.
func compileSucceeded(name string, err error) bool {
	code := ExitCode(err)
	if name == "hhc" {
		return code == 1
	}
	return code == 0
}

// Compiler builds CHM files from a directory tree
type Compiler struct {
	runner CmdRunner
	tools  []tool
	logger *logrus.Logger
}

// NewCompiler creates a compiler. choice pins one tool or is "auto".
func NewCompiler(runner CmdRunner, choice string, logger *logrus.Logger) (*Compiler, error) {
	tools, ok := selectTools(compileTools, choice)
	if !ok {
		return nil, apperr.Newf(apperr.CodeConfig, "unknown compile tool %q (expected auto, %s)", choice, CompileToolNames())
	}
	return &Compiler{runner: runner, tools: tools, logger: logger}, nil
}

// Build compiles srcDir into outPath. A stale outPath is removed first so a
// compiler that reports success without writing is detected.
func (c *Compiler) Build(ctx context.Context, srcDir, outPath string, p Project) error {
	absSrc, err := filepath.Abs(srcDir)
	if err != nil {
		return fmt.Errorf("failed to resolve source path: %w", err)
	}
	absOut, err := filepath.Abs(outPath)
	if err != nil {
		return fmt.Errorf("failed to resolve output path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(absOut), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.Remove(absOut); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale output: %w", err)
	}

	projectPath, err := EnsureProject(absSrc, absOut, p)
	if err != nil {
		return err
	}

	var lastErr error
	tried := 0

	for _, t := range c.tools {
		bin, found := t.resolve(c.runner)
		if !found {
			c.logger.WithField("tool", t.name).Debug("Compiler not installed")
			continue
		}
		tried++

		log := c.logger.WithFields(logrus.Fields{
			"tool":    t.name,
			"project": projectPath,
		})
		log.Debug("Compiling CHM")

		out, err := c.runner.Run(ctx, absSrc, bin, t.args(filepath.Base(projectPath), absOut)...)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("compilation with %s interrupted: %w", t.name, ctxErr)
		}
		if !compileSucceeded(t.name, err) {
			lastErr = apperr.Newf(apperr.CodeTool, "%s exited with code %d: %s", t.name, ExitCode(err), toolOutput(out))
			log.WithError(lastErr).Warn("Compiler failed")
			continue
		}

		info, err := os.Stat(absOut)
		if err != nil || info.Size() == 0 {
			lastErr = apperr.Newf(apperr.CodeTool, "%s reported success but wrote no output: %s", t.name, toolOutput(out))
			log.Warn("Compiler wrote no output")
			continue
		}

		log.WithField("output", absOut).Info("CHM compiled")
		return nil
	}

	if tried == 0 {
		return apperr.Newf(apperr.CodeTool, "no CHM compiler found on PATH (looked for %s)", toolNames(c.tools))
	}
	return lastErr
}
