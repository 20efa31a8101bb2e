package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"codeberg.org/snonux/chmtrans/internal/chm"
	"codeberg.org/snonux/chmtrans/internal/cli"
	"codeberg.org/snonux/chmtrans/internal/pipeline"
	"codeberg.org/snonux/chmtrans/internal/translation"
)

func main() {
	// Create flags instance
	flags := cli.NewFlags()

	// Create command tree
	cmds := cli.CreateRootCommand(flags)

	// Set up command initialization
	cobra.OnInitialize(func() {
		cli.InitConfig(flags.CfgFile)
	})

	// Set the run functions
	cmds.Run.RunE = func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, args)
	}
	cmds.Extract.RunE = func(cmd *cobra.Command, args []string) error {
		return extractCommand(cmd, flags)
	}
	cmds.Translate.RunE = func(cmd *cobra.Command, args []string) error {
		return translateCommand(cmd, flags)
	}
	cmds.Rebuild.RunE = func(cmd *cobra.Command, args []string) error {
		return rebuildCommand(cmd, flags)
	}

	// Execute command
	if err := cmds.Root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the settings and creates the logger shared by all commands
func setup() (*cli.Settings, *logrus.Logger, error) {
	settings, err := cli.LoadSettings()
	if err != nil {
		return nil, nil, err
	}
	return settings, cli.NewLogger(settings.LogLevel, settings.LogFormat, os.Stderr), nil
}

// signalContext is cancelled on SIGINT and SIGTERM
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func runCommand(cmd *cobra.Command, args []string) error {
	settings, logger, err := setup()
	if err != nil {
		return err
	}
	if err := settings.RequireTarget(); err != nil {
		return err
	}

	inputs, err := cli.ResolveInputs(args, settings, logger)
	if err != nil {
		return err
	}

	comps, err := cli.BuildClient(settings, logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	orchestrator, err := cli.BuildOrchestrator(settings, comps, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	if settings.MetricsAddr != "" {
		metricsCtx, stopMetrics := context.WithCancel(context.Background())
		defer stopMetrics()
		go func() {
			if err := comps.Metrics.Serve(metricsCtx, settings.MetricsAddr, logger); err != nil {
				logger.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	logger.WithFields(logrus.Fields{
		"files":   len(inputs),
		"backend": settings.Backend,
		"target":  settings.TargetLang,
		"jobs":    settings.JobCount,
	}).Info("Starting translation run")

	jobs := orchestrator.Run(ctx, inputs)
	pipeline.PrintSummary(cmd.OutOrStdout(), jobs)

	if settings.MetricsFile != "" {
		if err := comps.Metrics.WriteTextfile(settings.MetricsFile); err != nil {
			logger.WithError(err).Warn("Failed to write metrics file")
		}
	}

	if pipeline.AnyFailed(jobs) {
		return fmt.Errorf("%d of %d files failed", countFailed(jobs), len(jobs))
	}
	return nil
}

func countFailed(jobs []*pipeline.Job) int {
	n := 0
	for _, job := range jobs {
		if job.Status == pipeline.StatusFailed {
			n++
		}
	}
	return n
}

func extractCommand(cmd *cobra.Command, flags *cli.Flags) error {
	settings, logger, err := setup()
	if err != nil {
		return err
	}
	extractor, err := cli.BuildExtractor(settings, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	if err := extractor.Extract(ctx, flags.Input, flags.Output); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Extracted %s to %s\n", flags.Input, flags.Output)
	return nil
}

func translateCommand(cmd *cobra.Command, flags *cli.Flags) error {
	settings, logger, err := setup()
	if err != nil {
		return err
	}
	if err := settings.RequireTarget(); err != nil {
		return err
	}

	comps, err := cli.BuildClient(settings, logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	tree := pipeline.NewTreeTranslator(comps.Client, settings.WalkerOptions(), logger)
	stats, err := tree.TranslateTree(ctx, flags.Input, flags.Output, settings.TargetLang)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Translated %d documents to %s (%d segments, %d from memory, %d files copied)\n",
		stats.Documents, translation.LanguageName(settings.TargetLang), stats.Segments, stats.FromMemory, stats.Copied)
	return nil
}

func rebuildCommand(cmd *cobra.Command, flags *cli.Flags) error {
	settings, logger, err := setup()
	if err != nil {
		return err
	}
	compiler, err := cli.BuildCompiler(settings, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	outPath := filepath.Join(flags.Output, flags.ProjectName+".chm")
	lang := settings.TargetLang
	if lang == "" {
		lang = "en-US"
	}
	project := chm.Project{Name: flags.ProjectName, Title: flags.ProjectName, Language: lang}
	if err := compiler.Build(ctx, flags.Input, outPath, project); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Built %s\n", outPath)
	return nil
}
