package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"codeberg.org/snonux/chmtrans/internal"
	"codeberg.org/snonux/chmtrans/internal/chm"
)

// Commands holds the command tree. main attaches the actions.
type Commands struct {
	Root      *cobra.Command
	Run       *cobra.Command
	Extract   *cobra.Command
	Translate *cobra.Command
	Rebuild   *cobra.Command
	Version   *cobra.Command
}

// CreateRootCommand creates and configures the root cobra command and its
// subcommands
func CreateRootCommand(flags *Flags) *Commands {
	rootCmd := &cobra.Command{
		Use:   "chmtrans",
		Short: "CHM help file translator",
		Long: `chmtrans translates compiled HTML help (CHM) files.

It unpacks a CHM with an external decompiler, translates the visible text
of every page through a translation service and compiles a new CHM next to
the original.

Examples:
  chmtrans run --target-lang zh-CN manual.chm
  chmtrans run --pattern "docs/**/*.chm" --target-lang de --backend deepl
  chmtrans extract --input manual.chm --output work/
  chmtrans translate --input work/ --output translated/ --target-lang ja
  chmtrans rebuild --input translated/ --output out/ --project-name manual`,
		Version:       internal.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmds := &Commands{
		Root: rootCmd,
		Run: &cobra.Command{
			Use:   "run [file.chm...]",
			Short: "Extract, translate and rebuild CHM files",
		},
		Extract: &cobra.Command{
			Use:   "extract",
			Short: "Unpack a CHM file into a directory",
			Args:  cobra.NoArgs,
		},
		Translate: &cobra.Command{
			Use:   "translate",
			Short: "Translate the HTML pages of an extracted directory",
			Args:  cobra.NoArgs,
		},
		Rebuild: &cobra.Command{
			Use:   "rebuild",
			Short: "Compile a directory into a CHM file",
			Args:  cobra.NoArgs,
		},
		Version: &cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "chmtrans %s\n", internal.Version)
			},
		},
	}

	// Set up flags
	setupFlags(cmds, flags)
	rootCmd.SetGlobalNormalizationFunc(normalizeFlagName)

	rootCmd.AddCommand(cmds.Run, cmds.Extract, cmds.Translate, cmds.Rebuild, cmds.Version)
	return cmds
}

func setupFlags(cmds *Commands, flags *Flags) {
	pf := cmds.Root.PersistentFlags()

	// Global flags
	pf.StringVar(&flags.CfgFile, "config", "", "config file (default is $HOME/.chmtrans.yaml)")
	pf.StringVar(&flags.LogLevel, "log-level", flags.LogLevel, "Log level: debug, info, warn or error")
	pf.StringVar(&flags.LogFormat, "log-format", flags.LogFormat, "Log format: text or json")

	// Translation flags
	pf.StringVarP(&flags.TargetLang, "target-lang", "t", "", "Target language (BCP-47, e.g. zh-CN)")
	pf.StringVar(&flags.SourceLang, "source-lang", flags.SourceLang, "Source language or auto to let the backend detect it")
	pf.StringVarP(&flags.Backend, "backend", "b", flags.Backend, "Translation backend: google, deepl, microsoft, openai or gemini")
	pf.IntVar(&flags.BatchSize, "batch-size", flags.BatchSize, "Maximum segments per request")
	pf.IntVar(&flags.BatchChars, "batch-chars", flags.BatchChars, "Maximum characters per request")
	pf.IntVar(&flags.MaxRetries, "max-retries", flags.MaxRetries, "Attempts per request before giving up")
	pf.IntVar(&flags.WorkerCount, "worker-count", flags.WorkerCount, "Concurrent translation requests")
	pf.IntVar(&flags.BreakerThreshold, "breaker-threshold", flags.BreakerThreshold, "Consecutive backend failures that pause requests (0 disables)")
	pf.DurationVar(&flags.RetryInitial, "retry-initial", flags.RetryInitial, "Initial retry backoff")
	pf.StringVarP(&flags.Glossary, "glossary", "g", "", "Glossary file (.csv, .tsv, .json or .yaml)")
	pf.StringVar(&flags.GlossaryMode, "glossary-mode", flags.GlossaryMode, "When to apply the glossary: post, pre or both")
	pf.StringSliceVar(&flags.Attributes, "translate-attributes", nil, "Attributes to translate as tag@attr, e.g. img@alt,*@title,meta@content")
	pf.StringVar(&flags.CachePath, "cache-path", flags.CachePath, "Translation memory database")
	pf.BoolVar(&flags.NoCache, "no-cache", false, "Disable the translation memory")
	pf.StringVar(&flags.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	pf.StringVar(&flags.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file when done")

	// Pipeline flags
	pf.StringVar(&flags.WorkDir, "work-dir", "", "Directory for per-job scratch space (default is the system temp dir)")
	pf.BoolVar(&flags.KeepWork, "keep-work", false, "Keep scratch directories for inspection")
	pf.StringVar(&flags.ExtractTool, "extract-tool", flags.ExtractTool, "Extraction tool: auto, "+chm.ExtractToolNames())
	pf.StringVar(&flags.CompileTool, "compile-tool", flags.CompileTool, "Compiler: auto, "+chm.CompileToolNames())

	// run flags
	rf := cmds.Run.Flags()
	rf.StringVarP(&flags.Pattern, "pattern", "p", "", "Comma-separated glob patterns selecting CHM files")
	rf.StringVarP(&flags.ListFile, "list", "l", "", "File listing CHM files, one per line")
	rf.StringVar(&flags.BaseDir, "base-dir", flags.BaseDir, "Directory patterns are matched in")
	rf.IntVarP(&flags.JobCount, "jobs", "j", flags.JobCount, "CHM files processed in parallel")
	rf.DurationVar(&flags.Timeout, "timeout", 0, "Abort unfinished jobs after this long (0 disables)")
	rf.BoolVar(&flags.ArchivePrevious, "archive-previous", false, "Move existing outputs to an archive directory instead of replacing them")

	// extract, translate and rebuild flags
	for _, cmd := range []*cobra.Command{cmds.Extract, cmds.Translate, cmds.Rebuild} {
		cmd.Flags().StringVarP(&flags.Input, "input", "i", "", "Input path")
		cmd.Flags().StringVarP(&flags.Output, "output", "o", "", "Output directory")
		cmd.MarkFlagRequired("input")
		cmd.MarkFlagRequired("output")
	}
	cmds.Rebuild.Flags().StringVar(&flags.ProjectName, "project-name", flags.ProjectName, "Name of the compiled file without extension")

	// Bind flags to viper
	bindFlagsToViper(cmds)
}

// normalizeFlagName accepts config key spelling on the command line, so
// --target_lang works like --target-lang
func normalizeFlagName(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// viperKeys maps configuration keys to flag names
var viperKeys = map[string]string{
	"log_level":            "log-level",
	"log_format":           "log-format",
	"target_lang":          "target-lang",
	"source_lang":          "source-lang",
	"backend":              "backend",
	"batch_size":           "batch-size",
	"batch_chars":          "batch-chars",
	"max_retries":          "max-retries",
	"worker_count":         "worker-count",
	"breaker_threshold":    "breaker-threshold",
	"retry_initial":        "retry-initial",
	"glossary":             "glossary",
	"glossary_mode":        "glossary-mode",
	"translate_attributes": "translate-attributes",
	"cache_path":           "cache-path",
	"no_cache":             "no-cache",
	"metrics_addr":         "metrics-addr",
	"metrics_file":         "metrics-file",
	"work_dir":             "work-dir",
	"keep_work":            "keep-work",
	"extract_tool":         "extract-tool",
	"compile_tool":         "compile-tool",
}

// runKeys are bound to flags of the run command
var runKeys = map[string]string{
	"file_pattern":     "pattern",
	"list_file":        "list",
	"base_dir":         "base-dir",
	"job_count":        "jobs",
	"timeout":          "timeout",
	"archive_previous": "archive-previous",
}

func bindFlagsToViper(cmds *Commands) {
	for key, name := range viperKeys {
		viper.BindPFlag(key, cmds.Root.PersistentFlags().Lookup(name))
	}
	for key, name := range runKeys {
		viper.BindPFlag(key, cmds.Run.Flags().Lookup(name))
	}
}

// InitConfig initializes viper configuration
func InitConfig(cfgFile string) {
	// Credentials may live in a .env file in the working directory
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
	}

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}

		// Search config in home and working directory with name ".chmtrans" (without extension)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".chmtrans")
	}

	// Environment variables, e.g. CHMTRANS_TARGET_LANG or
	// CHMTRANS_BACKENDS_DEEPL_API_KEY
	viper.SetEnvPrefix("CHMTRANS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Error reading config file %s: %v\n", cfgFile, err)
	}
}
