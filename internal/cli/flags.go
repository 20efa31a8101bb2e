package cli

import (
	"os"
	"path/filepath"
	"time"

	"codeberg.org/snonux/chmtrans/internal/chm"
	"codeberg.org/snonux/chmtrans/internal/translation"
)

// Flags holds all command-line flag values
type Flags struct {
	// General flags
	CfgFile string

	// Per-command paths
	Input       string
	Output      string
	ProjectName string
	Pattern     string
	ListFile    string
	BaseDir     string

	// Translation flags
	TargetLang       string
	SourceLang       string
	Backend          string
	BatchSize        int
	BatchChars       int
	MaxRetries       int
	WorkerCount      int
	BreakerThreshold int
	RetryInitial     time.Duration
	Glossary         string
	GlossaryMode     string
	Attributes       []string
	CachePath        string
	NoCache          bool

	// Pipeline flags
	JobCount        int
	Timeout         time.Duration
	WorkDir         string
	KeepWork        bool
	ArchivePrevious bool
	ExtractTool     string
	CompileTool     string

	// Observability flags
	LogLevel    string
	LogFormat   string
	MetricsAddr string
	MetricsFile string
}

// NewFlags creates a new Flags instance with default values
func NewFlags() *Flags {
	defaults := translation.DefaultOptions()

	return &Flags{
		ProjectName:      "TranslatedHelp",
		BaseDir:          ".",
		SourceLang:       defaults.SourceLang,
		Backend:          translation.BackendGoogle,
		BatchSize:        defaults.BatchSize,
		BatchChars:       defaults.BatchChars,
		MaxRetries:       defaults.MaxRetries,
		WorkerCount:      defaults.Workers,
		BreakerThreshold: int(defaults.BreakerThreshold),
		RetryInitial:     defaults.InitialBackoff,
		GlossaryMode:     defaults.GlossaryMode,
		CachePath:        defaultCachePath(),
		JobCount:         1,
		ExtractTool:      chm.ToolAuto,
		CompileTool:      chm.ToolAuto,
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// defaultCachePath places the translation memory in the user cache
// directory
func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "chmtrans", "memory.db")
}
