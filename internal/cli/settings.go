package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"codeberg.org/snonux/chmtrans/internal/apperr"
	"codeberg.org/snonux/chmtrans/internal/htmltext"
	"codeberg.org/snonux/chmtrans/internal/translation"
)

// Settings is the validated configuration of one invocation, merged from
// flags, environment variables and the config file
type Settings struct {
	FilePattern string
	ListFile    string
	BaseDir     string

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

	JobCount        int
	Timeout         time.Duration
	WorkDir         string
	KeepWork        bool
	ArchivePrevious bool
	ExtractTool     string
	CompileTool     string

	LogLevel    logrus.Level
	LogFormat   string
	MetricsAddr string
	MetricsFile string
}

// LoadSettings reads the configuration from viper and validates it. All
// problems are reported as CONFIG errors.
func LoadSettings() (*Settings, error) {
	s := &Settings{
		FilePattern:      viper.GetString("file_pattern"),
		ListFile:         viper.GetString("list_file"),
		BaseDir:          viper.GetString("base_dir"),
		SourceLang:       viper.GetString("source_lang"),
		BatchSize:        viper.GetInt("batch_size"),
		BatchChars:       viper.GetInt("batch_chars"),
		MaxRetries:       viper.GetInt("max_retries"),
		WorkerCount:      viper.GetInt("worker_count"),
		BreakerThreshold: viper.GetInt("breaker_threshold"),
		RetryInitial:     viper.GetDuration("retry_initial"),
		Glossary:         viper.GetString("glossary"),
		CachePath:        viper.GetString("cache_path"),
		NoCache:          viper.GetBool("no_cache"),
		JobCount:         viper.GetInt("job_count"),
		Timeout:          viper.GetDuration("timeout"),
		WorkDir:          viper.GetString("work_dir"),
		KeepWork:         viper.GetBool("keep_work"),
		ArchivePrevious:  viper.GetBool("archive_previous"),
		ExtractTool:      viper.GetString("extract_tool"),
		CompileTool:      viper.GetString("compile_tool"),
		MetricsAddr:      viper.GetString("metrics_addr"),
		MetricsFile:      viper.GetString("metrics_file"),
	}

	var err error
	if s.Backend, err = translation.ParseBackend(viper.GetString("backend")); err != nil {
		return nil, err
	}
	if s.GlossaryMode, err = translation.ParseGlossaryMode(viper.GetString("glossary_mode")); err != nil {
		return nil, err
	}

	if target := viper.GetString("target_lang"); target != "" {
		if s.TargetLang, err = translation.NormalizeLanguage(target); err != nil {
			return nil, err
		}
	}
	if s.SourceLang == "" {
		s.SourceLang = "auto"
	}
	if !strings.EqualFold(s.SourceLang, "auto") {
		if s.SourceLang, err = translation.NormalizeLanguage(s.SourceLang); err != nil {
			return nil, err
		}
	}

	s.Attributes = splitList(viper.GetStringSlice("translate_attributes"))
	if err := htmltext.ValidateAttributes(s.Attributes); err != nil {
		return nil, err
	}

	if err := s.checkBounds(); err != nil {
		return nil, err
	}

	if s.LogLevel, err = logrus.ParseLevel(viper.GetString("log_level")); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeConfig, "invalid log_level")
	}
	switch s.LogFormat = strings.ToLower(viper.GetString("log_format")); s.LogFormat {
	case "", "text":
		s.LogFormat = "text"
	case "json":
	default:
		return nil, apperr.Newf(apperr.CodeConfig, "unknown log_format %q (expected text or json)", s.LogFormat)
	}

	return s, nil
}

func (s *Settings) checkBounds() error {
	positive := []struct {
		key   string
		value int
	}{
		{"batch_size", s.BatchSize},
		{"batch_chars", s.BatchChars},
		{"max_retries", s.MaxRetries},
		{"worker_count", s.WorkerCount},
	}
	for _, p := range positive {
		if p.value < 1 {
			return apperr.Newf(apperr.CodeConfig, "%s must be at least 1, got %d", p.key, p.value)
		}
	}
	if s.JobCount < 1 {
		s.JobCount = 1
	}
	if s.BreakerThreshold < 0 {
		return apperr.Newf(apperr.CodeConfig, "breaker_threshold must not be negative, got %d", s.BreakerThreshold)
	}
	if s.Timeout < 0 {
		return apperr.Newf(apperr.CodeConfig, "timeout must not be negative, got %s", s.Timeout)
	}
	if s.RetryInitial <= 0 {
		s.RetryInitial = translation.DefaultOptions().InitialBackoff
	}
	return nil
}

// splitList flattens comma-separated entries, which is how lists arrive
// from environment variables
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

// WalkerOptions returns the HTML walker options for pages
func (s *Settings) WalkerOptions() htmltext.Options {
	opts := htmltext.DefaultOptions()
	opts.Attributes = s.Attributes
	return opts
}

// RequireTarget fails when no target language is configured
func (s *Settings) RequireTarget() error {
	if s.TargetLang == "" {
		return apperr.New(apperr.CodeConfig, "no target language configured (use --target-lang or target_lang)")
	}
	return nil
}

// TranslationOptions converts the settings for the translation client
func (s *Settings) TranslationOptions() translation.Options {
	opts := translation.DefaultOptions()
	opts.SourceLang = s.SourceLang
	opts.BatchSize = s.BatchSize
	opts.BatchChars = s.BatchChars
	opts.Workers = s.WorkerCount
	opts.MaxRetries = s.MaxRetries
	opts.InitialBackoff = s.RetryInitial
	opts.BreakerThreshold = uint32(s.BreakerThreshold)
	opts.GlossaryMode = s.GlossaryMode
	return opts
}

// apiKeyEnv lists the environment variables holding backend credentials
var apiKeyEnv = map[string]string{
	translation.BackendGoogle:    "GOOGLE_TRANSLATE_API_KEY",
	translation.BackendDeepL:     "DEEPL_AUTH_KEY",
	translation.BackendMicrosoft: "MICROSOFT_TRANSLATOR_KEY",
	translation.BackendOpenAI:    "OPENAI_API_KEY",
	translation.BackendGemini:    "GEMINI_API_KEY",
}

// APIKey returns the credential for a backend. The environment takes
// precedence over backends.<name>.api_key in the config file.
func APIKey(backend string) string {
	if env, ok := apiKeyEnv[backend]; ok {
		if key := os.Getenv(env); key != "" {
			return key
		}
	}
	return viper.GetString(fmt.Sprintf("backends.%s.api_key", backend))
}

// MicrosoftRegion returns the Azure resource region, if any
func MicrosoftRegion() string {
	if region := os.Getenv("MICROSOFT_TRANSLATOR_REGION"); region != "" {
		return region
	}
	return viper.GetString("backends.microsoft.region")
}

// BackendConfig assembles the backend configuration for s.Backend
func (s *Settings) BackendConfig(logger *logrus.Logger) translation.Config {
	cfg := translation.Config{
		Backend: s.Backend,
		APIKey:  APIKey(s.Backend),
		BaseURL: viper.GetString(fmt.Sprintf("backends.%s.url", s.Backend)),
		Model:   viper.GetString(fmt.Sprintf("backends.%s.model", s.Backend)),
		Timeout: viper.GetDuration(fmt.Sprintf("backends.%s.timeout", s.Backend)),
		Logger:  logger,
	}
	if s.Backend == translation.BackendMicrosoft {
		cfg.Region = MicrosoftRegion()
	}
	return cfg
}

// missingKeyError explains where the credential for backend is read from
func missingKeyError(backend string) error {
	return apperr.Newf(apperr.CodeConfig, "no API key for backend %s: set %s or backends.%s.api_key",
		backend, apiKeyEnv[backend], backend)
}
