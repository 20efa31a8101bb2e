package cli

import (
	"github.com/sirupsen/logrus"

	"codeberg.org/snonux/chmtrans/internal/chm"
	"codeberg.org/snonux/chmtrans/internal/glossary"
	"codeberg.org/snonux/chmtrans/internal/metrics"
	"codeberg.org/snonux/chmtrans/internal/pipeline"
	"codeberg.org/snonux/chmtrans/internal/translation"
)

// Components are the collaborators built from Settings. Close releases
// the translation memory.
type Components struct {
	Client  *translation.Client
	Memory  translation.Memory
	Metrics *metrics.Recorder
}

// Close releases resources held by the components
func (c *Components) Close() error {
	if c.Memory != nil {
		return c.Memory.Close()
	}
	return nil
}

// BuildClient creates the translation client with its glossary, memory
// and backend
func BuildClient(s *Settings, logger *logrus.Logger) (*Components, error) {
	cfg := s.BackendConfig(logger)
	if cfg.APIKey == "" {
		return nil, missingKeyError(s.Backend)
	}
	backend, err := translation.NewBackend(cfg)
	if err != nil {
		return nil, err
	}

	var gloss *glossary.Glossary
	if s.Glossary != "" {
		if gloss, err = glossary.Load(s.Glossary); err != nil {
			return nil, err
		}
		logger.WithField("entries", gloss.Len()).Info("Loaded glossary")
	}

	comps := &Components{}
	if s.MetricsAddr != "" || s.MetricsFile != "" {
		comps.Metrics = metrics.NewRecorder()
	}

	if !s.NoCache && s.CachePath != "" {
		memory, err := translation.OpenSQLiteMemory(s.CachePath)
		if err != nil {
			// The run still works without a memory, only slower
			logger.WithError(err).Warn("Translation memory unavailable")
		} else {
			comps.Memory = memory
			logger.WithField("path", s.CachePath).Debug("Opened translation memory")
		}
	}

	comps.Client = translation.NewClient(translation.ClientConfig{
		Backend:  backend,
		Glossary: gloss,
		Memory:   comps.Memory,
		Metrics:  comps.Metrics,
		Logger:   logger,
		Options:  s.TranslationOptions(),
	})
	return comps, nil
}

// BuildExtractor creates the CHM extractor selected by s.ExtractTool
func BuildExtractor(s *Settings, logger *logrus.Logger) (*chm.Extractor, error) {
	return chm.NewExtractor(chm.NewCmdRunner(), s.ExtractTool, logger)
}

// BuildCompiler creates the CHM compiler selected by s.CompileTool
func BuildCompiler(s *Settings, logger *logrus.Logger) (*chm.Compiler, error) {
	return chm.NewCompiler(chm.NewCmdRunner(), s.CompileTool, logger)
}

// BuildOrchestrator wires the full pipeline
func BuildOrchestrator(s *Settings, comps *Components, logger *logrus.Logger) (*pipeline.Orchestrator, error) {
	extractor, err := BuildExtractor(s, logger)
	if err != nil {
		return nil, err
	}
	compiler, err := BuildCompiler(s, logger)
	if err != nil {
		return nil, err
	}

	return pipeline.New(pipeline.Config{
		Extractor:       extractor,
		Compiler:        compiler,
		Translator:      comps.Client,
		TargetLang:      s.TargetLang,
		WorkDir:         s.WorkDir,
		KeepWork:        s.KeepWork,
		ArchivePrevious: s.ArchivePrevious,
		JobCount:        s.JobCount,
		Timeout:         s.Timeout,
		Walker:          s.WalkerOptions(),
		Metrics:         comps.Metrics,
		Logger:          logger,
	}), nil
}
