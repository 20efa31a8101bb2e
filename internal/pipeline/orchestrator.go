package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"codeberg.org/snonux/chmtrans/internal/apperr"
	"codeberg.org/snonux/chmtrans/internal/archive"
	"codeberg.org/snonux/chmtrans/internal/chm"
	"codeberg.org/snonux/chmtrans/internal/htmltext"
	"codeberg.org/snonux/chmtrans/internal/metrics"
)

// Extractor unpacks a CHM file into a directory
type Extractor interface {
	Extract(ctx context.Context, input, outDir string) error
}

// Compiler builds a CHM file from a directory
type Compiler interface {
	Build(ctx context.Context, srcDir, outPath string, p chm.Project) error
}

// Config configures an Orchestrator
type Config struct {
	Extractor  Extractor
	Compiler   Compiler
	Translator SegmentTranslator
	TargetLang string

	// WorkDir holds per-job scratch directories, os.TempDir() when empty
	WorkDir string
	// KeepWork leaves scratch directories behind for inspection
	KeepWork bool
	// ArchivePrevious moves an existing output aside instead of replacing it
	ArchivePrevious bool

	JobCount int
	Timeout  time.Duration
	Walker   htmltext.Options

	Metrics *metrics.Recorder
	Logger  *logrus.Logger
}

// Orchestrator runs translation jobs
type Orchestrator struct {
	cfg    Config
	tree   *TreeTranslator
	logger *logrus.Logger
}

// New creates an orchestrator
func New(cfg Config) *Orchestrator {
	if cfg.JobCount <= 0 {
		cfg.JobCount = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Orchestrator{
		cfg:    cfg,
		tree:   NewTreeTranslator(cfg.Translator, cfg.Walker, cfg.Logger),
		logger: cfg.Logger,
	}
}

// Run creates one job per input and runs them, at most JobCount at a time.
// Job errors are recorded on the jobs, never returned.
func (o *Orchestrator) Run(ctx context.Context, inputs []string) []*Job {
	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	jobs := make([]*Job, len(inputs))
	for i, input := range inputs {
		jobs[i] = NewJob(input, o.cfg.TargetLang)
	}

	// A plain group: one job failing must not cancel the others
	var g errgroup.Group
	g.SetLimit(o.cfg.JobCount)
	for _, job := range jobs {
		g.Go(func() error {
			_ = o.RunJob(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	return jobs
}

// RunJob takes job through every stage and returns its error, which is also
// recorded on the job
func (o *Orchestrator) RunJob(ctx context.Context, job *Job) error {
	log := o.logger.WithFields(logrus.Fields{
		"job_id": job.ID.String(),
		"input":  job.Input,
	})

	job.Started = time.Now()
	err := o.runStages(ctx, job, log)
	job.Finished = time.Now()

	if err != nil {
		err = classify(ctx, err)
		stage := job.Status
		job.fail(err)
		o.cfg.Metrics.RecordJob(string(StatusFailed), job.Duration())
		log.WithFields(logrus.Fields{
			"stage": stage,
			"code":  apperr.CodeOf(err),
		}).WithError(err).Error("Job failed")
		return err
	}

	o.cfg.Metrics.RecordJob(string(StatusDone), job.Duration())
	log.WithFields(logrus.Fields{
		"output":   job.Output,
		"duration": job.Duration().Round(time.Millisecond),
	}).Info("Job done")
	return nil
}

// classify gives cancellation its own code regardless of which stage
// noticed it. Errors unrelated to the context keep their code.
func classify(ctx context.Context, err error) error {
	if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return apperr.Wrap(err, apperr.CodeTimeout, "run timed out")
		}
		return apperr.Wrap(err, apperr.CodeTimeout, "run cancelled")
	}
	return err
}

func (o *Orchestrator) runStages(ctx context.Context, job *Job, log *logrus.Entry) error {
	if err := checkInput(job); err != nil {
		return err
	}

	scratch, err := o.scratchDir(job)
	if err != nil {
		return err
	}
	defer func() {
		if o.cfg.KeepWork {
			log.WithField("work_dir", scratch).Info("Keeping work directory")
			return
		}
		if err := os.RemoveAll(scratch); err != nil {
			log.WithError(err).Warn("Failed to remove work directory")
		}
	}()

	extracted := filepath.Join(scratch, "extracted")
	translated := filepath.Join(scratch, "translated")
	built := filepath.Join(scratch, "out.chm")

	// Extract
	if err := o.stage(job, StatusExtracting, log, func() error {
		return o.cfg.Extractor.Extract(ctx, job.Input, extracted)
	}); err != nil {
		return err
	}

	// Translate
	if err := o.stage(job, StatusTranslating, log, func() error {
		stats, err := o.tree.TranslateTree(ctx, extracted, translated, job.TargetLang)
		job.Documents = stats.Documents
		job.Segments = stats.Segments
		job.FromMemory = stats.FromMemory
		return err
	}); err != nil {
		return err
	}

	// Rebuild
	if err := o.stage(job, StatusRebuilding, log, func() error {
		project := chm.Project{
			Name:     projectName(job.Input),
			Title:    projectName(job.Input),
			Language: job.TargetLang,
		}
		if err := o.cfg.Compiler.Build(ctx, translated, built, project); err != nil {
			return err
		}
		return o.publish(job, built, log)
	}); err != nil {
		return err
	}

	return job.Transition(StatusDone)
}

// stage moves job to status, runs fn and records how long it took
func (o *Orchestrator) stage(job *Job, status Status, log *logrus.Entry, fn func() error) error {
	if err := job.Transition(status); err != nil {
		return err
	}
	log.WithField("stage", status).Debug("Starting stage")

	start := time.Now()
	err := fn()
	o.cfg.Metrics.RecordStage(string(status), time.Since(start))
	return err
}

func checkInput(job *Job) error {
	info, err := os.Stat(job.Input)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeTool, "cannot read input file")
	}
	if !info.Mode().IsRegular() {
		return apperr.Newf(apperr.CodeValidation, "input is not a regular file: %s", job.Input)
	}

	in, err := filepath.Abs(job.Input)
	if err != nil {
		return fmt.Errorf("failed to resolve input path: %w", err)
	}
	out, err := filepath.Abs(job.Output)
	if err != nil {
		return fmt.Errorf("failed to resolve output path: %w", err)
	}
	if strings.EqualFold(in, out) {
		return apperr.Newf(apperr.CodeValidation, "output would overwrite input %s", job.Input)
	}
	return nil
}

func (o *Orchestrator) scratchDir(job *Job) (string, error) {
	base := o.cfg.WorkDir
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, 0755); err != nil {
		return "", fmt.Errorf("failed to create work directory: %w", err)
	}

	dir, err := os.MkdirTemp(base, "chmtrans-"+job.ID.String()[:8]+"-")
	if err != nil {
		return "", fmt.Errorf("failed to create work directory: %w", err)
	}
	return dir, nil
}

func projectName(input string) string {
	return strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
}

// publish moves the compiled file to the job output. The file is first
// copied next to the output and then renamed, so readers never see a
// partial file even when the work directory is on another filesystem.
func (o *Orchestrator) publish(job *Job, built string, log *logrus.Entry) error {
	if _, err := os.Stat(job.Output); err == nil && o.cfg.ArchivePrevious {
		archived, err := archive.ArchiveFile(job.Output)
		if err != nil {
			return err
		}
		job.Archived = archived
		log.WithField("archive", archived).Info("Archived previous output")
	}

	tmp, err := os.CreateTemp(filepath.Dir(job.Output), "."+filepath.Base(job.Output)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	tmpName := tmp.Name()

	in, err := os.Open(built)
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to open compiled file: %w", err)
	}
	defer in.Close()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close output file: %w", err)
	}

	if err := os.Rename(tmpName, job.Output); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}
