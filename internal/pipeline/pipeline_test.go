package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/snonux/chmtrans/internal/apperr"
	"codeberg.org/snonux/chmtrans/internal/archive"
	"codeberg.org/snonux/chmtrans/internal/chm"
	"codeberg.org/snonux/chmtrans/internal/htmltext"
	"codeberg.org/snonux/chmtrans/internal/metrics"
	"codeberg.org/snonux/chmtrans/internal/testutil"
	"codeberg.org/snonux/chmtrans/internal/translation"
)

var helpTree = map[string]string{
	"index.html":      `<html><head><title>Manual</title></head><body><p>Hello</p></body></html>`,
	"images/logo.gif": "GIF89a",
}

// fakeExtractor writes tree into the output directory, or fails for inputs
// listed in fail
type fakeExtractor struct {
	tree map[string]string
	fail map[string]error
}

func (f *fakeExtractor) Extract(ctx context.Context, input, outDir string) error {
	if err, ok := f.fail[filepath.Base(input)]; ok {
		return err
	}
	for rel, content := range f.tree {
		path := filepath.Join(outDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return err
		}
	}
	return nil
}

// fakeCompiler "compiles" by copying index.html to the output
type fakeCompiler struct {
	projects []chm.Project
}

func (f *fakeCompiler) Build(ctx context.Context, srcDir, outPath string, p chm.Project) error {
	f.projects = append(f.projects, p)
	data, err := os.ReadFile(filepath.Join(srcDir, "index.html"))
	if err != nil {
		return err
	}
	return os.WriteFile(outPath, data, 0644)
}

func fastOptions() translation.Options {
	opts := translation.DefaultOptions()
	opts.InitialBackoff = time.Millisecond
	opts.MaxBackoff = 2 * time.Millisecond
	opts.BreakerThreshold = 0
	return opts
}

func newClient(backend translation.Backend, opts translation.Options) *translation.Client {
	return translation.NewClient(translation.ClientConfig{
		Backend: backend,
		Logger:  testutil.DiscardLogger(),
		Options: opts,
	})
}

type fixture struct {
	dir       string
	workDir   string
	backend   *testutil.MockBackend
	extractor *fakeExtractor
	compiler  *fakeCompiler
	cfg       Config
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		dir:       t.TempDir(),
		workDir:   t.TempDir(),
		backend:   &testutil.MockBackend{},
		extractor: &fakeExtractor{tree: helpTree},
		compiler:  &fakeCompiler{},
	}
	f.cfg = Config{
		Extractor:  f.extractor,
		Compiler:   f.compiler,
		Translator: newClient(f.backend, fastOptions()),
		TargetLang: "zh-CN",
		WorkDir:    f.workDir,
		JobCount:   2,
		Walker:     htmltext.DefaultOptions(),
		Metrics:    metrics.NewRecorder(),
		Logger:     testutil.DiscardLogger(),
	}
	return f
}

func (f *fixture) input(t *testing.T, name string) string {
	path := filepath.Join(f.dir, name)
	testutil.CreateTestFile(t, path, []byte("ITSF original"))
	return path
}

func assertWorkDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch directories left behind")
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("docs", "manual_zh-cn.chm"), OutputPath(filepath.Join("docs", "manual.chm"), "zh-CN"))
	assert.Equal(t, "guide_de.chm", OutputPath("guide.CHM", "DE"))
}

func TestJobTransitions(t *testing.T) {
	job := NewJob("manual.chm", "de")
	assert.Equal(t, StatusPending, job.Status)
	assert.Equal(t, "manual_de.chm", job.Output)

	// Stages cannot be skipped
	assert.Error(t, job.Transition(StatusTranslating))

	for _, s := range []Status{StatusExtracting, StatusTranslating, StatusRebuilding, StatusDone} {
		require.NoError(t, job.Transition(s))
	}
	assert.Error(t, job.Transition(StatusFailed))

	// Failed is reachable from any running stage, then nothing else
	job = NewJob("manual.chm", "de")
	require.NoError(t, job.Transition(StatusExtracting))
	require.NoError(t, job.Transition(StatusFailed))
	assert.Error(t, job.Transition(StatusTranslating))
	assert.True(t, job.Status.Terminal())
}

func TestRunJobSuccess(t *testing.T) {
	f := newFixture(t)
	input := f.input(t, "manual.chm")

	jobs := New(f.cfg).Run(context.Background(), []string{input})
	require.Len(t, jobs, 1)
	job := jobs[0]

	require.NoError(t, job.Err)
	assert.Equal(t, StatusDone, job.Status)
	assert.Equal(t, filepath.Join(f.dir, "manual_zh-cn.chm"), job.Output)
	assert.Equal(t, 1, job.Documents)
	assert.Equal(t, 2, job.Segments)
	assert.False(t, AnyFailed(jobs))

	testutil.AssertFileContains(t, job.Output, "<p>[zh-CN] Hello</p>")
	testutil.AssertFileContains(t, job.Output, "<title>[zh-CN] Manual</title>")
	testutil.AssertFileContent(t, input, []byte("ITSF original"))
	assertWorkDirEmpty(t, f.workDir)

	require.Len(t, f.compiler.projects, 1)
	assert.Equal(t, chm.Project{Name: "manual", Title: "manual", Language: "zh-CN"}, f.compiler.projects[0])
}

func TestJobsAreIndependent(t *testing.T) {
	f := newFixture(t)
	f.extractor.fail = map[string]error{
		"broken.chm": apperr.New(apperr.CodeTool, "7z exited with code 2"),
	}
	broken := f.input(t, "broken.chm")
	good := f.input(t, "good.chm")

	jobs := New(f.cfg).Run(context.Background(), []string{broken, good})
	require.Len(t, jobs, 2)

	assert.Equal(t, StatusFailed, jobs[0].Status)
	assert.True(t, apperr.Is(jobs[0].Err, apperr.CodeTool))
	testutil.AssertFileNotExists(t, jobs[0].Output)

	assert.Equal(t, StatusDone, jobs[1].Status)
	testutil.AssertFileExists(t, jobs[1].Output)
	assert.True(t, AnyFailed(jobs))
	assertWorkDirEmpty(t, f.workDir)
}

func TestTranslationFailureLeavesNoOutput(t *testing.T) {
	f := newFixture(t)
	f.backend.Fail = func(call int, texts []string) error {
		return &translation.StatusError{Backend: "mock", StatusCode: 403, Body: "quota exceeded"}
	}
	input := f.input(t, "manual.chm")

	jobs := New(f.cfg).Run(context.Background(), []string{input})
	job := jobs[0]

	assert.Equal(t, StatusFailed, job.Status)
	assert.True(t, apperr.Is(job.Err, apperr.CodeBackend))
	testutil.AssertFileNotExists(t, job.Output)
	assert.Empty(t, f.compiler.projects)
	assertWorkDirEmpty(t, f.workDir)
}

func TestRetryBoundFailsJob(t *testing.T) {
	f := newFixture(t)
	f.backend.Fail = func(call int, texts []string) error {
		return &translation.StatusError{Backend: "mock", StatusCode: 429}
	}
	opts := fastOptions()
	opts.MaxRetries = 3
	f.cfg.Translator = newClient(f.backend, opts)

	jobs := New(f.cfg).Run(context.Background(), []string{f.input(t, "manual.chm")})

	assert.Equal(t, StatusFailed, jobs[0].Status)
	assert.True(t, apperr.Is(jobs[0].Err, apperr.CodeBackend))
	assert.Equal(t, 3, f.backend.Calls())
}

// blockingExtractor waits for cancellation
type blockingExtractor struct{}

func (blockingExtractor) Extract(ctx context.Context, input, outDir string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRunTimeout(t *testing.T) {
	f := newFixture(t)
	f.cfg.Extractor = blockingExtractor{}
	f.cfg.Timeout = 20 * time.Millisecond

	jobs := New(f.cfg).Run(context.Background(), []string{f.input(t, "a.chm"), f.input(t, "b.chm")})
	for _, job := range jobs {
		assert.Equal(t, StatusFailed, job.Status)
		assert.True(t, apperr.Is(job.Err, apperr.CodeTimeout), "got %v", job.Err)
		assert.ErrorIs(t, job.Err, context.DeadlineExceeded)
		testutil.AssertFileNotExists(t, job.Output)
	}
	assertWorkDirEmpty(t, f.workDir)
}

// lateToolExtractor fails with its own error after the run deadline passed
type lateToolExtractor struct{}

func (lateToolExtractor) Extract(ctx context.Context, input, outDir string) error {
	<-ctx.Done()
	return apperr.New(apperr.CodeTool, "7z exited with code 2")
}

func TestToolErrorAfterDeadlineKeepsCode(t *testing.T) {
	f := newFixture(t)
	f.cfg.Extractor = lateToolExtractor{}
	f.cfg.Timeout = 20 * time.Millisecond

	jobs := New(f.cfg).Run(context.Background(), []string{f.input(t, "a.chm")})
	require.Len(t, jobs, 1)
	assert.Equal(t, StatusFailed, jobs[0].Status)
	assert.Equal(t, apperr.CodeTool, apperr.CodeOf(jobs[0].Err))
}

func TestClassify(t *testing.T) {
	expired, cancel := context.WithTimeout(context.Background(), -time.Second)
	defer cancel()
	stopped, stop := context.WithCancel(context.Background())
	stop()

	toolErr := apperr.New(apperr.CodeTool, "hhc exited with code 3")

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want string
	}{
		{"deadline", expired, fmt.Errorf("extract: %w", context.DeadlineExceeded), apperr.CodeTimeout},
		{"cancelled", stopped, context.Canceled, apperr.CodeTimeout},
		{"tool error after deadline", expired, toolErr, apperr.CodeTool},
		{"context error without expired run", context.Background(), context.Canceled, ""},
		{"tool error", context.Background(), toolErr, apperr.CodeTool},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apperr.CodeOf(classify(tt.ctx, tt.err)))
		})
	}
}

func TestMissingInputFailsJob(t *testing.T) {
	f := newFixture(t)

	jobs := New(f.cfg).Run(context.Background(), []string{filepath.Join(f.dir, "missing.chm")})
	assert.Equal(t, StatusFailed, jobs[0].Status)
	assert.True(t, apperr.Is(jobs[0].Err, apperr.CodeTool))
}

func TestKeepWork(t *testing.T) {
	f := newFixture(t)
	f.cfg.KeepWork = true

	jobs := New(f.cfg).Run(context.Background(), []string{f.input(t, "manual.chm")})
	require.Equal(t, StatusDone, jobs[0].Status)

	entries, err := os.ReadDir(f.workDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	scratch := filepath.Join(f.workDir, entries[0].Name())
	testutil.AssertFileExists(t, filepath.Join(scratch, "extracted", "index.html"))
	testutil.AssertFileContains(t, filepath.Join(scratch, "translated", "index.html"), "[zh-CN] Hello")
	testutil.AssertFileContent(t, filepath.Join(scratch, "translated", "images", "logo.gif"), []byte("GIF89a"))
}

func TestPreviousOutput(t *testing.T) {
	for _, archivePrevious := range []bool{false, true} {
		f := newFixture(t)
		f.cfg.ArchivePrevious = archivePrevious
		input := f.input(t, "manual.chm")
		testutil.CreateTestFile(t, OutputPath(input, "zh-CN"), []byte("previous"))

		jobs := New(f.cfg).Run(context.Background(), []string{input})
		job := jobs[0]
		require.Equal(t, StatusDone, job.Status)
		testutil.AssertFileContains(t, job.Output, "[zh-CN] Hello")

		archiveDir := filepath.Join(f.dir, archive.DirName)
		if !archivePrevious {
			assert.Empty(t, job.Archived)
			testutil.AssertFileNotExists(t, archiveDir)
			continue
		}
		require.NotEmpty(t, job.Archived)
		testutil.AssertFileContent(t, job.Archived, []byte("previous"))
	}
}

func TestPrintSummary(t *testing.T) {
	color.NoColor = true

	done := NewJob("/docs/manual.chm", "de")
	done.Status = StatusDone
	done.Documents = 3
	done.Segments = 42

	failed := NewJob("/docs/broken.chm", "de")
	failed.fail(apperr.New(apperr.CodeTool, "7z exited with code 2"))

	var buf bytes.Buffer
	PrintSummary(&buf, []*Job{done, failed})
	out := buf.String()

	assert.Contains(t, out, "✓ done")
	assert.Contains(t, out, "manual.chm -> "+done.Output)
	assert.Contains(t, out, "3 documents, 42 segments")
	assert.Contains(t, out, "✗ failed  broken.chm: EXTERNAL_TOOL_ERROR: 7z exited with code 2")
	assert.True(t, strings.Contains(out, "Total: 2, done: 1, failed: 1"), out)
}
