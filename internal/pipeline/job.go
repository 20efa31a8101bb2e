package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the stage a job is in
type Status string

// Job states in pipeline order
const (
	StatusPending     Status = "pending"
	StatusExtracting  Status = "extracting"
	StatusTranslating Status = "translating"
	StatusRebuilding  Status = "rebuilding"
	StatusDone        Status = "done"
	StatusFailed      Status = "failed"
)

// Terminal reports whether no further transition is possible
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// nextStatus maps each stage to the only stage that may follow it
var nextStatus = map[Status]Status{
	StatusPending:     StatusExtracting,
	StatusExtracting:  StatusTranslating,
	StatusTranslating: StatusRebuilding,
	StatusRebuilding:  StatusDone,
}

// Job is the translation of one CHM file
type Job struct {
	ID         uuid.UUID
	Input      string
	TargetLang string
	Output     string
	Status     Status
	Err        error

	// Archived is where a previous output was moved to, if anywhere
	Archived string

	Documents  int
	Segments   int
	FromMemory int

	Started  time.Time
	Finished time.Time
}

// NewJob creates a pending job writing next to input
func NewJob(input, targetLang string) *Job {
	return &Job{
		ID:         uuid.New(),
		Input:      input,
		TargetLang: targetLang,
		Output:     OutputPath(input, targetLang),
		Status:     StatusPending,
	}
}

// Transition moves the job to status. Stages cannot be skipped or
// repeated; failed is reachable from every non-terminal state.
func (j *Job) Transition(to Status) error {
	if j.Status.Terminal() {
		return fmt.Errorf("job %s is already %s", j.ID, j.Status)
	}
	if to == StatusFailed || nextStatus[j.Status] == to {
		j.Status = to
		return nil
	}
	return fmt.Errorf("job %s cannot move from %s to %s", j.ID, j.Status, to)
}

// fail records err and marks the job failed
func (j *Job) fail(err error) {
	j.Err = err
	if !j.Status.Terminal() {
		j.Status = StatusFailed
	}
}

// Duration returns how long the job ran
func (j *Job) Duration() time.Duration {
	if j.Started.IsZero() || j.Finished.IsZero() {
		return 0
	}
	return j.Finished.Sub(j.Started)
}

// OutputPath names the translation of input: manual.chm translated to zh-CN
// becomes manual_zh-cn.chm in the same directory
func OutputPath(input, targetLang string) string {
	dir := filepath.Dir(input)
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(dir, fmt.Sprintf("%s_%s.chm", stem, strings.ToLower(targetLang)))
}

// AnyFailed reports whether at least one job failed
func AnyFailed(jobs []*Job) bool {
	for _, j := range jobs {
		if j.Status == StatusFailed {
			return true
		}
	}
	return false
}
