package pipeline

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fatih/color"
)

// PrintSummary writes one line per job followed by totals
func PrintSummary(w io.Writer, jobs []*Job) {
	ok := color.New(color.FgGreen, color.Bold)
	bad := color.New(color.FgRed, color.Bold)
	dim := color.New(color.Faint)

	fmt.Fprintf(w, "\n=== Translation Summary ===\n")

	done, failed := 0, 0
	for _, job := range jobs {
		switch job.Status {
		case StatusDone:
			done++
			ok.Fprint(w, "✓ done   ")
			fmt.Fprintf(w, " %s -> %s", filepath.Base(job.Input), job.Output)
			dim.Fprintf(w, " (%d documents, %d segments, %d from memory, %s)\n",
				job.Documents, job.Segments, job.FromMemory, job.Duration().Round(time.Millisecond))
			if job.Archived != "" {
				dim.Fprintf(w, "           previous output archived to %s\n", job.Archived)
			}
		case StatusFailed:
			failed++
			bad.Fprint(w, "✗ failed ")
			fmt.Fprintf(w, " %s: %v\n", filepath.Base(job.Input), job.Err)
		default:
			fmt.Fprintf(w, "- %-8s %s\n", job.Status, filepath.Base(job.Input))
		}
	}

	fmt.Fprintf(w, "Total: %d, done: ", len(jobs))
	ok.Fprintf(w, "%d", done)
	fmt.Fprint(w, ", failed: ")
	if failed > 0 {
		bad.Fprintf(w, "%d", failed)
	} else {
		fmt.Fprintf(w, "%d", failed)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "===========================\n")
}
