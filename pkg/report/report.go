// Package report writes run artifacts: a JSON record of every search or goal
// a command ran, and a human-readable Markdown summary.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/robotdriver/pkg/catalog"
	"github.com/entrhq/robotdriver/pkg/config"
	"github.com/entrhq/robotdriver/pkg/driver"
	"github.com/entrhq/robotdriver/pkg/goal"
)

// Kind of a report entry.
const (
	KindSearch = "search"
	KindGoal   = "goal"
)

// Entry is one search or goal of a run.
type Entry struct {
	Kind          string         `json:"kind"`
	Input         string         `json:"input"`
	Intent        *goal.Intent   `json:"intent,omitempty"`
	Origin        string         `json:"snapshot_origin,omitempty"`
	SearchControl string         `json:"search_control,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
	Result        catalog.Result `json:"result"`
	Error         string         `json:"error,omitempty"`
	Duration      time.Duration  `json:"duration"`
}

// SearchEntry records a logged-in product search.
func SearchEntry(product string, res catalog.Result, d time.Duration) Entry {
	return Entry{Kind: KindSearch, Input: product, Result: res, Duration: d}
}

// GoalEntry records a goal run.
func GoalEntry(out driver.GoalOutcome) Entry {
	e := Entry{
		Kind:          KindGoal,
		Input:         out.Goal,
		Origin:        string(out.Origin),
		SearchControl: out.SearchControl,
		Warnings:      out.Warnings,
		Result:        out.Result,
		Error:         out.Error,
		Duration:      out.Duration,
	}
	if out.Error == "" {
		intent := out.Intent
		e.Intent = &intent
	}
	return e
}

// Metrics count outcomes by status.
type Metrics struct {
	Total    int `json:"total"`
	Found    int `json:"found"`
	NotFound int `json:"not_found"`
	Errors   int `json:"errors"`
}

// Run collects the entries of one command invocation. Add is safe for
// concurrent use.
type Run struct {
	ID        string        `json:"id"`
	Command   string        `json:"command"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Entries   []Entry       `json:"entries"`
	Metrics   Metrics       `json:"metrics"`

	mu sync.Mutex
}

// NewRun starts a run with a fresh id.
func NewRun(command string) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Command:   command,
		StartTime: time.Now(),
		Entries:   []Entry{},
	}
}

// Add appends an entry.
func (r *Run) Add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Entries = append(r.Entries, e)
}

// Finish stamps the end time and computes metrics.
func (r *Run) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
	r.Metrics = Metrics{Total: len(r.Entries)}
	for _, e := range r.Entries {
		switch e.Result.Status {
		case catalog.StatusSuccess:
			r.Metrics.Found++
		case catalog.StatusNotFound:
			r.Metrics.NotFound++
		default:
			r.Metrics.Errors++
		}
	}
}

// Writer writes run artifacts under outputDir/<run id>/.
type Writer struct {
	outputDir string
	json      bool
	markdown  bool
}

// NewWriter creates a writer from the report configuration.
func NewWriter(cfg config.ReportConfig) *Writer {
	return &Writer{
		outputDir: cfg.OutputDir,
		json:      cfg.JSON,
		markdown:  cfg.Markdown,
	}
}

// Dir returns the directory the artifacts of run are written to.
func (w *Writer) Dir(run *Run) string {
	return filepath.Join(w.outputDir, run.ID)
}

// WriteAll writes all configured artifact formats and returns their directory.
func (w *Writer) WriteAll(run *Run) (string, error) {
	dir := w.Dir(run)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	if w.json {
		if err := w.WriteJSON(run); err != nil {
			return "", fmt.Errorf("failed to write run JSON: %w", err)
		}
	}
	if w.markdown {
		if err := w.WriteMarkdown(run); err != nil {
			return "", fmt.Errorf("failed to write summary markdown: %w", err)
		}
	}
	return dir, nil
}

// WriteJSON writes the full run as run.json.
func (w *Writer) WriteJSON(run *Run) error {
	path := filepath.Join(w.Dir(run), "run.json")

	run.mu.Lock()
	data, err := json.MarshalIndent(run, "", "  ")
	run.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	if writeErr := os.WriteFile(path, data, 0600); writeErr != nil {
		return fmt.Errorf("failed to write run JSON: %w", writeErr)
	}
	return nil
}

// WriteMarkdown writes summary.md.
func (w *Writer) WriteMarkdown(run *Run) error {
	path := filepath.Join(w.Dir(run), "summary.md")
	if err := os.WriteFile(path, []byte(Markdown(run)), 0600); err != nil {
		return fmt.Errorf("failed to write summary markdown: %w", err)
	}
	return nil
}

// Markdown renders the run summary.
func Markdown(run *Run) string {
	run.mu.Lock()
	defer run.mu.Unlock()

	var md strings.Builder

	md.WriteString("# Robot Driver Run Summary\n\n")
	md.WriteString(fmt.Sprintf("**Run:** %s\n\n", run.ID))
	md.WriteString(fmt.Sprintf("**Command:** %s\n\n", run.Command))
	md.WriteString(fmt.Sprintf("**Started:** %s\n\n", run.StartTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Completed:** %s\n\n", run.EndTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Duration:** %s\n\n", run.Duration))

	md.WriteString("## Results\n\n")
	for i, e := range run.Entries {
		md.WriteString(fmt.Sprintf("### %d. %s `%s`\n\n", i+1, e.Kind, e.Input))
		if e.Intent != nil {
			md.WriteString(fmt.Sprintf("- **Looking for:** %s at %s\n", e.Intent.TargetPhrase, e.Intent.URL))
		}
		if e.SearchControl != "" {
			md.WriteString(fmt.Sprintf("- **Search control:** `%s` (%s snapshot)\n", e.SearchControl, e.Origin))
		}

		switch e.Result.Status {
		case catalog.StatusSuccess:
			rec := e.Result.Record
			md.WriteString(fmt.Sprintf("- ✅ **%s**: %s, %s\n", rec.Description, rec.Name, rec.Price))
		case catalog.StatusNotFound:
			md.WriteString(fmt.Sprintf("- ➖ %s\n", e.Result.Message))
		default:
			md.WriteString(fmt.Sprintf("- ❌ **Error:** %s\n", e.Result.Message))
		}

		if len(e.Warnings) > 0 {
			md.WriteString(fmt.Sprintf("- **Warnings:** %d\n", len(e.Warnings)))
			for _, warn := range e.Warnings {
				md.WriteString(fmt.Sprintf("  - %s\n", warn))
			}
		}
		md.WriteString("\n")
	}

	md.WriteString("## Metrics\n\n")
	md.WriteString(fmt.Sprintf("- **Total:** %d\n", run.Metrics.Total))
	md.WriteString(fmt.Sprintf("- **Found:** %d\n", run.Metrics.Found))
	md.WriteString(fmt.Sprintf("- **Not found:** %d\n", run.Metrics.NotFound))
	md.WriteString(fmt.Sprintf("- **Errors:** %d\n", run.Metrics.Errors))

	return md.String()
}
