// Package reporting persists run artifacts as markdown files: one recording
// document per website and one comparison report per feature.
package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kmalloy/sitejudge/api/schemas"
)

const timestampLayout = "20060102_150405"

// Writer renders recordings and comparison reports into an output directory.
// The directory is created on first write.
type Writer struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time
}

// NewWriter builds a writer rooted at dir.
func NewWriter(dir string, logger *zap.Logger) *Writer {
	return &Writer{
		dir:    dir,
		logger: logger.Named("reporting"),
		now:    time.Now,
	}
}

// WriteRecording renders one site recording to
// {website_key}_recording_{timestamp}.md and returns the file path.
func (w *Writer) WriteRecording(rec *schemas.SiteRecording) (string, error) {
	name := fmt.Sprintf("%s_recording_%s.md", rec.Website.Key, w.now().UTC().Format(timestampLayout))
	path, err := w.write(name, renderRecording(rec))
	if err != nil {
		return "", err
	}
	w.logger.Info("recording written",
		zap.String("website", rec.Website.Key), zap.String("path", path))
	return path, nil
}

// WriteComparison renders a cross-site report to
// comparison_analysis_{timestamp}.md and returns the file path.
func (w *Writer) WriteComparison(report *schemas.ComparisonReport) (string, error) {
	generated := report.GeneratedAt
	if generated.IsZero() {
		generated = w.now()
	}
	name := fmt.Sprintf("comparison_analysis_%s.md", generated.UTC().Format(timestampLayout))
	path, err := w.write(name, renderComparison(report, generated))
	if err != nil {
		return "", err
	}
	w.logger.Info("comparison report written",
		zap.String("feature", string(report.Feature)), zap.String("path", path))
	return path, nil
}

func (w *Writer) write(name, content string) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", w.dir, err)
	}
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func renderRecording(rec *schemas.SiteRecording) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Recording: %s - %s\n\n", rec.Website.Key, rec.Feature)
	fmt.Fprintf(&b, "- **Website**: %s\n", rec.Website.URL)
	fmt.Fprintf(&b, "- **Session**: %s\n", rec.SessionName)
	if !rec.StartedAt.IsZero() {
		fmt.Fprintf(&b, "- **Started**: %s\n", rec.StartedAt.UTC().Format(time.RFC3339))
	}
	if !rec.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "- **Finished**: %s\n", rec.FinishedAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "- **Steps**: %d\n", rec.Steps)
	for _, link := range rec.ReplayLinks {
		fmt.Fprintf(&b, "- **Replay**: %s\n", link)
	}
	if rec.Err != "" {
		fmt.Fprintf(&b, "- **Error**: %s\n", rec.Err)
	}
	b.WriteString("\n## Transcript\n\n")
	if rec.Transcript != "" {
		b.WriteString(rec.Transcript)
	} else {
		b.WriteString("No transcript was produced.")
	}
	b.WriteString("\n")
	return b.String()
}

func renderComparison(report *schemas.ComparisonReport, generated time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Comparison Analysis: %s\n\n", report.Feature)
	fmt.Fprintf(&b, "- **Generated**: %s\n", generated.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Websites**: %s\n\n", strings.Join(report.Websites, ", "))
	b.WriteString(report.Markdown)
	b.WriteString("\n")
	return b.String()
}
