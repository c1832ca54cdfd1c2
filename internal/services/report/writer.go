// Package report renders generated reports to markdown and writes them to
// the output directory.
package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fundlens/internal/interfaces"
	"github.com/ternarybob/fundlens/internal/models"
)

// Writer writes one markdown file per (date, fund, mode).
type Writer struct {
	dir    string
	logger arbor.ILogger
}

var _ interfaces.ReportWriter = (*Writer)(nil)

// NewWriter creates a writer rooted at dir.
func NewWriter(dir string, logger arbor.ILogger) *Writer {
	if dir == "" {
		dir = "reports"
	}
	return &Writer{dir: dir, logger: logger}
}

// Path returns <dir>/<yyyy-mm-dd>/<yyyy-mm-dd>_<fund>_<mode>.md.
func (w *Writer) Path(result *models.ReportResult) string {
	date := result.Date.Format("2006-01-02")
	name := fmt.Sprintf("%s_%s_%s.md", date, result.FundCode, result.Type)
	return filepath.Join(w.dir, date, name)
}

// Write renders the report and replaces any previous file for the same
// key atomically: content goes to a temp file in the target directory
// which is then renamed over the destination.
func (w *Writer) Write(result *models.ReportResult, rc *models.ReportContext) (string, error) {
	content, err := Render(result, rc)
	if err != nil {
		return "", err
	}

	path := w.Path(result)
	if err := writeAtomic(path, []byte(content)); err != nil {
		return "", err
	}

	w.logger.Info().
		Str("fund", result.FundCode).
		Str("mode", string(result.Type)).
		Str("path", path).
		Msg("Report written")
	return path, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close report: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to set report permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move report into place: %w", err)
	}
	return nil
}
