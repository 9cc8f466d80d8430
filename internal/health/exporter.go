package health

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/quantora/mlserve/internal/models"
)

// ReportExporter writes the latest health report to a JSON artifact for
// external dashboards to poll. The file is overwritten on every inference.
type ReportExporter struct {
	path string
}

// NewReportExporter creates an exporter writing to path.
func NewReportExporter(path string) *ReportExporter {
	return &ReportExporter{path: path}
}

// Export serializes the report. Callers treat failures as best-effort.
func (e *ReportExporter) Export(report *models.HealthReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(e.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(e.path, data, 0o644)
}
