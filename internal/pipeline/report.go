package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Manik0107/VATA/internal/filelock"
	"github.com/Manik0107/VATA/internal/models"
)

// ReportPath returns the report file that sits next to an output file:
// scene.py -> scene.report.json.
func ReportPath(outputPath string) string {
	ext := filepath.Ext(outputPath)
	return strings.TrimSuffix(outputPath, ext) + ".report.json"
}

// WriteOutput writes the final source and its report. An existing output
// file is kept as <file>.backup.<unix> first. Both writes hold the file
// lock and are atomic.
func WriteOutput(outputPath, source string, report *models.ProvenanceReport) (backup string, err error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	backup, err = filelock.WriteWithBackup(outputPath, []byte(source), time.Now())
	if err != nil {
		return "", fmt.Errorf("write %s: %w", outputPath, err)
	}
	if report != nil {
		if err := WriteReport(ReportPath(outputPath), report); err != nil {
			return backup, err
		}
	}
	return backup, nil
}

// WriteReport writes report as indented JSON.
func WriteReport(path string, report *models.ProvenanceReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')
	if err := filelock.LockAndWrite(path, data); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}

// ReadReport loads a report written by WriteReport.
func ReadReport(path string) (*models.ProvenanceReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var report models.ProvenanceReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &report, nil
}
