// Package report builds and renders verification reports.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/vsem-svoim/basecap/api/types"
)

// New assembles a report from suite results, computing the summary and the
// follow-up recommendations.
func New(runID, component, namespace string, suites map[string]types.SuiteResult) *types.Report {
	report := &types.Report{
		Timestamp: time.Now(),
		RunID:     runID,
		Component: component,
		Namespace: namespace,
		Suites:    suites,
	}

	for name, suite := range suites {
		report.Summary.TotalSuites++
		report.Summary.WallSeconds += suite.ExecutionSeconds

		switch suite.Status {
		case types.StatusHealthy, types.StatusSkipped:
			report.Summary.Succeeded++
		default:
			report.Summary.Failed++
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("investigate %s suite: status %s", name, suite.Status))
		}
	}
	return report
}

// Render writes the report as indented JSON.
func Render(w io.Writer, report interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// WriteFile renders the report into a file, creating parent directories.
func WriteFile(path string, report interface{}) error {
	outDir := filepath.Dir(path)
	if outDir != "." {
		if err := os.MkdirAll(outDir, 0750); err != nil {
			return fmt.Errorf("failed to ensure output's dir %s: %w", outDir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return Render(f, report)
}
