package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/multierr"

	"github.com/pithecene-io/haul/metrics"
	"github.com/pithecene-io/haul/types"
)

// RunReport is the structured JSON report written by --report.
type RunReport struct {
	*types.TransferReport

	ExitCode       int               `json:"exit_code"`
	FragmentsBack  int               `json:"fragments_back"`
	StoragePath    string            `json:"storage_path,omitempty"`
	TeardownErrors []string          `json:"teardown_errors,omitempty"`
	PersistErrors  []string          `json:"persist_errors,omitempty"`
	Metrics        *metrics.Snapshot `json:"metrics"`
	WorkerStderr   string            `json:"worker_stderr,omitempty"`
}

// BuildRunReport composes a RunReport from a RoundTripResult.
func BuildRunReport(result *RoundTripResult) *RunReport {
	snap := result.Metrics
	report := &RunReport{
		TransferReport: result.Report,
		ExitCode:       result.ExitCode(),
		StoragePath:    result.StoragePath,
		TeardownErrors: errorStrings(result.TeardownErr),
		PersistErrors:  errorStrings(result.PersistErr),
		Metrics:        &snap,
		WorkerStderr:   result.WorkerStderr,
	}
	if result.Result != nil {
		report.FragmentsBack = result.Result.FragmentsBack
	}
	return report
}

func errorStrings(err error) []string {
	if err == nil {
		return nil
	}
	var out []string
	for _, e := range multierr.Errors(err) {
		out = append(out, e.Error())
	}
	return out
}

// WriteRunReport writes the report as JSON to the specified path.
// If path is "-", writes to stderr.
func WriteRunReport(report *RunReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	if path == "-" {
		if err := writeRunReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	if err := writeRunReportTo(report, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return f.Close()
}

// writeRunReportTo writes report JSON to any writer.
func writeRunReportTo(report *RunReport, w io.Writer) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
