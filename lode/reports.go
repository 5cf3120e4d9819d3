package lode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/haul/types"
)

// ReportDataset is the Lode dataset that holds transfer reports.
const ReportDataset = "haul"

// RecordKindTransferReport discriminates report records.
const RecordKindTransferReport = "transfer_report"

// ErrReportNotFound is returned when no report matches a transfer id.
var ErrReportNotFound = errors.New("transfer report not found")

// NewReportDataset opens the report dataset on factory.
// Reports are Hive-partitioned by day and transfer_id.
func NewReportDataset(factory lode.StoreFactory) (lode.Dataset, error) {
	ds, err := lode.NewDataset(
		lode.DatasetID(ReportDataset),
		factory,
		lode.WithHiveLayout("day", "transfer_id"),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
	if err != nil {
		return nil, WrapInitError(err, ReportDataset)
	}
	return ds, nil
}

// DeriveDay computes the partition day from a start time.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ReportWriter appends transfer reports to the report dataset.
type ReportWriter struct {
	dataset lode.Dataset
}

// NewReportWriter creates a writer over an open report dataset.
func NewReportWriter(ds lode.Dataset) *ReportWriter {
	return &ReportWriter{dataset: ds}
}

// Write stores one report as a single-record snapshot.
func (w *ReportWriter) Write(ctx context.Context, report *types.TransferReport) error {
	if report == nil || report.TransferID == "" {
		return errors.New("report requires a transfer_id")
	}
	record, err := toReportRecord(report)
	if err != nil {
		return err
	}
	if _, err := w.dataset.Write(ctx, []any{record}, lode.Metadata{}); err != nil {
		return WrapWriteError(err, fmt.Sprintf("%s/transfer_id=%s", ReportDataset, report.TransferID))
	}
	return nil
}

// toReportRecord flattens a report into the map form HiveLayout requires,
// adding the record discriminator and the day partition key.
func toReportRecord(report *types.TransferReport) (map[string]any, error) {
	raw, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}

	day := DeriveDay(time.Now())
	if started, err := time.Parse(time.RFC3339Nano, report.StartedAt); err == nil {
		day = DeriveDay(started)
	}
	m["record_kind"] = RecordKindTransferReport
	m["day"] = day
	return m, nil
}

func fromReportRecord(item any) (*types.TransferReport, bool) {
	record, ok := item.(map[string]any)
	if !ok || record["record_kind"] != RecordKindTransferReport {
		return nil, false
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, false
	}
	var report types.TransferReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, false
	}
	return &report, true
}

// ReadReports returns every stored report, newest first. A dataset with
// nothing written yet yields no reports.
func ReadReports(ctx context.Context, ds lode.Dataset) ([]*types.TransferReport, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		wrapped := WrapReadError(err, ReportDataset+"/snapshots")
		if errors.Is(wrapped, ErrNotFound) {
			return nil, nil
		}
		return nil, wrapped
	}

	var reports []*types.TransferReport
	for _, snap := range snapshots {
		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ReportDataset, snap.ID))
		}
		for _, item := range data {
			if report, ok := fromReportRecord(item); ok {
				reports = append(reports, report)
			}
		}
	}

	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].StartedAt > reports[j].StartedAt
	})
	return reports, nil
}

// FindReport returns the report for transferID. A unique prefix of at
// least 8 characters also matches.
func FindReport(ctx context.Context, ds lode.Dataset, transferID string) (*types.TransferReport, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		wrapped := WrapReadError(err, ReportDataset+"/snapshots")
		if errors.Is(wrapped, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrReportNotFound, transferID)
		}
		return nil, wrapped
	}

	var matches []*types.TransferReport
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !snapshotMatchesTransfer(snap, transferID) {
			continue
		}
		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ReportDataset, snap.ID))
		}
		for _, item := range data {
			report, ok := fromReportRecord(item)
			if !ok {
				continue
			}
			if report.TransferID == transferID {
				return report, nil
			}
			if len(transferID) >= 8 && strings.HasPrefix(report.TransferID, transferID) {
				matches = append(matches, report)
			}
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, transferID)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("transfer id prefix %q is ambiguous (%d matches)", transferID, len(matches))
	}
}

// snapshotMatchesTransfer is a coarse pre-filter on manifest paths. Record
// fields stay authoritative.
func snapshotMatchesTransfer(snap *lode.DatasetSnapshot, transferID string) bool {
	for _, f := range snap.Manifest.Files {
		for _, part := range strings.Split(f.Path, "/") {
			if strings.HasPrefix(part, "transfer_id="+transferID) {
				return true
			}
		}
	}
	return false
}
