// Package service is the single core behind the CLI and HTTP surfaces:
// update a dataset from an uploaded archive, read it back, and export it per
// owner.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/franz/order-recon/internal/delivery"
	"github.com/franz/order-recon/internal/partition"
	"github.com/franz/order-recon/internal/pipeline"
	"github.com/franz/order-recon/internal/report"
	"github.com/franz/order-recon/internal/store"
	"github.com/franz/order-recon/internal/table"
	"github.com/franz/order-recon/internal/util"
)

// ErrNotApplicable is returned by exports when the dataset has no assignment column
var ErrNotApplicable = errors.New("partitioning not applicable")

// ErrNoHistory is returned when the store keeps no run history
var ErrNoHistory = fmt.Errorf("%w: store keeps no run history", util.ErrNotFound)

// Options configures a Service
type Options struct {
	Events *report.EventLogger
	// Now overrides the clock, for tests
	Now func() time.Time
}

// Service runs updates and exports against one Dataset Store
type Service struct {
	dataset store.Dataset
	history store.History
	events  *report.EventLogger
	now     func() time.Time

	// mu serialises updates so two uploads never interleave their save
	mu sync.Mutex
}

// New returns a Service over ds. Run history is kept when ds supports it.
func New(ds store.Dataset, opts Options) *Service {
	s := &Service{dataset: ds, events: opts.Events, now: opts.Now}
	if h, ok := ds.(store.History); ok {
		s.history = h
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// UpdateOptions configures one update
type UpdateOptions struct {
	// ProcessedOn is the reference date for aging. Zero means today.
	ProcessedOn  time.Time
	LenientDates bool
}

// UpdateResult is a saved update
type UpdateResult struct {
	*pipeline.Result
	Ignored  []string
	Duration time.Duration
}

// Update reads the archive, runs the pipeline and replaces the stored dataset.
// Every attempt is recorded in run history, failed ones included.
func (s *Service) Update(ctx context.Context, r io.ReaderAt, size int64, opts UpdateOptions) (*UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := s.now()
	processedOn := opts.ProcessedOn
	if processedOn.IsZero() {
		processedOn = started
	}
	run := &store.Run{
		ID:          uuid.NewString(),
		StartedAt:   started,
		ProcessedOn: processedOn,
	}

	upload, err := delivery.ReadArchive(r, size)
	if err != nil {
		s.events.LogError(report.EventRun, run.ID, err)
		return nil, s.fail(ctx, run, err)
	}
	for _, tag := range upload.Sources.Present() {
		run.Sources = append(run.Sources, string(tag))
	}

	res, err := pipeline.Run(ctx, upload.Sources, pipeline.Options{
		ProcessedOn:  processedOn,
		LenientDates: opts.LenientDates,
		RunID:        run.ID,
		Events:       s.events,
	})
	if err != nil {
		return nil, s.fail(ctx, run, err)
	}

	saveStart := time.Now()
	if err := s.dataset.Save(ctx, res.Combined); err != nil {
		err = fmt.Errorf("failed to save dataset: %w", err)
		s.events.LogError(report.EventSave, run.ID, err)
		return nil, s.fail(ctx, run, err)
	}
	s.events.LogSave(run.ID, res.Combined.Len(), res.Combined.Width(), time.Since(saveStart))

	run.CompletedAt = s.now()
	run.Rows = res.Combined.Len()
	run.Columns = res.Combined.Width()
	run.Status = store.RunSucceeded
	s.record(ctx, run)

	return &UpdateResult{
		Result:   res,
		Ignored:  upload.Ignored,
		Duration: run.CompletedAt.Sub(started),
	}, nil
}

func (s *Service) fail(ctx context.Context, run *store.Run, err error) error {
	run.CompletedAt = s.now()
	run.Status = store.RunFailed
	run.Error = err.Error()
	s.record(ctx, run)
	return err
}

func (s *Service) record(ctx context.Context, run *store.Run) {
	if s.history == nil {
		return
	}
	// A cancelled request still gets its history row
	if err := s.history.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		util.WarnLog("Failed to record run %s: %v", run.ID, err)
	}
}

// Dataset returns the stored combined table
func (s *Service) Dataset(ctx context.Context) (*table.Table, error) {
	return s.dataset.Load(ctx)
}

// History lists recent runs, most recent first
func (s *Service) History(ctx context.Context, limit int) ([]store.Run, error) {
	if s.history == nil {
		return nil, ErrNoHistory
	}
	return s.history.ListRuns(ctx, limit)
}

// Partition loads the dataset and splits it per owner.
// It returns ErrNotApplicable when there is no assignment column.
func (s *Service) Partition(ctx context.Context) (*partition.Result, error) {
	t, err := s.dataset.Load(ctx)
	if err != nil {
		return nil, err
	}
	res, err := partition.Partition(t)
	if err != nil {
		return nil, err
	}
	if !res.Applicable {
		return res, ErrNotApplicable
	}
	for _, e := range res.Exports {
		s.events.LogPartition(e.Owner, e.Table.Len())
	}
	if len(res.MissingColumns) > 0 {
		util.WarnLog("Export columns missing from dataset, exported empty: %v", res.MissingColumns)
	}
	return res, nil
}

// WriteExport writes the export archive for a partition result to w
func (s *Service) WriteExport(ctx context.Context, w io.Writer, part *partition.Result, name string, progress func(delivery.Entry)) ([]delivery.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := delivery.WriteArchive(w, part.Exports, progress)
	if err != nil {
		s.events.LogError(report.EventExport, "", err)
		return nil, err
	}
	s.events.LogExport(name, len(entries), part.Rows())
	return entries, nil
}

// ExportResult is a written export archive
type ExportResult struct {
	// Name is the download name of the archive
	Name      string
	Partition *partition.Result
	Entries   []delivery.Entry
}

// Export partitions the dataset and writes the archive for day to w
func (s *Service) Export(ctx context.Context, w io.Writer, day time.Time, progress func(delivery.Entry)) (*ExportResult, error) {
	if day.IsZero() {
		day = s.now()
	}
	res := &ExportResult{Name: delivery.ArchiveName(day)}

	part, err := s.Partition(ctx)
	if err != nil {
		return nil, err
	}
	res.Partition = part

	res.Entries, err = s.WriteExport(ctx, w, part, res.Name, progress)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Summary renders an update as a run summary
func (r *UpdateResult) Summary() *report.SummaryReport {
	sum := &report.SummaryReport{
		GeneratedAt:     time.Now(),
		RunID:           r.RunID,
		ProcessedOn:     r.ProcessedOn,
		Duration:        r.Duration,
		CombinedRows:    r.Combined.Len(),
		CombinedColumns: r.Combined.Width(),
	}
	for _, st := range r.Steps {
		sum.Sources = append(sum.Sources, report.SourceSummary{
			Source:     string(st.Source),
			Skipped:    st.Skipped,
			Rows:       st.Rows,
			Duplicates: st.Duplicates,
			Matched:    st.Matched,
			Unmatched:  st.Unmatched,
		})
	}
	return sum
}

// Summary renders the export as a run summary
func (r *ExportResult) Summary(archivePath string) *report.SummaryReport {
	part := r.Partition
	sum := &report.SummaryReport{
		GeneratedAt:    time.Now(),
		CombinedRows:   part.Rows() + part.Unassigned,
		Unassigned:     part.Unassigned,
		MissingColumns: part.MissingColumns,
		ArchivePath:    archivePath,
	}
	for _, e := range r.Entries {
		sum.Owners = append(sum.Owners, report.OwnerSummary{
			Owner: e.Owner,
			File:  e.Name,
			Rows:  e.Rows,
			Bytes: int64(e.Bytes),
		})
	}
	return sum
}
