// Package pipeline builds the combined table from one upload: ORDERS is
// namespaced and aged, then each secondary source present is deduplicated and
// left-joined onto it in a fixed order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/franz/order-recon/internal/enrich"
	"github.com/franz/order-recon/internal/report"
	"github.com/franz/order-recon/internal/source"
	"github.com/franz/order-recon/internal/table"
	"github.com/franz/order-recon/internal/util"
)

// CombinedName is the name carried by the combined table
const CombinedName = "datos_combinados"

// ErrMissingOrders is returned when the upload has no ORDERS table
var ErrMissingOrders = errors.New("ORDERS source is required")

// Options configures one run
type Options struct {
	// ProcessedOn is the reference date for CONTROL_DIAS. Zero means now.
	ProcessedOn time.Time
	// LenientDates blanks unreadable request dates instead of failing
	LenientDates bool
	// RunID identifies the run in events and history. Empty means a new uuid.
	RunID  string
	Events *report.EventLogger
}

// StepResult is the outcome of one source in the run
type StepResult struct {
	Source     source.Tag
	Skipped    bool
	Rows       int
	Duplicates int
	Matched    int
	Unmatched  int
}

// Result is a finished run
type Result struct {
	RunID       string
	ProcessedOn time.Time
	Combined    *table.Table
	Aging       enrich.AgingResult
	Steps       []StepResult
}

// Sources lists the tags that were present in the upload, in join order
func (r *Result) Sources() []string {
	var tags []string
	for _, s := range r.Steps {
		if !s.Skipped {
			tags = append(tags, string(s.Source))
		}
	}
	return tags
}

type joinStep struct {
	tag      source.Tag
	rightKey []string
	leftKey  []string
	coerce   []string
}

// joinSteps is the fixed join order after ORDERS
var joinSteps = []joinStep{
	{
		tag:      source.Inventory,
		rightKey: []string{source.ColInvProduct},
		leftKey:  []string{source.ColProduct},
	},
	{
		tag:      source.Status,
		rightKey: []string{source.ColOrder, source.ColLine},
		leftKey:  []string{source.ColOrder, source.ColLine},
	},
	{
		tag:      source.Pricing,
		rightKey: []string{source.ColProduct},
		leftKey:  []string{source.ColProduct},
		coerce:   []string{source.ColPrice, source.ColOnHand},
	},
	{
		tag:      source.Management,
		rightKey: []string{source.ColCustomer},
		leftKey:  []string{source.ColCustomer},
	},
}

func namespaced(raw []string, tag source.Tag) []string {
	out := make([]string, len(raw))
	for i, c := range raw {
		out[i] = source.Column(c, tag)
	}
	return out
}

// Run builds the combined table from sources
func Run(ctx context.Context, sources source.Set, opts Options) (res *Result, err error) {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	processedOn := opts.ProcessedOn
	if processedOn.IsZero() {
		processedOn = time.Now()
	}
	events := opts.Events

	defer func() {
		if err != nil {
			events.LogError(report.EventRun, runID, err)
		}
	}()

	orders := sources[source.Orders]
	if orders == nil {
		return nil, ErrMissingOrders
	}

	present := make([]string, 0, len(sources))
	for _, tag := range sources.Present() {
		present = append(present, string(tag))
	}
	events.LogRun(runID, present, processedOn)

	res = &Result{RunID: runID, ProcessedOn: processedOn}
	res.Steps = append(res.Steps, StepResult{Source: source.Orders, Rows: orders.Len()})
	events.LogSource(runID, string(source.Orders), orders.Len(), orders.Width())

	combined := orders.Namespace(string(source.Orders)).Rename(CombinedName)

	combined, res.Aging, err = enrich.Aging(combined,
		source.Column(source.ColReqDate, source.Orders), source.ColDaysLeft,
		processedOn, enrich.AgingOptions{
			Lenient: opts.LenientDates,
			OnInvalid: func(derr *enrich.DateError) {
				util.WarnLog("%v (left blank)", derr)
				events.LogBadDate(runID, derr)
			},
		})
	if err != nil {
		return nil, fmt.Errorf("aging: %w", err)
	}
	if res.Aging.Applied {
		events.LogAging(runID, combined.Len(), res.Aging.Invalid)
	} else {
		util.DebugLog("%s not present, %s not computed", source.Column(source.ColReqDate, source.Orders), source.ColDaysLeft)
	}

	for _, st := range joinSteps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		right := sources[st.tag]
		if right == nil {
			util.DebugLog("%s not uploaded, skipping join", st.tag)
			events.LogSkip(runID, string(st.tag))
			res.Steps = append(res.Steps, StepResult{Source: st.tag, Skipped: true})
			continue
		}

		var step StepResult
		combined, step, err = join(combined, right, st)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", st.tag, err)
		}
		events.LogSource(runID, string(st.tag), right.Len(), right.Width())
		events.LogDedupe(runID, string(st.tag), step.Rows-step.Duplicates, step.Duplicates)
		events.LogJoin(runID, string(st.tag), step.Matched, step.Unmatched)
		util.DebugLog("%s: %d rows, %d duplicates dropped, %d matched, %d unmatched",
			st.tag, step.Rows, step.Duplicates, step.Matched, step.Unmatched)
		res.Steps = append(res.Steps, step)
	}

	res.Combined = combined
	return res, nil
}

func join(left, right *table.Table, st joinStep) (*table.Table, StepResult, error) {
	step := StepResult{Source: st.tag, Rows: right.Len()}
	tag := string(st.tag)

	ns, err := enrich.CoerceColumns(right.Namespace(tag), namespaced(st.coerce, st.tag)...)
	if err != nil {
		return nil, step, err
	}

	keyed, err := table.Dedupe(ns, namespaced(st.rightKey, st.tag))
	if err != nil {
		return nil, step, err
	}
	step.Duplicates = keyed.Dropped()

	out, stats, err := table.LeftJoin(left, namespaced(st.leftKey, source.Orders), keyed)
	if err != nil {
		return nil, step, err
	}
	step.Matched = stats.Matched
	step.Unmatched = stats.Unmatched
	return out, step, nil
}
