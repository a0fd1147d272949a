package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/thnhpht/ITS/internal/domain"
	"github.com/thnhpht/ITS/internal/observability"
	"github.com/thnhpht/ITS/internal/repository"
	apperrors "github.com/thnhpht/ITS/pkg/util"
)

// DeltaMarker claims a delta before any side effect and appends its audit
// note once the pipeline finished.
type DeltaMarker interface {
	Claim(ctx context.Context, index int64) (bool, error)
	MarkDone(ctx context.Context, index int64, note string) error
}

// Processor runs the full pipeline for one delta: labels, SLA, rule match,
// recipients, dispatch, audit, processed marking and report archive.
type Processor struct {
	deltas     DeltaMarker
	reports    repository.ReportRepository
	taxonomy   *TaxonomyService
	routing    *RoutingService
	sla        *SLAService
	recipients *RecipientService
	workflow   *WorkflowService
	audit      *AuditService
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// ProcessorDependencies bundles the pipeline stages.
type ProcessorDependencies struct {
	Deltas     DeltaMarker
	Reports    repository.ReportRepository
	Taxonomy   *TaxonomyService
	Routing    *RoutingService
	SLA        *SLAService
	Recipients *RecipientService
	Workflow   *WorkflowService
	Audit      *AuditService
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// ProcessResult summarizes one processed delta.
type ProcessResult struct {
	Input   DispatchInput
	Outcome DispatchOutcome
	Audit   domain.AuditEntry
	Matched bool
	// Skipped is set when another cycle already claimed the delta.
	Skipped bool
	Err     error
}

// NewProcessor constructs the pipeline.
func NewProcessor(deps ProcessorDependencies) *Processor {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		deltas:     deps.Deltas,
		reports:    deps.Reports,
		taxonomy:   deps.Taxonomy,
		routing:    deps.Routing,
		sla:        deps.SLA,
		recipients: deps.Recipients,
		workflow:   deps.Workflow,
		audit:      deps.Audit,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// Process handles one delta. It never panics; a failure is returned in the
// result. The delta is claimed before dispatch, so a failure after the claim
// never replays its side effects.
func (p *Processor) Process(ctx context.Context, delta domain.Delta) (res ProcessResult) {
	started := time.Now()
	log := p.logger.With(
		zap.String("ticket_id", delta.TicketID),
		zap.String("ticket_code", delta.TicketCode),
		zap.Int64("delta_index", delta.Index),
	)
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("delta %d panicked: %v", delta.Index, r)
			log.Error("delta processing panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
		p.metrics.RecordDelta(deltaResult(res))
		log.Info("delta processed",
			zap.Bool("matched", res.Matched),
			zap.String("action", string(res.Outcome.Action)),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(res.Err),
		)
	}()

	claimed, err := p.deltas.Claim(ctx, delta.Index)
	if err != nil {
		res.Err = apperrors.NewDependencyUnavailable("delta store", err)
		return res
	}
	if !claimed {
		log.Info("delta already claimed, skipping")
		res.Skipped = true
		return res
	}

	if err := delta.Validate(); err != nil {
		log.Warn("malformed delta, marking processed", zap.Error(err))
		res.Err = apperrors.NewMalformedInput(err.Error(), map[string]any{"delta_index": delta.Index})
		if markErr := p.deltas.MarkDone(ctx, delta.Index, ""); markErr != nil {
			log.Error("mark done failed", zap.Error(markErr))
		}
		return res
	}

	if created, err := p.reports.EnsureTicketSnapshot(ctx, delta); err != nil {
		log.Error("ticket snapshot failed", zap.Error(err))
	} else if created {
		log.Info("ticket snapshot created")
	}

	in := p.Resolve(ctx, delta)
	res.Input = in
	res.Matched = in.Rule.ID != 0 || in.Rule.Status != ""
	if res.Matched {
		res.Outcome = p.workflow.Dispatch(ctx, in)
	}

	entry, err := p.audit.Record(ctx, delta, in.Labels, in.SLA)
	if err != nil {
		log.Error("audit failed", zap.Error(err))
	}
	res.Audit = entry

	if err := p.deltas.MarkDone(ctx, delta.Index, entry.Note); err != nil {
		log.Error("mark done failed", zap.Error(err))
		res.Err = apperrors.NewDependencyUnavailable("delta store", err)
	}
	if _, err := p.reports.ArchiveDelta(ctx, delta); err != nil {
		log.Error("archive delta failed", zap.Error(err))
	}
	if res.Err == nil && res.Outcome.Err != nil {
		res.Err = res.Outcome.Err
	}
	return res
}

// Resolve gathers labels, SLA budget, routing rule and, for mail rules,
// recipients. It has no side effects.
func (p *Processor) Resolve(ctx context.Context, delta domain.Delta) DispatchInput {
	in := DispatchInput{Delta: delta}
	in.Labels = p.taxonomy.ResolveAll(ctx, delta.Classification)
	in.SLA = p.sla.Lookup(ctx, delta.Classification, delta.ProcessingLevel, delta.Priority)

	match := p.routing.Match(ctx, delta.Classification)
	if match.Kind == ResultFound {
		in.Rule = match.Rule
	}
	if in.Rule.Channel == domain.ChannelMail {
		in.Recipients = p.recipients.Resolve(ctx, RecipientQuery{
			Labels:  in.Labels,
			Segment: delta.Segment,
			Unit:    domain.ParseUnitCode(delta.Unit),
		})
	}
	return in
}

func deltaResult(res ProcessResult) string {
	switch {
	case res.Err == nil && res.Skipped:
		return "skipped"
	case res.Err == nil && !res.Matched:
		return "unmatched"
	case res.Err == nil:
		return "ok"
	}
	return string(apperrors.Classify(res.Err))
}
