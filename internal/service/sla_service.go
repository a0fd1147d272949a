package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/thnhpht/ITS/internal/domain"
	"github.com/thnhpht/ITS/internal/observability"
	"github.com/thnhpht/ITS/internal/repository"
	"github.com/thnhpht/ITS/internal/routing"
	"github.com/thnhpht/ITS/internal/rules"
)

// SLAService looks up SLA budgets and turns them into due dates.
type SLAService struct {
	repo     repository.RuleRepository
	rules    *rules.Set
	location *time.Location
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// SLADependencies bundles collaborators for the SLA service.
type SLADependencies struct {
	Repo     repository.RuleRepository
	Rules    *rules.Set
	Location *time.Location
	Metrics  *observability.Metrics
	Logger   *zap.Logger
}

// SLAResult is the budget for one ticket pass. A zero result means no SLA applies.
type SLAResult struct {
	PolicyID        int64
	TotalMinutes    int
	ResponseMinutes int
	TotalDays       int
	Kind            ResultKind
	Err             error
}

// NewSLAService constructs the service.
func NewSLAService(deps SLADependencies) *SLAService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return &SLAService{repo: deps.Repo, rules: deps.Rules, location: loc, metrics: deps.Metrics, logger: logger}
}

// Lookup finds the best SLA policy for a classification. Rows with concrete
// L2 and L3 outrank wildcard rows; among equals the earliest row wins.
func (s *SLAService) Lookup(ctx context.Context, cls domain.Classification, level domain.ProcessingLevel, priority string) SLAResult {
	res := s.lookup(ctx, cls, level, priority)
	s.metrics.RecordSLALookup(res.Kind.String())
	return res
}

func (s *SLAService) lookup(ctx context.Context, cls domain.Classification, level domain.ProcessingLevel, priority string) SLAResult {
	if cls.L1 == "" || level == "" {
		return SLAResult{Kind: ResultEmpty}
	}
	policies, err := s.repo.ListSLAPolicies(ctx, cls.L1, level, priority)
	if err != nil {
		s.logger.Error("sla policy lookup failed",
			zap.String("l1", cls.L1),
			zap.String("level", string(level)),
			zap.Error(err),
		)
		return SLAResult{Kind: ResultFailed, Err: err}
	}

	table := make([]routing.Rule[domain.SLAPolicy], 0, len(policies))
	for _, p := range policies {
		table = append(table, routing.Rule[domain.SLAPolicy]{
			Pattern: routing.Pattern{L1: p.L1, L2: p.L2, L3: p.L3},
			Result:  p,
		})
	}
	rule, ok := routing.NewTable(table).Match(routing.Key{L1: cls.L1, L2: cls.L2, L3: cls.L3})
	if !ok {
		return SLAResult{Kind: ResultEmpty}
	}

	p := rule.Result
	return SLAResult{
		PolicyID:        p.ID,
		TotalMinutes:    p.TotalMinutes(),
		ResponseMinutes: p.HandlingMinutes,
		TotalDays:       p.TotalDays,
		Kind:            ResultFound,
	}
}

// Stamp computes the due dates of a budget starting at start, using the
// calendar configured for the L1 id.
func (s *SLAService) Stamp(l1 string, start time.Time, res SLAResult) domain.SLAStamp {
	cal := s.rules.CalendarFor(l1, s.location)
	return domain.SLAStamp{
		TotalMinutes:    res.TotalMinutes,
		ResponseMinutes: res.ResponseMinutes,
		TotalDays:       res.TotalDays,
		ResponseDueAt:   cal.Due(start, res.ResponseMinutes),
		ResolutionDueAt: cal.Due(start, res.TotalMinutes),
	}
}

// FollowUpDue is the due date of a follow-up pass that started at from.
func (s *SLAService) FollowUpDue(l1 string, from time.Time, minutes int) time.Time {
	return s.rules.CalendarFor(l1, s.location).Due(from, minutes)
}

// Location is the business time zone.
func (s *SLAService) Location() *time.Location {
	return s.location
}
