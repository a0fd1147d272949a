package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/thnhpht/ITS/internal/domain"
	"github.com/thnhpht/ITS/internal/repository"
	"github.com/thnhpht/ITS/internal/routing"
)

// RoutingService matches a classification against the routing rule table.
type RoutingService struct {
	repo   repository.RuleRepository
	logger *zap.Logger
}

// RoutingDependencies bundles collaborators for routing.
type RoutingDependencies struct {
	Repo   repository.RuleRepository
	Logger *zap.Logger
}

// RuleResult is the matched routing rule, if any.
type RuleResult struct {
	Rule domain.RoutingRule
	Kind ResultKind
	Err  error
}

// NewRoutingService constructs the service.
func NewRoutingService(deps RoutingDependencies) *RoutingService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoutingService{repo: deps.Repo, logger: logger}
}

// Match returns the most specific rule for the classification ids.
func (s *RoutingService) Match(ctx context.Context, cls domain.Classification) RuleResult {
	if cls.L1 == "" {
		return RuleResult{Kind: ResultEmpty}
	}
	rows, err := s.repo.ListRoutingRules(ctx, cls.L1)
	if err != nil {
		s.logger.Error("routing rule lookup failed", zap.String("l1", cls.L1), zap.Error(err))
		return RuleResult{Kind: ResultFailed, Err: err}
	}

	table := make([]routing.Rule[domain.RoutingRule], 0, len(rows))
	for _, r := range rows {
		table = append(table, routing.Rule[domain.RoutingRule]{
			Pattern: routing.Pattern{L1: r.L1, L2: r.L2, L3: r.L3},
			Result:  r,
		})
	}
	rule, ok := routing.NewTable(table).Match(routing.Key{L1: cls.L1, L2: cls.L2, L3: cls.L3})
	if !ok {
		s.logger.Info("no routing rule matched",
			zap.String("l1", cls.L1),
			zap.String("l2", cls.L2),
			zap.String("l3", cls.L3),
		)
		return RuleResult{Kind: ResultEmpty}
	}
	return RuleResult{Rule: rule.Result, Kind: ResultFound}
}
