package service

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/thnhpht/ITS/internal/domain"
	"github.com/thnhpht/ITS/internal/observability"
	"github.com/thnhpht/ITS/internal/repository"
	"github.com/thnhpht/ITS/internal/routing"
	"github.com/thnhpht/ITS/internal/rules"
)

// Recipient resolution tiers, reported in results and metrics.
const (
	TierStatic     = "static"
	TierCompliance = "compliance"
	TierJobcode    = "jobcode"
	TierL3Static   = "l3_static"
	TierNone       = "none"
)

// RecipientService resolves notification addresses for a classified ticket.
type RecipientService struct {
	org     repository.OrgRepository
	rules   *rules.Set
	metrics *observability.Metrics
	logger  *zap.Logger
}

// RecipientDependencies bundles collaborators for recipient resolution.
type RecipientDependencies struct {
	Org     repository.OrgRepository
	Rules   *rules.Set
	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// RecipientQuery is keyed by resolved labels, not ids.
type RecipientQuery struct {
	Labels  domain.Labels
	Segment domain.Segment
	Unit    domain.UnitCode
}

// RecipientResult carries the address set and the tier that produced it.
// An empty set with Kind ResultEmpty is a valid outcome.
type RecipientResult struct {
	Addresses  []string
	Tier       string
	Kind       ResultKind
	Err        error
	JobcodeKey string
}

// NewRecipientService constructs the service.
func NewRecipientService(deps RecipientDependencies) *RecipientService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecipientService{org: deps.Org, rules: deps.Rules, metrics: deps.Metrics, logger: logger}
}

// Resolve walks the tiers in order: static table, compliance jobcodes,
// segment or L3 driven jobcode lookup with parent-unit union.
func (s *RecipientService) Resolve(ctx context.Context, q RecipientQuery) RecipientResult {
	res := s.resolve(ctx, q)
	s.metrics.RecordRecipients(res.Tier, res.Kind.String())
	s.logger.Debug("recipients resolved",
		zap.String("l1", q.Labels.L1),
		zap.String("l2", q.Labels.L2),
		zap.String("l3", q.Labels.L3),
		zap.String("segment", string(q.Segment)),
		zap.String("unit", q.Unit.Raw),
		zap.String("tier", res.Tier),
		zap.Int("recipients", len(res.Addresses)),
		zap.Error(res.Err),
	)
	return res
}

func (s *RecipientService) resolve(ctx context.Context, q RecipientQuery) RecipientResult {
	key := routing.Key{L1: q.Labels.L1, L2: q.Labels.L2, L3: q.Labels.L3, Segment: string(q.Segment)}

	if s.rules.IsStaticCategory(q.Labels.L1) {
		if rule, ok := s.rules.StaticRecipients().Match(key); ok {
			return found(TierStatic, rule.Result, "")
		}
		return RecipientResult{Tier: TierStatic, Kind: ResultEmpty}
	}

	if rule, ok := s.rules.Compliance(key); ok {
		addrs, err := s.org.Emails(ctx, domain.ParseJobcodeList(rule.Jobcodes), "")
		if err != nil && !repository.IsNotFound(err) {
			s.logger.Error("compliance address lookup failed", zap.Error(err))
		} else {
			err = nil
		}
		res := found(TierCompliance, append(addrs, rule.Fallback...), "")
		res.Err = err
		return res
	}

	jobKey, applies := s.rules.SegmentJobcodeKey(q.Labels.L1, string(q.Segment))
	if !applies {
		rule, ok := s.rules.L3Rule(q.Labels.L3)
		if !ok {
			return RecipientResult{Tier: TierNone, Kind: ResultEmpty}
		}
		if len(rule.Addresses) > 0 {
			return found(TierL3Static, rule.Addresses, "")
		}
		jobKey = rule.Key
	}
	if jobKey == "" {
		return RecipientResult{Tier: TierNone, Kind: ResultEmpty}
	}
	return s.byJobcode(ctx, jobKey, q.Unit)
}

// byJobcode resolves unit type, jobcode record and addresses for the unit,
// then unions the parent company's addresses when the record has parent codes.
func (s *RecipientService) byJobcode(ctx context.Context, jobKey string, unit domain.UnitCode) RecipientResult {
	empty := RecipientResult{Tier: TierJobcode, Kind: ResultEmpty, JobcodeKey: jobKey}
	if unit.IsZero() {
		return empty
	}

	code, err := s.org.UnitType(ctx, unit.LookupKey)
	if err != nil {
		return s.lookupFailure(empty, "unit type", err)
	}
	unitType := s.rules.UnitTypeLabel(code)
	if unitType == "" {
		s.logger.Warn("unit type has no org label", zap.String("unit", unit.Raw), zap.String("unit_type", code))
		return empty
	}

	record, err := s.org.Jobcode(ctx, unitType, jobKey)
	if err != nil {
		return s.lookupFailure(empty, "jobcode", err)
	}

	addrs, err := s.org.Emails(ctx, record.Codes, unit.Short)
	if err != nil && !repository.IsNotFound(err) {
		return s.lookupFailure(empty, "addresses", err)
	}

	if record.HasParent() {
		parent, err := s.org.ParentCompany(ctx, unit.Short)
		switch {
		case repository.IsNotFound(err):
		case err != nil:
			s.logger.Error("parent company lookup failed", zap.String("unit", unit.Short), zap.Error(err))
		default:
			more, err := s.org.Emails(ctx, record.ParentCodes, parent)
			if err != nil && !repository.IsNotFound(err) {
				s.logger.Error("parent address lookup failed", zap.String("parent", parent), zap.Error(err))
			}
			addrs = append(addrs, more...)
		}
	}

	if len(addrs) == 0 {
		return empty
	}
	return found(TierJobcode, addrs, jobKey)
}

func (s *RecipientService) lookupFailure(res RecipientResult, step string, err error) RecipientResult {
	if repository.IsNotFound(err) {
		return res
	}
	s.logger.Error("recipient lookup failed", zap.String("step", step), zap.Error(err))
	res.Kind = ResultFailed
	res.Err = err
	return res
}

func found(tier string, addrs []string, jobKey string) RecipientResult {
	addrs = dedupe(addrs)
	if len(addrs) == 0 {
		return RecipientResult{Tier: tier, Kind: ResultEmpty, JobcodeKey: jobKey}
	}
	return RecipientResult{Addresses: addrs, Tier: tier, Kind: ResultFound, JobcodeKey: jobKey}
}

// dedupe trims, drops blanks and duplicates, and sorts for stable output.
func dedupe(addrs []string) []string {
	seen := make(map[string]struct{}, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
