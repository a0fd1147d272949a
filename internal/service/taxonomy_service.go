package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"
	"go.uber.org/zap"

	"github.com/thnhpht/ITS/internal/domain"
	"github.com/thnhpht/ITS/internal/repository"
)

// Taxonomy levels as stored in taxonomy_labels.
const (
	LevelL1 = 1
	LevelL2 = 2
	LevelL3 = 3
	LevelL4 = 4
)

// TaxonomyService maps classification ids to labels.
type TaxonomyService struct {
	repo   repository.TaxonomyRepository
	cache  *bigcache.BigCache
	logger *zap.Logger
}

// TaxonomyDependencies bundles collaborators for the taxonomy service.
// Cache may be nil.
type TaxonomyDependencies struct {
	Repo   repository.TaxonomyRepository
	Cache  *bigcache.BigCache
	Logger *zap.Logger
}

// LabelResult is the outcome of a single label lookup.
type LabelResult struct {
	Label string
	Kind  ResultKind
	Err   error
}

// NewTaxonomyService constructs the service.
func NewTaxonomyService(deps TaxonomyDependencies) *TaxonomyService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaxonomyService{repo: deps.Repo, cache: deps.Cache, logger: logger}
}

// NewLabelCache builds a small in-memory label cache. Labels are short and
// the taxonomy has a few thousand rows.
func NewLabelCache(ctx context.Context, ttl time.Duration) (*bigcache.BigCache, error) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	cfg := bigcache.Config{
		Shards:             16,
		LifeWindow:         ttl,
		CleanWindow:        ttl / 2,
		MaxEntriesInWindow: 1024,
		MaxEntrySize:       64,
		HardMaxCacheSize:   8,
	}
	return bigcache.New(ctx, cfg)
}

// ResolveLabel returns the label for id at level. Unknown ids resolve
// to an empty label; only store failures are reported as failed.
func (s *TaxonomyService) ResolveLabel(ctx context.Context, level int, id string) LabelResult {
	id = strings.TrimSpace(id)
	if id == "" {
		return LabelResult{Kind: ResultEmpty}
	}

	key := fmt.Sprintf("%d:%s", level, id)
	if s.cache != nil {
		if cached, err := s.cache.Get(key); err == nil {
			if len(cached) == 0 {
				return LabelResult{Kind: ResultEmpty}
			}
			return LabelResult{Label: string(cached), Kind: ResultFound}
		} else if !errors.Is(err, bigcache.ErrEntryNotFound) {
			s.logger.Warn("label cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	label, err := s.repo.LabelByID(ctx, level, id)
	switch {
	case repository.IsNotFound(err):
		s.remember(key, "")
		return LabelResult{Kind: ResultEmpty}
	case err != nil:
		s.logger.Error("label lookup failed", zap.Int("level", level), zap.String("id", id), zap.Error(err))
		return LabelResult{Kind: ResultFailed, Err: err}
	}

	label = strings.TrimSpace(label)
	s.remember(key, label)
	if label == "" {
		return LabelResult{Kind: ResultEmpty}
	}
	return LabelResult{Label: label, Kind: ResultFound}
}

// ResolveAll resolves the four levels independently. Unresolved levels stay empty.
func (s *TaxonomyService) ResolveAll(ctx context.Context, cls domain.Classification) domain.Labels {
	return domain.Labels{
		L1: s.ResolveLabel(ctx, LevelL1, cls.L1).Label,
		L2: s.ResolveLabel(ctx, LevelL2, cls.L2).Label,
		L3: s.ResolveLabel(ctx, LevelL3, cls.L3).Label,
		L4: s.ResolveLabel(ctx, LevelL4, cls.L4).Label,
	}
}

func (s *TaxonomyService) remember(key, label string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(key, []byte(label)); err != nil {
		s.logger.Debug("label cache write failed", zap.String("key", key), zap.Error(err))
	}
}
