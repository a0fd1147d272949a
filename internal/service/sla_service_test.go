package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thnhpht/ITS/internal/domain"
)

const fullDayL1 = "Log-Lv1-000273"

func TestSLALookupPrefersMostSpecificRow(t *testing.T) {
	repo := &fakeRuleRepo{sla: []domain.SLAPolicy{
		{ID: 1, L1: "L1", ProcessingLevel: domain.LevelFirstPass, HandlingMinutes: 100},
		{ID: 2, L1: "L1", L2: "L2", ProcessingLevel: domain.LevelFirstPass, HandlingMinutes: 80},
		{ID: 3, L1: "L1", L2: "L2", L3: "L3", ProcessingLevel: domain.LevelFirstPass, HandlingMinutes: 30, ClosingMinutes: 20, ForwardingMinutes: 10, TotalDays: 1},
		{ID: 4, L1: "L1", L2: "L2", L3: "L3", ProcessingLevel: domain.LevelFirstPass, HandlingMinutes: 999},
	}}
	svc := NewSLAService(SLADependencies{Repo: repo, Rules: shippedRules(t)})

	res := svc.Lookup(context.Background(), domain.Classification{L1: "L1", L2: "L2", L3: "L3"}, domain.LevelFirstPass, "Cao")
	require.Equal(t, ResultFound, res.Kind)
	assert.Equal(t, int64(3), res.PolicyID)
	assert.Equal(t, 60, res.TotalMinutes)
	assert.Equal(t, 30, res.ResponseMinutes)
	assert.Equal(t, 1, res.TotalDays)

	res = svc.Lookup(context.Background(), domain.Classification{L1: "L1", L2: "L2", L3: "other"}, domain.LevelFirstPass, "")
	assert.Equal(t, int64(2), res.PolicyID)
}

func TestSLALookupWithoutMatchIsZero(t *testing.T) {
	svc := NewSLAService(SLADependencies{Repo: &fakeRuleRepo{}, Rules: shippedRules(t)})

	res := svc.Lookup(context.Background(), domain.Classification{L1: "L1"}, domain.LevelSecondPass, "")
	assert.Equal(t, ResultEmpty, res.Kind)
	assert.Zero(t, res.TotalMinutes)
	assert.Zero(t, res.ResponseMinutes)
	assert.Zero(t, res.TotalDays)
	assert.NoError(t, res.Err)
}

func TestSLALookupFailure(t *testing.T) {
	svc := NewSLAService(SLADependencies{Repo: &fakeRuleRepo{err: errors.New("down")}, Rules: shippedRules(t)})

	res := svc.Lookup(context.Background(), domain.Classification{L1: "L1"}, domain.LevelFirstPass, "")
	assert.Equal(t, ResultFailed, res.Kind)
	assert.Error(t, res.Err)
}

func TestSLAStampFullDay(t *testing.T) {
	svc := NewSLAService(SLADependencies{Rules: shippedRules(t), Location: time.UTC})
	start := time.Date(2025, 6, 7, 16, 0, 0, 0, time.UTC)

	stamp := svc.Stamp(fullDayL1, start, SLAResult{TotalMinutes: 120, ResponseMinutes: 30, TotalDays: 1})
	assert.Equal(t, start.Add(30*time.Minute), stamp.ResponseDueAt)
	assert.Equal(t, start.Add(2*time.Hour), stamp.ResolutionDueAt)
	assert.Equal(t, 120, stamp.TotalMinutes)
	assert.Equal(t, 1, stamp.TotalDays)
}

func TestSLAStampDefaultSkipsWeekend(t *testing.T) {
	svc := NewSLAService(SLADependencies{Rules: shippedRules(t), Location: time.UTC})
	saturday := time.Date(2025, 6, 7, 10, 0, 0, 0, time.UTC)

	due := svc.FollowUpDue("Log-Lv1-000001", saturday, 60)
	assert.Equal(t, time.Monday, due.Weekday())
}
