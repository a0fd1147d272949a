package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/thnhpht/ITS/internal/domain"
	"github.com/thnhpht/ITS/internal/rules"
)

func shippedRules(t *testing.T) *rules.Set {
	t.Helper()
	set, err := rules.Load("../../configs/rules.yaml")
	require.NoError(t, err)
	return set
}

type fakeTaxonomy struct {
	labels map[string]string
	err    error
	calls  int
}

func (f *fakeTaxonomy) LabelByID(_ context.Context, level int, id string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	label, ok := f.labels[fmt.Sprintf("%d:%s", level, id)]
	if !ok {
		return "", pgx.ErrNoRows
	}
	return label, nil
}

type fakeOrg struct {
	unitTypes   map[string]string
	jobcodes    map[string]*domain.JobcodeRecord
	emails      map[string]map[string][]string
	parents     map[string]string
	unitTypeErr error
	emailCalls  []string
}

func (f *fakeOrg) UnitType(_ context.Context, key string) (string, error) {
	if f.unitTypeErr != nil {
		return "", f.unitTypeErr
	}
	if v, ok := f.unitTypes[key]; ok {
		return v, nil
	}
	return "", pgx.ErrNoRows
}

func (f *fakeOrg) Jobcode(_ context.Context, unitType, key string) (*domain.JobcodeRecord, error) {
	if rec, ok := f.jobcodes[unitType+"|"+key]; ok {
		return rec, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeOrg) Emails(_ context.Context, codes domain.JobcodeList, company string) ([]string, error) {
	f.emailCalls = append(f.emailCalls, company+":"+codes.String())
	var out []string
	for c, byCode := range f.emails {
		if company != "" && c != company {
			continue
		}
		for _, code := range codes {
			out = append(out, byCode[code]...)
		}
	}
	return out, nil
}

func (f *fakeOrg) ParentCompany(_ context.Context, company string) (string, error) {
	if p, ok := f.parents[company]; ok {
		return p, nil
	}
	return "", pgx.ErrNoRows
}

type fakeRuleRepo struct {
	routing []domain.RoutingRule
	sla     []domain.SLAPolicy
	err     error
}

func (f *fakeRuleRepo) ListRoutingRules(_ context.Context, l1 string) ([]domain.RoutingRule, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.RoutingRule
	for _, r := range f.routing {
		if r.L1 == l1 {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRuleRepo) ListSLAPolicies(_ context.Context, l1 string, level domain.ProcessingLevel, priority string) ([]domain.SLAPolicy, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.SLAPolicy
	for _, p := range f.sla {
		if p.L1 == l1 && p.ProcessingLevel == level && (p.Priority == "" || p.Priority == priority) {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeTemplates map[string]domain.EmailTemplate

func (f fakeTemplates) GetByCode(_ context.Context, code string) (*domain.EmailTemplate, error) {
	tpl, ok := f[code]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &tpl, nil
}

// spyWriter records every ticket write.
type spyWriter struct {
	statuses  []domain.TicketStatus
	stamps    []domain.SLAStamp
	followUps []time.Time
	tags      []string
	statusErr error
}

func (s *spyWriter) UpdateStatus(_ context.Context, _ string, status domain.TicketStatus) error {
	if s.statusErr != nil {
		return s.statusErr
	}
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *spyWriter) UpdateSLA(_ context.Context, _ string, stamp domain.SLAStamp) error {
	s.stamps = append(s.stamps, stamp)
	return nil
}

func (s *spyWriter) UpdateFollowUpSLA(_ context.Context, _ string, due time.Time) error {
	s.followUps = append(s.followUps, due)
	return nil
}

func (s *spyWriter) UpdateMailTag(_ context.Context, _ string, tag string) error {
	s.tags = append(s.tags, tag)
	return nil
}

func (s *spyWriter) writes() int {
	return len(s.statuses) + len(s.stamps) + len(s.followUps) + len(s.tags)
}

// spyBroker records published payloads per queue.
type spyBroker struct {
	mu       sync.Mutex
	messages map[string][][]byte
	err      error
}

func (b *spyBroker) Publish(_ context.Context, queue string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	if b.messages == nil {
		b.messages = map[string][][]byte{}
	}
	b.messages[queue] = append(b.messages[queue], payload)
	return nil
}

func (b *spyBroker) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, msgs := range b.messages {
		n += len(msgs)
	}
	return n
}

func (b *spyBroker) decode(t *testing.T, queue string, i int, v any) {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.Greater(t, len(b.messages[queue]), i)
	require.NoError(t, json.Unmarshal(b.messages[queue][i], v))
}

type fakeDeltas struct {
	previous *domain.Delta
	claimed  map[int64]bool
	marked   map[int64]string
	claimErr error
	markErr  error
}

func (f *fakeDeltas) GetPrevious(_ context.Context, _ string, _ int64) (*domain.Delta, error) {
	if f.previous == nil {
		return nil, pgx.ErrNoRows
	}
	return f.previous, nil
}

func (f *fakeDeltas) Claim(_ context.Context, index int64) (bool, error) {
	if f.claimErr != nil {
		return false, f.claimErr
	}
	if f.claimed == nil {
		f.claimed = map[int64]bool{}
	}
	if f.claimed[index] {
		return false, nil
	}
	f.claimed[index] = true
	return true, nil
}

func (f *fakeDeltas) MarkDone(_ context.Context, index int64, note string) error {
	if f.markErr != nil {
		return f.markErr
	}
	if f.marked == nil {
		f.marked = map[int64]string{}
	}
	f.marked[index] = note
	return nil
}

type fakeHistory struct {
	rows []domain.TicketHistory
}

func (f *fakeHistory) Append(_ context.Context, rows []domain.TicketHistory) error {
	f.rows = append(f.rows, rows...)
	return nil
}

func (f *fakeHistory) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	var out []domain.TicketHistory
	for _, r := range f.rows {
		if r.TicketID == ticketID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeReports struct {
	archived  []int64
	snapshots map[string]bool
}

func (f *fakeReports) ArchiveDelta(_ context.Context, d domain.Delta) (string, error) {
	f.archived = append(f.archived, d.Index)
	return fmt.Sprintf("report-%d", d.Index), nil
}

func (f *fakeReports) EnsureTicketSnapshot(_ context.Context, d domain.Delta) (bool, error) {
	if f.snapshots == nil {
		f.snapshots = map[string]bool{}
	}
	if f.snapshots[d.TicketID] {
		return false, nil
	}
	f.snapshots[d.TicketID] = true
	return true, nil
}
