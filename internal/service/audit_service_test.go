package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thnhpht/ITS/internal/domain"
)

func snapshot(l1 string) AuditSnapshot {
	return AuditSnapshot{
		Delta:  domain.Delta{Source: "Hotline", ModifiedBy: "agent01", ModifiedAt: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)},
		Labels: domain.Labels{L1: l1},
	}
}

func TestDiffSingleLabelChange(t *testing.T) {
	changes := Diff(snapshot("A"), snapshot("B"))
	require.Len(t, changes, 1)
	assert.Equal(t, domain.FieldChange{Label: "Level 1 - Phân loại", Old: "A", New: "B", Actor: "agent01"}, changes[0])

	note := RenderNote(changes)
	assert.True(t, strings.HasPrefix(note, "<p>Các trường đã thay đổi:</p><table"))
	assert.Contains(t, note, "<tr><td>Level 1 - Phân loại</td><td>A</td><td>B</td><td>agent01</td></tr>")
}

func TestDiffIdenticalSnapshots(t *testing.T) {
	changes := Diff(snapshot("A"), snapshot("A"))
	assert.Empty(t, changes)
	assert.Equal(t, "<p>Không có trường nào thay đổi.</p>", RenderNote(changes))
}

func TestRenderNoteEscapesValues(t *testing.T) {
	note := RenderNote([]domain.FieldChange{{Label: "Nội dung xử lý", Old: "<b>x</b>", New: "y"}})
	assert.Contains(t, note, "&lt;b&gt;x&lt;/b&gt;")
}

func TestAuditRecordWritesHistory(t *testing.T) {
	prev := domain.Delta{
		Index: 1, TicketID: "ticket-1", Classification: domain.Classification{L1: "a"},
		ModifiedBy: "agent01", ResponseSLA: "60",
	}
	cur := prev
	cur.Index = 2
	cur.Classification.L1 = "b"

	deltas := &fakeDeltas{previous: &prev}
	history := &fakeHistory{}
	svc := NewAuditService(AuditDependencies{
		Deltas:   deltas,
		History:  history,
		Taxonomy: NewTaxonomyService(TaxonomyDependencies{Repo: &fakeTaxonomy{labels: map[string]string{"1:a": "Tư vấn"}}}),
	})

	entry, err := svc.Record(context.Background(), cur, domain.Labels{L1: "Khiếu nại"}, SLAResult{TotalMinutes: 90})
	require.NoError(t, err)
	require.Len(t, entry.Changes, 1)
	assert.Equal(t, "Tư vấn", entry.Changes[0].Old)
	assert.Equal(t, "Khiếu nại", entry.Changes[0].New)
	require.Len(t, history.rows, 1)
	assert.Equal(t, int64(2), history.rows[0].DeltaIndex)

	cur.ProcessingLevel = domain.LevelFirstPass
	prev.ProcessingLevel = domain.LevelFirstPass
	entry, err = svc.Record(context.Background(), cur, domain.Labels{L1: "Tư vấn"}, SLAResult{TotalMinutes: 90, ResponseMinutes: 45})
	require.NoError(t, err)
	require.Len(t, entry.Changes, 1)
	assert.Equal(t, domain.FieldChange{Label: "SLA phản hồi", Old: "60", New: "45", Actor: "agent01"}, entry.Changes[0])
}

func TestAuditRecordWithoutPrevious(t *testing.T) {
	svc := NewAuditService(AuditDependencies{Deltas: &fakeDeltas{}, History: &fakeHistory{}})
	entry, err := svc.Record(context.Background(), domain.Delta{TicketID: "t", Index: 5}, domain.Labels{}, SLAResult{})
	require.NoError(t, err)
	assert.Empty(t, entry.Note)
	assert.Empty(t, entry.Changes)
}
