package service

import (
	"context"
	"html"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/thnhpht/ITS/internal/domain"
	"github.com/thnhpht/ITS/internal/events"
	"github.com/thnhpht/ITS/internal/repository"
)

// NoChangesNote is rendered when two snapshots are equal.
const NoChangesNote = "<p>Không có trường nào thay đổi.</p>"

const auditTimeLayout = "2006-01-02 15:04:05"

// AuditSnapshot is one side of a diff: the delta, its resolved labels and
// the SLA value shown for it.
type AuditSnapshot struct {
	Delta       domain.Delta
	Labels      domain.Labels
	ResponseSLA string
}

type auditField struct {
	label string
	value func(AuditSnapshot) string
}

var auditFields = []auditField{
	{"Nguồn", func(s AuditSnapshot) string { return s.Delta.Source }},
	{"Nhóm KH", func(s AuditSnapshot) string { return string(s.Delta.Segment) }},
	{"Cấp độ xử lý", func(s AuditSnapshot) string { return string(s.Delta.ProcessingLevel) }},
	{"Level 1 - Phân loại", func(s AuditSnapshot) string { return s.Labels.L1 }},
	{"Level 2 - Nhóm yêu cầu", func(s AuditSnapshot) string { return s.Labels.L2 }},
	{"Level 3", func(s AuditSnapshot) string { return s.Labels.L3 }},
	{"Level 4", func(s AuditSnapshot) string { return s.Labels.L4 }},
	{"Level 5", func(s AuditSnapshot) string { return s.Delta.Classification.L5 }},
	{"Đơn vị gán", func(s AuditSnapshot) string { return s.Delta.Unit }},
	{"Mức độ ưu tiên", func(s AuditSnapshot) string { return s.Delta.Priority }},
	{"Nội dung xử lý", func(s AuditSnapshot) string { return s.Delta.Content }},
	{"User thay đổi", func(s AuditSnapshot) string { return s.Delta.ModifiedBy }},
	{"Thời gian thay đổi", func(s AuditSnapshot) string { return formatAuditTime(s.Delta.ModifiedAt) }},
	{"SLA phản hồi", func(s AuditSnapshot) string { return s.ResponseSLA }},
	{"Hướng xử lý", func(s AuditSnapshot) string { return s.Delta.Resolution }},
	{"User phê duyệt", func(s AuditSnapshot) string { return s.Delta.Approver }},
	{"Trạng thái phê duyệt", func(s AuditSnapshot) string { return s.Delta.ApprovalStatus }},
}

// Diff lists the tracked fields whose values differ, in field order.
// Taxonomy levels are compared by label.
func Diff(prev, cur AuditSnapshot) []domain.FieldChange {
	var changes []domain.FieldChange
	for _, f := range auditFields {
		oldValue, newValue := f.value(prev), f.value(cur)
		if oldValue == newValue {
			continue
		}
		changes = append(changes, domain.FieldChange{
			Label: f.label,
			Old:   oldValue,
			New:   newValue,
			Actor: cur.Delta.ModifiedBy,
		})
	}
	return changes
}

// RenderNote renders changes as an HTML table.
func RenderNote(changes []domain.FieldChange) string {
	if len(changes) == 0 {
		return NoChangesNote
	}
	var b strings.Builder
	b.WriteString("<p>Các trường đã thay đổi:</p>")
	b.WriteString("<table border='1' cellpadding='5' cellspacing='0'>")
	b.WriteString("<tr><th>Label</th><th>Giá trị cũ</th><th>Giá trị mới</th><th>Agent thay đổi</th></tr>")
	for _, c := range changes {
		b.WriteString("<tr><td>")
		b.WriteString(html.EscapeString(c.Label))
		b.WriteString("</td><td>")
		b.WriteString(html.EscapeString(c.Old))
		b.WriteString("</td><td>")
		b.WriteString(html.EscapeString(c.New))
		b.WriteString("</td><td>")
		b.WriteString(html.EscapeString(c.Actor))
		b.WriteString("</td></tr>")
	}
	b.WriteString("</table>")
	return b.String()
}

func formatAuditTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(auditTimeLayout)
}

// PreviousDeltaReader finds the delta preceding a given one.
type PreviousDeltaReader interface {
	GetPrevious(ctx context.Context, ticketID string, beforeIndex int64) (*domain.Delta, error)
}

// AuditService diffs a delta against the previous one for its ticket and
// writes the structured history rows.
type AuditService struct {
	deltas   PreviousDeltaReader
	history  repository.TicketHistoryRepository
	taxonomy *TaxonomyService
	events   events.Dispatcher
	logger   *zap.Logger
}

// AuditDependencies bundles collaborators for audit.
type AuditDependencies struct {
	Deltas   PreviousDeltaReader
	History  repository.TicketHistoryRepository
	Taxonomy *TaxonomyService
	Events   events.Dispatcher
	Logger   *zap.Logger
}

// NewAuditService constructs the service.
func NewAuditService(deps AuditDependencies) *AuditService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		deltas:   deps.Deltas,
		history:  deps.History,
		taxonomy: deps.Taxonomy,
		events:   deps.Events,
		logger:   logger,
	}
}

// Record builds the audit entry for cur. A delta with no predecessor gets
// an empty note. On a first pass the new SLA value is the computed budget.
func (a *AuditService) Record(ctx context.Context, cur domain.Delta, labels domain.Labels, sla SLAResult) (domain.AuditEntry, error) {
	entry := domain.AuditEntry{TicketID: cur.TicketID, DeltaIndex: cur.Index}

	prev, err := a.deltas.GetPrevious(ctx, cur.TicketID, cur.Index)
	if repository.IsNotFound(err) {
		a.logger.Info("no previous delta", zap.String("ticket_id", cur.TicketID), zap.Int64("delta_index", cur.Index))
		return entry, nil
	}
	if err != nil {
		return entry, err
	}

	curSLA := prev.ResponseSLA
	if cur.IsFirstPass() {
		curSLA = strconv.Itoa(sla.ResponseMinutes)
	}
	entry.Changes = Diff(
		AuditSnapshot{Delta: *prev, Labels: a.taxonomy.ResolveAll(ctx, prev.Classification), ResponseSLA: prev.ResponseSLA},
		AuditSnapshot{Delta: cur, Labels: labels, ResponseSLA: curSLA},
	)
	entry.Note = RenderNote(entry.Changes)

	rows := make([]domain.TicketHistory, 0, len(entry.Changes))
	for _, c := range entry.Changes {
		rows = append(rows, domain.TicketHistory{
			TicketID:   cur.TicketID,
			DeltaIndex: cur.Index,
			Label:      c.Label,
			OldValue:   c.Old,
			NewValue:   c.New,
			Actor:      c.Actor,
		})
	}
	if err := a.history.Append(ctx, rows); err != nil {
		a.logger.Error("history rows failed", zap.String("ticket_id", cur.TicketID), zap.Int("rows", len(rows)), zap.Error(err))
	}

	if a.events != nil {
		event := events.New(events.EventAuditRecorded, cur.TicketID, events.AuditRecordedPayload{
			DeltaIndex: cur.Index,
			Changes:    len(entry.Changes),
		})
		if err := a.events.Publish(ctx, event); err != nil {
			a.logger.Warn("event publish failed", zap.Error(err))
		}
	}
	return entry, nil
}
