package service

import (
	"context"
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/thnhpht/ITS/internal/domain"
	"github.com/thnhpht/ITS/internal/events"
	"github.com/thnhpht/ITS/internal/queue"
	apperrors "github.com/thnhpht/ITS/pkg/util"
)

var relativeImgSrc = regexp.MustCompile(`(<img[^>]*\ssrc=")(/[^"]*)"`)

// ResolutionStore finds tickets by external reference and stores outcomes.
type ResolutionStore interface {
	GetByRef(ctx context.Context, refNo string) (*domain.Ticket, error)
	MarkResolved(ctx context.Context, id string, resolution domain.Resolution) error
}

// CallbackInput is a resolution reported by the external ticketing system.
type CallbackInput struct {
	RefNo       string
	Content     string
	Handler     string
	Attachments []string
}

// CallbackService applies external resolutions to tickets.
type CallbackService struct {
	tickets   ResolutionStore
	policy    *bluemonday.Policy
	imageHost string
	publisher queue.Publisher
	logQueue  string
	events    events.Dispatcher
	logger    *zap.Logger
	now       func() time.Time
}

// CallbackDependencies bundles collaborators for the callback.
type CallbackDependencies struct {
	Tickets   ResolutionStore
	ImageHost string
	Publisher queue.Publisher
	LogQueue  string
	Events    events.Dispatcher
	Logger    *zap.Logger
}

// NewCallbackService constructs the service.
func NewCallbackService(deps CallbackDependencies) *CallbackService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CallbackService{
		tickets:   deps.Tickets,
		policy:    bluemonday.UGCPolicy(),
		imageHost: strings.TrimRight(deps.ImageHost, "/"),
		publisher: deps.Publisher,
		logQueue:  deps.LogQueue,
		events:    deps.Events,
		logger:    logger,
		now:       time.Now,
	}
}

// Resolve marks the ticket holding in.RefNo as processed.
func (s *CallbackService) Resolve(ctx context.Context, in CallbackInput) (*domain.Ticket, error) {
	received := s.now()
	ref := strings.TrimSpace(in.RefNo)
	if ref == "" {
		return nil, apperrors.NewValidationError("reference is required", nil)
	}

	ticket, err := s.tickets.GetByRef(ctx, ref)
	if err != nil {
		if apperrors.Classify(err) == apperrors.KindLookupMiss {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ref_no": ref})
		}
		return nil, apperrors.NewDependencyUnavailable("ticket store", err)
	}

	resolution := domain.Resolution{
		Content: s.RewriteContent(in.Content),
		Handler: strings.TrimSpace(in.Handler),
		Files:   strings.Join(s.RewriteAttachments(in.Attachments), ";"),
	}
	if err := s.tickets.MarkResolved(ctx, ticket.ID, resolution); err != nil {
		return nil, apperrors.NewDependencyUnavailable("ticket store", err)
	}
	ticket.Status = domain.StatusProcessed
	ticket.Resolution = resolution.Content
	ticket.ResolvedBy = resolution.Handler
	ticket.ResolutionFiles = resolution.Files

	s.logCall(ctx, ref, in, received)
	if s.events != nil {
		event := events.New(events.EventTicketResolved, ticket.ID, events.TicketResolvedPayload{
			RefNo:   ref,
			Handler: resolution.Handler,
		})
		if err := s.events.Publish(ctx, event); err != nil {
			s.logger.Warn("event publish failed", zap.Error(err))
		}
	}
	s.logger.Info("ticket resolved by callback",
		zap.String("ticket_id", ticket.ID),
		zap.String("ticket_code", ticket.Code),
		zap.String("ref_no", ref),
	)
	return ticket, nil
}

// RewriteContent sanitizes resolution HTML and points relative image
// sources at the image host.
func (s *CallbackService) RewriteContent(content string) string {
	clean := s.policy.Sanitize(content)
	if s.imageHost == "" {
		return clean
	}
	return relativeImgSrc.ReplaceAllString(clean, `${1}`+s.imageHost+`${2}"`)
}

// RewriteAttachments maps attachment URLs onto the image host, keeping the path.
func (s *CallbackService) RewriteAttachments(files []string) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if s.imageHost == "" {
			out = append(out, f)
			continue
		}
		path := f
		if u, err := url.Parse(f); err == nil && u.Path != "" {
			path = u.EscapedPath()
			if u.RawQuery != "" {
				path += "?" + u.RawQuery
			}
		}
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		out = append(out, s.imageHost+path)
	}
	return out
}

func (s *CallbackService) logCall(ctx context.Context, ref string, in CallbackInput, received time.Time) {
	if s.publisher == nil || s.logQueue == "" {
		return
	}
	body, _ := json.Marshal(map[string]any{
		"itsContent":  in.Content,
		"pic":         in.Handler,
		"attachFiles": in.Attachments,
	})
	entry := domain.APICallLog{
		Path:         "/api/v1/its/" + ref,
		RequestBody:  string(body),
		RequestDate:  received.Format(time.RFC3339),
		ResponseDate: s.now().Format(time.RFC3339),
		StatusCode:   200,
	}
	if err := queue.PublishJSON(ctx, s.publisher, s.logQueue, entry); err != nil {
		s.logger.Warn("callback log publish failed", zap.Error(err))
	}
}
