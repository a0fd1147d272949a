package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/thnhpht/ITS/internal/domain"
	"github.com/thnhpht/ITS/internal/repository"
	apperrors "github.com/thnhpht/ITS/pkg/util"
)

var placeholderPattern = regexp.MustCompile(`\{(\w+)\}`)

// MissingKeyError reports placeholders with no value.
type MissingKeyError struct {
	Keys []string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("template placeholders without value: %s", strings.Join(e.Keys, ", "))
}

// Fill substitutes {name} placeholders. If any placeholder has no value the
// raw text is returned together with a *MissingKeyError.
func Fill(text string, data map[string]string) (string, error) {
	var missing []string
	out := placeholderPattern.ReplaceAllStringFunc(text, func(m string) string {
		key := m[1 : len(m)-1]
		if v, ok := data[key]; ok {
			return v
		}
		missing = append(missing, key)
		return m
	})
	if len(missing) > 0 {
		return text, &MissingKeyError{Keys: missing}
	}
	return out, nil
}

// TemplateCode strips a display prefix, "Mẫu email - TV01" becomes "TV01".
func TemplateCode(name string) string {
	if _, code, ok := strings.Cut(name, " - "); ok {
		return strings.TrimSpace(code)
	}
	return strings.TrimSpace(name)
}

// TemplateService loads stored templates and renders them.
type TemplateService struct {
	repo   repository.TemplateRepository
	policy *bluemonday.Policy
	logger *zap.Logger
}

// TemplateDependencies bundles collaborators for templates.
type TemplateDependencies struct {
	Repo   repository.TemplateRepository
	Logger *zap.Logger
}

// Rendered is a filled subject and sanitized body.
type Rendered struct {
	Subject string
	Body    string
}

// NewTemplateService constructs the service.
func NewTemplateService(deps TemplateDependencies) *TemplateService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateService{repo: deps.Repo, policy: bluemonday.UGCPolicy(), logger: logger}
}

// Get loads a template by display name or code.
func (s *TemplateService) Get(ctx context.Context, name string) (*domain.EmailTemplate, error) {
	code := TemplateCode(name)
	tpl, err := s.repo.GetByCode(ctx, code)
	if repository.IsNotFound(err) {
		return nil, apperrors.NewLookupMiss("template", map[string]any{"code": code})
	}
	if err != nil {
		return nil, apperrors.NewDependencyUnavailable("template store", err)
	}
	return tpl, nil
}

// FillText fills text, logging and keeping the raw text on missing keys.
func (s *TemplateService) FillText(text string, data map[string]string) string {
	out, err := Fill(text, data)
	if err != nil {
		s.logger.Warn("template fill fell back to raw text", zap.Error(err))
	}
	return out
}

// Render fills subject and body and sanitizes the body HTML.
func (s *TemplateService) Render(tpl domain.EmailTemplate, data map[string]string) Rendered {
	return Rendered{
		Subject: s.FillText(tpl.Subject, data),
		Body:    s.Sanitize(s.FillText(tpl.Content, data)),
	}
}

// Sanitize strips scripts and unsafe attributes from HTML.
func (s *TemplateService) Sanitize(html string) string {
	return s.policy.Sanitize(html)
}
