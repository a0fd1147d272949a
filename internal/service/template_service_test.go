package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thnhpht/ITS/internal/domain"
	apperrors "github.com/thnhpht/ITS/pkg/util"
)

func TestFillSubstitutesPlaceholders(t *testing.T) {
	out, err := Fill("[{maTicket}] - {customerName}", map[string]string{"maTicket": "T001", "customerName": "An"})
	require.NoError(t, err)
	assert.Equal(t, "[T001] - An", out)
}

func TestFillMissingKeyReturnsRawText(t *testing.T) {
	raw := "Xin chào {customerName}, mã {maTicket}"
	out, err := Fill(raw, map[string]string{"maTicket": "T001"})
	assert.Equal(t, raw, out)

	var missing *MissingKeyError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"customerName"}, missing.Keys)
}

func TestTemplateCodeStripsPrefix(t *testing.T) {
	assert.Equal(t, "TV01", TemplateCode("Mẫu email - TV01"))
	assert.Equal(t, "HO2", TemplateCode("HO2"))
	assert.Equal(t, "B - C", TemplateCode("A - B - C"))
}

func TestTemplateServiceGetAndRender(t *testing.T) {
	svc := NewTemplateService(TemplateDependencies{Repo: fakeTemplates{
		"TV01": {Code: "TV01", Subject: "Ticket {maTicket}", Content: "<p>{content}</p><script>alert(1)</script>"},
	}})

	tpl, err := svc.Get(context.Background(), "Mẫu email - TV01")
	require.NoError(t, err)
	out := svc.Render(*tpl, map[string]string{"maTicket": "T9", "content": "hello"})
	assert.Equal(t, "Ticket T9", out.Subject)
	assert.Equal(t, "<p>hello</p>", out.Body)

	_, err = svc.Get(context.Background(), "missing")
	assert.Equal(t, apperrors.KindLookupMiss, apperrors.Classify(err))
}

func TestRenderKeepsRawTextOnMissingKey(t *testing.T) {
	svc := NewTemplateService(TemplateDependencies{Repo: fakeTemplates{}})
	out := svc.Render(domain.EmailTemplate{Subject: "{unknown}", Content: "<b>{unknown}</b>"}, nil)
	assert.Equal(t, "{unknown}", out.Subject)
	assert.Equal(t, "<b>{unknown}</b>", out.Body)
}
