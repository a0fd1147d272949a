package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAPITarget is returned for statuses that do not name a category, sub-category and item.
var ErrInvalidAPITarget = errors.New("api target needs category, sub-category and item")

// APIRef is an "id+Name" pair of the external catalogue.
type APIRef struct {
	ID   string
	Name string
}

// Code is the name prefix before the first dot, e.g. "SC01" for "SC01.Cards".
func (r APIRef) Code() string {
	return strings.TrimSpace(strings.SplitN(r.Name, ".", 2)[0])
}

// APITarget is the external catalogue position encoded in an API rule status:
// "catId+Name;subId+Name;itemId+Name[;TemplateCode.Name]".
type APITarget struct {
	Raw          string
	Category     APIRef
	SubCategory  APIRef
	Item         APIRef
	TemplateCode string
}

// ParseAPITarget parses an API rule status.
func ParseAPITarget(raw string) (APITarget, error) {
	target := APITarget{Raw: raw}
	parts := strings.Split(raw, ";")
	if len(parts) < 3 {
		return target, fmt.Errorf("%w: %q", ErrInvalidAPITarget, raw)
	}

	refs := make([]APIRef, 3)
	for i := 0; i < 3; i++ {
		id, name, ok := strings.Cut(parts[i], "+")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return target, fmt.Errorf("%w: %q", ErrInvalidAPITarget, raw)
		}
		refs[i] = APIRef{ID: id, Name: strings.TrimSpace(name)}
	}
	target.Category, target.SubCategory, target.Item = refs[0], refs[1], refs[2]

	if len(parts) >= 4 {
		target.TemplateCode = strings.TrimSpace(strings.SplitN(parts[3], ".", 2)[0])
	}
	return target, nil
}

// TemplateLookupCode is the prefix used to find the external template id.
func (t APITarget) TemplateLookupCode() string {
	if t.TemplateCode != "" {
		return t.TemplateCode
	}
	return t.SubCategory.Code()
}
