// Package rules loads the routing rule file: recipient tables, jobcode keys,
// calendar modes and handoff template selectors.
package rules

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/thnhpht/ITS/internal/calendar"
	"github.com/thnhpht/ITS/internal/routing"
)

// File mirrors the YAML document.
type File struct {
	Calendar   CalendarRules  `yaml:"calendar"`
	Recipients RecipientRules `yaml:"recipients"`
	Handoff    HandoffRules   `yaml:"handoff"`
}

// CalendarSpec selects a due-date mode.
type CalendarSpec struct {
	Mode            string `yaml:"mode"`
	IncludeSaturday bool   `yaml:"include_saturday"`
}

// CalendarByL1 overrides the default mode for one L1 id.
type CalendarByL1 struct {
	L1              string `yaml:"l1"`
	Mode            string `yaml:"mode"`
	IncludeSaturday bool   `yaml:"include_saturday"`
}

// HolidaySpec is a non-business date in YYYY-MM-DD form.
type HolidaySpec struct {
	Name      string `yaml:"name"`
	Date      string `yaml:"date"`
	Recurring bool   `yaml:"recurring"`
}

// CalendarRules groups calendar configuration.
type CalendarRules struct {
	Default  CalendarSpec   `yaml:"default"`
	ByL1     []CalendarByL1 `yaml:"by_l1"`
	Holidays []HolidaySpec  `yaml:"holidays"`
}

// StaticRecipient maps a label pattern to literal addresses.
type StaticRecipient struct {
	Match     routing.Pattern `yaml:"match"`
	Addresses []string        `yaml:"addresses"`
}

// ComplianceRule resolves addresses by jobcode only and appends fixed fallbacks.
type ComplianceRule struct {
	Match    routing.Pattern `yaml:"match"`
	Jobcodes string          `yaml:"jobcodes"`
	Fallback []string        `yaml:"fallback"`
}

// SegmentJobcodeRule picks the jobcode key from the customer segment.
type SegmentJobcodeRule struct {
	Categories []string          `yaml:"categories"`
	Keys       map[string]string `yaml:"keys"`
}

// L3Rule picks the jobcode key, or literal addresses, from the L3 label.
type L3Rule struct {
	L3        string   `yaml:"l3"`
	Key       string   `yaml:"key"`
	Addresses []string `yaml:"addresses"`
}

// RecipientRules groups recipient resolution tiers.
type RecipientRules struct {
	StaticCategories []string           `yaml:"static_categories"`
	Static           []StaticRecipient  `yaml:"static"`
	Compliance       ComplianceRule     `yaml:"compliance"`
	SegmentJobcode   SegmentJobcodeRule `yaml:"segment_jobcode"`
	L3               []L3Rule           `yaml:"l3"`
	UnitTypes        map[string]string  `yaml:"unit_types"`
}

// HandoffTemplate names a stored template and a fallback subject format.
type HandoffTemplate struct {
	Template string `yaml:"template"`
	Subject  string `yaml:"subject"`
	// LevelShift fills the group and category fields from L3 and L4.
	LevelShift bool `yaml:"level_shift"`
}

// HandoffTemplateRule selects a template by pattern.
type HandoffTemplateRule struct {
	Match      routing.Pattern `yaml:"match"`
	Template   string          `yaml:"template"`
	Subject    string          `yaml:"subject"`
	LevelShift bool            `yaml:"level_shift"`
}

// MailTagRule tags a ticket handed off to an API, optionally per L1 id.
type MailTagRule struct {
	API string `yaml:"api"`
	L1  string `yaml:"l1"`
	Tag string `yaml:"tag"`
}

// HandoffRules groups external handoff presentation rules.
type HandoffRules struct {
	ITS            HandoffTemplate       `yaml:"its"`
	Support        []HandoffTemplateRule `yaml:"support"`
	SupportByID    []HandoffTemplateRule `yaml:"support_by_id"`
	SupportDefault HandoffTemplate       `yaml:"support_default"`
	MailTags       []MailTagRule         `yaml:"mail_tags"`
}

// Set is a compiled rule file.
type Set struct {
	file             File
	defaultCalendar  CalendarSpec
	calendars        map[string]CalendarSpec
	holidays         []calendar.Holiday
	staticCategories map[string]struct{}
	staticRecipients *routing.Table[[]string]
	supportByLabel   *routing.Table[HandoffTemplate]
	supportByID      *routing.Table[HandoffTemplate]
}

// Load reads and compiles a rule file from disk.
func Load(path string) (*Set, error) {
	input, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules: %w", err)
	}
	defer input.Close()
	return Parse(input)
}

// Parse decodes and compiles a rule document.
func Parse(r io.Reader) (*Set, error) {
	var f File
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return Compile(f)
}

// Compile validates a rule document and builds its lookup tables.
func Compile(f File) (*Set, error) {
	s := &Set{
		file:             f,
		calendars:        make(map[string]CalendarSpec, len(f.Calendar.ByL1)),
		staticCategories: make(map[string]struct{}, len(f.Recipients.StaticCategories)),
	}

	s.defaultCalendar = f.Calendar.Default
	if s.defaultCalendar.Mode == "" {
		s.defaultCalendar.Mode = string(calendar.ModeWeekday)
	}
	if _, err := calendar.ParseMode(s.defaultCalendar.Mode); err != nil {
		return nil, fmt.Errorf("calendar default: %w", err)
	}
	for _, c := range f.Calendar.ByL1 {
		if _, err := calendar.ParseMode(c.Mode); err != nil {
			return nil, fmt.Errorf("calendar for %s: %w", c.L1, err)
		}
		s.calendars[c.L1] = CalendarSpec{Mode: c.Mode, IncludeSaturday: c.IncludeSaturday}
	}
	for _, h := range f.Calendar.Holidays {
		date, err := time.Parse("2006-01-02", h.Date)
		if err != nil {
			return nil, fmt.Errorf("holiday %q: %w", h.Name, err)
		}
		s.holidays = append(s.holidays, calendar.Holiday{Name: h.Name, Date: date, IsRecurring: h.Recurring})
	}

	for _, c := range f.Recipients.StaticCategories {
		s.staticCategories[c] = struct{}{}
	}
	static := make([]routing.Rule[[]string], 0, len(f.Recipients.Static))
	for _, r := range f.Recipients.Static {
		if r.Match.L1 == "" {
			return nil, fmt.Errorf("static recipient rule without l1: %+v", r.Match)
		}
		static = append(static, routing.Rule[[]string]{Pattern: r.Match, Result: r.Addresses})
	}
	s.staticRecipients = routing.NewTable(static)

	s.supportByLabel = handoffTable(f.Handoff.Support)
	s.supportByID = handoffTable(f.Handoff.SupportByID)

	return s, nil
}

func handoffTable(rules []HandoffTemplateRule) *routing.Table[HandoffTemplate] {
	out := make([]routing.Rule[HandoffTemplate], 0, len(rules))
	for _, r := range rules {
		out = append(out, routing.Rule[HandoffTemplate]{
			Pattern: r.Match,
			Result:  HandoffTemplate{Template: r.Template, Subject: r.Subject, LevelShift: r.LevelShift},
		})
	}
	return routing.NewTable(out)
}

// CalendarFor returns the due-date calendar used for an L1 id.
func (s *Set) CalendarFor(l1 string, loc *time.Location) calendar.Calendar {
	spec, ok := s.calendars[l1]
	if !ok {
		spec = s.defaultCalendar
	}
	return calendar.Calendar{
		Mode:            calendar.Mode(spec.Mode),
		IncludeSaturday: spec.IncludeSaturday,
		Holidays:        s.holidays,
		Location:        loc,
	}
}

// IsStaticCategory reports whether an L1 label resolves through the static table.
func (s *Set) IsStaticCategory(l1 string) bool {
	_, ok := s.staticCategories[l1]
	return ok
}

// StaticRecipients is the label-keyed address table.
func (s *Set) StaticRecipients() *routing.Table[[]string] {
	return s.staticRecipients
}

// Compliance returns the compliance rule and whether the key falls under it.
func (s *Set) Compliance(k routing.Key) (ComplianceRule, bool) {
	c := s.file.Recipients.Compliance
	if c.Match.Specificity() == 0 {
		return c, false
	}
	return c, c.Match.Matches(k)
}

// SegmentJobcodeKey returns the jobcode key for segment-driven categories.
// applies is false when the L1 is not such a category.
func (s *Set) SegmentJobcodeKey(l1, segment string) (key string, applies bool) {
	rule := s.file.Recipients.SegmentJobcode
	for _, c := range rule.Categories {
		if c == l1 {
			return rule.Keys[segment], true
		}
	}
	return "", false
}

// L3Rule returns the L3-driven rule for a label.
func (s *Set) L3Rule(l3 string) (L3Rule, bool) {
	for _, r := range s.file.Recipients.L3 {
		if r.L3 == l3 {
			return r, true
		}
	}
	return L3Rule{}, false
}

// UnitTypeLabel maps a unit type code such as "CN" to its org-structure label.
func (s *Set) UnitTypeLabel(code string) string {
	return s.file.Recipients.UnitTypes[strings.TrimSpace(code)]
}

// HandoffTemplateFor selects the presentation for an external handoff.
// labels is keyed by taxonomy names, ids by taxonomy ids.
func (s *Set) HandoffTemplateFor(api string, labels, ids routing.Key) (HandoffTemplate, bool) {
	switch api {
	case "ITS":
		return s.file.Handoff.ITS, true
	case "HO SUPPORT":
		if rule, ok := s.supportByLabel.Match(labels); ok {
			return rule.Result, true
		}
		if rule, ok := s.supportByID.Match(ids); ok {
			return rule.Result, true
		}
		return s.file.Handoff.SupportDefault, true
	}
	return HandoffTemplate{}, false
}

// MailTag returns the tag recorded on a ticket handed off to api.
func (s *Set) MailTag(api, l1 string) string {
	fallback := ""
	for _, r := range s.file.Handoff.MailTags {
		if r.API != api {
			continue
		}
		if r.L1 == l1 {
			return r.Tag
		}
		if r.L1 == "" && fallback == "" {
			fallback = r.Tag
		}
	}
	return fallback
}
