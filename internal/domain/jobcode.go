package domain

import "strings"

// JobcodeList is a set of organizational jobcodes stored as "A;B,C".
type JobcodeList []string

// ParseJobcodeList splits on ';' and ',' and drops blanks.
func ParseJobcodeList(raw string) JobcodeList {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ';' || r == ',' })
	out := make(JobcodeList, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (l JobcodeList) String() string {
	return strings.Join(l, ";")
}

// JobcodeRecord is the org-structure row for a (unit type, jobcode key) pair.
type JobcodeRecord struct {
	UnitType    string
	Key         string
	Codes       JobcodeList
	ParentCodes JobcodeList
}

// HasParent reports whether the parent unit should be consulted too.
func (r JobcodeRecord) HasParent() bool {
	return len(r.ParentCodes) > 0
}
