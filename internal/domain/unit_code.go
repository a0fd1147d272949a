package domain

import "strings"

// UnitCode is an originating organizational unit as entered on a ticket,
// e.g. "CN001-HoChiMinh" or "PGD012 - Ba Dinh".
type UnitCode struct {
	Raw string
	// LookupKey is the text before the first space, used to find the unit type.
	LookupKey string
	// Short is the text before the first hyphen, used for hierarchy and address queries.
	Short string
}

// ParseUnitCode builds both unit forms once.
func ParseUnitCode(raw string) UnitCode {
	raw = strings.TrimSpace(raw)
	unit := UnitCode{Raw: raw}
	if fields := strings.Fields(raw); len(fields) > 0 {
		unit.LookupKey = fields[0]
	}
	unit.Short = strings.TrimSpace(strings.SplitN(raw, "-", 2)[0])
	return unit
}

// IsZero reports whether no unit was given.
func (u UnitCode) IsZero() bool {
	return u.Raw == ""
}
