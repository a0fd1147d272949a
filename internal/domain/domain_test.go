package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnitCode(t *testing.T) {
	cases := []struct {
		raw       string
		lookupKey string
		short     string
	}{
		{"CN001-HoChiMinh", "CN001-HoChiMinh", "CN001"},
		{"PGD012 - Ba Dinh", "PGD012", "PGD012"},
		{"  HS01  ", "HS01", "HS01"},
		{"", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			unit := ParseUnitCode(tc.raw)
			assert.Equal(t, tc.lookupKey, unit.LookupKey)
			assert.Equal(t, tc.short, unit.Short)
		})
	}
	assert.True(t, ParseUnitCode(" ").IsZero())
}

func TestParseJobcodeList(t *testing.T) {
	assert.Equal(t, JobcodeList{"HS2125", "HS2126", "HS2127"}, ParseJobcodeList("HS2125;HS2126, HS2127;"))
	assert.Empty(t, ParseJobcodeList(""))
	assert.Equal(t, "A;B", JobcodeList{"A", "B"}.String())
}

func TestParseAPITarget(t *testing.T) {
	target, err := ParseAPITarget("12+Thẻ;34+SC01.Thẻ ghi nợ;56+Khóa thẻ;T05.Mẫu khóa thẻ")
	require.NoError(t, err)
	assert.Equal(t, "12", target.Category.ID)
	assert.Equal(t, "34", target.SubCategory.ID)
	assert.Equal(t, "SC01", target.SubCategory.Code())
	assert.Equal(t, "56", target.Item.ID)
	assert.Equal(t, "T05", target.TemplateLookupCode())

	target, err = ParseAPITarget("12+A;34+SC02.B;56+C")
	require.NoError(t, err)
	assert.Equal(t, "SC02", target.TemplateLookupCode())

	for _, raw := range []string{"", "Đóng", "12+A;34+B", "12+A;+B;56+C", "12+A;34;56+C"} {
		_, err := ParseAPITarget(raw)
		assert.ErrorIs(t, err, ErrInvalidAPITarget, raw)
	}
}

func TestDeltaHelpers(t *testing.T) {
	modified := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	d := Delta{TicketID: "t-1", ModifiedAt: modified, ProcessingLevel: LevelFirstPass, FirstPassSLA: "4h", FollowUpSLA: "8h"}

	assert.ErrorIs(t, d.Validate(), ErrMissingClassification)
	d.Classification.L1 = "Log-Lv1-000265"
	assert.NoError(t, d.Validate())
	assert.ErrorIs(t, Delta{}.Validate(), ErrMissingTicketID)

	assert.Equal(t, modified, d.ClockStart())
	assert.Equal(t, "4h", d.LevelSLA())
	d.ProcessingLevel = LevelThirdPass
	assert.Equal(t, "8h", d.LevelSLA())
	assert.True(t, d.ProcessingLevel.IsFollowUp())
	assert.False(t, LevelFirstPass.IsFollowUp())
}

func TestStatusAndTypes(t *testing.T) {
	assert.True(t, StatusClosed.IsTerminal())
	assert.True(t, StatusClosedOrForwarded.IsTerminal())
	assert.False(t, StatusForwarded.IsTerminal())
	assert.True(t, IsExternalHandoffType("Rủi ro All"))
	assert.False(t, IsExternalHandoffType("Khác"))
	assert.Equal(t, 90, SLAPolicy{HandlingMinutes: 30, ClosingMinutes: 20, ForwardingMinutes: 40}.TotalMinutes())
}
