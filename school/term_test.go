package school_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elimu/school-engine/school"
)

func TestParseTerm_CanonicalLabels(t *testing.T) {
	for _, label := range []string{"TERM ONE 2026", "TERM TWO 2026", "TERM THREE 2026"} {
		term, err := school.ParseTerm(label, "2026")
		require.NoError(t, err, label)
		assert.Equal(t, school.Term(label), term)
	}
}

func TestParseTerm_RejectsMalformed(t *testing.T) {
	cases := []string{
		"term one 2026",   // lowercase
		"TERM FOUR 2026",  // out of set
		"TERM ONE",        // missing year
		"TERM ONE 26",     // short year
		"TERM  ONE 2026",  // double space
		" TERM ONE 2026",  // leading space
		"TERM ONE 2026 ",  // trailing space
	}
	for _, label := range cases {
		_, err := school.ParseTerm(label, "2026")
		assert.True(t, school.IsValidation(err), "expected validation error for %q", label)
	}
}

func TestParseTerm_RejectsWrongYear(t *testing.T) {
	_, err := school.ParseTerm("TERM ONE 2025", "2026")
	assert.True(t, school.IsValidation(err))
}

func TestAllowedTerms(t *testing.T) {
	terms := school.AllowedTerms("2026")
	assert.Equal(t, []school.Term{"TERM ONE 2026", "TERM TWO 2026", "TERM THREE 2026"}, terms)
}

func TestTermForDate_MonthBoundaries(t *testing.T) {
	cases := []struct {
		month time.Month
		want  school.Term
	}{
		{time.January, "TERM ONE 2026"},
		{time.April, "TERM ONE 2026"},
		{time.May, "TERM TWO 2026"},
		{time.August, "TERM TWO 2026"},
		{time.September, "TERM THREE 2026"},
		{time.December, "TERM THREE 2026"},
	}
	for _, c := range cases {
		date := time.Date(2026, c.month, 10, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, c.want, school.TermForDate(date, "2026"), c.month.String())
	}
}

func TestTermYearAndValid(t *testing.T) {
	assert.Equal(t, "2026", school.Term("TERM TWO 2026").Year())
	assert.Equal(t, "", school.Term("nonsense").Year())
	assert.True(t, school.Term("TERM THREE 2031").Valid())
	assert.False(t, school.Term("TERM 3 2031").Valid())
}
