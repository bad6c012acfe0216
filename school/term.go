/*
term.go - School billing terms

PURPOSE:
  A Term is a school billing period like "TERM ONE 2026". Fees are scoped
  to (grade, term). Exactly three canonical terms exist per year.

CANONICAL FORM:
  TERM {ONE|TWO|THREE} <4-digit year>, uppercase. ParseTerm rejects
  anything else, including lowercase variants and out-of-set ordinals.

DEFAULTING:
  The active term is explicit configuration (settings key "active_term").
  When unset, TermForDate supplies a default from the calendar month:
  months 1-4 map to TERM ONE, 5-8 to TERM TWO, 9-12 to TERM THREE. The
  month ranges live here, not in the ledger engine.
*/
package school

import (
	"fmt"
	"regexp"
	"time"
)

type Term string

var termPattern = regexp.MustCompile(`^TERM (ONE|TWO|THREE) (\d{4})$`)

var ordinals = []string{"ONE", "TWO", "THREE"}

// AllowedTerms returns the three canonical terms for a year.
func AllowedTerms(year string) []Term {
	terms := make([]Term, len(ordinals))
	for i, ord := range ordinals {
		terms[i] = Term(fmt.Sprintf("TERM %s %s", ord, year))
	}
	return terms
}

// ParseTerm validates a term label against the canonical form and the
// allow-list for the given year.
func ParseTerm(label, year string) (Term, error) {
	m := termPattern.FindStringSubmatch(label)
	if m == nil {
		return "", &ValidationError{
			Field:   "term",
			Message: fmt.Sprintf("term %q must match TERM {ONE|TWO|THREE} <year> (uppercase required)", label),
		}
	}
	if m[2] != year {
		return "", &ValidationError{
			Field:   "term",
			Message: fmt.Sprintf("term %q is not in academic year %s", label, year),
		}
	}
	return Term(label), nil
}

// TermForDate maps a date to the canonical term for the configured year.
// Pure function; the active-term setting overrides it when present.
func TermForDate(date time.Time, year string) Term {
	var ord string
	switch m := date.Month(); {
	case m >= time.January && m <= time.April:
		ord = "ONE"
	case m >= time.May && m <= time.August:
		ord = "TWO"
	default:
		ord = "THREE"
	}
	return Term(fmt.Sprintf("TERM %s %s", ord, year))
}

// Year extracts the 4-digit year from a canonical term label.
// Returns "" for malformed labels.
func (t Term) Year() string {
	m := termPattern.FindStringSubmatch(string(t))
	if m == nil {
		return ""
	}
	return m[2]
}

func (t Term) Valid() bool {
	return termPattern.MatchString(string(t))
}
