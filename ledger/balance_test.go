package ledger_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elimu/school-engine/school"
	"github.com/elimu/school-engine/store/sqlite"
)

// addFee creates another fee for the student's grade in the given term.
func addFee(t *testing.T, store *sqlite.Store, gradeID school.GradeID, term string, amount int) school.Fee {
	t.Helper()
	fee := school.Fee{
		ID:      school.FeeID(uuid.NewString()),
		GradeID: gradeID,
		Term:    school.Term(term),
		Amount:  school.NewMoneyFromInt(amount),
		DueDate: testNow,
	}
	require.NoError(t, store.SaveFee(context.Background(), fee))
	return fee
}

func TestAdjustedBalance_AppliesAvailableCredit(t *testing.T) {
	// GIVEN: A 3000 credit from overpaying the term-one fee, and a 12000
	//        term-two fee with no payments
	// WHEN: Viewing the term-two balance
	// THEN: Raw 12000, 3000 applied, adjusted 9000

	engine, store := newTestEngine(t)
	student, termOne := seedStudentFee(t, store, 15000)
	termTwo := addFee(t, store, student.GradeID, "TERM TWO 2026", 12000)

	result := pay(t, engine, student, termOne, 18000)
	require.NotNil(t, result.Credit)

	view, err := engine.AdjustedBalance(context.Background(), student.ID, termTwo.ID)
	require.NoError(t, err)

	assert.True(t, view.RawBalance.Equal(school.NewMoneyFromInt(12000)))
	assert.True(t, view.AvailableCredit.Equal(school.NewMoneyFromInt(3000)))
	assert.True(t, view.CreditApplied.Equal(school.NewMoneyFromInt(3000)))
	assert.True(t, view.AdjustedBalance.Equal(school.NewMoneyFromInt(9000)))
}

func TestAdjustedBalance_CreditExceedsBalance_FlooredAtZero(t *testing.T) {
	// GIVEN: A 5000 credit and a 3000 fee
	// WHEN: Viewing the adjusted balance
	// THEN: Only 3000 of the credit applies and the balance floors at zero

	engine, store := newTestEngine(t)
	student, termOne := seedStudentFee(t, store, 15000)
	small := addFee(t, store, student.GradeID, "TERM TWO 2026", 3000)

	pay(t, engine, student, termOne, 20000) // 5000 credit

	view, err := engine.AdjustedBalance(context.Background(), student.ID, small.ID)
	require.NoError(t, err)

	assert.True(t, view.CreditApplied.Equal(school.NewMoneyFromInt(3000)))
	assert.True(t, view.AdjustedBalance.IsZero())
}

func TestSummary_AggregatesAcrossFees(t *testing.T) {
	// GIVEN: Two fees, one overpaid and one partially paid
	// WHEN: Summarizing the student
	// THEN: Totals count each (student, fee) pair exactly once

	engine, store := newTestEngine(t)
	student, termOne := seedStudentFee(t, store, 15000)
	termTwo := addFee(t, store, student.GradeID, "TERM TWO 2026", 12000)

	pay(t, engine, student, termOne, 18000) // paid, 3000 credit
	pay(t, engine, student, termTwo, 4000)  // partial, 8000 due

	summary, err := engine.Summary(context.Background(), student.ID)
	require.NoError(t, err)

	assert.True(t, summary.TotalPaid.Equal(school.NewMoneyFromInt(22000)))
	assert.True(t, summary.TotalBalance.Equal(school.NewMoneyFromInt(8000)),
		"total balance should be 8000, got %s", summary.TotalBalance)
	assert.True(t, summary.AvailableCredits.Equal(school.NewMoneyFromInt(3000)))
	assert.True(t, summary.AppliedCredits.IsZero())
}

func TestSummary_CurrentTermBalance_UsesActiveTerm(t *testing.T) {
	// GIVEN: The fixed clock in March (term one) and a partially paid
	//        term-one fee
	// WHEN: Summarizing the student
	// THEN: The current-term balance reflects the term-one fee

	engine, store := newTestEngine(t)
	student, termOne := seedStudentFee(t, store, 15000)
	_ = termOne

	pay(t, engine, student, termOne, 6000)

	summary, err := engine.Summary(context.Background(), student.ID)
	require.NoError(t, err)

	assert.Equal(t, school.Term("TERM ONE 2026"), summary.CurrentTerm)
	assert.True(t, summary.CurrentTermBalance.Equal(school.NewMoneyFromInt(9000)))
}

func TestSummary_UnknownStudent_NotFound(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.Summary(context.Background(), "missing")
	assert.True(t, school.IsNotFound(err))
}
