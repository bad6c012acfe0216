package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elimu/school-engine/ledger"
	"github.com/elimu/school-engine/school"
	"github.com/elimu/school-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*ledger.Engine, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return ledger.New(store, school.FixedClock{T: testNow}), store
}

// seedStudentFee creates a grade, an enrolled student, and a term-one
// fee of the given amount for that grade.
func seedStudentFee(t *testing.T, store *sqlite.Store, amount int) (school.Student, school.Fee) {
	t.Helper()
	ctx := context.Background()

	grade := school.Grade{ID: school.GradeID(uuid.NewString()), Level: 1, Name: "Grade 1"}
	require.NoError(t, store.SaveGrade(ctx, grade))

	student := school.Student{
		ID:           school.StudentID(uuid.NewString()),
		AdmissionNo:  "ADM-" + uuid.NewString()[:8],
		FirstName:    "Amina",
		LastName:     "Odhiambo",
		GradeID:      grade.ID,
		AcademicYear: "2026",
		Status:       school.StudentActive,
		EnrolledAt:   testNow,
	}
	require.NoError(t, store.SaveStudent(ctx, student))

	fee := school.Fee{
		ID:      school.FeeID(uuid.NewString()),
		GradeID: grade.ID,
		Term:    school.Term("TERM ONE 2026"),
		Amount:  school.NewMoneyFromInt(amount),
		DueDate: testNow,
	}
	require.NoError(t, store.SaveFee(ctx, fee))

	return student, fee
}

func pay(t *testing.T, e *ledger.Engine, student school.Student, fee school.Fee, amount int) *ledger.PaymentResult {
	t.Helper()
	result, err := e.RecordPayment(context.Background(), ledger.RecordPaymentInput{
		StudentID:   student.ID,
		FeeID:       fee.ID,
		AmountPaid:  school.NewMoneyFromInt(amount),
		PaymentDate: testNow,
	})
	require.NoError(t, err)
	return result
}

// =============================================================================
// RECORD PAYMENT
// =============================================================================

func TestRecordPayment_Lifecycle(t *testing.T) {
	// GIVEN: A 15000 fee with no payments
	// WHEN: Paying 10000, then 5000
	// THEN: Status moves partial -> paid with balances 5000 -> 0

	engine, store := newTestEngine(t)
	student, fee := seedStudentFee(t, store, 15000)

	first := pay(t, engine, student, fee, 10000)
	assert.Equal(t, school.PaymentPartial, first.Ledger.Status)
	assert.True(t, first.Ledger.Balance.Equal(school.NewMoneyFromInt(5000)),
		"balance should be 5000, got %s", first.Ledger.Balance)
	assert.Nil(t, first.Credit, "partial payment should not mint a credit")

	second := pay(t, engine, student, fee, 5000)
	assert.Equal(t, school.PaymentPaid, second.Ledger.Status)
	assert.True(t, second.Ledger.Balance.IsZero())
	assert.True(t, second.Ledger.TotalPaid.Equal(school.NewMoneyFromInt(15000)))
}

func TestRecordPayment_Overpayment_MintsCredit(t *testing.T) {
	// GIVEN: A 15000 fee
	// WHEN: Paying 18000 in one payment
	// THEN: Status is paid, stored balance is zero (never negative), and
	//       a 3000 credit is minted referencing the payment

	engine, store := newTestEngine(t)
	student, fee := seedStudentFee(t, store, 15000)

	result := pay(t, engine, student, fee, 18000)

	assert.Equal(t, school.PaymentPaid, result.Ledger.Status)
	assert.True(t, result.Ledger.Balance.IsZero(), "stored balance must floor at zero")

	require.NotNil(t, result.Credit)
	assert.True(t, result.Credit.Amount.Equal(school.NewMoneyFromInt(3000)))
	assert.Equal(t, school.CreditAvailable, result.Credit.Status)
	assert.Equal(t, result.Payment.ID, result.Credit.FromPaymentID)
	assert.Equal(t, "Credit from overpayment on TERM ONE 2026", result.Credit.Notes)
}

func TestRecordPayment_SiblingRowsMirrorState(t *testing.T) {
	// GIVEN: Two payments on the same (student, fee)
	// WHEN: Listing the payment rows
	// THEN: Every row carries the same status and balance as the ledger

	engine, store := newTestEngine(t)
	student, fee := seedStudentFee(t, store, 15000)
	ctx := context.Background()

	pay(t, engine, student, fee, 4000)
	result := pay(t, engine, student, fee, 11000)

	rows, err := store.ListPayments(ctx, school.PaymentFilter{StudentID: &student.ID, FeeID: &fee.ID})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, result.Ledger.Status, row.Status)
		assert.True(t, row.Balance.Equal(result.Ledger.Balance),
			"row balance %s != ledger balance %s", row.Balance, result.Ledger.Balance)
	}
}

func TestRecordPayment_FullyPaidFee_Rejected(t *testing.T) {
	// GIVEN: A fee already paid in full
	// WHEN: Recording another payment
	// THEN: Rejected as a policy violation

	engine, store := newTestEngine(t)
	student, fee := seedStudentFee(t, store, 10000)

	pay(t, engine, student, fee, 10000)

	_, err := engine.RecordPayment(context.Background(), ledger.RecordPaymentInput{
		StudentID:   student.ID,
		FeeID:       fee.ID,
		AmountPaid:  school.NewMoneyFromInt(1),
		PaymentDate: testNow,
	})
	assert.True(t, school.IsPolicyViolation(err), "expected policy violation, got %v", err)
}

func TestRecordPayment_NegativeAmount_Rejected(t *testing.T) {
	engine, store := newTestEngine(t)
	student, fee := seedStudentFee(t, store, 10000)

	_, err := engine.RecordPayment(context.Background(), ledger.RecordPaymentInput{
		StudentID:   student.ID,
		FeeID:       fee.ID,
		AmountPaid:  school.NewMoneyFromInt(-500),
		PaymentDate: testNow,
	})
	assert.True(t, school.IsValidation(err), "expected validation error, got %v", err)
}

func TestRecordPayment_UnknownStudent_NotFound(t *testing.T) {
	engine, store := newTestEngine(t)
	_, fee := seedStudentFee(t, store, 10000)

	_, err := engine.RecordPayment(context.Background(), ledger.RecordPaymentInput{
		StudentID:   "missing",
		FeeID:       fee.ID,
		AmountPaid:  school.NewMoneyFromInt(100),
		PaymentDate: testNow,
	})
	assert.True(t, school.IsNotFound(err))
}

func TestRecordPayment_WrongTerm_RejectedWhenGateEnabled(t *testing.T) {
	// GIVEN: The term policy gate enabled with TERM TWO active
	// WHEN: Paying a TERM ONE fee
	// THEN: Rejected as a policy violation

	engine, store := newTestEngine(t)
	student, fee := seedStudentFee(t, store, 10000)
	ctx := context.Background()

	require.NoError(t, store.PutSetting(ctx, school.Setting{
		Key: school.KeyTermPolicyEnabled, Value: "true",
		Type: school.SettingBoolean, UpdatedAt: testNow,
	}))
	require.NoError(t, store.PutSetting(ctx, school.Setting{
		Key: school.KeyActiveTerm, Value: "TERM TWO 2026",
		Type: school.SettingString, UpdatedAt: testNow,
	}))

	_, err := engine.RecordPayment(ctx, ledger.RecordPaymentInput{
		StudentID:   student.ID,
		FeeID:       fee.ID,
		AmountPaid:  school.NewMoneyFromInt(100),
		PaymentDate: testNow,
	})
	assert.True(t, school.IsPolicyViolation(err), "expected policy violation, got %v", err)
}

// =============================================================================
// EDIT PAYMENT
// =============================================================================

func TestEditPayment_RecomputesFromRemainingRows(t *testing.T) {
	// GIVEN: Payments of 10000 and 5000 on a 15000 fee (paid)
	// WHEN: Editing the second payment down to 2000
	// THEN: The pair recomputes to partial with a 3000 balance

	engine, store := newTestEngine(t)
	student, fee := seedStudentFee(t, store, 15000)

	pay(t, engine, student, fee, 10000)
	second := pay(t, engine, student, fee, 5000)

	result, err := engine.EditPayment(context.Background(), second.Payment.ID,
		school.NewMoneyFromInt(2000), testNow)
	require.NoError(t, err)

	assert.Equal(t, school.PaymentPartial, result.Ledger.Status)
	assert.True(t, result.Ledger.Balance.Equal(school.NewMoneyFromInt(3000)))
	assert.True(t, result.Payment.AmountPaid.Equal(school.NewMoneyFromInt(2000)))
}

func TestEditPayment_RegeneratesCredit(t *testing.T) {
	// GIVEN: An 18000 payment on a 15000 fee (3000 credit)
	// WHEN: Editing the payment to 16000
	// THEN: The old credit is replaced by a single 1000 credit

	engine, store := newTestEngine(t)
	student, fee := seedStudentFee(t, store, 15000)
	ctx := context.Background()

	first := pay(t, engine, student, fee, 18000)
	require.NotNil(t, first.Credit)

	result, err := engine.EditPayment(ctx, first.Payment.ID,
		school.NewMoneyFromInt(16000), testNow)
	require.NoError(t, err)

	require.NotNil(t, result.Credit)
	assert.True(t, result.Credit.Amount.Equal(school.NewMoneyFromInt(1000)))

	credits, err := store.ListCredits(ctx, school.CreditFilter{StudentID: &student.ID})
	require.NoError(t, err)
	assert.Len(t, credits, 1, "edit must replace the old credit, not accumulate")
}

func TestEditPayment_DropBelowFee_RemovesCredit(t *testing.T) {
	// GIVEN: An overpayment with a credit
	// WHEN: Editing the payment below the fee amount
	// THEN: No credit remains

	engine, store := newTestEngine(t)
	student, fee := seedStudentFee(t, store, 15000)
	ctx := context.Background()

	first := pay(t, engine, student, fee, 18000)

	result, err := engine.EditPayment(ctx, first.Payment.ID,
		school.NewMoneyFromInt(9000), testNow)
	require.NoError(t, err)

	assert.Nil(t, result.Credit)
	assert.Equal(t, school.PaymentPartial, result.Ledger.Status)

	credits, err := store.ListCredits(ctx, school.CreditFilter{StudentID: &student.ID})
	require.NoError(t, err)
	assert.Empty(t, credits)
}

// =============================================================================
// DELETE PAYMENT
// =============================================================================

func TestDeletePayment_RecomputesSiblings(t *testing.T) {
	// GIVEN: Payments of 10000 and 5000 on a 15000 fee (paid)
	// WHEN: Deleting the 5000 payment
	// THEN: The remaining row and ledger show partial with balance 5000

	engine, store := newTestEngine(t)
	student, fee := seedStudentFee(t, store, 15000)
	ctx := context.Background()

	first := pay(t, engine, student, fee, 10000)
	second := pay(t, engine, student, fee, 5000)

	require.NoError(t, engine.DeletePayment(ctx, second.Payment.ID))

	remaining, err := store.GetPayment(ctx, first.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, school.PaymentPartial, remaining.Status)
	assert.True(t, remaining.Balance.Equal(school.NewMoneyFromInt(5000)))

	l, err := store.GetFeeLedger(ctx, student.ID, fee.ID)
	require.NoError(t, err)
	assert.Equal(t, school.PaymentPartial, l.Status)
	assert.True(t, l.TotalPaid.Equal(school.NewMoneyFromInt(10000)))
}

func TestDeletePayment_RemovesItsCredit(t *testing.T) {
	// GIVEN: An overpayment that minted a credit
	// WHEN: Deleting the payment
	// THEN: The credit is gone and the ledger returns to pending

	engine, store := newTestEngine(t)
	student, fee := seedStudentFee(t, store, 15000)
	ctx := context.Background()

	result := pay(t, engine, student, fee, 18000)
	require.NotNil(t, result.Credit)

	require.NoError(t, engine.DeletePayment(ctx, result.Payment.ID))

	credits, err := store.ListCredits(ctx, school.CreditFilter{StudentID: &student.ID})
	require.NoError(t, err)
	assert.Empty(t, credits)

	l, err := store.GetFeeLedger(ctx, student.ID, fee.ID)
	require.NoError(t, err)
	assert.Equal(t, school.PaymentPending, l.Status)
	assert.True(t, l.TotalPaid.IsZero())
}

func TestDeletePayment_Unknown_NotFound(t *testing.T) {
	engine, _ := newTestEngine(t)
	err := engine.DeletePayment(context.Background(), "missing")
	assert.True(t, school.IsNotFound(err))
}
