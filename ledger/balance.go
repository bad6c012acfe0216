/*
balance.go - Read-only balance views

PURPOSE:
  Presentation-layer aggregation over the ledger. Nothing here mutates;
  the formulas must match the engine's exactly so dashboards and tests
  agree with the stored state.

FORMULAS:
  rawBalance      = max(0, fee.amount - totalPaid)
  adjustedBalance = max(0, rawBalance - availableCredit)
  creditApplied   = min(rawBalance, availableCredit)
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/elimu/school-engine/school"
	"github.com/elimu/school-engine/settings"
)

// BalanceView reports how far a student's available credit would go
// against one fee, without applying it.
type BalanceView struct {
	StudentID       school.StudentID
	FeeID           school.FeeID
	RawBalance      decimal.Decimal
	AvailableCredit decimal.Decimal
	CreditApplied   decimal.Decimal
	AdjustedBalance decimal.Decimal
}

// AdjustedBalance subtracts the student's total available credit from the
// fee's raw balance, floored at zero, and reports how much of the credit
// was actually absorbed.
func (e *Engine) AdjustedBalance(ctx context.Context, studentID school.StudentID, feeID school.FeeID) (*BalanceView, error) {
	if _, err := e.store.GetStudent(ctx, studentID); err != nil {
		return nil, err
	}
	fee, err := e.store.GetFee(ctx, feeID)
	if err != nil {
		return nil, err
	}

	paid, err := e.store.SumPaid(ctx, studentID, feeID, "")
	if err != nil {
		return nil, err
	}
	available, err := e.store.SumCredits(ctx, studentID, school.CreditAvailable)
	if err != nil {
		return nil, err
	}

	raw := school.FloorZero(fee.Amount.Sub(paid))
	applied := decimal.Min(raw, available)

	return &BalanceView{
		StudentID:       studentID,
		FeeID:           feeID,
		RawBalance:      raw,
		AvailableCredit: available,
		CreditApplied:   applied,
		AdjustedBalance: school.FloorZero(raw.Sub(available)),
	}, nil
}

// StudentSummary is the per-student financial rollup shown on the
// student detail screen.
type StudentSummary struct {
	StudentID          school.StudentID
	TotalPaid          decimal.Decimal
	TotalBalance       decimal.Decimal // sum of per-fee balances, one per pair
	AvailableCredits   decimal.Decimal
	AppliedCredits     decimal.Decimal
	CurrentTerm        school.Term
	CurrentTermBalance decimal.Decimal // max(0, fee - paid - availableCredit)
}

// Summary aggregates a student's payments, per-fee balances, credits, and
// the credit-adjusted balance for the active term's fee (zero when the
// student's grade has no fee for that term).
func (e *Engine) Summary(ctx context.Context, studentID school.StudentID) (*StudentSummary, error) {
	student, err := e.store.GetStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	payments, err := e.store.ListPayments(ctx, school.PaymentFilter{StudentID: &studentID})
	if err != nil {
		return nil, err
	}
	totalPaid := decimal.Zero
	for _, p := range payments {
		totalPaid = totalPaid.Add(p.AmountPaid)
	}

	// Balance is a per-(student, fee) fact; summing payment rows would
	// count each pair once per installment. The aggregate rows count
	// each pair exactly once.
	ledgers, err := e.store.ListFeeLedgers(ctx, studentID)
	if err != nil {
		return nil, err
	}
	totalBalance := decimal.Zero
	for _, l := range ledgers {
		totalBalance = totalBalance.Add(l.Balance)
	}

	available, err := e.store.SumCredits(ctx, studentID, school.CreditAvailable)
	if err != nil {
		return nil, err
	}
	applied, err := e.store.SumCredits(ctx, studentID, school.CreditApplied)
	if err != nil {
		return nil, err
	}

	summary := &StudentSummary{
		StudentID:          studentID,
		TotalPaid:          totalPaid,
		TotalBalance:       totalBalance,
		AvailableCredits:   available,
		AppliedCredits:     applied,
		CurrentTermBalance: decimal.Zero,
	}

	term, err := settings.ActiveTermIn(ctx, e.store, e.clock)
	if err != nil {
		return nil, err
	}
	summary.CurrentTerm = term

	fee, err := e.store.FeeForGradeTerm(ctx, student.GradeID, term)
	if err != nil {
		if school.IsNotFound(err) {
			return summary, nil
		}
		return nil, err
	}
	paidForFee, err := e.store.SumPaid(ctx, studentID, fee.ID, "")
	if err != nil {
		return nil, err
	}
	summary.CurrentTermBalance = school.FloorZero(fee.Amount.Sub(paidForFee).Sub(available))
	return summary, nil
}
