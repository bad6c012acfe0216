/*
Package ledger implements the fee ledger engine.

PURPOSE:
  Turns a sequence of payment events into per-fee balances, statuses, and
  credit records. This is the part of the system with real invariants:

  1. For a given (student, fee), the cumulative amount paid determines ONE
     status and ONE balance, shared by every payment row for that pair.
  2. Stored balances are never negative; the negative part of an
     overpayment becomes an available FeeCredit instead.
  3. At most one available credit exists per originating payment: editing
     the payment replaces its credit, deleting the payment removes it.

STATUS RULE (canonical three-state):
  balance <= 0                    -> paid
  totalPaid > 0 and balance > 0   -> partial
  otherwise                       -> pending

  While the fully-paid gate is active, "pending" is unreachable at record
  time, but deleting the last payment for a pair brings it back.

ATOMICITY:
  Every mutation reads aggregate sums and then writes derived values. A
  concurrent writer interleaving between the read and the write would
  corrupt balances, so each operation runs as one store transaction and
  is replayed a bounded number of times on conflict (school.RunInTx).

DERIVED STATE:
  The engine computes {totalPaid, balance, status} once per mutation,
  upserts the fee_ledgers aggregate row for the pair, and broadcasts the
  same values to every sibling payment row in the same transaction.

SEE ALSO:
  - balance.go: read-only adjusted-balance and summary views
  - school/errors.go: NotFound / Validation / PolicyViolation kinds
  - store/sqlite: the transactional store this engine drives
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/elimu/school-engine/school"
	"github.com/elimu/school-engine/settings"
)

// Engine executes payment mutations atomically against a TxStore.
type Engine struct {
	store school.TxStore
	clock school.Clock
}

func New(store school.TxStore, clock school.Clock) *Engine {
	if clock == nil {
		clock = school.SystemClock{}
	}
	return &Engine{store: store, clock: clock}
}

// =============================================================================
// INPUTS & RESULTS
// =============================================================================

// RecordPaymentInput is a validated payment event.
type RecordPaymentInput struct {
	StudentID   school.StudentID
	FeeID       school.FeeID
	AmountPaid  decimal.Decimal
	PaymentDate time.Time
}

// PaymentResult is the outcome of a record or edit: the payment row as
// stored, the credit minted by an overpayment (nil otherwise), and the
// aggregate ledger state for the pair after the mutation.
type PaymentResult struct {
	Payment school.FeePayment
	Credit  *school.FeeCredit
	Ledger  school.FeeLedger
}

// =============================================================================
// RECORD PAYMENT
// =============================================================================

// RecordPayment applies one payment event. Rejections, in order:
//   - unknown student or fee            -> not found
//   - negative amount                   -> validation
//   - fee outside the active term       -> policy (when the gate is enabled)
//   - fee already fully paid            -> policy
func (e *Engine) RecordPayment(ctx context.Context, in RecordPaymentInput) (*PaymentResult, error) {
	if in.AmountPaid.IsNegative() {
		return nil, &school.ValidationError{Field: "amount_paid", Message: "amount must not be negative"}
	}
	if in.PaymentDate.IsZero() {
		return nil, &school.ValidationError{Field: "payment_date", Message: "payment date is required"}
	}

	var result *PaymentResult
	err := school.RunInTx(ctx, e.store, func(s school.Store) error {
		if _, err := s.GetStudent(ctx, in.StudentID); err != nil {
			return err
		}
		fee, err := s.GetFee(ctx, in.FeeID)
		if err != nil {
			return err
		}
		if err := e.checkTermPolicy(ctx, s, fee); err != nil {
			return err
		}

		totalPaidBefore, err := s.SumPaid(ctx, in.StudentID, in.FeeID, "")
		if err != nil {
			return err
		}
		if totalPaidBefore.GreaterThanOrEqual(fee.Amount) {
			return school.FullyPaidError(fee.ID)
		}

		state := computeState(fee.Amount, totalPaidBefore.Add(in.AmountPaid))

		payment := school.FeePayment{
			ID:          school.PaymentID(uuid.NewString()),
			StudentID:   in.StudentID,
			FeeID:       in.FeeID,
			AmountPaid:  in.AmountPaid,
			Balance:     state.balance,
			Status:      state.status,
			PaymentDate: in.PaymentDate,
			CreatedAt:   e.clock.Now(),
		}
		if err := s.CreatePayment(ctx, payment); err != nil {
			return err
		}

		credit, err := e.mintCredit(ctx, s, payment, fee, state)
		if err != nil {
			return err
		}

		ledgerRow, err := e.writeDerivedState(ctx, s, in.StudentID, in.FeeID, payment.ID, state)
		if err != nil {
			return err
		}

		result = &PaymentResult{Payment: payment, Credit: credit, Ledger: ledgerRow}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// =============================================================================
// EDIT PAYMENT
// =============================================================================

// EditPayment recomputes the ledger with the edited amount and date. The
// prior-paid sum excludes the row being edited, and any credit previously
// minted from this payment is deleted before a replacement is considered.
func (e *Engine) EditPayment(ctx context.Context, id school.PaymentID, amountPaid decimal.Decimal, paymentDate time.Time) (*PaymentResult, error) {
	if amountPaid.IsNegative() {
		return nil, &school.ValidationError{Field: "amount_paid", Message: "amount must not be negative"}
	}
	if paymentDate.IsZero() {
		return nil, &school.ValidationError{Field: "payment_date", Message: "payment date is required"}
	}

	var result *PaymentResult
	err := school.RunInTx(ctx, e.store, func(s school.Store) error {
		payment, err := s.GetPayment(ctx, id)
		if err != nil {
			return err
		}
		fee, err := s.GetFee(ctx, payment.FeeID)
		if err != nil {
			return err
		}

		totalPaidBefore, err := s.SumPaid(ctx, payment.StudentID, payment.FeeID, payment.ID)
		if err != nil {
			return err
		}
		state := computeState(fee.Amount, totalPaidBefore.Add(amountPaid))

		payment.AmountPaid = amountPaid
		payment.PaymentDate = paymentDate
		payment.Balance = state.balance
		payment.Status = state.status
		if err := s.UpdatePayment(ctx, *payment); err != nil {
			return err
		}

		// Old credit goes first so the pair never holds two credits
		// from the same originating payment.
		if err := s.DeleteCreditsForPayment(ctx, payment.ID); err != nil {
			return err
		}
		credit, err := e.mintCredit(ctx, s, *payment, fee, state)
		if err != nil {
			return err
		}

		ledgerRow, err := e.writeDerivedState(ctx, s, payment.StudentID, payment.FeeID, payment.ID, state)
		if err != nil {
			return err
		}

		result = &PaymentResult{Payment: *payment, Credit: credit, Ledger: ledgerRow}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// =============================================================================
// DELETE PAYMENT
// =============================================================================

// DeletePayment removes the payment and any credit it generated, then
// recomputes balance and status for the remaining sibling rows against
// the new (lower) cumulative total.
func (e *Engine) DeletePayment(ctx context.Context, id school.PaymentID) error {
	return school.RunInTx(ctx, e.store, func(s school.Store) error {
		payment, err := s.GetPayment(ctx, id)
		if err != nil {
			return err
		}
		fee, err := s.GetFee(ctx, payment.FeeID)
		if err != nil {
			return err
		}

		if err := s.DeleteCreditsForPayment(ctx, payment.ID); err != nil {
			return err
		}
		if err := s.DeletePayment(ctx, payment.ID); err != nil {
			return err
		}

		totalPaid, err := s.SumPaid(ctx, payment.StudentID, payment.FeeID, "")
		if err != nil {
			return err
		}
		state := computeState(fee.Amount, totalPaid)

		_, err = e.writeDerivedState(ctx, s, payment.StudentID, payment.FeeID, "", state)
		return err
	})
}

// =============================================================================
// DERIVED STATE
// =============================================================================

// ledgerState is the single derived fact for a (student, fee) pair.
type ledgerState struct {
	totalPaid  decimal.Decimal
	rawBalance decimal.Decimal // may be negative: the overpayment amount
	balance    decimal.Decimal // stored balance, floored at zero
	status     school.PaymentStatus
}

func computeState(feeAmount, totalPaid decimal.Decimal) ledgerState {
	raw := feeAmount.Sub(totalPaid)
	return ledgerState{
		totalPaid:  totalPaid,
		rawBalance: raw,
		balance:    school.FloorZero(raw),
		status:     statusFor(totalPaid, raw),
	}
}

func statusFor(totalPaid, rawBalance decimal.Decimal) school.PaymentStatus {
	switch {
	case rawBalance.LessThanOrEqual(decimal.Zero):
		return school.PaymentPaid
	case totalPaid.IsPositive():
		return school.PaymentPartial
	default:
		return school.PaymentPending
	}
}

// mintCredit creates an available credit for the overpayment portion of
// state, if any.
func (e *Engine) mintCredit(ctx context.Context, s school.Store, payment school.FeePayment, fee *school.Fee, state ledgerState) (*school.FeeCredit, error) {
	if !state.rawBalance.IsNegative() {
		return nil, nil
	}
	credit := school.FeeCredit{
		ID:            school.CreditID(uuid.NewString()),
		StudentID:     payment.StudentID,
		FromPaymentID: payment.ID,
		Amount:        state.rawBalance.Neg(),
		Status:        school.CreditAvailable,
		Notes:         fmt.Sprintf("Credit from overpayment on %s", fee.Term),
		CreatedAt:     e.clock.Now(),
	}
	if err := s.CreateCredit(ctx, credit); err != nil {
		return nil, err
	}
	return &credit, nil
}

// writeDerivedState upserts the aggregate row and broadcasts status and
// balance to every sibling payment row except `exclude`.
func (e *Engine) writeDerivedState(ctx context.Context, s school.Store, studentID school.StudentID, feeID school.FeeID, exclude school.PaymentID, state ledgerState) (school.FeeLedger, error) {
	row := school.FeeLedger{
		StudentID: studentID,
		FeeID:     feeID,
		TotalPaid: state.totalPaid,
		Balance:   state.balance,
		Status:    state.status,
		UpdatedAt: e.clock.Now(),
	}
	if err := s.UpsertFeeLedger(ctx, row); err != nil {
		return row, err
	}
	return row, s.UpdateSiblingState(ctx, studentID, feeID, exclude, state.status, state.balance)
}

// checkTermPolicy rejects payments against fees outside the active term
// when the gate is enabled in settings. Configuration is read through the
// same transaction as the mutation it governs.
func (e *Engine) checkTermPolicy(ctx context.Context, s school.Store, fee *school.Fee) error {
	enabled, err := settings.TermPolicyEnabledIn(ctx, s)
	if err != nil {
		return err
	}
	if !enabled {
		return nil
	}
	active, err := settings.ActiveTermIn(ctx, s, e.clock)
	if err != nil {
		return err
	}
	if fee.Term != active {
		return school.WrongTermError(fee.Term, active)
	}
	return nil
}
