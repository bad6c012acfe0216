/*
store.go - Persistence collaborator interfaces

PURPOSE:
  Defines the interface between the engines and the database. The engines
  never touch SQL; they read and write through these interfaces, and every
  multi-step mutation runs inside WithTx so either all read-then-write
  steps commit together or none do.

KEY INTERFACES:
  Store:   All entity persistence, aggregate sums, and filtered counts
  TxStore: Store plus WithTx for atomic multi-write operations

AGGREGATE SUMS:
  SumPaid and SumCredits are the aggregate-sum queries the ledger depends
  on. Implementations must add decimal values exactly (load rows and add
  in Go); SQL arithmetic over floats is not acceptable for money.

CONCURRENCY:
  Two requests racing on the same (student, fee) or the same student are
  the only concurrency concern. Implementations surface a conflicting
  commit as ErrConflict; RunInTx replays the whole operation a bounded
  number of times, which is safe because every engine operation is
  idempotent given the same inputs.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store
*/
package school

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// FILTERS
// =============================================================================

type StudentFilter struct {
	GradeID      *GradeID
	AcademicYear *string
	Status       *StudentStatus
}

type FeeFilter struct {
	GradeID *GradeID
	Term    *Term
}

type PaymentFilter struct {
	StudentID *StudentID
	FeeID     *FeeID
	Status    *PaymentStatus
}

type CreditFilter struct {
	StudentID *StudentID
	Status    *CreditStatus
}

// =============================================================================
// STORE - Entity persistence plus aggregate queries
// =============================================================================

// Store is the persistence collaborator. Missing references surface as
// *NotFoundError (and satisfy errors.Is(err, ErrNotFound)).
type Store interface {
	// Students
	GetStudent(ctx context.Context, id StudentID) (*Student, error)
	SaveStudent(ctx context.Context, s Student) error
	UpdateStudent(ctx context.Context, s Student) error
	// DeleteStudent is unguarded at this layer; callers must check
	// CountPaymentsByStudent first (students are never hard-deleted
	// while payments reference them).
	DeleteStudent(ctx context.Context, id StudentID) error
	ListStudents(ctx context.Context, f StudentFilter) ([]Student, error)
	// UpdateActiveStudentsYear stamps every active student with the new
	// academic year. Returns the number of students updated.
	UpdateActiveStudentsYear(ctx context.Context, newYear string) (int, error)
	CountGraduatedInYear(ctx context.Context, year string) (int, error)

	// Grades (ordered by level ascending)
	GetGrade(ctx context.Context, id GradeID) (*Grade, error)
	SaveGrade(ctx context.Context, g Grade) error
	ListGrades(ctx context.Context) ([]Grade, error)

	// Guardians
	GetGuardian(ctx context.Context, id GuardianID) (*Guardian, error)
	FindGuardianByPhone(ctx context.Context, phone string) (*Guardian, error)
	SaveGuardian(ctx context.Context, g Guardian) error

	// Fees
	GetFee(ctx context.Context, id FeeID) (*Fee, error)
	SaveFee(ctx context.Context, f Fee) error
	UpdateFee(ctx context.Context, f Fee) error
	DeleteFee(ctx context.Context, id FeeID) error
	ListFees(ctx context.Context, f FeeFilter) ([]Fee, error)
	// FeeForGradeTerm returns the single fee for a (grade, term) pair.
	FeeForGradeTerm(ctx context.Context, gradeID GradeID, term Term) (*Fee, error)

	// Payments
	GetPayment(ctx context.Context, id PaymentID) (*FeePayment, error)
	CreatePayment(ctx context.Context, p FeePayment) error
	UpdatePayment(ctx context.Context, p FeePayment) error
	DeletePayment(ctx context.Context, id PaymentID) error
	ListPayments(ctx context.Context, f PaymentFilter) ([]FeePayment, error)
	// SumPaid is the cumulative amount paid on a (student, fee) pair,
	// excluding the given payment id when non-empty (edit path).
	SumPaid(ctx context.Context, studentID StudentID, feeID FeeID, exclude PaymentID) (decimal.Decimal, error)
	// UpdateSiblingState broadcasts the freshly computed status and
	// balance to every payment row for the pair except `exclude`.
	UpdateSiblingState(ctx context.Context, studentID StudentID, feeID FeeID, exclude PaymentID, status PaymentStatus, balance decimal.Decimal) error
	CountPaymentsByStudent(ctx context.Context, id StudentID) (int, error)
	TotalCollected(ctx context.Context) (decimal.Decimal, error)
	CountPaymentsByStatus(ctx context.Context) (map[PaymentStatus]int, error)

	// Credits
	CreateCredit(ctx context.Context, c FeeCredit) error
	// DeleteCreditsForPayment removes every credit minted from a payment.
	DeleteCreditsForPayment(ctx context.Context, paymentID PaymentID) error
	ListCredits(ctx context.Context, f CreditFilter) ([]FeeCredit, error)
	SumCredits(ctx context.Context, studentID StudentID, status CreditStatus) (decimal.Decimal, error)
	SumCreditsByStatus(ctx context.Context, status CreditStatus) (decimal.Decimal, error)

	// Fee ledger aggregate
	UpsertFeeLedger(ctx context.Context, l FeeLedger) error
	GetFeeLedger(ctx context.Context, studentID StudentID, feeID FeeID) (*FeeLedger, error)
	ListFeeLedgers(ctx context.Context, studentID StudentID) ([]FeeLedger, error)

	// Progressions (append-only: no update, no delete)
	CreateProgression(ctx context.Context, p StudentProgression) error
	ListProgressions(ctx context.Context, academicYear string) ([]StudentProgression, error)
	CountProgressions(ctx context.Context, academicYear string, t ProgressionType) (int, error)

	// Settings
	GetSetting(ctx context.Context, key string) (*Setting, error)
	PutSetting(ctx context.Context, s Setting) error
	ListSettings(ctx context.Context) ([]Setting, error)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error
	// the transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// TxAttempts bounds the automatic replay of a conflicted transaction.
const TxAttempts = 3

// RunInTx executes fn atomically, retrying on retryable conflicts.
// Engine operations are recomputations from stored state, so replaying
// the whole closure with the same inputs is safe.
func RunInTx(ctx context.Context, ts TxStore, fn func(Store) error) error {
	var err error
	for attempt := 0; attempt < TxAttempts; attempt++ {
		err = ts.WithTx(ctx, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %d attempts exhausted: %v", ErrTransactionFailed, TxAttempts, err)
}

// =============================================================================
// CLOCK & IDENTITY COLLABORATORS
// =============================================================================

// Clock supplies "now" so engines are testable against fixed dates.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant. Test helper.
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }

type actorKey struct{}

// WithActor attaches the acting user's identifier to the context for
// audit attribution on progression records.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the acting user, defaulting to "system".
func ActorFrom(ctx context.Context) string {
	if a, ok := ctx.Value(actorKey{}).(string); ok && a != "" {
		return a
	}
	return "system"
}
