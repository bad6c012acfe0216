/*
Package school provides the shared domain model for the school
administration engine.

PURPOSE:
  This package contains the entities and collaborator interfaces shared by
  the fee ledger engine (ledger package) and the progression engine
  (progression package). It has no persistence or transport code of its
  own - those live in store/sqlite and api.

KEY CONCEPTS IN THIS FILE (types.go):
  - Student/Grade/Guardian: who owes and where they sit in the school
  - Fee: the obligation for one (grade, term) pair
  - FeePayment: one payment event against a fee, with derived balance/status
  - FeeCredit: a student-held credit minted from an overpayment
  - FeeLedger: the mutable per-(student, fee) aggregate the ledger maintains
  - StudentProgression: an append-only grade-transition audit record

DESIGN PRINCIPLES:
  1. Precision: all money is decimal.Decimal, never float
  2. Type safety: strong ID types prevent mixing student/fee/grade ids
  3. Derived state is written transactionally, never patched ad hoc
  4. Progression records are append-only - corrections get new rows

SEE ALSO:
  - money.go: decimal helpers
  - term.go: term labels and the month-to-term default
  - store.go: persistence collaborator interfaces
  - errors.go: error kinds and classifiers
*/
package school

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	StudentID     string
	GradeID       string
	GuardianID    string
	FeeID         string
	PaymentID     string
	CreditID      string
	ProgressionID string
)

// =============================================================================
// STUDENT
// =============================================================================

type StudentStatus string

const (
	StudentActive      StudentStatus = "active"
	StudentGraduated   StudentStatus = "graduated"
	StudentTransferred StudentStatus = "transferred"
	StudentWithdrawn   StudentStatus = "withdrawn"
)

// Student is one enrolled learner. GradeID and Status are mutated by the
// progression engine; identity fields by the enrollment flow.
type Student struct {
	ID           StudentID
	AdmissionNo  string // unique, school-assigned
	FirstName    string
	MiddleName   string
	LastName     string
	Gender       string
	GradeID      GradeID
	GuardianID   GuardianID
	AcademicYear string
	Status       StudentStatus
	EnrolledAt   time.Time
	GraduatedAt  *time.Time // set when Status becomes graduated
}

func (s Student) FullName() string {
	name := s.FirstName
	if s.MiddleName != "" {
		name += " " + s.MiddleName
	}
	return name + " " + s.LastName
}

// =============================================================================
// GRADE & GUARDIAN
// =============================================================================

// Grade is an ordered level. Ordering by Level defines "next grade" for
// progression. Immutable once referenced by students or fees.
type Grade struct {
	ID    GradeID
	Level int
	Name  string
}

type Guardian struct {
	ID         GuardianID
	FirstName  string
	MiddleName string
	LastName   string
	Phone      string // unique, used for find-or-create on enrollment
}

// =============================================================================
// FEE - Obligation for a (grade, term) pair
// =============================================================================

// Fee is the total owed by every student in GradeID for Term.
// Fee amounts are not per-student.
type Fee struct {
	ID      FeeID
	GradeID GradeID
	Term    Term
	Amount  decimal.Decimal
	DueDate time.Time
}

// =============================================================================
// FEE PAYMENT - One payment event
// =============================================================================

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

// FeePayment records one installment. Balance and Status are derived from
// the cumulative total across ALL rows for the same (student, fee) pair;
// every sibling row carries the same values.
type FeePayment struct {
	ID          PaymentID
	StudentID   StudentID
	FeeID       FeeID
	AmountPaid  decimal.Decimal
	Balance     decimal.Decimal // fee amount minus cumulative paid, floored at zero
	Status      PaymentStatus
	PaymentDate time.Time
	CreatedAt   time.Time
}

// =============================================================================
// FEE CREDIT - Overpayment held for future use
// =============================================================================

type CreditStatus string

const (
	CreditAvailable CreditStatus = "available"
	CreditApplied   CreditStatus = "applied"
)

// FeeCredit is minted automatically when a payment pushes the cumulative
// total past the fee amount. At most one available credit exists per
// originating payment: editing the payment replaces it, deleting removes it.
type FeeCredit struct {
	ID             CreditID
	StudentID      StudentID
	FromPaymentID  PaymentID
	AppliedToFeeID *FeeID
	Amount         decimal.Decimal
	Status         CreditStatus
	Notes          string
	CreatedAt      time.Time
}

// =============================================================================
// FEE LEDGER - Per-(student, fee) aggregate
// =============================================================================

// FeeLedger is the authoritative derived state for one (student, fee)
// pair. It is upserted in the same transaction as every payment mutation;
// payment rows mirror Status and Balance from it.
type FeeLedger struct {
	StudentID StudentID
	FeeID     FeeID
	TotalPaid decimal.Decimal
	Balance   decimal.Decimal
	Status    PaymentStatus
	UpdatedAt time.Time
}

// =============================================================================
// STUDENT PROGRESSION - Append-only audit record
// =============================================================================

type ProgressionType string

const (
	Promotion  ProgressionType = "promotion"
	Repetition ProgressionType = "repetition"
	Demotion   ProgressionType = "demotion"
)

// StudentProgression captures one grade transition. Rows are never
// updated or deleted by normal operation - they are the audit log.
type StudentProgression struct {
	ID           ProgressionID
	StudentID    StudentID
	FromGradeID  GradeID
	ToGradeID    GradeID
	AcademicYear string
	Type         ProgressionType
	Notes        string
	ProcessedBy  string
	ProcessedAt  time.Time
}

// =============================================================================
// SYSTEM SETTING - Typed key/value configuration
// =============================================================================

type SettingType string

const (
	SettingString  SettingType = "string"
	SettingInteger SettingType = "integer"
	SettingBoolean SettingType = "boolean"
	SettingJSON    SettingType = "json"
)

// Setting keys used by the engines.
const (
	KeyCurrentAcademicYear = "current_academic_year"
	KeyMaxGradeLevel       = "max_grade_level"
	KeyAutoGraduate        = "auto_graduate_enabled"
	KeyActiveTerm          = "active_term"
	KeyTermPolicyEnabled   = "term_policy_enabled"
)

type Setting struct {
	Key         string
	Value       string
	Type        SettingType
	Description string
	UpdatedAt   time.Time
}
