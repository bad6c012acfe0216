/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *DTO:     Response types returned to clients
  - *Response: Complex response wrappers

MONEY:
  All amounts cross the wire as decimal strings ("15000", "2500.50").
  Floats never serialize money.

DATES:
  Payment and due dates use "2006-01-02"; audit timestamps use RFC 3339.

VALIDATION:
  Request structs carry go-playground/validator tags; handlers run the
  shared validator instance before touching the domain.

SEE ALSO:
  - handlers.go: Uses these types
  - school/types.go: The domain model these project
*/
package api

import (
	"time"

	"github.com/elimu/school-engine/ledger"
	"github.com/elimu/school-engine/school"
)

const dateLayout = "2006-01-02"

// =============================================================================
// PAYMENTS
// =============================================================================

type RecordPaymentRequest struct {
	StudentID   string `json:"student_id" validate:"required"`
	FeeID       string `json:"fee_id" validate:"required"`
	AmountPaid  string `json:"amount_paid" validate:"required"`
	PaymentDate string `json:"payment_date" validate:"required"`
}

type EditPaymentRequest struct {
	AmountPaid  string `json:"amount_paid" validate:"required"`
	PaymentDate string `json:"payment_date" validate:"required"`
}

type PaymentDTO struct {
	ID          string `json:"id"`
	StudentID   string `json:"student_id"`
	FeeID       string `json:"fee_id"`
	AmountPaid  string `json:"amount_paid"`
	Balance     string `json:"balance"`
	Status      string `json:"status"`
	PaymentDate string `json:"payment_date"`
	CreatedAt   string `json:"created_at"`
}

type CreditDTO struct {
	ID            string `json:"id"`
	StudentID     string `json:"student_id"`
	FromPaymentID string `json:"from_payment_id"`
	AppliedToFee  string `json:"applied_to_fee_id,omitempty"`
	Amount        string `json:"amount"`
	Status        string `json:"status"`
	Notes         string `json:"notes,omitempty"`
	CreatedAt     string `json:"created_at"`
}

type LedgerDTO struct {
	StudentID string `json:"student_id"`
	FeeID     string `json:"fee_id"`
	TotalPaid string `json:"total_paid"`
	Balance   string `json:"balance"`
	Status    string `json:"status"`
	UpdatedAt string `json:"updated_at"`
}

// PaymentResultResponse is returned by record and edit: the payment row,
// the overpayment credit when one was minted, and the aggregate state.
type PaymentResultResponse struct {
	Payment PaymentDTO `json:"payment"`
	Credit  *CreditDTO `json:"credit,omitempty"`
	Ledger  LedgerDTO  `json:"ledger"`
}

func toPaymentDTO(p school.FeePayment) PaymentDTO {
	return PaymentDTO{
		ID:          string(p.ID),
		StudentID:   string(p.StudentID),
		FeeID:       string(p.FeeID),
		AmountPaid:  p.AmountPaid.String(),
		Balance:     p.Balance.String(),
		Status:      string(p.Status),
		PaymentDate: p.PaymentDate.Format(dateLayout),
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
}

func toCreditDTO(c school.FeeCredit) CreditDTO {
	dto := CreditDTO{
		ID:            string(c.ID),
		StudentID:     string(c.StudentID),
		FromPaymentID: string(c.FromPaymentID),
		Amount:        c.Amount.String(),
		Status:        string(c.Status),
		Notes:         c.Notes,
		CreatedAt:     c.CreatedAt.Format(time.RFC3339),
	}
	if c.AppliedToFeeID != nil {
		dto.AppliedToFee = string(*c.AppliedToFeeID)
	}
	return dto
}

func toLedgerDTO(l school.FeeLedger) LedgerDTO {
	return LedgerDTO{
		StudentID: string(l.StudentID),
		FeeID:     string(l.FeeID),
		TotalPaid: l.TotalPaid.String(),
		Balance:   l.Balance.String(),
		Status:    string(l.Status),
		UpdatedAt: l.UpdatedAt.Format(time.RFC3339),
	}
}

func toPaymentResultResponse(r *ledger.PaymentResult) PaymentResultResponse {
	resp := PaymentResultResponse{
		Payment: toPaymentDTO(r.Payment),
		Ledger:  toLedgerDTO(r.Ledger),
	}
	if r.Credit != nil {
		dto := toCreditDTO(*r.Credit)
		resp.Credit = &dto
	}
	return resp
}

// =============================================================================
// STUDENTS & GUARDIANS
// =============================================================================

type GuardianInput struct {
	FirstName  string `json:"first_name" validate:"required"`
	MiddleName string `json:"middle_name"`
	LastName   string `json:"last_name" validate:"required"`
	Phone      string `json:"phone" validate:"required"`
}

type EnrollStudentRequest struct {
	AdmissionNo  string        `json:"adm_no" validate:"required"`
	FirstName    string        `json:"first_name" validate:"required"`
	MiddleName   string        `json:"middle_name"`
	LastName     string        `json:"last_name" validate:"required"`
	Gender       string        `json:"gender" validate:"omitempty,oneof=male female"`
	GradeID      string        `json:"grade_id" validate:"required"`
	AcademicYear string        `json:"academic_year" validate:"omitempty,len=4,numeric"`
	Guardian     GuardianInput `json:"guardian" validate:"required"`
}

type UpdateStudentRequest struct {
	AdmissionNo string `json:"adm_no" validate:"required"`
	FirstName   string `json:"first_name" validate:"required"`
	MiddleName  string `json:"middle_name"`
	LastName    string `json:"last_name" validate:"required"`
	Gender      string `json:"gender" validate:"omitempty,oneof=male female"`
	GradeID     string `json:"grade_id" validate:"required"`
}

type StudentDTO struct {
	ID           string `json:"id"`
	AdmissionNo  string `json:"adm_no"`
	FullName     string `json:"full_name"`
	FirstName    string `json:"first_name"`
	MiddleName   string `json:"middle_name,omitempty"`
	LastName     string `json:"last_name"`
	Gender       string `json:"gender,omitempty"`
	GradeID      string `json:"grade_id"`
	GuardianID   string `json:"guardian_id,omitempty"`
	AcademicYear string `json:"academic_year"`
	Status       string `json:"status"`
	EnrolledAt   string `json:"enrolled_at"`
	GraduatedAt  string `json:"graduated_at,omitempty"`
}

type GuardianDTO struct {
	ID         string `json:"id"`
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name,omitempty"`
	LastName   string `json:"last_name"`
	Phone      string `json:"phone"`
}

func toStudentDTO(s school.Student) StudentDTO {
	dto := StudentDTO{
		ID:           string(s.ID),
		AdmissionNo:  s.AdmissionNo,
		FullName:     s.FullName(),
		FirstName:    s.FirstName,
		MiddleName:   s.MiddleName,
		LastName:     s.LastName,
		Gender:       s.Gender,
		GradeID:      string(s.GradeID),
		GuardianID:   string(s.GuardianID),
		AcademicYear: s.AcademicYear,
		Status:       string(s.Status),
		EnrolledAt:   s.EnrolledAt.Format(time.RFC3339),
	}
	if s.GraduatedAt != nil {
		dto.GraduatedAt = s.GraduatedAt.Format(time.RFC3339)
	}
	return dto
}

func toGuardianDTO(g school.Guardian) GuardianDTO {
	return GuardianDTO{
		ID:         string(g.ID),
		FirstName:  g.FirstName,
		MiddleName: g.MiddleName,
		LastName:   g.LastName,
		Phone:      g.Phone,
	}
}

// =============================================================================
// GRADES & FEES
// =============================================================================

type CreateGradeRequest struct {
	Level int    `json:"level" validate:"required,min=1"`
	Name  string `json:"name" validate:"required"`
}

type GradeDTO struct {
	ID    string `json:"id"`
	Level int    `json:"level"`
	Name  string `json:"name"`
}

type FeeRequest struct {
	GradeID string `json:"grade_id" validate:"required"`
	Term    string `json:"term" validate:"required"`
	Amount  string `json:"amount" validate:"required"`
	DueDate string `json:"due_date" validate:"required"`
}

type FeeDTO struct {
	ID      string `json:"id"`
	GradeID string `json:"grade_id"`
	Term    string `json:"term"`
	Amount  string `json:"amount"`
	DueDate string `json:"due_date"`
}

func toGradeDTO(g school.Grade) GradeDTO {
	return GradeDTO{ID: string(g.ID), Level: g.Level, Name: g.Name}
}

func toFeeDTO(f school.Fee) FeeDTO {
	return FeeDTO{
		ID:      string(f.ID),
		GradeID: string(f.GradeID),
		Term:    string(f.Term),
		Amount:  f.Amount.String(),
		DueDate: f.DueDate.Format(dateLayout),
	}
}

// =============================================================================
// BALANCES
// =============================================================================

type BalanceDTO struct {
	StudentID       string `json:"student_id"`
	FeeID           string `json:"fee_id"`
	RawBalance      string `json:"raw_balance"`
	AvailableCredit string `json:"available_credit"`
	CreditApplied   string `json:"credit_applied"`
	AdjustedBalance string `json:"adjusted_balance"`
}

type StudentSummaryDTO struct {
	StudentID          string `json:"student_id"`
	TotalPaid          string `json:"total_paid"`
	TotalBalance       string `json:"total_balance"`
	AvailableCredits   string `json:"available_credits"`
	AppliedCredits     string `json:"applied_credits"`
	CurrentTerm        string `json:"current_term"`
	CurrentTermBalance string `json:"current_term_balance"`
}

type CreditTotalsDTO struct {
	Available string `json:"available"`
	Applied   string `json:"applied"`
}

func toBalanceDTO(b *ledger.BalanceView) BalanceDTO {
	return BalanceDTO{
		StudentID:       string(b.StudentID),
		FeeID:           string(b.FeeID),
		RawBalance:      b.RawBalance.String(),
		AvailableCredit: b.AvailableCredit.String(),
		CreditApplied:   b.CreditApplied.String(),
		AdjustedBalance: b.AdjustedBalance.String(),
	}
}

func toStudentSummaryDTO(s *ledger.StudentSummary) StudentSummaryDTO {
	return StudentSummaryDTO{
		StudentID:          string(s.StudentID),
		TotalPaid:          s.TotalPaid.String(),
		TotalBalance:       s.TotalBalance.String(),
		AvailableCredits:   s.AvailableCredits.String(),
		AppliedCredits:     s.AppliedCredits.String(),
		CurrentTerm:        string(s.CurrentTerm),
		CurrentTermBalance: s.CurrentTermBalance.String(),
	}
}

// =============================================================================
// PROGRESSION
// =============================================================================

type PromoteStudentRequest struct {
	ToGradeID string `json:"to_grade_id" validate:"required"`
	Type      string `json:"type" validate:"omitempty,oneof=promotion repetition demotion"`
	Notes     string `json:"notes"`
}

type PromoteGradeRequest struct {
	FromGradeID string `json:"from_grade_id" validate:"required"`
	ToGradeID   string `json:"to_grade_id" validate:"required"`
	Notes       string `json:"notes"`
}

type PromoteAllRequest struct {
	Notes string `json:"notes"`
}

type ProgressionNoteRequest struct {
	Notes string `json:"notes"`
}

type StartYearRequest struct {
	NewYear         string `json:"new_year" validate:"required,len=4,numeric"`
	PromoteStudents bool   `json:"promote_students"`
}

type ProgressionDTO struct {
	ID           string `json:"id"`
	StudentID    string `json:"student_id"`
	FromGradeID  string `json:"from_grade_id"`
	ToGradeID    string `json:"to_grade_id"`
	AcademicYear string `json:"academic_year"`
	Type         string `json:"type"`
	Notes        string `json:"notes,omitempty"`
	ProcessedBy  string `json:"processed_by"`
	ProcessedAt  string `json:"processed_at"`
}

func toProgressionDTO(p school.StudentProgression) ProgressionDTO {
	return ProgressionDTO{
		ID:           string(p.ID),
		StudentID:    string(p.StudentID),
		FromGradeID:  string(p.FromGradeID),
		ToGradeID:    string(p.ToGradeID),
		AcademicYear: p.AcademicYear,
		Type:         string(p.Type),
		Notes:        p.Notes,
		ProcessedBy:  p.ProcessedBy,
		ProcessedAt:  p.ProcessedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// SETTINGS
// =============================================================================

type PutSettingRequest struct {
	Value       string `json:"value" validate:"required"`
	Type        string `json:"type" validate:"required,oneof=string integer boolean json"`
	Description string `json:"description"`
}

type SettingDTO struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	UpdatedAt   string `json:"updated_at"`
}

func toSettingDTO(s school.Setting) SettingDTO {
	return SettingDTO{
		Key:         s.Key,
		Value:       s.Value,
		Type:        string(s.Type),
		Description: s.Description,
		UpdatedAt:   s.UpdatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// DASHBOARD
// =============================================================================

type DashboardDTO struct {
	ActiveStudents   int            `json:"active_students"`
	TotalCollected   string         `json:"total_collected"`
	PaymentsByStatus map[string]int `json:"payments_by_status"`
	AvailableCredits string         `json:"available_credits"`
	AppliedCredits   string         `json:"applied_credits"`
}

// ErrorDTO is the uniform error envelope.
type ErrorDTO struct {
	Error string `json:"error"`
}
