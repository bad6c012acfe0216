/*
handlers.go - HTTP handler implementations

PURPOSE:
  Exposes the fee ledger and progression engines via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to domain
  logic. Domain rules live in ledger/ and progression/; handlers only
  decode, validate, dispatch, and encode.

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (go-playground/validator)
  3. Call domain logic (ledger, progression, settings)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Policy violations (wrong term, fully paid, guarded delete)
  - 500: Internal errors

ACTOR:
  The X-Actor header identifies who performed a mutation; actorMiddleware
  in server.go threads it through the request context so progression
  records carry it.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/elimu/school-engine/ledger"
	"github.com/elimu/school-engine/progression"
	"github.com/elimu/school-engine/school"
	"github.com/elimu/school-engine/settings"
)

// Handler holds dependencies for all HTTP handlers.
type Handler struct {
	store    school.TxStore
	ledger   *ledger.Engine
	progress *progression.Engine
	settings *settings.Service
	clock    school.Clock
	validate *validator.Validate
}

// NewHandler creates a handler with all engines wired to the given store.
func NewHandler(store school.TxStore, clock school.Clock) *Handler {
	return &Handler{
		store:    store,
		ledger:   ledger.New(store, clock),
		progress: progression.New(store, clock),
		settings: settings.New(store, clock),
		clock:    clock,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorDTO{Error: message})
}

// writeDomainError maps domain error kinds to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case school.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case school.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case school.IsPolicyViolation(err):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decode unmarshals and validates a request body in one step.
func (h *Handler) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &school.ValidationError{Field: "body", Message: "invalid JSON"}
	}
	if err := h.validate.Struct(v); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			e := errs[0]
			return &school.ValidationError{
				Field:   e.Field(),
				Message: fmt.Sprintf("failed %q validation", e.Tag()),
			}
		}
		return &school.ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}

func parseAmount(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &school.ValidationError{Field: field, Message: "not a valid amount"}
	}
	return d, nil
}

func parseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, &school.ValidationError{Field: field, Message: "expected YYYY-MM-DD"}
	}
	return t, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	var req RecordPaymentRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	amount, err := parseAmount("amount_paid", req.AmountPaid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	date, err := parseDate("payment_date", req.PaymentDate)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result, err := h.ledger.RecordPayment(r.Context(), ledger.RecordPaymentInput{
		StudentID:   school.StudentID(req.StudentID),
		FeeID:       school.FeeID(req.FeeID),
		AmountPaid:  amount,
		PaymentDate: date,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentResultResponse(result))
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	var f school.PaymentFilter
	if v := r.URL.Query().Get("student_id"); v != "" {
		id := school.StudentID(v)
		f.StudentID = &id
	}
	if v := r.URL.Query().Get("fee_id"); v != "" {
		id := school.FeeID(v)
		f.FeeID = &id
	}
	if v := r.URL.Query().Get("status"); v != "" {
		st := school.PaymentStatus(v)
		f.Status = &st
	}

	payments, err := h.store.ListPayments(r.Context(), f)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]PaymentDTO, 0, len(payments))
	for _, p := range payments {
		dtos = append(dtos, toPaymentDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	id := school.PaymentID(chi.URLParam(r, "id"))
	payment, err := h.store.GetPayment(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTO(*payment))
}

func (h *Handler) editPayment(w http.ResponseWriter, r *http.Request) {
	id := school.PaymentID(chi.URLParam(r, "id"))
	var req EditPaymentRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	amount, err := parseAmount("amount_paid", req.AmountPaid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	date, err := parseDate("payment_date", req.PaymentDate)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result, err := h.ledger.EditPayment(r.Context(), id, amount, date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResultResponse(result))
}

func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request) {
	id := school.PaymentID(chi.URLParam(r, "id"))
	if err := h.ledger.DeletePayment(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// STUDENTS
// =============================================================================

// enrollStudent creates a student, finding or creating the guardian by
// phone number in the same transaction.
func (h *Handler) enrollStudent(w http.ResponseWriter, r *http.Request) {
	var req EnrollStudentRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	ctx := r.Context()
	var created school.Student
	err := school.RunInTx(ctx, h.store, func(s school.Store) error {
		if _, err := s.GetGrade(ctx, school.GradeID(req.GradeID)); err != nil {
			return err
		}

		guardian, err := s.FindGuardianByPhone(ctx, req.Guardian.Phone)
		if school.IsNotFound(err) {
			guardian = &school.Guardian{
				ID:         school.GuardianID(uuid.NewString()),
				FirstName:  req.Guardian.FirstName,
				MiddleName: req.Guardian.MiddleName,
				LastName:   req.Guardian.LastName,
				Phone:      req.Guardian.Phone,
			}
			if err := s.SaveGuardian(ctx, *guardian); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		year := req.AcademicYear
		if year == "" {
			year, err = settings.CurrentAcademicYearIn(ctx, s, h.clock)
			if err != nil {
				return err
			}
		}

		created = school.Student{
			ID:           school.StudentID(uuid.NewString()),
			AdmissionNo:  req.AdmissionNo,
			FirstName:    req.FirstName,
			MiddleName:   req.MiddleName,
			LastName:     req.LastName,
			Gender:       req.Gender,
			GradeID:      school.GradeID(req.GradeID),
			GuardianID:   guardian.ID,
			AcademicYear: year,
			Status:       school.StudentActive,
			EnrolledAt:   h.clock.Now(),
		}
		return s.SaveStudent(ctx, created)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStudentDTO(created))
}

func (h *Handler) listStudents(w http.ResponseWriter, r *http.Request) {
	var f school.StudentFilter
	if v := r.URL.Query().Get("grade_id"); v != "" {
		id := school.GradeID(v)
		f.GradeID = &id
	}
	if v := r.URL.Query().Get("academic_year"); v != "" {
		f.AcademicYear = &v
	}
	if v := r.URL.Query().Get("status"); v != "" {
		st := school.StudentStatus(v)
		f.Status = &st
	}

	students, err := h.store.ListStudents(r.Context(), f)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]StudentDTO, 0, len(students))
	for _, s := range students {
		dtos = append(dtos, toStudentDTO(s))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) getStudent(w http.ResponseWriter, r *http.Request) {
	id := school.StudentID(chi.URLParam(r, "id"))
	student, err := h.store.GetStudent(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStudentDTO(*student))
}

func (h *Handler) updateStudent(w http.ResponseWriter, r *http.Request) {
	id := school.StudentID(chi.URLParam(r, "id"))
	var req UpdateStudentRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	ctx := r.Context()
	var updated school.Student
	err := school.RunInTx(ctx, h.store, func(s school.Store) error {
		student, err := s.GetStudent(ctx, id)
		if err != nil {
			return err
		}
		if _, err := s.GetGrade(ctx, school.GradeID(req.GradeID)); err != nil {
			return err
		}
		student.AdmissionNo = req.AdmissionNo
		student.FirstName = req.FirstName
		student.MiddleName = req.MiddleName
		student.LastName = req.LastName
		student.Gender = req.Gender
		student.GradeID = school.GradeID(req.GradeID)
		updated = *student
		return s.UpdateStudent(ctx, *student)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStudentDTO(updated))
}

// deleteStudent refuses to delete a student with payment history; the
// financial record must outlive the enrollment.
func (h *Handler) deleteStudent(w http.ResponseWriter, r *http.Request) {
	id := school.StudentID(chi.URLParam(r, "id"))

	ctx := r.Context()
	err := school.RunInTx(ctx, h.store, func(s school.Store) error {
		if _, err := s.GetStudent(ctx, id); err != nil {
			return err
		}
		n, err := s.CountPaymentsByStudent(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return &school.PolicyError{
				Code:    "has_payments",
				Message: fmt.Sprintf("student has %d payment(s) on record and cannot be deleted", n),
			}
		}
		return s.DeleteStudent(ctx, id)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) studentSummary(w http.ResponseWriter, r *http.Request) {
	id := school.StudentID(chi.URLParam(r, "id"))
	summary, err := h.ledger.Summary(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStudentSummaryDTO(summary))
}

func (h *Handler) studentFeeBalance(w http.ResponseWriter, r *http.Request) {
	studentID := school.StudentID(chi.URLParam(r, "id"))
	feeID := school.FeeID(chi.URLParam(r, "feeID"))
	view, err := h.ledger.AdjustedBalance(r.Context(), studentID, feeID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(view))
}

// =============================================================================
// GRADES
// =============================================================================

func (h *Handler) createGrade(w http.ResponseWriter, r *http.Request) {
	var req CreateGradeRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	grade := school.Grade{
		ID:    school.GradeID(uuid.NewString()),
		Level: req.Level,
		Name:  req.Name,
	}
	if err := h.store.SaveGrade(r.Context(), grade); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGradeDTO(grade))
}

func (h *Handler) listGrades(w http.ResponseWriter, r *http.Request) {
	grades, err := h.store.ListGrades(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]GradeDTO, 0, len(grades))
	for _, g := range grades {
		dtos = append(dtos, toGradeDTO(g))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// FEES
// =============================================================================

// parseFeeRequest validates the term label against the current academic
// year's allow-list and parses the money and date fields.
func (h *Handler) parseFeeRequest(r *http.Request, req FeeRequest) (school.Fee, error) {
	year, err := h.settings.CurrentAcademicYear(r.Context())
	if err != nil {
		return school.Fee{}, err
	}
	term, err := school.ParseTerm(req.Term, year)
	if err != nil {
		return school.Fee{}, err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return school.Fee{}, err
	}
	if amount.IsNegative() {
		return school.Fee{}, &school.ValidationError{Field: "amount", Message: "cannot be negative"}
	}
	dueDate, err := parseDate("due_date", req.DueDate)
	if err != nil {
		return school.Fee{}, err
	}
	return school.Fee{
		GradeID: school.GradeID(req.GradeID),
		Term:    term,
		Amount:  amount,
		DueDate: dueDate,
	}, nil
}

func (h *Handler) createFee(w http.ResponseWriter, r *http.Request) {
	var req FeeRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	fee, err := h.parseFeeRequest(r, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	fee.ID = school.FeeID(uuid.NewString())

	ctx := r.Context()
	err = school.RunInTx(ctx, h.store, func(s school.Store) error {
		if _, err := s.GetGrade(ctx, fee.GradeID); err != nil {
			return err
		}
		return s.SaveFee(ctx, fee)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFeeDTO(fee))
}

func (h *Handler) listFees(w http.ResponseWriter, r *http.Request) {
	var f school.FeeFilter
	if v := r.URL.Query().Get("grade_id"); v != "" {
		id := school.GradeID(v)
		f.GradeID = &id
	}
	if v := r.URL.Query().Get("term"); v != "" {
		t := school.Term(v)
		f.Term = &t
	}

	fees, err := h.store.ListFees(r.Context(), f)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]FeeDTO, 0, len(fees))
	for _, fee := range fees {
		dtos = append(dtos, toFeeDTO(fee))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) getFee(w http.ResponseWriter, r *http.Request) {
	id := school.FeeID(chi.URLParam(r, "id"))
	fee, err := h.store.GetFee(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFeeDTO(*fee))
}

func (h *Handler) updateFee(w http.ResponseWriter, r *http.Request) {
	id := school.FeeID(chi.URLParam(r, "id"))
	var req FeeRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	fee, err := h.parseFeeRequest(r, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	fee.ID = id

	if err := h.store.UpdateFee(r.Context(), fee); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFeeDTO(fee))
}

func (h *Handler) deleteFee(w http.ResponseWriter, r *http.Request) {
	id := school.FeeID(chi.URLParam(r, "id"))
	if err := h.store.DeleteFee(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CREDITS
// =============================================================================

func (h *Handler) listCredits(w http.ResponseWriter, r *http.Request) {
	var f school.CreditFilter
	if v := r.URL.Query().Get("student_id"); v != "" {
		id := school.StudentID(v)
		f.StudentID = &id
	}
	if v := r.URL.Query().Get("status"); v != "" {
		st := school.CreditStatus(v)
		f.Status = &st
	}

	credits, err := h.store.ListCredits(r.Context(), f)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]CreditDTO, 0, len(credits))
	for _, c := range credits {
		dtos = append(dtos, toCreditDTO(c))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) creditTotals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	available, err := h.store.SumCreditsByStatus(ctx, school.CreditAvailable)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	applied, err := h.store.SumCreditsByStatus(ctx, school.CreditApplied)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CreditTotalsDTO{
		Available: available.String(),
		Applied:   applied.String(),
	})
}

// =============================================================================
// PROGRESSION
// =============================================================================

func (h *Handler) promoteStudent(w http.ResponseWriter, r *http.Request) {
	id := school.StudentID(chi.URLParam(r, "id"))
	var req PromoteStudentRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	ptype := school.ProgressionType(req.Type)
	if req.Type == "" {
		ptype = school.Promotion
	}

	rec, err := h.progress.PromoteStudent(r.Context(), id, school.GradeID(req.ToGradeID), ptype, req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProgressionDTO(*rec))
}

func (h *Handler) promoteGrade(w http.ResponseWriter, r *http.Request) {
	var req PromoteGradeRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	recs, err := h.progress.PromoteGrade(r.Context(),
		school.GradeID(req.FromGradeID), school.GradeID(req.ToGradeID), req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]ProgressionDTO, 0, len(recs))
	for _, rec := range recs {
		dtos = append(dtos, toProgressionDTO(rec))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) promoteAll(w http.ResponseWriter, r *http.Request) {
	var req PromoteAllRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	result, err := h.progress.PromoteAll(r.Context(), req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) graduateStudent(w http.ResponseWriter, r *http.Request) {
	id := school.StudentID(chi.URLParam(r, "id"))
	var req ProgressionNoteRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.progress.GraduateStudent(r.Context(), id, req.Notes); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) repeatStudent(w http.ResponseWriter, r *http.Request) {
	id := school.StudentID(chi.URLParam(r, "id"))
	var req ProgressionNoteRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	rec, err := h.progress.RepeatStudent(r.Context(), id, req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProgressionDTO(*rec))
}

func (h *Handler) startNewYear(w http.ResponseWriter, r *http.Request) {
	var req StartYearRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	result, err := h.progress.StartNewYear(r.Context(), req.NewYear, req.PromoteStudents)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) listProgressions(w http.ResponseWriter, r *http.Request) {
	year := r.URL.Query().Get("academic_year")
	if year == "" {
		var err error
		year, err = h.settings.CurrentAcademicYear(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
	}

	recs, err := h.store.ListProgressions(r.Context(), year)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]ProgressionDTO, 0, len(recs))
	for _, rec := range recs {
		dtos = append(dtos, toProgressionDTO(rec))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) progressionStats(w http.ResponseWriter, r *http.Request) {
	year := r.URL.Query().Get("academic_year")
	if year == "" {
		var err error
		year, err = h.settings.CurrentAcademicYear(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
	}

	stats, err := h.progress.Stats(r.Context(), year)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// =============================================================================
// SETTINGS
// =============================================================================

func (h *Handler) listSettings(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.ListSettings(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]SettingDTO, 0, len(all))
	for _, s := range all {
		dtos = append(dtos, toSettingDTO(s))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) getSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	setting, err := h.store.GetSetting(r.Context(), key)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingDTO(*setting))
}

func (h *Handler) putSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req PutSettingRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	err := h.settings.Set(r.Context(), key, req.Value, school.SettingType(req.Type), req.Description)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	setting, err := h.store.GetSetting(r.Context(), key)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingDTO(*setting))
}

// =============================================================================
// DASHBOARD
// =============================================================================

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	active := school.StudentActive
	students, err := h.store.ListStudents(ctx, school.StudentFilter{Status: &active})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	collected, err := h.store.TotalCollected(ctx)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	byStatus, err := h.store.CountPaymentsByStatus(ctx)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	available, err := h.store.SumCreditsByStatus(ctx, school.CreditAvailable)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	applied, err := h.store.SumCreditsByStatus(ctx, school.CreditApplied)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	counts := make(map[string]int, len(byStatus))
	for status, n := range byStatus {
		counts[string(status)] = n
	}

	writeJSON(w, http.StatusOK, DashboardDTO{
		ActiveStudents:   len(students),
		TotalCollected:   collected.String(),
		PaymentsByStatus: counts,
		AvailableCredits: available.String(),
		AppliedCredits:   applied.String(),
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
