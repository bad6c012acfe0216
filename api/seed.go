/*
seed.go - Demo data loader

PURPOSE:
  Populates an empty database with a small school: grades, fee structure
  for the current year's terms, a handful of enrolled students, and a few
  payments driven through the ledger engine so derived state is real.

  Intended for development and demos only. Seeding twice will fail on
  unique constraints; reset the database first.

SEE ALSO:
  - handlers.go: The endpoint wiring
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/elimu/school-engine/ledger"
	"github.com/elimu/school-engine/school"
)

// SeedResult reports what the demo loader created.
type SeedResult struct {
	Grades   int `json:"grades"`
	Fees     int `json:"fees"`
	Students int `json:"students"`
	Payments int `json:"payments"`
}

func (h *Handler) seedDemoData(w http.ResponseWriter, r *http.Request) {
	result, err := h.seed(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) seed(ctx context.Context) (*SeedResult, error) {
	year, err := h.settings.CurrentAcademicYear(ctx)
	if err != nil {
		return nil, err
	}

	var result SeedResult

	// Grades 1 through 8.
	grades := make([]school.Grade, 0, 8)
	for level := 1; level <= 8; level++ {
		g := school.Grade{
			ID:    school.GradeID(uuid.NewString()),
			Level: level,
			Name:  fmt.Sprintf("Grade %d", level),
		}
		if err := h.store.SaveGrade(ctx, g); err != nil {
			return nil, err
		}
		grades = append(grades, g)
		result.Grades++
	}

	// One fee per (grade, term), scaled by level.
	terms := school.AllowedTerms(year)
	fees := make(map[school.GradeID][]school.Fee)
	for _, g := range grades {
		for i, term := range terms {
			fee := school.Fee{
				ID:      school.FeeID(uuid.NewString()),
				GradeID: g.ID,
				Term:    term,
				Amount:  school.NewMoneyFromInt(10000 + g.Level*1000),
				DueDate: time.Date(atoiYear(year), time.Month(i*4+1), 15, 0, 0, 0, 0, time.UTC),
			}
			if err := h.store.SaveFee(ctx, fee); err != nil {
				return nil, err
			}
			fees[g.ID] = append(fees[g.ID], fee)
			result.Fees++
		}
	}

	// A few families across the first grades.
	type enrollment struct {
		adm, first, last, phone string
		grade                   school.Grade
	}
	roster := []enrollment{
		{"ADM-001", "Amina", "Odhiambo", "+254700000001", grades[0]},
		{"ADM-002", "Brian", "Mwangi", "+254700000002", grades[0]},
		{"ADM-003", "Cynthia", "Wanjiru", "+254700000003", grades[1]},
		{"ADM-004", "David", "Otieno", "+254700000004", grades[2]},
		{"ADM-005", "Esther", "Njeri", "+254700000005", grades[7]},
	}

	students := make([]school.Student, 0, len(roster))
	for _, e := range roster {
		guardian := school.Guardian{
			ID:        school.GuardianID(uuid.NewString()),
			FirstName: e.first,
			LastName:  e.last,
			Phone:     e.phone,
		}
		if err := h.store.SaveGuardian(ctx, guardian); err != nil {
			return nil, err
		}
		student := school.Student{
			ID:           school.StudentID(uuid.NewString()),
			AdmissionNo:  e.adm,
			FirstName:    e.first,
			LastName:     e.last,
			GradeID:      e.grade.ID,
			GuardianID:   guardian.ID,
			AcademicYear: year,
			Status:       school.StudentActive,
			EnrolledAt:   h.clock.Now(),
		}
		if err := h.store.SaveStudent(ctx, student); err != nil {
			return nil, err
		}
		students = append(students, student)
		result.Students++
	}

	// Payments through the engine: a full payment, a partial, and an
	// overpayment that mints a credit.
	payments := []struct {
		student school.Student
		amount  int
	}{
		{students[0], 11000}, // exact
		{students[1], 5000},  // partial
		{students[2], 15000}, // overpay on a 12000 fee
	}
	for _, p := range payments {
		fee := fees[p.student.GradeID][0]
		_, err := h.ledger.RecordPayment(ctx, ledger.RecordPaymentInput{
			StudentID:   p.student.ID,
			FeeID:       fee.ID,
			AmountPaid:  school.NewMoneyFromInt(p.amount),
			PaymentDate: h.clock.Now(),
		})
		if err != nil {
			return nil, err
		}
		result.Payments++
	}

	return &result, nil
}

func atoiYear(year string) int {
	var y int
	fmt.Sscanf(year, "%d", &y)
	if y == 0 {
		y = time.Now().Year()
	}
	return y
}
