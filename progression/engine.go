/*
Package progression implements the student progression engine.

PURPOSE:
  Advances one student, a whole grade, or the entire school to the next
  grade level for a new academic year, recording an immutable history
  trail, auto-graduating students who reach the configured maximum grade
  level, and rolling over the current-academic-year setting.

CONFIGURATION:
  The engine never reads settings ambiently. Each operation loads a
  Config snapshot {current year, max grade level, auto-graduate flag}
  inside its own store transaction and passes it down, so the rules a
  batch runs under cannot shift mid-batch.

BATCH POLICY:
  PromoteGrade, PromoteAll, and StartNewYear are each one all-or-nothing
  transaction: a single failing student rolls back the entire batch.
  Per-student operations are independent, so iteration order does not
  affect the outcome.

AUDIT TRAIL:
  Every operation appends a StudentProgression row. Graduation and
  repetition record from-grade = to-grade (status-only and log-only
  events respectively). Progression rows are never updated or deleted.

SEE ALSO:
  - stats.go: promotion statistics
  - settings: typed configuration reads
*/
package progression

import (
	"context"
	"fmt"
	"regexp"

	"github.com/google/uuid"

	"github.com/elimu/school-engine/school"
	"github.com/elimu/school-engine/settings"
)

// Engine executes progression mutations atomically against a TxStore.
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

// Config is the snapshot of global settings one operation runs under.
type Config struct {
	CurrentYear   string
	MaxGradeLevel int
	AutoGraduate  bool
}

func (e *Engine) loadConfig(ctx context.Context, s school.Store) (Config, error) {
	year, err := settings.CurrentAcademicYearIn(ctx, s, e.clock)
	if err != nil {
		return Config{}, err
	}
	maxLevel, err := settings.MaxGradeLevelIn(ctx, s)
	if err != nil {
		return Config{}, err
	}
	auto, err := settings.AutoGraduateEnabledIn(ctx, s)
	if err != nil {
		return Config{}, err
	}
	return Config{CurrentYear: year, MaxGradeLevel: maxLevel, AutoGraduate: auto}, nil
}

// =============================================================================
// PROMOTE ONE STUDENT
// =============================================================================

// PromoteStudent moves one student to toGradeID and appends the audit
// row. With auto-graduate enabled, landing at or above the configured
// maximum level cascades directly into graduation in the same
// transaction.
func (e *Engine) PromoteStudent(ctx context.Context, studentID school.StudentID, toGradeID school.GradeID, ptype school.ProgressionType, note string) (*school.StudentProgression, error) {
	if err := validateType(ptype); err != nil {
		return nil, err
	}

	var rec *school.StudentProgression
	err := school.RunInTx(ctx, e.store, func(s school.Store) error {
		cfg, err := e.loadConfig(ctx, s)
		if err != nil {
			return err
		}
		rec, err = e.promoteOne(ctx, s, cfg, studentID, toGradeID, ptype, note)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// promoteOne is the transactional body shared by the single, grade, and
// all-grades paths. It must run inside a store transaction.
func (e *Engine) promoteOne(ctx context.Context, s school.Store, cfg Config, studentID school.StudentID, toGradeID school.GradeID, ptype school.ProgressionType, note string) (*school.StudentProgression, error) {
	student, err := s.GetStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	toGrade, err := s.GetGrade(ctx, toGradeID)
	if err != nil {
		return nil, err
	}

	rec := school.StudentProgression{
		ID:           school.ProgressionID(uuid.NewString()),
		StudentID:    student.ID,
		FromGradeID:  student.GradeID,
		ToGradeID:    toGradeID,
		AcademicYear: cfg.CurrentYear,
		Type:         ptype,
		Notes:        note,
		ProcessedBy:  school.ActorFrom(ctx),
		ProcessedAt:  e.clock.Now(),
	}
	if err := s.CreateProgression(ctx, rec); err != nil {
		return nil, err
	}

	student.GradeID = toGradeID
	if err := s.UpdateStudent(ctx, *student); err != nil {
		return nil, err
	}

	if cfg.AutoGraduate && toGrade.Level >= cfg.MaxGradeLevel {
		if err := e.graduateOne(ctx, s, cfg, student, ""); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

// =============================================================================
// PROMOTE A GRADE
// =============================================================================

// PromoteGrade promotes every active current-year student in fromGradeID
// to toGradeID, as one all-or-nothing batch.
func (e *Engine) PromoteGrade(ctx context.Context, fromGradeID, toGradeID school.GradeID, note string) ([]school.StudentProgression, error) {
	var recs []school.StudentProgression
	err := school.RunInTx(ctx, e.store, func(s school.Store) error {
		cfg, err := e.loadConfig(ctx, s)
		if err != nil {
			return err
		}
		recs, err = e.promoteGradeIn(ctx, s, cfg, fromGradeID, toGradeID, note)
		return err
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (e *Engine) promoteGradeIn(ctx context.Context, s school.Store, cfg Config, fromGradeID, toGradeID school.GradeID, note string) ([]school.StudentProgression, error) {
	if _, err := s.GetGrade(ctx, fromGradeID); err != nil {
		return nil, err
	}
	if _, err := s.GetGrade(ctx, toGradeID); err != nil {
		return nil, err
	}

	students, err := e.activeStudentsIn(ctx, s, cfg, fromGradeID)
	if err != nil {
		return nil, err
	}

	recs := make([]school.StudentProgression, 0, len(students))
	for _, student := range students {
		rec, err := e.promoteOne(ctx, s, cfg, student.ID, toGradeID, school.Promotion, note)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, nil
}

// =============================================================================
// PROMOTE ALL
// =============================================================================

// GradeOutcome describes what happened to one grade during a bulk run.
type GradeOutcome struct {
	FromGrade string
	ToGrade   string // empty when Action is "graduated"
	Action    string // "promoted" or "graduated"
	Count     int
}

// PromoteAllResult aggregates a whole-school promotion run.
type PromoteAllResult struct {
	Promoted  int
	Graduated int
	Details   []GradeOutcome
}

// PromoteAll walks every grade by level ascending. Students in the
// terminal (highest) grade graduate; everyone else moves to the
// next-higher grade. The entire run is one transaction.
func (e *Engine) PromoteAll(ctx context.Context, note string) (*PromoteAllResult, error) {
	var result *PromoteAllResult
	err := school.RunInTx(ctx, e.store, func(s school.Store) error {
		cfg, err := e.loadConfig(ctx, s)
		if err != nil {
			return err
		}
		result, err = e.promoteAllIn(ctx, s, cfg, note)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) promoteAllIn(ctx context.Context, s school.Store, cfg Config, note string) (*PromoteAllResult, error) {
	grades, err := s.ListGrades(ctx)
	if err != nil {
		return nil, err
	}

	// Walk top-down so students moved into a grade during this run are
	// not swept up again when that grade is processed.
	result := &PromoteAllResult{}
	details := make([]GradeOutcome, len(grades))
	for i := len(grades) - 1; i >= 0; i-- {
		grade := grades[i]
		if i == len(grades)-1 {
			// Terminal grade: graduate instead of promote.
			students, err := e.activeStudentsIn(ctx, s, cfg, grade.ID)
			if err != nil {
				return nil, err
			}
			for j := range students {
				if err := e.graduateOne(ctx, s, cfg, &students[j], note); err != nil {
					return nil, err
				}
			}
			result.Graduated += len(students)
			details[i] = GradeOutcome{
				FromGrade: grade.Name,
				Action:    "graduated",
				Count:     len(students),
			}
			continue
		}

		next := grades[i+1]
		recs, err := e.promoteGradeIn(ctx, s, cfg, grade.ID, next.ID, note)
		if err != nil {
			return nil, err
		}
		result.Promoted += len(recs)
		details[i] = GradeOutcome{
			FromGrade: grade.Name,
			ToGrade:   next.Name,
			Action:    "promoted",
			Count:     len(recs),
		}
	}
	result.Details = details
	return result, nil
}

// =============================================================================
// GRADUATE & REPEAT
// =============================================================================

// GraduateStudent marks the student graduated, stamps the graduation
// date, and appends an audit row with from-grade = to-grade (a status
// change, not a grade change).
func (e *Engine) GraduateStudent(ctx context.Context, studentID school.StudentID, note string) error {
	return school.RunInTx(ctx, e.store, func(s school.Store) error {
		cfg, err := e.loadConfig(ctx, s)
		if err != nil {
			return err
		}
		student, err := s.GetStudent(ctx, studentID)
		if err != nil {
			return err
		}
		return e.graduateOne(ctx, s, cfg, student, note)
	})
}

func (e *Engine) graduateOne(ctx context.Context, s school.Store, cfg Config, student *school.Student, note string) error {
	if note == "" {
		note = "Student graduated"
	}

	now := e.clock.Now()
	student.Status = school.StudentGraduated
	student.GraduatedAt = &now
	if err := s.UpdateStudent(ctx, *student); err != nil {
		return err
	}

	return s.CreateProgression(ctx, school.StudentProgression{
		ID:           school.ProgressionID(uuid.NewString()),
		StudentID:    student.ID,
		FromGradeID:  student.GradeID,
		ToGradeID:    student.GradeID,
		AcademicYear: cfg.CurrentYear,
		Type:         school.Promotion,
		Notes:        note,
		ProcessedBy:  school.ActorFrom(ctx),
		ProcessedAt:  now,
	})
}

// RepeatStudent logs a repetition. The student's grade and status are
// deliberately untouched: a repetition is recorded history, not a move.
func (e *Engine) RepeatStudent(ctx context.Context, studentID school.StudentID, note string) (*school.StudentProgression, error) {
	var rec *school.StudentProgression
	err := school.RunInTx(ctx, e.store, func(s school.Store) error {
		cfg, err := e.loadConfig(ctx, s)
		if err != nil {
			return err
		}
		student, err := s.GetStudent(ctx, studentID)
		if err != nil {
			return err
		}
		r := school.StudentProgression{
			ID:           school.ProgressionID(uuid.NewString()),
			StudentID:    student.ID,
			FromGradeID:  student.GradeID,
			ToGradeID:    student.GradeID,
			AcademicYear: cfg.CurrentYear,
			Type:         school.Repetition,
			Notes:        note,
			ProcessedBy:  school.ActorFrom(ctx),
			ProcessedAt:  e.clock.Now(),
		}
		if err := s.CreateProgression(ctx, r); err != nil {
			return err
		}
		rec = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// =============================================================================
// START NEW ACADEMIC YEAR
// =============================================================================

// NewYearResult reports a year rollover.
type NewYearResult struct {
	OldYear   string
	NewYear   string
	Promotion *PromoteAllResult // nil when promoteStudents was false
}

var yearPattern = regexp.MustCompile(`^\d{4}$`)

// StartNewYear optionally runs PromoteAll, stamps every active student
// with the new year, and persists the current-year setting - all three
// steps in one transaction.
func (e *Engine) StartNewYear(ctx context.Context, newYear string, promoteStudents bool) (*NewYearResult, error) {
	if !yearPattern.MatchString(newYear) {
		return nil, &school.ValidationError{Field: "new_year", Message: "academic year must be a 4-digit year"}
	}

	var result *NewYearResult
	err := school.RunInTx(ctx, e.store, func(s school.Store) error {
		cfg, err := e.loadConfig(ctx, s)
		if err != nil {
			return err
		}
		result = &NewYearResult{OldYear: cfg.CurrentYear, NewYear: newYear}

		if promoteStudents {
			note := fmt.Sprintf("Academic year transition to %s", newYear)
			promo, err := e.promoteAllIn(ctx, s, cfg, note)
			if err != nil {
				return err
			}
			result.Promotion = promo
		}

		if _, err := s.UpdateActiveStudentsYear(ctx, newYear); err != nil {
			return err
		}
		return settings.SetIn(ctx, s, e.clock, school.KeyCurrentAcademicYear, newYear,
			school.SettingString, "Current academic year")
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (e *Engine) activeStudentsIn(ctx context.Context, s school.Store, cfg Config, gradeID school.GradeID) ([]school.Student, error) {
	active := school.StudentActive
	return s.ListStudents(ctx, school.StudentFilter{
		GradeID:      &gradeID,
		AcademicYear: &cfg.CurrentYear,
		Status:       &active,
	})
}

func validateType(t school.ProgressionType) error {
	switch t {
	case school.Promotion, school.Repetition, school.Demotion:
		return nil
	default:
		return &school.ValidationError{
			Field:   "progression_type",
			Message: fmt.Sprintf("unknown progression type %q", t),
		}
	}
}
