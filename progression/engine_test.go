package progression_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elimu/school-engine/progression"
	"github.com/elimu/school-engine/school"
	"github.com/elimu/school-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2026, time.November, 20, 9, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*progression.Engine, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return progression.New(store, school.FixedClock{T: testNow}), store
}

// seedGrades creates n grades at levels 1..n and caps the school's
// maximum level at n so the terminal grade graduates.
func seedGrades(t *testing.T, store *sqlite.Store, n int) []school.Grade {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.PutSetting(ctx, school.Setting{
		Key: school.KeyMaxGradeLevel, Value: fmt.Sprintf("%d", n),
		Type: school.SettingInteger, UpdatedAt: testNow,
	}))

	grades := make([]school.Grade, 0, n)
	for level := 1; level <= n; level++ {
		g := school.Grade{
			ID:    school.GradeID(uuid.NewString()),
			Level: level,
			Name:  fmt.Sprintf("Grade %d", level),
		}
		require.NoError(t, store.SaveGrade(context.Background(), g))
		grades = append(grades, g)
	}
	return grades
}

func seedStudent(t *testing.T, store *sqlite.Store, grade school.Grade, adm string) school.Student {
	t.Helper()
	student := school.Student{
		ID:           school.StudentID(uuid.NewString()),
		AdmissionNo:  adm,
		FirstName:    "Brian",
		LastName:     "Mwangi",
		GradeID:      grade.ID,
		AcademicYear: "2026",
		Status:       school.StudentActive,
		EnrolledAt:   testNow,
	}
	require.NoError(t, store.SaveStudent(context.Background(), student))
	return student
}

// =============================================================================
// SINGLE-STUDENT MOVES
// =============================================================================

func TestPromoteStudent_MovesGradeAndRecordsAudit(t *testing.T) {
	// GIVEN: A student in Grade 1
	// WHEN: Promoting to Grade 2 as "registrar"
	// THEN: The student moves and the audit row carries the actor

	engine, store := newTestEngine(t)
	grades := seedGrades(t, store, 3)
	student := seedStudent(t, store, grades[0], "ADM-100")

	ctx := school.WithActor(context.Background(), "registrar")
	rec, err := engine.PromoteStudent(ctx, student.ID, grades[1].ID, school.Promotion, "end of year")
	require.NoError(t, err)

	assert.Equal(t, grades[0].ID, rec.FromGradeID)
	assert.Equal(t, grades[1].ID, rec.ToGradeID)
	assert.Equal(t, school.Promotion, rec.Type)
	assert.Equal(t, "registrar", rec.ProcessedBy)
	assert.Equal(t, "2026", rec.AcademicYear)

	moved, err := store.GetStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, grades[1].ID, moved.GradeID)
	assert.Equal(t, school.StudentActive, moved.Status)
}

func TestPromoteStudent_IntoTerminalGrade_AutoGraduates(t *testing.T) {
	// GIVEN: Max grade level 3 with auto-graduate on (the default)
	// WHEN: Promoting a Grade 2 student into Grade 3
	// THEN: The student is immediately graduated with a stamped date

	engine, store := newTestEngine(t)
	grades := seedGrades(t, store, 3)
	student := seedStudent(t, store, grades[1], "ADM-101")

	ctx := context.Background()
	_, err := engine.PromoteStudent(ctx, student.ID, grades[2].ID, school.Promotion, "")
	require.NoError(t, err)

	graduated, err := store.GetStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, school.StudentGraduated, graduated.Status)
	require.NotNil(t, graduated.GraduatedAt)
	assert.True(t, graduated.GraduatedAt.Equal(testNow))
}

func TestPromoteStudent_AutoGraduateDisabled_StaysActive(t *testing.T) {
	engine, store := newTestEngine(t)
	grades := seedGrades(t, store, 3)
	student := seedStudent(t, store, grades[1], "ADM-102")
	ctx := context.Background()

	require.NoError(t, store.PutSetting(ctx, school.Setting{
		Key: school.KeyAutoGraduate, Value: "false",
		Type: school.SettingBoolean, UpdatedAt: testNow,
	}))

	_, err := engine.PromoteStudent(ctx, student.ID, grades[2].ID, school.Promotion, "")
	require.NoError(t, err)

	st, err := store.GetStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, school.StudentActive, st.Status)
}

func TestRepeatStudent_GradeUnchanged(t *testing.T) {
	// GIVEN: A student in Grade 1
	// WHEN: Recording a repetition
	// THEN: An audit row exists but the student has not moved

	engine, store := newTestEngine(t)
	grades := seedGrades(t, store, 3)
	student := seedStudent(t, store, grades[0], "ADM-103")
	ctx := context.Background()

	rec, err := engine.RepeatStudent(ctx, student.ID, "retained for reading")
	require.NoError(t, err)
	assert.Equal(t, school.Repetition, rec.Type)
	assert.Equal(t, rec.FromGradeID, rec.ToGradeID)

	st, err := store.GetStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, grades[0].ID, st.GradeID)
	assert.Equal(t, school.StudentActive, st.Status)
}

func TestGraduateStudent_DefaultNote(t *testing.T) {
	engine, store := newTestEngine(t)
	grades := seedGrades(t, store, 3)
	student := seedStudent(t, store, grades[2], "ADM-104")
	ctx := context.Background()

	require.NoError(t, engine.GraduateStudent(ctx, student.ID, ""))

	st, err := store.GetStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, school.StudentGraduated, st.Status)

	recs, err := store.ListProgressions(ctx, "2026")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Student graduated", recs[0].Notes)
}

// =============================================================================
// BATCH RUNS
// =============================================================================

func TestPromoteGrade_AllOrNothing(t *testing.T) {
	// GIVEN: Three active students in Grade 1
	// WHEN: Promoting the whole grade to Grade 2
	// THEN: All three move with one audit row each

	engine, store := newTestEngine(t)
	grades := seedGrades(t, store, 3)
	for i := 0; i < 3; i++ {
		seedStudent(t, store, grades[0], fmt.Sprintf("ADM-2%02d", i))
	}

	recs, err := engine.PromoteGrade(context.Background(), grades[0].ID, grades[1].ID, "")
	require.NoError(t, err)
	assert.Len(t, recs, 3)

	left, err := store.ListStudents(context.Background(), school.StudentFilter{GradeID: &grades[0].ID})
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestPromoteAll_TerminalGradeGraduates(t *testing.T) {
	// GIVEN: Students in Grade 1, 2, and 3 (terminal)
	// WHEN: Running the whole-school promotion
	// THEN: Grades 1-2 move up and Grade 3 graduates

	engine, store := newTestEngine(t)
	grades := seedGrades(t, store, 3)
	seedStudent(t, store, grades[0], "ADM-300")
	seedStudent(t, store, grades[1], "ADM-301")
	seedStudent(t, store, grades[2], "ADM-302")
	ctx := context.Background()

	result, err := engine.PromoteAll(ctx, "")
	require.NoError(t, err)

	// The Grade 2 student lands in terminal Grade 3 and auto-graduates.
	assert.Equal(t, 2, result.Promoted)
	assert.Equal(t, 1, result.Graduated)
	require.Len(t, result.Details, 3)
	assert.Equal(t, "graduated", result.Details[2].Action)

	graduated := school.StudentGraduated
	done, err := store.ListStudents(ctx, school.StudentFilter{Status: &graduated})
	require.NoError(t, err)
	assert.Len(t, done, 2)
}

// =============================================================================
// YEAR TRANSITION
// =============================================================================

func TestStartNewYear_InvalidYear_Rejected(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.StartNewYear(context.Background(), "20x7", true)
	assert.True(t, school.IsValidation(err))
}

func TestStartNewYear_PromotesStampsAndPersists(t *testing.T) {
	// GIVEN: Students in Grades 1 and 2 of year 2026
	// WHEN: Starting 2027 with promotion
	// THEN: Active students carry 2027, graduates keep 2026, and the
	//       current-year setting is updated

	engine, store := newTestEngine(t)
	grades := seedGrades(t, store, 3)
	junior := seedStudent(t, store, grades[0], "ADM-400")
	senior := seedStudent(t, store, grades[2], "ADM-401")
	ctx := context.Background()

	result, err := engine.StartNewYear(ctx, "2027", true)
	require.NoError(t, err)
	assert.Equal(t, "2026", result.OldYear)
	assert.Equal(t, "2027", result.NewYear)
	require.NotNil(t, result.Promotion)
	assert.Equal(t, 1, result.Promotion.Promoted)
	assert.Equal(t, 1, result.Promotion.Graduated)

	promoted, err := store.GetStudent(ctx, junior.ID)
	require.NoError(t, err)
	assert.Equal(t, "2027", promoted.AcademicYear)
	assert.Equal(t, grades[1].ID, promoted.GradeID)

	grad, err := store.GetStudent(ctx, senior.ID)
	require.NoError(t, err)
	assert.Equal(t, school.StudentGraduated, grad.Status)
	assert.Equal(t, "2026", grad.AcademicYear)

	setting, err := store.GetSetting(ctx, school.KeyCurrentAcademicYear)
	require.NoError(t, err)
	assert.Equal(t, "2027", setting.Value)
}

func TestStartNewYear_WithoutPromotion(t *testing.T) {
	engine, store := newTestEngine(t)
	grades := seedGrades(t, store, 3)
	student := seedStudent(t, store, grades[0], "ADM-402")
	ctx := context.Background()

	result, err := engine.StartNewYear(ctx, "2027", false)
	require.NoError(t, err)
	assert.Nil(t, result.Promotion)

	st, err := store.GetStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, grades[0].ID, st.GradeID, "grade must not change without promotion")
	assert.Equal(t, "2027", st.AcademicYear)
}

// =============================================================================
// STATS
// =============================================================================

func TestStats_CountsByTypeAndGrade(t *testing.T) {
	// GIVEN: Two promotions out of Grade 1, one repetition in Grade 2,
	//        and one graduation
	// WHEN: Computing the year's stats
	// THEN: Counts split by type and by origin grade

	engine, store := newTestEngine(t)
	grades := seedGrades(t, store, 3)
	a := seedStudent(t, store, grades[0], "ADM-500")
	b := seedStudent(t, store, grades[0], "ADM-501")
	c := seedStudent(t, store, grades[1], "ADM-502")
	d := seedStudent(t, store, grades[2], "ADM-503")
	ctx := context.Background()

	_, err := engine.PromoteStudent(ctx, a.ID, grades[1].ID, school.Promotion, "")
	require.NoError(t, err)
	_, err = engine.PromoteStudent(ctx, b.ID, grades[1].ID, school.Promotion, "")
	require.NoError(t, err)
	_, err = engine.RepeatStudent(ctx, c.ID, "")
	require.NoError(t, err)
	require.NoError(t, engine.GraduateStudent(ctx, d.ID, ""))

	stats, err := engine.Stats(ctx, "2026")
	require.NoError(t, err)

	assert.Equal(t, "2026", stats.AcademicYear)
	assert.Equal(t, 3, stats.TotalPromotions, "two moves plus one graduation audit row")
	assert.Equal(t, 1, stats.TotalRepetitions)
	assert.Equal(t, 1, stats.TotalGraduated)

	byGrade := make(map[string]int)
	for _, g := range stats.ByGrade {
		byGrade[g.GradeName] = g.Count
	}
	assert.Equal(t, 2, byGrade["Grade 1"])
}
