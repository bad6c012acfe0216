package progression

import (
	"context"
	"sort"

	"github.com/elimu/school-engine/school"
)

// GradeStat is the progression count for one origin grade.
type GradeStat struct {
	GradeID   school.GradeID
	GradeName string
	Count     int
}

// Stats summarizes one academic year's progressions.
type Stats struct {
	AcademicYear     string
	TotalPromotions  int
	TotalRepetitions int
	TotalGraduated   int // by graduation_date year
	ByGrade          []GradeStat
}

// Stats counts promotion and repetition rows for the year, students
// graduated in that year, and a per-origin-grade breakdown ordered by
// grade level.
func (e *Engine) Stats(ctx context.Context, academicYear string) (*Stats, error) {
	promotions, err := e.store.CountProgressions(ctx, academicYear, school.Promotion)
	if err != nil {
		return nil, err
	}
	repetitions, err := e.store.CountProgressions(ctx, academicYear, school.Repetition)
	if err != nil {
		return nil, err
	}
	graduated, err := e.store.CountGraduatedInYear(ctx, academicYear)
	if err != nil {
		return nil, err
	}

	recs, err := e.store.ListProgressions(ctx, academicYear)
	if err != nil {
		return nil, err
	}
	grades, err := e.store.ListGrades(ctx)
	if err != nil {
		return nil, err
	}

	names := make(map[school.GradeID]string, len(grades))
	levels := make(map[school.GradeID]int, len(grades))
	for _, g := range grades {
		names[g.ID] = g.Name
		levels[g.ID] = g.Level
	}

	counts := make(map[school.GradeID]int)
	for _, rec := range recs {
		counts[rec.FromGradeID]++
	}

	byGrade := make([]GradeStat, 0, len(counts))
	for id, n := range counts {
		name := names[id]
		if name == "" {
			name = "Unknown"
		}
		byGrade = append(byGrade, GradeStat{GradeID: id, GradeName: name, Count: n})
	}
	sort.Slice(byGrade, func(i, j int) bool {
		return levels[byGrade[i].GradeID] < levels[byGrade[j].GradeID]
	})

	return &Stats{
		AcademicYear:     academicYear,
		TotalPromotions:  promotions,
		TotalRepetitions: repetitions,
		TotalGraduated:   graduated,
		ByGrade:          byGrade,
	}, nil
}
