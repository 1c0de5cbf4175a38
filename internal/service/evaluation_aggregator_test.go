package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abdulhakimkamal/otpas-hu-api/internal/models"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/grading"
)

func scorePtr(v float64) *grading.Score {
	s := grading.Score(v)
	return &s
}

func record(id int64, student, course string, typ grading.EvaluationType, score float64) models.EvaluationRecord {
	return models.EvaluationRecord{
		ID:             id,
		StudentName:    student,
		CourseCode:     course,
		CourseTitle:    course + " title",
		EvaluationType: typ,
		Score:          grading.Score(score),
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	set, stats := AggregateEvaluations(nil)
	assert.Equal(t, 0, set.Len())
	assert.Empty(t, set.Groups())
	assert.Equal(t, 0, stats.Suppressed())

	set, _ = AggregateEvaluations([]models.EvaluationRecord{})
	assert.Equal(t, 0, set.Len())
}

func TestAggregateEndToEnd(t *testing.T) {
	first := record(1, "A", "CS101", grading.Quiz, 90)
	first.CumulativeTotal = scorePtr(72)
	first.Breakdown = &grading.Breakdown{MidExam: 20, FinalExam: 40, Project: 10, Quiz: 2}
	second := record(2, "A", "CS101", grading.MidExam, 20)

	set, stats := AggregateEvaluations([]models.EvaluationRecord{first, second, first})

	require.Equal(t, []string{"A|CS101"}, set.Keys())
	group, ok := set.Get("A|CS101")
	require.True(t, ok)
	assert.Len(t, group.AllEvaluations, 2)
	require.NotNil(t, group.CumulativeTotal)
	assert.Equal(t, 72.0, group.CumulativeTotal.Float64())
	assert.Equal(t, grading.Breakdown{MidExam: 20, FinalExam: 40, Project: 10, Quiz: 2}, *group.Breakdown)
	assert.Equal(t, int64(1), group.Latest().ID)
	assert.Equal(t, 1, stats.DuplicateIDs)
	assert.Equal(t, 0, stats.DuplicateContent)
}

func TestAggregateIdempotentUnderIDDuplicates(t *testing.T) {
	list := []models.EvaluationRecord{
		record(1, "A", "CS101", grading.Quiz, 4),
		record(2, "B", "CS101", grading.Project, 12),
		record(1, "A", "CS101", grading.Quiz, 4),
		record(3, "A", "CS201", grading.FinalExam, 41),
	}
	withDup, _ := AggregateEvaluations(list)
	deduped, _ := AggregateEvaluations(DedupeByID(list))
	assert.Equal(t, deduped, withDup)

	again, _ := AggregateEvaluations(list)
	assert.Equal(t, withDup, again)
}

func TestAggregateContentDedup(t *testing.T) {
	list := []models.EvaluationRecord{
		record(10, "A", "CS101", grading.Quiz, 4),
		record(11, "A", "CS101", grading.Quiz, 4),
		record(12, "A", "CS101", grading.Quiz, 5),
	}
	set, stats := AggregateEvaluations(list)
	group, _ := set.Get("A|CS101")
	require.Len(t, group.AllEvaluations, 2)
	assert.Equal(t, int64(10), group.AllEvaluations[0].ID)
	assert.Equal(t, int64(12), group.AllEvaluations[1].ID)
	assert.Equal(t, 1, stats.DuplicateContent)
}

func TestAggregateGroupsByStudentAndCourse(t *testing.T) {
	list := []models.EvaluationRecord{
		record(1, "Abebe Kebede", "CS101", grading.Quiz, 4),
		record(2, "Abebe Kebede", "CS201", grading.Quiz, 4),
		record(3, "Abebe Kebede", "CS101", grading.MidExam, 25),
	}
	set, _ := AggregateEvaluations(list)
	require.Equal(t, []string{"Abebe Kebede|CS101", "Abebe Kebede|CS201"}, set.Keys())

	cs101, _ := set.Get("Abebe Kebede|CS101")
	cs201, _ := set.Get("Abebe Kebede|CS201")
	assert.Len(t, cs101.AllEvaluations, 2)
	assert.Len(t, cs201.AllEvaluations, 1)
	for _, rec := range cs101.AllEvaluations {
		assert.Equal(t, "CS101", rec.CourseCode)
	}
	assert.Equal(t, "CS201", cs201.AllEvaluations[0].CourseCode)
}

func TestAggregateMissingSnapshot(t *testing.T) {
	set, _ := AggregateEvaluations([]models.EvaluationRecord{record(1, "A", "CS101", grading.Quiz, 3)})
	group, _ := set.Get("A|CS101")
	assert.Nil(t, group.CumulativeTotal)
	assert.Nil(t, group.Breakdown)
}

func TestAggregateFirstSeenIDWins(t *testing.T) {
	a := record(7, "A", "CS101", grading.Quiz, 3)
	b := record(7, "A", "CS101", grading.Project, 14)
	set, _ := AggregateEvaluations([]models.EvaluationRecord{a, b})
	group, _ := set.Get("A|CS101")
	require.Len(t, group.AllEvaluations, 1)
	assert.Equal(t, grading.Quiz, group.AllEvaluations[0].EvaluationType)
}

func TestSortByRecencyDoesNotMutate(t *testing.T) {
	now := time.Now()
	old := record(1, "A", "CS101", grading.Quiz, 3)
	old.CreatedAt = now.Add(-time.Hour)
	old.CumulativeTotal = scorePtr(40)
	recent := record(2, "A", "CS101", grading.MidExam, 25)
	recent.CreatedAt = now
	recent.CumulativeTotal = scorePtr(65)

	input := []models.EvaluationRecord{old, recent}
	sorted := SortByRecency(input)
	assert.Equal(t, int64(1), input[0].ID)
	assert.Equal(t, int64(2), sorted[0].ID)

	set, _ := AggregateEvaluations(sorted)
	group, _ := set.Get("A|CS101")
	assert.Equal(t, 65.0, group.CumulativeTotal.Float64())
	assert.Equal(t, int64(2), group.Latest().ID)
}

func TestDedupeByContentAcrossGroups(t *testing.T) {
	list := []models.EvaluationRecord{
		record(1, "A", "CS101", grading.Quiz, 4),
		record(2, "B", "CS101", grading.Quiz, 4),
		record(3, "A", "CS101", grading.Quiz, 4),
	}
	out := DedupeByContent(list)
	require.Len(t, out, 2)
	assert.Equal(t, int64(1), out[0].ID)
	assert.Equal(t, int64(2), out[1].ID)
}
