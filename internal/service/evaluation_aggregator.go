package service

import (
	"sort"
	"strconv"

	"github.com/Abdulhakimkamal/otpas-hu-api/internal/models"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/grading"
)

// StudentCourseGroup is the deduplicated set of evaluations for one
// (student, course) pair. Snapshot fields come from the first record seen
// for the pair, which after SortByRecency is the most recent one.
type StudentCourseGroup struct {
	Key             string
	StudentName     string
	CourseCode      string
	CourseTitle     string
	CumulativeTotal *grading.Score
	Breakdown       *grading.Breakdown
	AllEvaluations  []models.EvaluationRecord
}

// Latest returns the first evaluation of the group, or nil for an empty group.
func (g *StudentCourseGroup) Latest() *models.EvaluationRecord {
	if g == nil || len(g.AllEvaluations) == 0 {
		return nil
	}
	return &g.AllEvaluations[0]
}

func (g *StudentCourseGroup) hasDuplicate(rec models.EvaluationRecord) bool {
	key := contentKey(rec)
	for _, existing := range g.AllEvaluations {
		if existing.ID == rec.ID || contentKey(existing) == key {
			return true
		}
	}
	return false
}

// GroupSet keeps groups in order of first appearance.
type GroupSet struct {
	order  []string
	groups map[string]*StudentCourseGroup
}

func newGroupSet() *GroupSet {
	return &GroupSet{groups: make(map[string]*StudentCourseGroup)}
}

func (s *GroupSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Keys returns the group keys in insertion order.
func (s *GroupSet) Keys() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.order...)
}

func (s *GroupSet) Get(key string) (*StudentCourseGroup, bool) {
	if s == nil {
		return nil, false
	}
	g, ok := s.groups[key]
	return g, ok
}

// Groups returns the groups in insertion order.
func (s *GroupSet) Groups() []*StudentCourseGroup {
	if s == nil {
		return nil
	}
	out := make([]*StudentCourseGroup, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.groups[k])
	}
	return out
}

// AggregateStats counts what the two dedup passes dropped.
type AggregateStats struct {
	Input            int
	DuplicateIDs     int
	DuplicateContent int
}

// Suppressed is the total number of dropped records.
func (s AggregateStats) Suppressed() int {
	return s.DuplicateIDs + s.DuplicateContent
}

// SortByRecency returns a copy ordered by CreatedAt descending. Ties keep input order.
func SortByRecency(records []models.EvaluationRecord) []models.EvaluationRecord {
	out := append([]models.EvaluationRecord(nil), records...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// DedupeByID drops every record whose ID was already seen. The first occurrence wins unmerged.
func DedupeByID(records []models.EvaluationRecord) []models.EvaluationRecord {
	seen := make(map[int64]struct{}, len(records))
	out := make([]models.EvaluationRecord, 0, len(records))
	for _, rec := range records {
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		out = append(out, rec)
	}
	return out
}

// DedupeByContent drops records repeating an earlier (student, course,
// evaluation type, score) combination.
func DedupeByContent(records []models.EvaluationRecord) []models.EvaluationRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]models.EvaluationRecord, 0, len(records))
	for _, rec := range records {
		key := rec.GroupKey() + "|" + contentKey(rec)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}
	return out
}

// AggregateEvaluations groups records by (student name, course code) after
// removing duplicates by ID, then by content within each group. Records are
// consumed in the given order, so callers wanting most-recent-first groups
// pass the output of SortByRecency. The input slice is not modified.
func AggregateEvaluations(records []models.EvaluationRecord) (*GroupSet, AggregateStats) {
	stats := AggregateStats{Input: len(records)}
	unique := DedupeByID(records)
	stats.DuplicateIDs = len(records) - len(unique)

	set := newGroupSet()
	for _, rec := range unique {
		key := rec.GroupKey()
		group, ok := set.groups[key]
		if !ok {
			group = &StudentCourseGroup{
				Key:             key,
				StudentName:     rec.StudentName,
				CourseCode:      rec.CourseCode,
				CourseTitle:     rec.CourseTitle,
				CumulativeTotal: copyScore(rec.CumulativeTotal),
				Breakdown:       copyBreakdown(rec.Breakdown),
			}
			set.groups[key] = group
			set.order = append(set.order, key)
		}
		if group.hasDuplicate(rec) {
			stats.DuplicateContent++
			continue
		}
		group.AllEvaluations = append(group.AllEvaluations, rec)
	}
	return set, stats
}

func contentKey(rec models.EvaluationRecord) string {
	return string(rec.EvaluationType) + "|" + strconv.FormatFloat(rec.Score.Float64(), 'f', -1, 64)
}

func copyScore(s *grading.Score) *grading.Score {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyBreakdown(b *grading.Breakdown) *grading.Breakdown {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}
