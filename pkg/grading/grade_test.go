package grading

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateGradeBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  Letter
	}{
		{100, GradeA},
		{90, GradeA},
		{89.99, GradeB},
		{80, GradeB},
		{79.99, GradeC},
		{70, GradeC},
		{69.99, GradeD},
		{60, GradeD},
		{59.99, GradeF},
		{0, GradeF},
		{-15, GradeF},
		{140, GradeA},
		{math.NaN(), GradeF},
		{math.Inf(1), GradeA},
		{math.Inf(-1), GradeF},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CalculateGrade(tc.score), "score %v", tc.score)
	}
}

func TestInfoAgreesWithCalculateGrade(t *testing.T) {
	byDescription := map[string]Letter{}
	for _, b := range Bands() {
		byDescription[b.Description] = b.Grade
	}
	for s := -20.0; s <= 120.0; s += 0.01 {
		info := Info(s)
		grade := CalculateGrade(s)
		assert.Equal(t, grade, info.Grade)
		if !assert.Equal(t, grade, byDescription[info.Description], "score %v", s) {
			return
		}
	}
}

func TestBgColor(t *testing.T) {
	assert.Equal(t, "bg-green-100 text-green-800", BgColor("A"))
	assert.Equal(t, "bg-red-100 text-red-800", BgColor(" f "))
	assert.Equal(t, "bg-blue-100 text-blue-800", BgColor("b"))
	assert.Equal(t, unknownBgColor, BgColor(""))
	assert.Equal(t, unknownBgColor, BgColor("A+"))
	assert.Equal(t, unknownBgColor, BgColor("E"))
}

func TestBandsReturnsCopy(t *testing.T) {
	b := Bands()
	b[0].Grade = "Z"
	assert.Equal(t, GradeA, CalculateGrade(95))
	assert.Len(t, Bands(), 5)
}

func TestBandsMarshalJSON(t *testing.T) {
	data, err := json.Marshal(Bands())
	require.NoError(t, err)

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 5)
	assert.Equal(t, float64(90), decoded[0]["min"])
	assert.Equal(t, "A", decoded[0]["grade"])
	assert.Nil(t, decoded[4]["min"])
	assert.Equal(t, "Needs Improvement", decoded[4]["description"])
}
