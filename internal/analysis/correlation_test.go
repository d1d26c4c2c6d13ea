package analysis

import (
	"math"
	"strings"
	"testing"

	"github.com/KaramelBytes/padi-analytics/internal/survey"
)

func yn(v int) survey.Answer {
	switch v {
	case 1:
		return "Yes"
	case 0:
		return "No"
	}
	return ""
}

// pairs builds records whose Engaged/Choice answers follow xs and ys; -1 is missing.
func pairs(xs, ys []int) []survey.StudentResponse {
	out := make([]survey.StudentResponse, len(xs))
	for i := range xs {
		out[i] = survey.StudentResponse{Task: survey.TaskT1, Engaged: yn(xs[i]), Choice: yn(ys[i])}
	}
	return out
}

var twoCols = []survey.Metric{survey.Engaged, survey.Choice}

func TestCorrelate_PerfectInverse(t *testing.T) {
	m := Correlate(pairs([]int{1, 1, 0, 0}, []int{0, 0, 1, 1}), twoCols)
	c, _ := m.At(survey.Engaged, survey.Choice)
	if !c.Defined || math.Abs(c.R+1) > 1e-9 {
		t.Fatalf("want r=-1, got %+v", c)
	}
	d, _ := m.At(survey.Engaged, survey.Engaged)
	if !d.Defined || d.R != 1 {
		t.Fatalf("diagonal: %+v", d)
	}
}

func TestCorrelate_OrthogonalColumns(t *testing.T) {
	m := Correlate(pairs([]int{1, 1, 0, 0}, []int{1, 0, 1, 0}), twoCols)
	c, _ := m.At(survey.Engaged, survey.Choice)
	if !c.Defined || math.Abs(c.R) > 1e-9 || c.N != 4 {
		t.Fatalf("want r=0 over 4 rows, got %+v", c)
	}
}

func TestCorrelate_PairwiseComplete(t *testing.T) {
	// rows 3 and 4 are missing one side and are skipped for the pair only
	m := Correlate(pairs([]int{1, 0, 1, -1, 1}, []int{1, 0, 1, 0, -1}), twoCols)
	c, _ := m.At(survey.Engaged, survey.Choice)
	if c.N != 3 || !c.Defined || math.Abs(c.R-1) > 1e-9 {
		t.Fatalf("unexpected %+v", c)
	}
	d, _ := m.At(survey.Choice, survey.Choice)
	if d.N != 4 {
		t.Fatalf("Choice has 4 coded values, got %d", d.N)
	}
}

func TestCorrelate_ZeroVarianceIsUndefined(t *testing.T) {
	m := Correlate(pairs([]int{1, 1, 1}, []int{1, 0, 1}), twoCols)
	c, _ := m.At(survey.Engaged, survey.Choice)
	if c.Defined {
		t.Fatalf("constant column must give undefined, got %+v", c)
	}
	d, _ := m.At(survey.Engaged, survey.Engaged)
	if d.Defined {
		t.Fatalf("constant column diagonal must be undefined, got %+v", d)
	}
}

func TestCorrelate_EmptyIsAllUndefined(t *testing.T) {
	m := Correlate(nil, survey.CorrelationMetrics)
	if len(m.Cells) != 4 {
		t.Fatalf("want 4x4, got %d", len(m.Cells))
	}
	for i, row := range m.Cells {
		for j, c := range row {
			if c.Defined {
				t.Fatalf("cell %d,%d defined on empty input", i, j)
			}
		}
	}
	if !strings.Contains(m.Markdown(), "n/a") {
		t.Fatalf("undefined cells must render as n/a")
	}
}

func TestCorrelate_SymmetricAndBounded(t *testing.T) {
	recs := pairs([]int{1, 0, 1, 1, 0, 1, 0}, []int{1, 1, 0, 1, 0, 1, 0})
	for i := range recs {
		recs[i].Prepared = yn(i % 2)
		recs[i].Confused = yn((i + 1) % 3 % 2)
	}
	m := Correlate(recs, survey.CorrelationMetrics)
	for i := range m.Cells {
		for j := range m.Cells {
			a, b := m.Cells[i][j], m.Cells[j][i]
			if a != b {
				t.Fatalf("asymmetric at %d,%d: %+v vs %+v", i, j, a, b)
			}
			if a.Defined && (a.R < -1 || a.R > 1) {
				t.Fatalf("out of range at %d,%d: %v", i, j, a.R)
			}
		}
	}
}

func TestFilterTask(t *testing.T) {
	recs := []survey.StudentResponse{{Task: survey.TaskT1}, {Task: survey.TaskT2}, {Task: survey.TaskT1}}
	got, err := FilterTask(recs, "T1")
	if err != nil || len(got) != 2 {
		t.Fatalf("T1: %v %d", err, len(got))
	}
	got, err = FilterTask(recs, CorrelateAll)
	if err != nil || len(got) != 3 {
		t.Fatalf("All: %v %d", err, len(got))
	}
	if _, err := FilterTask(recs, "T9"); err == nil {
		t.Fatalf("expected error for unknown task")
	}
}
