package analysis

import (
	"reflect"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/KaramelBytes/padi-analytics/internal/survey"
)

var base = time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)

func dayN(n int) time.Time { return base.AddDate(0, 0, n) }

func resp(teacher string, task survey.Task, ts time.Time) survey.StudentResponse {
	return survey.StudentResponse{TeacherKey: teacher, Task: task, Timestamp: ts}
}

func TestSegmentStream_NoMarkerNeverSplits(t *testing.T) {
	got := SegmentStream([]time.Time{dayN(0), dayN(5), dayN(20)}, nil)
	if want := []int{1, 1, 1}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestSegmentStream_MarkerAndGapSplits(t *testing.T) {
	got := SegmentStream([]time.Time{dayN(0), dayN(5), dayN(20)}, []time.Time{dayN(10)})
	if want := []int{1, 1, 2}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestSegmentStream_GapMustExceedFourteenWholeDays(t *testing.T) {
	markers := []time.Time{dayN(7)}
	// exactly 14 days apart is not a long gap
	got := SegmentStream([]time.Time{dayN(0), dayN(14)}, markers)
	if want := []int{1, 1}; !reflect.DeepEqual(got, want) {
		t.Fatalf("14 days: got %v want %v", got, want)
	}
	// 14 days and 23 hours still floors to 14
	got = SegmentStream([]time.Time{dayN(0), dayN(14).Add(23 * time.Hour)}, markers)
	if want := []int{1, 1}; !reflect.DeepEqual(got, want) {
		t.Fatalf("14d23h: got %v want %v", got, want)
	}
	got = SegmentStream([]time.Time{dayN(0), dayN(15)}, markers)
	if want := []int{1, 2}; !reflect.DeepEqual(got, want) {
		t.Fatalf("15 days: got %v want %v", got, want)
	}
}

func TestSegmentStream_MarkerStrictlyBetween(t *testing.T) {
	// marker on the boundary timestamps does not count
	got := SegmentStream([]time.Time{dayN(0), dayN(20)}, []time.Time{dayN(0), dayN(20)})
	if want := []int{1, 1}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	// marker outside the interval does not count
	got = SegmentStream([]time.Time{dayN(0), dayN(20)}, []time.Time{dayN(30)})
	if want := []int{1, 1}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestSegmentStream_SortsAndKeepsInputPositions(t *testing.T) {
	stream := []time.Time{dayN(40), dayN(0), {}, dayN(20), dayN(20)}
	markers := []time.Time{dayN(10), dayN(30)}
	got := SegmentStream(stream, markers)
	if want := []int{3, 1, 1, 2, 2}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestSegmentStream_Monotonic(t *testing.T) {
	stream := []time.Time{dayN(0), dayN(16), dayN(17), dayN(40), dayN(41), dayN(80)}
	markers := []time.Time{dayN(8), dayN(30), dayN(60)}
	got := SegmentStream(stream, markers)
	for i := 1; i < len(got); i++ {
		if got[i] < got[i-1] || got[i]-got[i-1] > 1 {
			t.Fatalf("non-monotonic step at %d: %v", i, got)
		}
	}
	if got[0] != 1 {
		t.Fatalf("first instance must be 1, got %d", got[0])
	}
}

func TestAssignInstances_PerTeacherMarkers(t *testing.T) {
	recs := []survey.StudentResponse{
		resp("walker", survey.TaskT1, dayN(0)),
		resp("walker", survey.TaskEnd, dayN(10)),
		resp("walker", survey.TaskT1, dayN(20)),
		// ramos has no End; walker's marker must not split ramos
		resp("ramos", survey.TaskT1, dayN(0)),
		resp("ramos", survey.TaskT1, dayN(20)),
		resp("ramos", survey.TaskOther, dayN(30)),
	}
	got := AssignInstances(recs)
	if want := []int{1, 1, 2, 1, 1, 1}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestAssign_CarriesRowAndTask(t *testing.T) {
	recs := []survey.StudentResponse{
		resp("walker", survey.TaskT1, dayN(0)),
		resp("walker", survey.TaskEnd, dayN(10)),
		resp("walker", survey.TaskT1, dayN(20)),
		resp("walker", survey.TaskT1, time.Time{}),
	}
	for i := range recs {
		recs[i].Row = i + 2
	}
	got := Assign(recs)
	want := []Assignment{
		{Row: 2, Task: survey.TaskT1, Instance: 1},
		{Row: 3, Task: survey.TaskEnd, Instance: 1},
		{Row: 4, Task: survey.TaskT1, Instance: 2},
		{Row: 5, Task: survey.TaskT1, Instance: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestSegmentStream_GapUsesWallClockAcrossDST(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatal(err)
	}
	for _, loc := range []*time.Location{time.UTC, la} {
		// spring forward on 2025-03-09 shortens the elapsed time by an hour
		stream := []time.Time{
			time.Date(2025, 3, 1, 10, 0, 0, 0, loc),
			time.Date(2025, 3, 16, 10, 0, 0, 0, loc),
		}
		markers := []time.Time{time.Date(2025, 3, 5, 10, 0, 0, 0, loc)}
		got := SegmentStream(stream, markers)
		if want := []int{1, 2}; !reflect.DeepEqual(got, want) {
			t.Fatalf("%s: got %v want %v", loc, got, want)
		}
	}
}

func TestSegmentStream_DeterministicWithTies(t *testing.T) {
	stream := []time.Time{dayN(20), dayN(0), dayN(20), dayN(0), {}, dayN(40), dayN(20)}
	markers := []time.Time{dayN(10), dayN(30), dayN(30)}
	first := SegmentStream(stream, markers)
	if want := []int{2, 1, 2, 1, 1, 3, 2}; !reflect.DeepEqual(first, want) {
		t.Fatalf("got %v want %v", first, want)
	}
	for i := 0; i < 20; i++ {
		if got := SegmentStream(stream, markers); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d: got %v want %v", i, got, first)
		}
	}
}
