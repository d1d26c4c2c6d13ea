// Package analysis segments, aggregates, correlates and summarizes
// normalized survey records. Everything here is a pure function of its input.
package analysis

import (
	"sort"
	"time"

	"github.com/KaramelBytes/padi-analytics/internal/survey"
)

// LongGapDays is the gap, in whole days, that must be exceeded before a new
// instance may start.
const LongGapDays = 14

const day = 24 * time.Hour

// SegmentStream assigns an instance number to each submission of one
// teacher's stream for one task. stream is in input order; ties on timestamp
// keep that order. markers are the teacher's End submissions. A new instance
// starts only when the gap to the previous submission exceeds LongGapDays
// whole days of wall-clock time and a marker lies strictly between the two.
// Zero timestamps are left out of the walk and get instance 1.
func SegmentStream(stream []time.Time, markers []time.Time) []int {
	out := make([]int, len(stream))
	order := make([]int, 0, len(stream))
	for i, ts := range stream {
		out[i] = 1
		if !ts.IsZero() {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool { return stream[order[a]].Before(stream[order[b]]) })

	ends := make([]time.Time, 0, len(markers))
	for _, m := range markers {
		if !m.IsZero() {
			ends = append(ends, m)
		}
	}
	sort.Slice(ends, func(a, b int) bool { return ends[a].Before(ends[b]) })

	instance := 1
	var last time.Time
	for k, idx := range order {
		cur := stream[idx]
		if k > 0 {
			longGap := wallDays(last, cur) > LongGapDays
			if longGap && markerBetween(ends, last, cur) {
				instance++
			}
		}
		out[idx] = instance
		last = cur
	}
	return out
}

// wallDays returns the whole days between two wall-clock readings, ignoring
// offset changes of their zone.
func wallDays(from, to time.Time) int {
	return int(wallClock(to).Sub(wallClock(from)) / day)
}

func wallClock(t time.Time) time.Time {
	y, m, d := t.Date()
	h, mi, s := t.Clock()
	return time.Date(y, m, d, h, mi, s, t.Nanosecond(), time.UTC)
}

// markerBetween reports whether any of the sorted ends lies strictly inside (lo, hi).
func markerBetween(ends []time.Time, lo, hi time.Time) bool {
	i := sort.Search(len(ends), func(i int) bool { return ends[i].After(lo) })
	return i < len(ends) && ends[i].Before(hi)
}

// AssignInstances returns the instance number of every record, parallel to
// recs. Each teacher's streams are segmented independently, using that
// teacher's End submissions in recs as markers. Records of unknown tasks get 1.
func AssignInstances(recs []survey.StudentResponse) []int {
	out := make([]int, len(recs))
	byTeacher := map[string][]int{}
	var teachers []string
	for i, r := range recs {
		out[i] = 1
		if _, ok := byTeacher[r.TeacherKey]; !ok {
			teachers = append(teachers, r.TeacherKey)
		}
		byTeacher[r.TeacherKey] = append(byTeacher[r.TeacherKey], i)
	}
	for _, teacher := range teachers {
		idxs := byTeacher[teacher]
		var markers []time.Time
		for _, i := range idxs {
			if recs[i].Task == survey.TaskEnd {
				markers = append(markers, recs[i].Timestamp)
			}
		}
		for _, task := range survey.ChartTasks {
			var pos []int
			var stream []time.Time
			for _, i := range idxs {
				if recs[i].Task == task {
					pos = append(pos, i)
					stream = append(stream, recs[i].Timestamp)
				}
			}
			if len(pos) == 0 {
				continue
			}
			for k, inst := range SegmentStream(stream, markers) {
				out[pos[k]] = inst
			}
		}
	}
	return out
}

// Assignment is the derived instance of one record.
type Assignment struct {
	Row      int         `json:"row"`
	Task     survey.Task `json:"task"`
	Instance int         `json:"instance"`
}

// Assign pairs every record with its task and instance number, in input order.
func Assign(recs []survey.StudentResponse) []Assignment {
	inst := AssignInstances(recs)
	out := make([]Assignment, len(recs))
	for i, r := range recs {
		out[i] = Assignment{Row: r.Row, Task: r.Task, Instance: inst[i]}
	}
	return out
}
