package analysis

import (
	"time"

	"github.com/KaramelBytes/padi-analytics/internal/access"
	"github.com/KaramelBytes/padi-analytics/internal/survey"
)

// ReflectionState tells the UI how to render the reflections section.
type ReflectionState string

const (
	ReflectionsSelectTeacher ReflectionState = "select_teacher"
	ReflectionsEmpty         ReflectionState = "empty"
	ReflectionsOK            ReflectionState = "ok"
)

// Filters are the user's choices for one render. Zero From/To means unbounded.
type Filters struct {
	From     time.Time
	To       time.Time
	Teacher  string // honoured for the admin only
	CorrTask string // All, T1, T2 or End
}

// DateBounds are the earliest and latest dated student submissions in scope.
type DateBounds struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`
}

// View is everything a dashboard render shows.
type View struct {
	Identity       string                     `json:"identity"`
	Teacher        string                     `json:"teacher,omitempty"`
	Aggregated     bool                       `json:"aggregated"`
	Bounds         DateBounds                 `json:"bounds"`
	From           time.Time                  `json:"from"`
	To             time.Time                  `json:"to"`
	TeacherOptions []string                   `json:"teacher_options,omitempty"`
	Cards          Cards                      `json:"cards"`
	Chart          []MetricRow                `json:"chart"`
	CorrTask       string                     `json:"corr_task"`
	Correlation    *CorrelationMatrix         `json:"correlation"`
	ReflectionView ReflectionState            `json:"reflection_state"`
	Reflections    []survey.TeacherReflection `json:"reflections,omitempty"`
}

// InRange reports whether ts lies inside the inclusive calendar-day range
// [from, to]. With both bounds zero every timestamp matches, including the
// zero one; otherwise zero timestamps never match.
func InRange(ts, from, to time.Time) bool {
	if from.IsZero() && to.IsZero() {
		return true
	}
	if ts.IsZero() {
		return false
	}
	if !from.IsZero() && ts.Before(startOfDay(from)) {
		return false
	}
	if !to.IsZero() && !ts.Before(startOfDay(to).AddDate(0, 0, 1)) {
		return false
	}
	return true
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// FilterDates keeps the responses inside [from, to].
func FilterDates(in []survey.StudentResponse, from, to time.Time) []survey.StudentResponse {
	out := make([]survey.StudentResponse, 0, len(in))
	for _, r := range in {
		if InRange(r.Timestamp, from, to) {
			out = append(out, r)
		}
	}
	return out
}

// FilterReflectionDates keeps the reflections inside [from, to].
func FilterReflectionDates(in []survey.TeacherReflection, from, to time.Time) []survey.TeacherReflection {
	out := make([]survey.TeacherReflection, 0, len(in))
	for _, r := range in {
		if InRange(r.Timestamp, from, to) {
			out = append(out, r)
		}
	}
	return out
}

// Bounds returns the date range of the dated responses; zero when none.
func Bounds(in []survey.StudentResponse) DateBounds {
	var b DateBounds
	for _, r := range in {
		if !r.HasTimestamp() {
			continue
		}
		if b.Min.IsZero() || r.Timestamp.Before(b.Min) {
			b.Min = r.Timestamp
		}
		if r.Timestamp.After(b.Max) {
			b.Max = r.Timestamp
		}
	}
	return b
}

// BuildView computes one dashboard render for identity. It never mutates ds.
func BuildView(res *access.Resolver, identity string, f Filters, ds *survey.Dataset) (*View, error) {
	scope, visible, err := res.Resolve(identity, f.Teacher, ds)
	if err != nil {
		return nil, err
	}
	corrTask := f.CorrTask
	if corrTask == "" {
		corrTask = CorrelateAll
	}
	v := &View{
		Identity:   scope.Identity,
		Teacher:    scope.Teacher,
		Aggregated: scope.Aggregated(),
		Bounds:     Bounds(visible.Students),
		From:       f.From,
		To:         f.To,
		CorrTask:   corrTask,
	}
	if scope.IsAdmin() {
		v.TeacherOptions = access.TeacherOptions(ds.Students)
	}

	students := FilterDates(visible.Students, f.From, f.To)
	v.Cards = Overall(students, survey.CardMetrics)
	by := GroupByTaskInstance
	if scope.Aggregated() {
		by = GroupByTask
	}
	v.Chart = Aggregate(students, survey.ChartMetrics, by)

	corrRecs, err := FilterTask(students, corrTask)
	if err != nil {
		return nil, err
	}
	v.Correlation = Correlate(corrRecs, survey.CorrelationMetrics)

	switch {
	case scope.Aggregated():
		v.ReflectionView = ReflectionsSelectTeacher
	default:
		v.Reflections = FilterReflectionDates(visible.Reflections, f.From, f.To)
		v.ReflectionView = ReflectionsOK
		if len(v.Reflections) == 0 {
			v.ReflectionView = ReflectionsEmpty
		}
	}
	return v, nil
}
