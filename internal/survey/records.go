package survey

import (
	"sort"
	"time"
)

// Task identifies the instructional task a student response was submitted for.
type Task int

const (
	// TaskOther covers task strings outside the known set. Such rows are kept
	// for totals but never grouped in charts.
	TaskOther Task = iota
	TaskT1
	TaskT2
	TaskEnd
)

type taskInfo struct {
	sheet string // text as it appears in the form
	label string // short display label
}

var taskTable = map[Task]taskInfo{
	TaskT1:  {sheet: "Instructional Task #1", label: "T1"},
	TaskT2:  {sheet: "Instructional Task #2", label: "T2"},
	TaskEnd: {sheet: "End-of-Unit Performance Task", label: "End"},
}

// ChartTasks is the fixed display order of known tasks.
var ChartTasks = []Task{TaskT1, TaskT2, TaskEnd}

// Label returns the short display label (T1, T2, End).
func (t Task) Label() string {
	if info, ok := taskTable[t]; ok {
		return info.label
	}
	return "Other"
}

// SheetName returns the task text used by the form.
func (t Task) SheetName() string {
	return taskTable[t].sheet
}

func (t Task) String() string { return t.Label() }

// MarshalText encodes a task as its short label.
func (t Task) MarshalText() ([]byte, error) { return []byte(t.Label()), nil }

// ParseTask maps the form's task text to a Task. Unknown text yields TaskOther.
func ParseTask(s string) Task {
	for t, info := range taskTable {
		if info.sheet == s {
			return t
		}
	}
	return TaskOther
}

// TaskFromLabel maps a short label (T1, T2, End) to a Task.
func TaskFromLabel(label string) (Task, bool) {
	for t, info := range taskTable {
		if info.label == label {
			return t, true
		}
	}
	return TaskOther, false
}

// Answer is a boolean-coded form answer, kept verbatim for display.
type Answer string

// IsYes reports an exact, case-sensitive "Yes".
func (a Answer) IsYes() bool { return a == "Yes" }

// Code maps "Yes" to 1 and "No" to 0. Anything else is undefined.
func (a Answer) Code() (float64, bool) {
	switch a {
	case "Yes":
		return 1, true
	case "No":
		return 0, true
	}
	return 0, false
}

// Metric names a boolean-coded field of a student response.
type Metric string

const (
	Engaged      Metric = "Engaged"
	Confused     Metric = "Confused"
	Choice       Metric = "Choice"
	Prepared     Metric = "Prepared"
	LikedPartner Metric = "LikedPartner"
)

// ChartMetrics are the metrics shown in the trend chart, in legend order.
var ChartMetrics = []Metric{Engaged, Confused, Choice, Prepared}

// CardMetrics are the metrics shown as percentage cards.
var CardMetrics = []Metric{Engaged, Confused, Choice, Prepared, LikedPartner}

// CorrelationMetrics are the correlated columns, in table order.
var CorrelationMetrics = []Metric{Engaged, Choice, Prepared, Confused}

// DisplayName returns the human label of a metric.
func (m Metric) DisplayName() string {
	if m == LikedPartner {
		return "Liked Partner"
	}
	return string(m)
}

// StudentResponse is one normalized exit-ticket row.
type StudentResponse struct {
	Row          int // 1-based sheet row
	Timestamp    time.Time
	TeacherKey   string
	Grade        string
	Task         Task
	TaskText     string
	LikedPartner Answer
	Engaged      Answer
	Confused     Answer
	Choice       Answer
	Prepared     Answer
	LikedText    string
	DislikedText string
	// DislikeReason explains a partner dislike.
	DislikeReason string
	ShowLearning  string
}

// HasTimestamp reports whether the row's timestamp parsed.
func (r StudentResponse) HasTimestamp() bool { return !r.Timestamp.IsZero() }

// Answer returns the answer recorded for the given metric.
func (r StudentResponse) Answer(m Metric) Answer {
	switch m {
	case Engaged:
		return r.Engaged
	case Confused:
		return r.Confused
	case Choice:
		return r.Choice
	case Prepared:
		return r.Prepared
	case LikedPartner:
		return r.LikedPartner
	}
	return ""
}

// TeacherReflection is one normalized teacher reflection row.
type TeacherReflection struct {
	Row        int
	Timestamp  time.Time
	Email      string
	FullName   string
	TeacherKey string
	GradeLevel string
	TaskType   string
	WentWell   string
	Struggled  string
	Concerns   string
	Revisions  string
	Principles string
	Other      string
}

// HasTimestamp reports whether the row's timestamp parsed.
func (r TeacherReflection) HasTimestamp() bool { return !r.Timestamp.IsZero() }

// Dataset holds both normalized row sets for one render.
type Dataset struct {
	Students    []StudentResponse
	Reflections []TeacherReflection
	Roster      Roster
}

// Roster is the set of known teacher keys (lowercase last names).
type Roster map[string]struct{}

// NewRoster builds a roster from keys; keys are lowercased and trimmed.
func NewRoster(keys ...string) Roster {
	r := make(Roster, len(keys))
	for _, k := range keys {
		if k = normalizeKey(k); k != "" {
			r[k] = struct{}{}
		}
	}
	return r
}

// Has reports whether key (already normalized) is a known teacher.
func (r Roster) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// Keys returns the roster keys sorted.
func (r Roster) Keys() []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
