package survey

import (
	"strings"
	"time"
)

// TimestampLayout matches form timestamps such as "03/14/2025 09:05:00".
// Single-digit month, day and hour are accepted as Google Forms emits them.
const TimestampLayout = "1/2/2006 15:04:05"

// Column positions of the student exit-ticket sheet (A..M).
const (
	colStudentTimestamp = iota
	colStudentTeacher
	colStudentGrade
	colStudentTask
	colStudentLikedPartner
	colStudentDislikeReason
	colStudentChoice
	colStudentShowLearning
	colStudentEngaged
	colStudentConfused
	colStudentPrepared
	colStudentLikedText
	colStudentDislikedText
	StudentColumns
)

// Column positions of the teacher reflection sheet (A..K).
const (
	colTeacherTimestamp = iota
	colTeacherEmail
	colTeacherFullName
	colTeacherGrade
	colTeacherTaskType
	colTeacherWentWell
	colTeacherStruggled
	colTeacherConcerns
	colTeacherRevisions
	colTeacherPrinciples
	colTeacherOther
	TeacherColumns
)

// FirstDataRow is the sheet row of the first data row (row 1 is the header).
const FirstDataRow = 2

// Normalizer turns raw sheet rows into typed records.
type Normalizer struct {
	Roster   Roster
	Location *time.Location
}

// NormalizeStats counts what happened to the rows of one sheet.
type NormalizeStats struct {
	Rows    int
	Kept    int
	Dropped int // unknown teacher
	Untimed int // kept, but timestamp did not parse
}

// NewNormalizer returns a normalizer for the roster. A nil location means UTC.
func NewNormalizer(roster Roster, loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{Roster: roster, Location: loc}
}

// ParseTimestamp parses a form timestamp. Failures yield the zero time.
func (n *Normalizer) ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(TimestampLayout, s, n.Location)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Students normalizes exit-ticket rows. Rows whose teacher is not on the
// roster are dropped.
func (n *Normalizer) Students(rows [][]string) ([]StudentResponse, NormalizeStats) {
	var st NormalizeStats
	out := make([]StudentResponse, 0, len(rows))
	for i, raw := range rows {
		st.Rows++
		rec := pad(raw, StudentColumns)
		key := normalizeKey(rec[colStudentTeacher])
		if !n.Roster.Has(key) {
			st.Dropped++
			continue
		}
		r := StudentResponse{
			Row:           FirstDataRow + i,
			Timestamp:     n.ParseTimestamp(rec[colStudentTimestamp]),
			TeacherKey:    key,
			Grade:         rec[colStudentGrade],
			Task:          ParseTask(rec[colStudentTask]),
			TaskText:      rec[colStudentTask],
			LikedPartner:  Answer(rec[colStudentLikedPartner]),
			DislikeReason: rec[colStudentDislikeReason],
			Choice:        Answer(rec[colStudentChoice]),
			ShowLearning:  rec[colStudentShowLearning],
			Engaged:       Answer(rec[colStudentEngaged]),
			Confused:      Answer(rec[colStudentConfused]),
			Prepared:      Answer(rec[colStudentPrepared]),
			LikedText:     rec[colStudentLikedText],
			DislikedText:  rec[colStudentDislikedText],
		}
		if !r.HasTimestamp() {
			st.Untimed++
		}
		st.Kept++
		out = append(out, r)
	}
	return out, st
}

// Reflections normalizes teacher reflection rows. The teacher is the last
// word of the full name, lowercased.
func (n *Normalizer) Reflections(rows [][]string) ([]TeacherReflection, NormalizeStats) {
	var st NormalizeStats
	out := make([]TeacherReflection, 0, len(rows))
	for i, raw := range rows {
		st.Rows++
		rec := pad(raw, TeacherColumns)
		key := LastNameKey(rec[colTeacherFullName])
		if !n.Roster.Has(key) {
			st.Dropped++
			continue
		}
		r := TeacherReflection{
			Row:        FirstDataRow + i,
			Timestamp:  n.ParseTimestamp(rec[colTeacherTimestamp]),
			Email:      rec[colTeacherEmail],
			FullName:   rec[colTeacherFullName],
			TeacherKey: key,
			GradeLevel: rec[colTeacherGrade],
			TaskType:   rec[colTeacherTaskType],
			WentWell:   rec[colTeacherWentWell],
			Struggled:  rec[colTeacherStruggled],
			Concerns:   rec[colTeacherConcerns],
			Revisions:  rec[colTeacherRevisions],
			Principles: rec[colTeacherPrinciples],
			Other:      rec[colTeacherOther],
		}
		if !r.HasTimestamp() {
			st.Untimed++
		}
		st.Kept++
		out = append(out, r)
	}
	return out, st
}

// Dataset normalizes both sheets into a Dataset.
func (n *Normalizer) Dataset(studentRows, teacherRows [][]string) (*Dataset, NormalizeStats, NormalizeStats) {
	students, sst := n.Students(studentRows)
	reflections, tst := n.Reflections(teacherRows)
	return &Dataset{Students: students, Reflections: reflections, Roster: n.Roster}, sst, tst
}

// LastNameKey returns the lowercased last whitespace-delimited token of name.
func LastNameKey(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

func normalizeKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// pad returns rec extended with empty cells to n columns. Extra cells are cut.
func pad(rec []string, n int) []string {
	if len(rec) == n {
		return rec
	}
	out := make([]string, n)
	copy(out, rec)
	return out
}
