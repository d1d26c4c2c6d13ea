// Package access decides which records an identity may see and keeps the
// login sessions that carry that identity between requests.
package access

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/padi-analytics/internal/survey"
)

// AdminIdentity is the privileged identity that may view any teacher or the
// aggregate of all of them.
const AdminIdentity = "admin"

// ErrUnknownTeacher is returned when the admin selects a teacher that is not
// on the roster.
var ErrUnknownTeacher = errors.New("unknown teacher")

// Scope is the resolved visibility of one render.
type Scope struct {
	Identity string
	// Teacher is the single teacher in view, or "" for the aggregated view.
	Teacher string
}

// Aggregated reports whether the scope covers all teachers combined.
func (s Scope) Aggregated() bool { return s.Teacher == "" }

// IsAdmin reports whether the scope belongs to the admin identity.
func (s Scope) IsAdmin() bool { return s.Identity == AdminIdentity }

// Resolver maps an authenticated identity to its visible records.
type Resolver struct {
	roster survey.Roster
}

// NewResolver returns a resolver over the known teachers.
func NewResolver(roster survey.Roster) *Resolver {
	return &Resolver{roster: roster}
}

// Scope computes the visibility for identity. selection is only honoured for
// the admin: "" selects the aggregated view, otherwise a roster key. Every
// other identity is pinned to itself regardless of selection.
func (r *Resolver) Scope(identity, selection string) (Scope, error) {
	identity = strings.ToLower(strings.TrimSpace(identity))
	if identity == AdminIdentity {
		sel := strings.ToLower(strings.TrimSpace(selection))
		if sel == "" {
			return Scope{Identity: identity}, nil
		}
		if !r.roster.Has(sel) {
			return Scope{}, fmt.Errorf("%w: %s", ErrUnknownTeacher, selection)
		}
		return Scope{Identity: identity, Teacher: sel}, nil
	}
	if identity == "" {
		return Scope{}, fmt.Errorf("%w: empty identity", ErrUnknownTeacher)
	}
	return Scope{Identity: identity, Teacher: identity}, nil
}

// Students returns the responses visible in scope.
func (r *Resolver) Students(s Scope, in []survey.StudentResponse) []survey.StudentResponse {
	if s.IsAdmin() && s.Aggregated() {
		return in
	}
	if s.Teacher == "" {
		return nil
	}
	out := make([]survey.StudentResponse, 0, len(in))
	for _, rec := range in {
		if rec.TeacherKey == s.Teacher {
			out = append(out, rec)
		}
	}
	return out
}

// Reflections returns the reflections visible in scope. The aggregated admin
// view shows none until a teacher is selected.
func (r *Resolver) Reflections(s Scope, in []survey.TeacherReflection) []survey.TeacherReflection {
	if s.Teacher == "" {
		return nil
	}
	out := make([]survey.TeacherReflection, 0, len(in))
	for _, rec := range in {
		if rec.TeacherKey == s.Teacher {
			out = append(out, rec)
		}
	}
	return out
}

// Resolve applies Scope and both record filters to a dataset.
func (r *Resolver) Resolve(identity, selection string, ds *survey.Dataset) (Scope, *survey.Dataset, error) {
	s, err := r.Scope(identity, selection)
	if err != nil {
		return Scope{}, nil, err
	}
	return s, &survey.Dataset{
		Students:    r.Students(s, ds.Students),
		Reflections: r.Reflections(s, ds.Reflections),
		Roster:      ds.Roster,
	}, nil
}

// TeacherOptions lists the teacher keys present in student data, sorted, for
// the admin's teacher selector.
func TeacherOptions(in []survey.StudentResponse) []string {
	seen := map[string]struct{}{}
	for _, r := range in {
		seen[r.TeacherKey] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
