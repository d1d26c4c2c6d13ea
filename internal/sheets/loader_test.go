package sheets

import (
	"context"
	"errors"
	"testing"

	"github.com/KaramelBytes/padi-analytics/internal/survey"
)

type stubSource struct {
	students, teachers [][]string
	err                error
}

func (s stubSource) StudentRows(context.Context) ([][]string, error) { return s.students, s.err }
func (s stubSource) TeacherRows(context.Context) ([][]string, error) { return s.teachers, nil }

func TestLoader_Load(t *testing.T) {
	src := stubSource{
		students: [][]string{
			{"9/3/2025 10:15:00", "Walker", "5", "Instructional Task #1", "Yes"},
			{"9/3/2025 10:16:00", "Nobody", "5", "Instructional Task #1", "Yes"},
		},
		teachers: [][]string{{"9/4/2025 15:00:00", "jw@example.org", "Jane Walker"}},
	}
	l := &Loader{Source: src, Normalizer: survey.NewNormalizer(survey.NewRoster("walker"), nil)}
	ds, err := l.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(ds.Students) != 1 || len(ds.Reflections) != 1 {
		t.Fatalf("students=%d reflections=%d", len(ds.Students), len(ds.Reflections))
	}
}

func TestLoader_WrapsPlainErrors(t *testing.T) {
	l := &Loader{Source: stubSource{err: errors.New("quota")}, Normalizer: survey.NewNormalizer(nil, nil)}
	_, err := l.Load(context.Background())
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Table != Students {
		t.Fatalf("want students FetchError, got %v", err)
	}
}
