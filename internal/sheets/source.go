// Package sheets fetches the raw rows of both survey tables, either from
// Google Sheets or from local exports of the same sheets.
package sheets

import (
	"context"
	"fmt"
)

// Table names a survey table.
type Table string

const (
	Students Table = "students"
	Teachers Table = "teachers"
)

// Default A1 ranges. Data starts on row 2, below the form's header row.
const (
	DefaultStudentRange = "Form Responses 1!A2:M"
	DefaultTeacherRange = "Form Responses 1!A2:K"
)

// Source yields the data rows of both tables, header excluded. Rows may be
// shorter than the schema; callers pad them.
type Source interface {
	StudentRows(ctx context.Context) ([][]string, error)
	TeacherRows(ctx context.Context) ([][]string, error)
}

// FetchError reports a failed fetch of one table. It is terminal for the
// render that triggered it.
type FetchError struct {
	Table Table
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s rows: %v", e.Table, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
