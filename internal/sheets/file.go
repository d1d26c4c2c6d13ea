package sheets

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileSource reads local exports of both sheets (.csv, .tsv or .xlsx). The
// first row of each file is the form header and is skipped.
type FileSource struct {
	StudentPath string
	TeacherPath string
	// Sheet selects the worksheet of .xlsx exports; empty means the first.
	Sheet string
}

func (f *FileSource) StudentRows(ctx context.Context) ([][]string, error) {
	return f.read(ctx, Students, f.StudentPath)
}

func (f *FileSource) TeacherRows(ctx context.Context) ([][]string, error) {
	return f.read(ctx, Teachers, f.TeacherPath)
}

func (f *FileSource) read(ctx context.Context, table Table, p string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Table: table, Err: err}
	}
	if p == "" {
		return nil, &FetchError{Table: table, Err: errors.New("no file configured")}
	}
	rows, err := ReadFile(p, f.Sheet)
	if err != nil {
		return nil, &FetchError{Table: table, Err: err}
	}
	if len(rows) > 0 {
		rows = rows[1:]
	}
	return rows, nil
}

// ReadFile returns all rows of a tabular export, header included.
func ReadFile(p, sheet string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".xlsx":
		return ReadXLSX(p, sheet)
	case ".csv":
		return readDelimited(p, ',')
	case ".tsv":
		return readDelimited(p, '\t')
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(p))
	}
}

func readDelimited(p string, delim rune) ([][]string, error) {
	fh, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(p), err)
	}
	defer fh.Close()
	r := csv.NewReader(fh)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.Comma = delim
	var rows [][]string
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}
