package analysis

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/padi-analytics/internal/survey"
)

// CorrelateAll is the correlation task filter that keeps every record.
const CorrelateAll = "All"

// ErrUnknownTask is returned for a task filter other than All, T1, T2 or End.
var ErrUnknownTask = errors.New("unknown task")

// Cell is one entry of a correlation matrix. Defined is false when fewer than
// two rows carry both values or either column has zero variance over them.
type Cell struct {
	R       float64 `json:"r"`
	Defined bool    `json:"defined"`
	N       int     `json:"n"`
}

// CorrelationMatrix is a symmetric Pearson matrix over boolean-coded metrics.
type CorrelationMatrix struct {
	Columns []survey.Metric `json:"columns"`
	Cells   [][]Cell        `json:"cells"`
}

// At returns the cell for metrics a and b.
func (m *CorrelationMatrix) At(a, b survey.Metric) (Cell, bool) {
	ia, ib := -1, -1
	for i, c := range m.Columns {
		if c == a {
			ia = i
		}
		if c == b {
			ib = i
		}
	}
	if ia < 0 || ib < 0 {
		return Cell{}, false
	}
	return m.Cells[ia][ib], true
}

// pairAcc accumulates the sums needed for a pairwise-complete Pearson r.
type pairAcc struct {
	n     float64
	sumX  float64
	sumY  float64
	sumXX float64
	sumYY float64
	sumXY float64
}

func (pa *pairAcc) add(x, y float64) {
	pa.n++
	pa.sumX += x
	pa.sumY += y
	pa.sumXX += x * x
	pa.sumYY += y * y
	pa.sumXY += x * y
}

func (pa *pairAcc) cell() Cell {
	c := Cell{N: int(pa.n)}
	if pa.n < 2 {
		return c
	}
	vx := pa.n*pa.sumXX - pa.sumX*pa.sumX
	vy := pa.n*pa.sumYY - pa.sumY*pa.sumY
	if vx <= 0 || vy <= 0 {
		return c
	}
	r := (pa.n*pa.sumXY - pa.sumX*pa.sumY) / math.Sqrt(vx*vy)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return c
	}
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	c.R = r
	c.Defined = true
	return c
}

// Correlate computes the pairwise-complete Pearson matrix of metrics over
// recs. Answers other than "Yes" and "No" are missing values. The diagonal is
// 1 where the column has at least two values and nonzero variance.
func Correlate(recs []survey.StudentResponse, metrics []survey.Metric) *CorrelationMatrix {
	n := len(metrics)
	acc := make([][]pairAcc, n)
	for i := range acc {
		acc[i] = make([]pairAcc, n)
	}
	codes := make([]float64, n)
	ok := make([]bool, n)
	for _, r := range recs {
		for j, m := range metrics {
			codes[j], ok[j] = r.Answer(m).Code()
		}
		for a := 0; a < n; a++ {
			if !ok[a] {
				continue
			}
			for b := a; b < n; b++ {
				if ok[b] {
					acc[a][b].add(codes[a], codes[b])
				}
			}
		}
	}
	out := &CorrelationMatrix{Columns: append([]survey.Metric(nil), metrics...), Cells: make([][]Cell, n)}
	for a := range out.Cells {
		out.Cells[a] = make([]Cell, n)
	}
	for a := 0; a < n; a++ {
		for b := a; b < n; b++ {
			c := acc[a][b].cell()
			if a == b && c.Defined {
				c.R = 1
			}
			out.Cells[a][b] = c
			out.Cells[b][a] = c
		}
	}
	return out
}

// FilterTask narrows recs to one task label (T1, T2, End). CorrelateAll or ""
// keeps everything.
func FilterTask(recs []survey.StudentResponse, label string) ([]survey.StudentResponse, error) {
	if label == "" || label == CorrelateAll {
		return recs, nil
	}
	task, ok := survey.TaskFromLabel(label)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownTask, label)
	}
	out := make([]survey.StudentResponse, 0, len(recs))
	for _, r := range recs {
		if r.Task == task {
			out = append(out, r)
		}
	}
	return out, nil
}

// Markdown renders the matrix as a table, "n/a" marking undefined cells.
func (m *CorrelationMatrix) Markdown() string {
	var b strings.Builder
	b.WriteString("| ")
	for _, c := range m.Columns {
		b.WriteString(" | ")
		b.WriteString(c.DisplayName())
	}
	b.WriteString(" |\n|---")
	for range m.Columns {
		b.WriteString("|---")
	}
	b.WriteString("|\n")
	for i, row := range m.Cells {
		b.WriteString("| ")
		b.WriteString(m.Columns[i].DisplayName())
		for _, c := range row {
			if c.Defined {
				b.WriteString(fmt.Sprintf(" | %.2f", c.R))
			} else {
				b.WriteString(" | n/a")
			}
		}
		b.WriteString(" |\n")
	}
	return b.String()
}
