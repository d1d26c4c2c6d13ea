package analysis

import (
	"fmt"

	"github.com/KaramelBytes/padi-analytics/internal/survey"
)

// GroupBy selects the grouping key of Aggregate.
type GroupBy int

const (
	// GroupByTask groups by task only (aggregated view).
	GroupByTask GroupBy = iota
	// GroupByTaskInstance groups by task and detected instance (single-teacher view).
	GroupByTaskInstance
)

// MetricRow is one (group, metric) cell of the trend chart.
type MetricRow struct {
	Group       string        `json:"group"`
	Task        survey.Task   `json:"task"`
	Instance    int           `json:"instance,omitempty"`
	Metric      survey.Metric `json:"metric"`
	Percentage  float64       `json:"percentage"`
	Numerator   int           `json:"numerator"`
	Denominator int           `json:"denominator"`
	Count       string        `json:"count"`
}

// Percent returns num/den*100, or 0 when den is 0.
func Percent(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den) * 100
}

// CountYes counts records whose answer for m is exactly "Yes".
func CountYes(recs []survey.StudentResponse, m survey.Metric) int {
	n := 0
	for _, r := range recs {
		if r.Answer(m).IsYes() {
			n++
		}
	}
	return n
}

// Aggregate computes one row per (group, metric). Groups follow the fixed
// task order T1, T2, End, then ascending instance. Tasks without records
// produce no rows; records of unknown tasks are ignored.
func Aggregate(recs []survey.StudentResponse, metrics []survey.Metric, by GroupBy) []MetricRow {
	var assigned []Assignment
	if by == GroupByTaskInstance {
		assigned = Assign(recs)
	}
	var out []MetricRow
	for _, task := range survey.ChartTasks {
		// bucket[instance] holds the task's records of that instance
		buckets := map[int][]survey.StudentResponse{}
		maxInst := 0
		for i, r := range recs {
			if r.Task != task {
				continue
			}
			inst := 1
			if assigned != nil {
				inst = assigned[i].Instance
			}
			buckets[inst] = append(buckets[inst], r)
			if inst > maxInst {
				maxInst = inst
			}
		}
		for inst := 1; inst <= maxInst; inst++ {
			group, ok := buckets[inst]
			if !ok {
				continue
			}
			label := task.Label()
			if by == GroupByTaskInstance && maxInst > 1 {
				label = fmt.Sprintf("%s I%d", task.Label(), inst)
			}
			for _, m := range metrics {
				yes := CountYes(group, m)
				row := MetricRow{
					Group:       label,
					Task:        task,
					Metric:      m,
					Percentage:  Percent(yes, len(group)),
					Numerator:   yes,
					Denominator: len(group),
					Count:       fmt.Sprintf("(%d/%d)", yes, len(group)),
				}
				if by == GroupByTaskInstance {
					row.Instance = inst
				}
				out = append(out, row)
			}
		}
	}
	return out
}

// Card is one percentage metric card.
type Card struct {
	Metric      survey.Metric `json:"metric"`
	Name        string        `json:"name"`
	Percentage  float64       `json:"percentage"`
	Numerator   int           `json:"numerator"`
	Denominator int           `json:"denominator"`
}

// Cards are the headline numbers of a view.
type Cards struct {
	Metrics []Card `json:"metrics"`
	Total   int    `json:"total"`
}

// Overall computes the percentage of "Yes" for each metric over all records.
func Overall(recs []survey.StudentResponse, metrics []survey.Metric) Cards {
	c := Cards{Total: len(recs), Metrics: make([]Card, 0, len(metrics))}
	for _, m := range metrics {
		yes := CountYes(recs, m)
		c.Metrics = append(c.Metrics, Card{
			Metric:      m,
			Name:        m.DisplayName(),
			Percentage:  Percent(yes, len(recs)),
			Numerator:   yes,
			Denominator: len(recs),
		})
	}
	return c
}
