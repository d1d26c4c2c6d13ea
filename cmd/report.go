package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/padi-analytics/internal/analysis"
	"github.com/KaramelBytes/padi-analytics/internal/observability"
	"github.com/KaramelBytes/padi-analytics/internal/utils"
)

var (
	reportUser     string
	reportPassword string
	reportFrom     string
	reportTo       string
	reportTeacher  string
	reportCorrTask string
	reportJSON     bool
	reportOut      string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the dashboard for one identity in the terminal",
	Long: `Fetches both sheets, applies the identity's visibility and the date filter,
and prints the metric cards, the per-task chart rows, the correlation matrix and
the teacher reflections.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		a, err := newApp(ctx, c, false)
		if err != nil {
			return err
		}
		sess, err := a.login(reportUser, reportPassword)
		if err != nil {
			return err
		}
		f := analysis.Filters{Teacher: reportTeacher, CorrTask: reportCorrTask}
		if f.From, err = parseDay(reportFrom, a.location); err != nil {
			return err
		}
		if f.To, err = parseDay(reportTo, a.location); err != nil {
			return err
		}
		ds, err := a.loader.Load(ctx)
		if err != nil {
			return err
		}
		view, err := analysis.BuildView(a.resolver, sess.Identity, f, ds)
		observability.RecordRender("cli", err == nil)
		if err != nil {
			return err
		}

		if reportJSON || reportOut != "" {
			b, err := utils.PrettyJSON(view)
			if err != nil {
				return err
			}
			if reportOut != "" {
				if err := utils.SafeWriteFile(reportOut, b, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", reportOut)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		}
		renderView(cmd.OutOrStdout(), view)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVarP(&reportUser, "user", "u", "", "identity to log in as (admin or teacher last name)")
	reportCmd.Flags().StringVar(&reportPassword, "password", "", "password (defaults to $PADI_PASSWORD)")
	reportCmd.Flags().StringVar(&reportFrom, "from", "", "first day to include (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "last day to include (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportTeacher, "teacher", "", "teacher to view (admin only; empty for all teachers)")
	reportCmd.Flags().StringVar(&reportCorrTask, "corr-task", analysis.CorrelateAll, "correlation task filter: All, T1, T2 or End")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "print the view as JSON")
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "write the JSON view to a file")
	_ = reportCmd.MarkFlagRequired("user")
}

func renderView(w io.Writer, v *analysis.View) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	scope := "All Teachers"
	if !v.Aggregated {
		scope = v.Teacher
	}
	fmt.Fprintf(w, "%s %s\n", cyan("PADI Analytics:"), scope)
	if !v.Bounds.Min.IsZero() {
		fmt.Fprintf(w, "%s %s .. %s\n", gray("data range:"), v.Bounds.Min.Format("2006-01-02"), v.Bounds.Max.Format("2006-01-02"))
	}
	if len(v.TeacherOptions) > 0 {
		fmt.Fprintf(w, "%s %s\n", gray("teachers:"), strings.Join(v.TeacherOptions, ", "))
	}

	fmt.Fprintf(w, "\n%s\n", cyan("Overview"))
	for _, card := range v.Cards.Metrics {
		fmt.Fprintf(w, "  %-14s %s %s\n", card.Name, green(fmt.Sprintf("%5.1f%%", card.Percentage)),
			gray(fmt.Sprintf("(%d/%d)", card.Numerator, card.Denominator)))
	}
	fmt.Fprintf(w, "  %-14s %d\n", "Total Responses", v.Cards.Total)

	fmt.Fprintf(w, "\n%s\n", cyan("By task"))
	if len(v.Chart) == 0 {
		fmt.Fprintf(w, "  %s\n", yellow("No data for this filter."))
	}
	for _, row := range v.Chart {
		fmt.Fprintf(w, "  %-8s %-10s %5.1f%% %s\n", row.Group, row.Metric, row.Percentage, gray(row.Count))
	}

	fmt.Fprintf(w, "\n%s %s\n", cyan("Correlations"), gray("("+v.CorrTask+")"))
	fmt.Fprint(w, v.Correlation.Markdown())

	fmt.Fprintf(w, "\n%s\n", cyan("Teacher reflections"))
	switch v.ReflectionView {
	case analysis.ReflectionsSelectTeacher:
		fmt.Fprintf(w, "  %s\n", yellow("Select a teacher to view reflections."))
	case analysis.ReflectionsEmpty:
		fmt.Fprintf(w, "  %s\n", yellow("No reflections in this date range."))
	default:
		for _, r := range v.Reflections {
			when := "undated"
			if r.HasTimestamp() {
				when = r.Timestamp.Format("2006-01-02")
			}
			fmt.Fprintf(w, "  %s %s (%s)\n", green("•"), r.FullName, when)
			printField(w, "Went well", r.WentWell)
			printField(w, "Struggled", r.Struggled)
			printField(w, "Concerns", r.Concerns)
			printField(w, "Revisions", r.Revisions)
		}
	}
}

func printField(w io.Writer, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(w, "      %s: %s\n", label, value)
}
