package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/ppiankov/grievance/internal/model"
	"github.com/spf13/cobra"
)

const casesTimeout = 2 * time.Minute

var (
	scoreJSON    bool
	listStatus   string
	listPriority string
	listCategory string
	listJSON     bool
)

// scoreCmd represents the score command
var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Classify and prioritize every case in the collection",
	Long: `Score assigns each case the department it most resembles, then
computes its priority from the department's weight, the strength of the
classification, and how many submissions the case has gathered.

Example:
  grievance score
  grievance score --json`,
	Args: cobra.NoArgs,
	RunE: runScore,
}

// casesCmd represents the cases command
var casesCmd = &cobra.Command{
	Use:   "cases",
	Short: "Inspect the case collection",
}

var casesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cases, highest score first",
	Args:  cobra.NoArgs,
	RunE:  runCasesList,
}

var casesShowCmd = &cobra.Command{
	Use:   "show <case_no>",
	Short: "Show one case with its submission thread",
	Args:  cobra.ExactArgs(1),
	RunE:  runCasesShow,
}

func init() {
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(casesCmd)
	casesCmd.AddCommand(casesListCmd)
	casesCmd.AddCommand(casesShowCmd)

	scoreCmd.Flags().BoolVar(&scoreJSON, "json", false, "print the full scoring report as JSON")

	casesListCmd.Flags().StringVar(&listStatus, "status", "", "only cases with this status (open, closed)")
	casesListCmd.Flags().StringVar(&listPriority, "priority", "", "only cases with this priority (low, medium, high)")
	casesListCmd.Flags().StringVar(&listCategory, "category", "", "only cases in this category")
	casesListCmd.Flags().BoolVar(&listJSON, "json", false, "print cases as JSON")
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), casesTimeout)
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	report, err := s.pipeline.Score(ctx)
	if err != nil {
		return fmt.Errorf("score failed: %w", err)
	}
	if scoreJSON {
		return printJSON(cmd.OutOrStdout(), report)
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"Case", "Category", "Category score", "Weight", "Thread", "Score", "Priority"})
	for _, cs := range report.Cases {
		t.AppendRow(table.Row{
			cs.CaseID, cs.Category,
			fmt.Sprintf("%.3f", cs.CategoryScore),
			fmt.Sprintf("%.3f", cs.WeightFraction),
			fmt.Sprintf("%.3f", cs.ThreadFactor),
			fmt.Sprintf("%.3f", cs.Score),
			cs.Priority,
		})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d cases", len(report.Cases)), "", "",
		fmt.Sprintf("max %d", report.MaxThread), "", fmt.Sprintf("%d degraded", report.Degraded)})
	t.Render()
	return nil
}

func runCasesList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), casesTimeout)
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	cases, err := s.pipeline.Cases(ctx)
	if err != nil {
		return err
	}

	var selected []model.Case
	for _, c := range cases {
		if listStatus != "" && !strings.EqualFold(string(c.Status), listStatus) {
			continue
		}
		if listPriority != "" && !strings.EqualFold(string(c.Priority), listPriority) {
			continue
		}
		if listCategory != "" && !strings.EqualFold(c.Category, listCategory) {
			continue
		}
		selected = append(selected, c)
	}
	sort.SliceStable(selected, func(i, j int) bool { return selected[i].Score > selected[j].Score })

	if listJSON {
		return printJSON(cmd.OutOrStdout(), selected)
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"Case", "Category", "Location", "Since", "Thread", "Score", "Priority", "Status"})
	for _, c := range selected {
		t.AppendRow(table.Row{
			c.ID, c.Category, c.Location,
			c.ProblemStart.Format("2006-01-02"),
			len(c.Thread),
			fmt.Sprintf("%.3f", c.Score),
			c.Priority, c.Status,
		})
	}
	t.Render()
	return nil
}

func runCasesShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), casesTimeout)
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	c, err := s.pipeline.Case(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), c)
}
