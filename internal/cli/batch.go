package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/ppiankov/grievance/internal/model"
	"github.com/ppiankov/grievance/internal/worker"
	"github.com/spf13/cobra"
)

var (
	concurrency  int
	outputFile   string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Submit many transcripts from a file in parallel",
	Long: `Batch submits every transcript in a file concurrently:
- Transcripts are separated by blank lines; '#' lines are comments
- Each transcript goes through intake, filtering and matching
- Submissions reporting the same incident merge into one case
- A summary table is printed; --output writes all outcomes as JSON

Example:
  grievance batch calls.txt
  grievance batch calls.txt --concurrency 8 --output outcomes.json`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().StringVar(&outputFile, "output", "", "write outcomes as JSON to this path")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Store:        %s\n", s.config.Store.Driver)
	fmt.Fprintf(os.Stderr, "\n")

	processor := worker.NewBatchProcessor(s.pipeline, concurrency)
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	counts := make(map[model.OutcomeStatus]int)
	failures := 0

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"#", "Outcome", "Case", "Thread", "Detail"})
	for _, r := range results {
		if r.Error != nil {
			failures++
			t.AppendRow(table.Row{r.Index + 1, "error", "", "", r.Error.Error()})
			continue
		}

		out := r.Outcome
		counts[out.Status]++

		detail := ""
		switch out.Status {
		case model.OutcomeRejected:
			detail = string(out.Reason)
		case model.OutcomeIncomplete:
			detail = strings.Join(out.Questions, " ")
		case model.OutcomeMerged:
			detail = fmt.Sprintf("similarity %.2f", out.Similarity)
		}
		t.AppendRow(table.Row{r.Index + 1, out.Status, out.CaseID, out.ThreadLength, truncate(detail, 60)})
	}
	t.AppendFooter(table.Row{"", "total", len(results), "", fmt.Sprintf(
		"created %d, merged %d, rejected %d, incomplete %d, errors %d",
		counts[model.OutcomeCreated], counts[model.OutcomeMerged],
		counts[model.OutcomeRejected], counts[model.OutcomeIncomplete], failures)})
	t.Render()

	if outputFile != "" {
		if err := writeOutcomes(outputFile, results); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "\n✓ Outcomes written to %s\n", outputFile)
	}
	return nil
}

type batchRecord struct {
	Index   int            `json:"index"`
	Outcome *model.Outcome `json:"outcome,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func writeOutcomes(path string, results []*worker.SubmissionResult) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	records := make([]batchRecord, len(results))
	for i, r := range results {
		records[i] = batchRecord{Index: r.Index, Outcome: r.Outcome}
		if r.Error != nil {
			records[i].Error = r.Error.Error()
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()

	return printJSON(f, records)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
