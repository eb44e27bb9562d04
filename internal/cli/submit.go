package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/grievance/internal/model"
	"github.com/spf13/cobra"
)

var (
	submitTimeout time.Duration
	structured    bool
)

// intakeCmd represents the intake command
var intakeCmd = &cobra.Command{
	Use:   "intake [file]",
	Short: "Extract grievance fields from a transcript without submitting it",
	Long: `Intake normalizes a single transcript and reports the extracted
fields, what is still missing, and the follow-up questions to ask.
Nothing is filtered or stored.

Example:
  grievance intake call.txt
  echo "My name is Ravi..." | grievance intake`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIntake,
}

// submitCmd represents the submit command
var submitCmd = &cobra.Command{
	Use:   "submit [file]",
	Short: "Submit a transcript (or structured grievance) to the case collection",
	Long: `Submit runs one grievance through the full pipeline:
- Normalize the transcript into structured fields
- Reject spam, bulk and out-of-jurisdiction submissions
- Merge into a matching open case or create a new one

Example:
  grievance submit call.txt
  grievance submit --structured grievance.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(intakeCmd)
	rootCmd.AddCommand(submitCmd)

	intakeCmd.Flags().DurationVar(&submitTimeout, "timeout", 2*time.Minute, "overall timeout")
	submitCmd.Flags().DurationVar(&submitTimeout, "timeout", 2*time.Minute, "overall timeout")
	submitCmd.Flags().BoolVar(&structured, "structured", false, "input is a JSON grievance rather than a transcript")
}

func runIntake(cmd *cobra.Command, args []string) error {
	transcript, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), submitTimeout)
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	return printJSON(cmd.OutOrStdout(), s.pipeline.Intake(ctx, transcript))
}

func runSubmit(cmd *cobra.Command, args []string) error {
	input, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), submitTimeout)
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	var out *model.Outcome
	if structured {
		var g model.Grievance
		if err := json.Unmarshal([]byte(input), &g); err != nil {
			return fmt.Errorf("parse grievance: %w", err)
		}
		out, err = s.pipeline.SubmitGrievance(ctx, g)
	} else {
		out, err = s.pipeline.SubmitTranscript(ctx, input)
	}
	if err != nil {
		return fmt.Errorf("submit failed: %w", err)
	}

	if verbose {
		switch out.Status {
		case model.OutcomeCreated, model.OutcomeMerged:
			fmt.Fprintf(os.Stderr, "✓ %s case %s (thread length %d)\n", out.Status, out.CaseID, out.ThreadLength)
		case model.OutcomeRejected:
			fmt.Fprintf(os.Stderr, "✗ rejected: %s\n", out.Reason)
		case model.OutcomeIncomplete:
			fmt.Fprintf(os.Stderr, "… incomplete, %d follow-up questions\n", len(out.Questions))
		}
	}
	return printJSON(cmd.OutOrStdout(), out)
}
