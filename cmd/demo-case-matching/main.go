// Demo program that runs a handful of calls through an in-memory pipeline
// and shows which ones merge into the same case, then scores the result.
package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/grievance/internal/catalog"
	"github.com/ppiankov/grievance/internal/model"
	"github.com/ppiankov/grievance/internal/pipeline"
	"github.com/ppiankov/grievance/internal/store"
)

var calls = []string{
	"My name is Ravi Kumar. I am calling from Lucknow, PIN 226001. " +
		"There is no water supply in our area for 3 days. Contact 9876543210.",
	"My name is Sunita Devi. I am calling from Lucknow, PIN 226001. " +
		"Water supply is not coming in our area for 2 days. Contact 9123456780.",
	"My name is Mohan Lal. I am calling from Kanpur. " +
		"The street light is broken near the bus stand since yesterday. Contact 9988776655.",
	"hello, is anyone there",
	"My name is Asha. I am calling from Mumbai, PIN 400001. " +
		"There is a pothole on the main road for 4 days. Contact 9090909090.",
	"There is garbage lying near the school gate for a week",
}

func main() {
	fmt.Println("=== Case Matching Demo ===")
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	p, err := pipeline.New(model.DefaultConfig(), pipeline.Deps{
		Store:   store.NewMemory(),
		Catalog: catalog.Default(),
	})
	if err != nil {
		fmt.Printf("setup failed: %v\n", err)
		return
	}
	defer func() { _ = p.Close() }()

	for i, call := range calls {
		fmt.Printf("Call %d: %s\n", i+1, call)
		fmt.Println(strings.Repeat("-", 60))

		out, err := p.SubmitTranscript(ctx, call)
		if err != nil {
			fmt.Printf("  error: %v\n\n", err)
			continue
		}

		switch out.Status {
		case model.OutcomeCreated:
			fmt.Printf("  ✓ New case %s\n", out.CaseID)
		case model.OutcomeMerged:
			fmt.Printf("  ⇢ Merged into %s (similarity %.2f, thread %d)\n", out.CaseID, out.Similarity, out.ThreadLength)
		case model.OutcomeRejected:
			fmt.Printf("  ✗ Rejected: %s\n", out.Reason)
		case model.OutcomeIncomplete:
			fmt.Printf("  … Incomplete, would ask:\n")
			for _, q := range out.Questions {
				fmt.Printf("     - %s\n", q)
			}
		}
		fmt.Println()
	}

	report, err := p.Score(ctx)
	if err != nil {
		fmt.Printf("scoring failed: %v\n", err)
		return
	}

	fmt.Println("=== Priorities ===")
	for _, cs := range report.Cases {
		fmt.Printf("  %s  %-18s score %.2f  %s\n", cs.CaseID, cs.Category, cs.Score, cs.Priority)
	}
}
