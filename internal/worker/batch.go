package worker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ppiankov/grievance/internal/model"
)

// Submitter runs one transcript through the grievance pipeline
type Submitter interface {
	SubmitTranscript(ctx context.Context, transcript string) (*model.Outcome, error)
}

// SubmissionResult is the outcome of one transcript in a batch
type SubmissionResult struct {
	Index      int
	Transcript string
	Outcome    *model.Outcome
	Error      error
}

// BatchProcessor submits many transcripts concurrently
type BatchProcessor struct {
	submitter   Submitter
	concurrency int
}

// NewBatchProcessor creates a batch processor
func NewBatchProcessor(submitter Submitter, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		submitter:   submitter,
		concurrency: concurrency,
	}
}

// ProcessTranscripts submits every transcript and returns results in input order
func (b *BatchProcessor) ProcessTranscripts(ctx context.Context, transcripts []string) []*SubmissionResult {
	results := Map(ctx, b.concurrency, transcripts, func(ctx context.Context, transcript string) *SubmissionResult {
		outcome, err := b.submitter.SubmitTranscript(ctx, transcript)
		return &SubmissionResult{Transcript: transcript, Outcome: outcome, Error: err}
	})

	for i, r := range results {
		if r == nil {
			r = &SubmissionResult{Transcript: transcripts[i], Error: ctx.Err()}
			results[i] = r
		}
		r.Index = i
	}
	return results
}

// ProcessFile reads transcripts from a file and submits them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*SubmissionResult, error) {
	transcripts, err := ReadTranscriptsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read transcripts: %w", err)
	}

	return b.ProcessTranscripts(ctx, transcripts), nil
}

// ReadTranscriptsFromFile reads blank-line separated transcripts from a file
func ReadTranscriptsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ReadTranscripts(file)
}

// ReadTranscripts splits input into transcripts on blank lines. Lines starting
// with '#' are comments; a transcript keeps its internal line breaks.
func ReadTranscripts(r io.Reader) ([]string, error) {
	var transcripts []string
	var current []string

	flush := func() {
		if len(current) > 0 {
			transcripts = append(transcripts, strings.Join(current, "\n"))
			current = nil
		}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "#"):
			continue
		default:
			current = append(current, line)
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return transcripts, nil
}
