// Package rag implements the retrieval pipeline: embed the question, fetch
// the patient's nearest record chunks, assemble a grounding context, generate
// the answer, and persist a name-redacted audit trail.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/clinrag/clinrag/internal/log"
	"github.com/clinrag/clinrag/internal/records"
)

// TopK is how many chunks ground an answer.
const TopK = 3

// noRecordsContext substitutes for an empty retrieval result so the prompt
// always carries a CONTEXT section.
const noRecordsContext = "No relevant medical records were found for this patient."

// Store is the slice of the record store the pipeline consumes.
type Store interface {
	FindSimilarChunks(ctx context.Context, patientID int64, embedding pgvector.Vector, k int) ([]records.Chunk, error)
	GetPatient(ctx context.Context, id int64) (*records.Patient, error)
	LogQuery(ctx context.Context, patientID int64, question, contextText, answer string) records.LogResult
	LogAction(ctx context.Context, doctorID int64, action string, patientID *int64) records.LogResult
}

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces a single completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Pipeline answers clinician questions grounded in one patient's records.
// It is stateless per request and safe for concurrent use.
type Pipeline struct {
	store     Store
	embedder  Embedder
	generator Generator
	logger    log.Logger
}

// New creates a Pipeline. A nil logger falls back to slog.Default().
func New(store Store, embedder Embedder, generator Generator, logger log.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:     store,
		embedder:  embedder,
		generator: generator,
		logger:    logger,
	}
}

// Answer runs the pipeline stages in fixed order and returns the generated
// answer together with the formatted context chunks it was grounded in.
//
// The returned answer and contexts are unredacted; redaction applies only to
// the question and answer persisted to the query log. Log writes are best
// effort and never fail the request.
func (p *Pipeline) Answer(ctx context.Context, doctorID, patientID int64, question string) (string, []string, error) {
	vec, err := p.embedder.Embed(ctx, question)
	if err != nil {
		return "", nil, fmt.Errorf("embedding question: %w", err)
	}

	chunks, err := p.store.FindSimilarChunks(ctx, patientID, pgvector.NewVector(vec), TopK)
	if err != nil {
		return "", nil, fmt.Errorf("retrieving context: %w", err)
	}

	contexts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		contexts = append(contexts, formatChunk(c))
	}

	contextText := noRecordsContext
	if len(contexts) > 0 {
		contextText = strings.Join(contexts, "\n\n")
	}

	prompt := fmt.Sprintf("CONTEXT:\n%s\n\nUSER'S QUESTION:\n%s\n\nANSWER:", contextText, question)
	answer, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		return "", nil, fmt.Errorf("generating answer: %w", err)
	}

	// Best-effort name resolution; an unresolved patient leaves the
	// redaction target empty and the persisted text unredacted.
	var patientName string
	if patient, err := p.store.GetPatient(ctx, patientID); err == nil {
		patientName = patient.FullName()
	} else {
		p.logger.Warn("patient lookup for redaction failed", "patient_id", patientID, "error", err)
	}

	p.store.LogQuery(ctx, patientID,
		RedactName(question, patientName),
		contextText,
		RedactName(answer, patientName))
	p.store.LogAction(ctx, doctorID, records.ActionAskQuestion, &patientID)

	return answer, contexts, nil
}

// formatChunk renders one retrieved record for both the prompt context and
// the API response.
func formatChunk(c records.Chunk) string {
	return fmt.Sprintf("Date: %s\nPhysician: %s\nContent: %s",
		c.EventDate.Format("2006-01-02"), c.AttendingPhysician, c.Content)
}
