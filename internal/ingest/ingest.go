// Package ingest loads patient CSV exports into the record store: unique
// patients are upserted first, then one embedded medical event per row.
// Re-running an export never duplicates patients; events append every run.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/clinrag/clinrag/internal/log"
	"github.com/clinrag/clinrag/internal/records"
)

// Store is the slice of the record store ingestion consumes.
type Store interface {
	InsertPatients(ctx context.Context, patients []records.Patient) error
	ResolvePatientIDs(ctx context.Context, keys []records.PatientKey) (map[records.PatientKey]int64, error)
	InsertMedicalEvents(ctx context.Context, events []records.MedicalEvent) error
}

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// requiredColumns must be present in the CSV header.
var requiredColumns = []string{"first_name", "last_name", "date_of_birth", "event_date"}

const dateLayout = "2006-01-02"

// row is one CSV record, all fields as read.
type row struct {
	FirstName          string
	LastName           string
	DateOfBirth        string
	Gender             string
	EventDate          string
	AttendingPhysician string
	Diagnoses          string
	ClinicalNotes      string
	Medications        string
}

func (r row) key() records.PatientKey {
	return records.PatientKey{
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		DateOfBirth: r.DateOfBirth,
	}
}

// Ingestor runs CSV batch ingestion against the record store.
type Ingestor struct {
	store    Store
	embedder Embedder
	logger   log.Logger
}

// New creates an Ingestor. A nil logger falls back to slog.Default().
func New(store Store, embedder Embedder, logger log.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		store:    store,
		embedder: embedder,
		logger:   logger,
	}
}

// Run ingests the CSV file at path. Patients are deduplicated by natural key
// and upserted in one batch; every row then becomes one medical event with a
// freshly computed embedding. Rows whose patient cannot be resolved are
// skipped with a warning; structural failures (file, store, embedder) abort
// the run.
func (ing *Ingestor) Run(ctx context.Context, path string) error {
	ing.logger.Info("starting data ingestion", "file", path)

	rows, err := readRows(path)
	if err != nil {
		return err
	}

	patients, keys := uniquePatients(rows, ing.logger)
	ing.logger.Info("ingesting unique patient records", "count", len(patients))
	if err := ing.store.InsertPatients(ctx, patients); err != nil {
		return fmt.Errorf("inserting patients: %w", err)
	}

	resolved, err := ing.store.ResolvePatientIDs(ctx, keys)
	if err != nil {
		return fmt.Errorf("resolving patient ids: %w", err)
	}

	events := make([]records.MedicalEvent, 0, len(rows))
	for _, r := range rows {
		patientID, ok := resolved[r.key()]
		if !ok {
			ing.logger.Warn("skipping event, patient unresolved",
				"first_name", r.FirstName, "last_name", r.LastName)
			continue
		}

		eventDate, err := time.Parse(dateLayout, r.EventDate)
		if err != nil {
			ing.logger.Warn("skipping event, bad event date",
				"first_name", r.FirstName, "event_date", r.EventDate)
			continue
		}

		content := buildContent(r)
		vec, err := ing.embedder.Embed(ctx, content)
		if err != nil {
			return fmt.Errorf("embedding event content: %w", err)
		}

		events = append(events, records.MedicalEvent{
			PatientID:          patientID,
			EventDate:          eventDate,
			AttendingPhysician: r.AttendingPhysician,
			Assessment:         r.Diagnoses,
			Content:            content,
			Embedding:          pgvector.NewVector(vec),
		})
	}

	ing.logger.Info("ingesting medical events", "count", len(events))
	if err := ing.store.InsertMedicalEvents(ctx, events); err != nil {
		return fmt.Errorf("inserting medical events: %w", err)
	}

	ing.logger.Info("data ingestion complete")
	return nil
}

// readRows parses the CSV file into rows, keyed by the header line.
func readRows(path string) ([]row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening CSV file: %w", err)
	}
	defer f.Close()

	return parseCSV(f)
}

func parseCSV(r io.Reader) ([]row, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, required := range requiredColumns {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("CSV header missing required column %q", required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	var rows []row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV record: %w", err)
		}

		rows = append(rows, row{
			FirstName:          field(record, "first_name"),
			LastName:           field(record, "last_name"),
			DateOfBirth:        field(record, "date_of_birth"),
			Gender:             field(record, "gender"),
			EventDate:          field(record, "event_date"),
			AttendingPhysician: field(record, "attending_physician"),
			Diagnoses:          field(record, "diagnoses"),
			ClinicalNotes:      field(record, "clinical_notes"),
			Medications:        field(record, "medications"),
		})
	}

	return rows, nil
}

// uniquePatients deduplicates rows by natural key, preserving first-seen
// order. Rows with an unparseable date of birth are dropped with a warning;
// their events would be unresolvable anyway.
func uniquePatients(rows []row, logger log.Logger) ([]records.Patient, []records.PatientKey) {
	seen := make(map[records.PatientKey]bool, len(rows))
	var patients []records.Patient
	var keys []records.PatientKey

	for _, r := range rows {
		key := r.key()
		if seen[key] {
			continue
		}
		seen[key] = true

		dob, err := time.Parse(dateLayout, r.DateOfBirth)
		if err != nil {
			logger.Warn("skipping patient, bad date of birth",
				"first_name", r.FirstName, "last_name", r.LastName, "date_of_birth", r.DateOfBirth)
			continue
		}

		patients = append(patients, records.Patient{
			FirstName:   r.FirstName,
			LastName:    r.LastName,
			DateOfBirth: dob,
			Gender:      r.Gender,
		})
		keys = append(keys, key)
	}

	return patients, keys
}

// buildContent assembles the text a row's embedding is computed from.
// Blank fields render as N/A so every block keeps the same shape.
func buildContent(r row) string {
	na := func(s string) string {
		if s == "" {
			return "N/A"
		}
		return s
	}

	return fmt.Sprintf(
		"Event Date: %s\nAttending Physician: %s\nAssessment (Diagnosis): %s\nSubjective/Objective (Notes): %s\nPlan: Prescribed %s",
		na(r.EventDate),
		na(r.AttendingPhysician),
		na(r.Diagnoses),
		na(r.ClinicalNotes),
		na(r.Medications),
	)
}
