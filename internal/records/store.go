package records

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/clinrag/clinrag/internal/log"
	"github.com/clinrag/clinrag/internal/queries"
)

// DefaultTopK is the store-level similarity result limit, used when the
// caller passes a non-positive k. The API layer asks for 3.
const DefaultTopK = 5

// insertPageSize bounds how many rows ride in one batch round-trip during
// bulk inserts.
const insertPageSize = 100

// Store translates domain operations into registry statements executed over
// the connection pool. Each operation holds one connection for one logical
// unit of work and releases it on every exit path.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool    *pgxpool.Pool
	queries *queries.Registry
	logger  log.Logger
}

// New creates a Store. A nil logger falls back to slog.Default(); pass
// log.NewNop() in tests to silence output.
func New(pool *pgxpool.Pool, registry *queries.Registry, logger log.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		pool:    pool,
		queries: registry,
		logger:  logger,
	}
}

// InsertPatients bulk-upserts patients by natural key. Conflicting natural
// keys are silently skipped, never updated. Rows are batched and the whole
// call commits once.
func (s *Store) InsertPatients(ctx context.Context, patients []Patient) error {
	if len(patients) == 0 {
		return nil
	}

	stmt, err := s.queries.Get("insert_patient")
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning patient insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for start := 0; start < len(patients); start += insertPageSize {
		end := min(start+insertPageSize, len(patients))

		batch := &pgx.Batch{}
		for _, p := range patients[start:end] {
			batch.Queue(stmt, p.FirstName, p.LastName, p.DateOfBirth, p.Gender)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting patients: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing patient insert: %w", err)
	}

	s.logger.Info("processed patient records", "count", len(patients))
	return nil
}

// ResolvePatientIDs maps natural keys to surrogate IDs in one batched
// lookup. Keys with no match are absent from the result; callers must treat
// absence as unresolved.
func (s *Store) ResolvePatientIDs(ctx context.Context, keys []PatientKey) (map[PatientKey]int64, error) {
	if len(keys) == 0 {
		return map[PatientKey]int64{}, nil
	}

	stmt, err := s.queries.Get("resolve_patient_ids")
	if err != nil {
		return nil, err
	}

	firsts := make([]string, len(keys))
	lasts := make([]string, len(keys))
	dobs := make([]string, len(keys))
	for i, k := range keys {
		firsts[i] = k.FirstName
		lasts[i] = k.LastName
		dobs[i] = k.DateOfBirth
	}

	rows, err := s.pool.Query(ctx, stmt, firsts, lasts, dobs)
	if err != nil {
		return nil, fmt.Errorf("resolving patient ids: %w", err)
	}
	defer rows.Close()

	resolved := make(map[PatientKey]int64, len(keys))
	for rows.Next() {
		var id int64
		var first, last string
		var dob time.Time
		if err := rows.Scan(&id, &first, &last, &dob); err != nil {
			return nil, fmt.Errorf("scanning patient id row: %w", err)
		}
		resolved[PatientKey{FirstName: first, LastName: last, DateOfBirth: dob.Format(dateLayout)}] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading patient id rows: %w", err)
	}

	return resolved, nil
}

// InsertMedicalEvents bulk-inserts immutable clinical records, each carrying
// a precomputed embedding. Commits once per call. Events without a resolved
// patient must be filtered out by the caller before this point.
func (s *Store) InsertMedicalEvents(ctx context.Context, events []MedicalEvent) error {
	if len(events) == 0 {
		return nil
	}

	stmt, err := s.queries.Get("insert_medical_event")
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning event insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for start := 0; start < len(events); start += insertPageSize {
		end := min(start+insertPageSize, len(events))

		batch := &pgx.Batch{}
		for _, e := range events[start:end] {
			batch.Queue(stmt,
				e.PatientID, e.EventDate, nullable(e.AttendingPhysician),
				nullable(e.Assessment), nullable(e.Subjective), nullable(e.Objective), nullable(e.Plan),
				e.Content, e.Embedding)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting medical events: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing event insert: %w", err)
	}

	s.logger.Info("processed medical event records", "count", len(events))
	return nil
}

// InsertSOAPNote inserts a single clinician-authored note, dated today, in
// its own transaction. Any failure rolls back and is returned to the caller;
// this is the one write path whose error the API must surface.
func (s *Store) InsertSOAPNote(ctx context.Context, note SOAPNote) (int64, error) {
	stmt, err := s.queries.Get("insert_new_soap_note")
	if err != nil {
		return 0, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning note insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx, stmt,
		note.PatientID, time.Now(), note.AttendingPhysician,
		note.Subjective, note.Objective, note.Assessment, note.Plan,
		note.Content(), note.Embedding,
	).Scan(&id)
	if err != nil {
		s.logger.Error("soap note insert failed", "patient_id", note.PatientID, "error", err)
		return 0, fmt.Errorf("inserting soap note: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing soap note: %w", err)
	}

	s.logger.Info("inserted soap note", "patient_id", note.PatientID, "event_id", id)
	return id, nil
}

// FindSimilarChunks returns up to k of the patient's own event chunks,
// ordered by ascending embedding distance (best match first). The search
// never crosses patients. Non-positive k falls back to DefaultTopK.
func (s *Store) FindSimilarChunks(ctx context.Context, patientID int64, embedding pgvector.Vector, k int) ([]Chunk, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	stmt, err := s.queries.Get("find_similar_chunks")
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, stmt, patientID, embedding, k)
	if err != nil {
		return nil, fmt.Errorf("searching similar chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var physician *string
		if err := rows.Scan(&c.EventDate, &physician, &c.Content); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}
		if physician != nil {
			c.AttendingPhysician = *physician
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chunk rows: %w", err)
	}

	return chunks, nil
}

// FindPatientByDetails resolves a natural key to a patient ID. Both zero and
// multiple matches return ErrNotFound: ambiguity must never resolve to a
// patient.
func (s *Store) FindPatientByDetails(ctx context.Context, firstName, lastName, dob string) (int64, error) {
	stmt, err := s.queries.Get("find_patient_by_details")
	if err != nil {
		return 0, err
	}

	rows, err := s.pool.Query(ctx, stmt, firstName, lastName, dob)
	if err != nil {
		return 0, fmt.Errorf("finding patient: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("scanning patient row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("reading patient rows: %w", err)
	}

	if len(ids) != 1 {
		s.logger.Warn("ambiguous or no patient match",
			"first_name", firstName, "last_name", lastName, "matches", len(ids))
		return 0, ErrNotFound
	}
	return ids[0], nil
}

// GetPatient fetches a patient by surrogate ID. Returns ErrNotFound when the
// row is absent.
func (s *Store) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	stmt, err := s.queries.Get("get_patient_by_id")
	if err != nil {
		return nil, err
	}

	var p Patient
	var gender *string
	err = s.pool.QueryRow(ctx, stmt, id).Scan(&p.ID, &p.FirstName, &p.LastName, &p.DateOfBirth, &gender)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("patient %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting patient: %w", err)
	}
	if gender != nil {
		p.Gender = *gender
	}
	return &p, nil
}

// GetDoctorByUsername fetches an authentication principal. Returns
// ErrNotFound when the username is unknown.
func (s *Store) GetDoctorByUsername(ctx context.Context, username string) (*Doctor, error) {
	stmt, err := s.queries.Get("get_doctor_by_username")
	if err != nil {
		return nil, err
	}

	var d Doctor
	err = s.pool.QueryRow(ctx, stmt, username).Scan(&d.ID, &d.Username, &d.HashedPassword, &d.FullName, &d.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("doctor %q: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting doctor: %w", err)
	}
	return &d, nil
}

// CreateDoctor upserts an authentication principal by username. Existing
// usernames are left untouched, so provisioning is rerunnable.
func (s *Store) CreateDoctor(ctx context.Context, username, hashedPassword, fullName, role string) error {
	stmt, err := s.queries.Get("insert_doctor")
	if err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx, stmt, username, hashedPassword, fullName, role); err != nil {
		return fmt.Errorf("creating doctor: %w", err)
	}
	return nil
}

// LogQuery appends to the query audit trail. Best effort: a failure is
// logged and swallowed, never blocking the primary request flow. The
// question and answer must already be redacted by the caller.
func (s *Store) LogQuery(ctx context.Context, patientID int64, question, contextText, answer string) LogResult {
	stmt, err := s.queries.Get("insert_query_log")
	if err == nil {
		_, err = s.pool.Exec(ctx, stmt, patientID, question, contextText, answer)
	}
	if err != nil {
		s.logger.Error("query log write failed", "patient_id", patientID, "error", err)
		return LogResult{Err: err}
	}
	return LogResult{Persisted: true}
}

// LogAction appends one audit row for a privileged action. Best effort, same
// policy as LogQuery. patientID may be nil for actions without a patient.
func (s *Store) LogAction(ctx context.Context, doctorID int64, action string, patientID *int64) LogResult {
	stmt, err := s.queries.Get("insert_audit_log")
	if err == nil {
		_, err = s.pool.Exec(ctx, stmt, doctorID, patientID, action)
	}
	if err != nil {
		s.logger.Error("audit log write failed", "doctor_id", doctorID, "action", action, "error", err)
		return LogResult{Err: err}
	}
	return LogResult{Persisted: true}
}

// nullable maps an empty string to NULL, for columns ingestion leaves unset.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
