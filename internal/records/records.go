// Package records owns all clinical persistence: patients, medical events,
// SOAP notes, doctors, and the append-only query/audit logs. No other package
// issues SQL; callers work with the typed operations on Store.
package records

import (
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
)

var (
	// ErrNotFound indicates a lookup matched no row, or, for natural-key
	// patient lookups, more than one row. Ambiguity is deliberately
	// indistinguishable from absence: a false negative is safer than
	// misidentifying a patient.
	ErrNotFound = errors.New("record not found")

	// ErrDatabaseUnavailable indicates the connection retry budget was
	// exhausted at startup. Not recoverable: the process must not serve
	// traffic without a database.
	ErrDatabaseUnavailable = errors.New("database unavailable")
)

// dateLayout is the ISO date format used for natural-key matching and
// context formatting.
const dateLayout = "2006-01-02"

// Audit action labels, one per privileged API operation.
const (
	ActionLogin         = "DOCTOR_LOGIN"
	ActionPatientSearch = "SEARCHED_FOR_PATIENT"
	ActionAskQuestion   = "ASKED_QUESTION"
	ActionCreateNote    = "CREATED_SOAP_NOTE"
)

// Patient is a stored patient row. The (first name, last name, date of
// birth) tuple is the natural key; ID is the surrogate storage key.
type Patient struct {
	ID          int64
	FirstName   string
	LastName    string
	DateOfBirth time.Time
	Gender      string
}

// FullName returns the patient's display name, the redaction target for
// persisted questions and answers.
func (p Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Key returns the patient's natural key.
func (p Patient) Key() PatientKey {
	return PatientKey{
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		DateOfBirth: p.DateOfBirth.Format(dateLayout),
	}
}

// PatientKey is the natural-key tuple used for batched ID resolution.
// DateOfBirth is the ISO YYYY-MM-DD string so the tuple is a valid map key.
type PatientKey struct {
	FirstName   string
	LastName    string
	DateOfBirth string
}

// MedicalEvent is one immutable clinical record belonging to exactly one
// patient. Content carries the text the embedding was computed from; there
// are no update or delete operations.
type MedicalEvent struct {
	ID                 int64
	PatientID          int64
	EventDate          time.Time
	AttendingPhysician string
	Assessment         string
	Subjective         string
	Objective          string
	Plan               string
	Content            string
	Embedding          pgvector.Vector
}

// SOAPNote is a medical event whose content is synthesized from the four
// SOAP fields at submission time.
type SOAPNote struct {
	PatientID          int64
	AttendingPhysician string
	Subjective         string
	Objective          string
	Assessment         string
	Plan               string
	Embedding          pgvector.Vector
}

// Content synthesizes the stored (and embedded) text from the four SOAP
// fields with their labels.
func (n SOAPNote) Content() string {
	return fmt.Sprintf("Subjective: %s\nObjective: %s\nAssessment: %s\nPlan: %s",
		n.Subjective, n.Objective, n.Assessment, n.Plan)
}

// Doctor is an authentication principal. Rows are provisioned out-of-band
// and read-only from the API's perspective.
type Doctor struct {
	ID             int64
	Username       string
	HashedPassword string
	FullName       string
	Role           string
}

// Chunk is one similarity-search result. Results are structured rather than
// bare content strings because the retrieval pipeline formats each chunk
// with its date and physician.
type Chunk struct {
	EventDate          time.Time
	AttendingPhysician string
	Content            string
}

// LogResult reports the outcome of a best-effort observability write.
// A non-persisted result never interrupts the primary request flow; Err is
// retained for logging only.
type LogResult struct {
	Persisted bool
	Err       error
}
