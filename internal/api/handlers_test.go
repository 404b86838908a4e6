package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinrag/clinrag/internal/records"
)

func TestFindPatient(t *testing.T) {
	f := newFixture(t)
	f.store.patientID = 42

	rec := f.do(t, http.MethodPost, "/find-patient", f.bearer(t), patientLookupRequest{
		FirstName:   "Jane",
		LastName:    "Doe",
		DateOfBirth: "1985-07-03",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[patientLookupResponse](t, rec)
	assert.Equal(t, int64(42), body.PatientID)
	assert.Equal(t, "Patient found by Dr. Gregory House.", body.Message)

	require.Len(t, f.store.loggedActions, 1)
	assert.Equal(t, records.ActionPatientSearch, f.store.loggedActions[0])
	require.NotNil(t, f.store.loggedPIDs[0])
	assert.Equal(t, int64(42), *f.store.loggedPIDs[0])
}

func TestFindPatientNotFound(t *testing.T) {
	f := newFixture(t)
	f.store.patientErr = records.ErrNotFound

	rec := f.do(t, http.MethodPost, "/find-patient", f.bearer(t), patientLookupRequest{
		FirstName:   "Jane",
		LastName:    "Doe",
		DateOfBirth: "1985-07-03",
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Patient not found or details are ambiguous.")
	assert.Empty(t, f.store.loggedActions)
}

func TestFindPatientValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  patientLookupRequest
	}{
		{"missing first name", patientLookupRequest{LastName: "Doe", DateOfBirth: "1985-07-03"}},
		{"missing last name", patientLookupRequest{FirstName: "Jane", DateOfBirth: "1985-07-03"}},
		{"missing date of birth", patientLookupRequest{FirstName: "Jane", LastName: "Doe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/find-patient", f.bearer(t), tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestFindPatientStorageFailure(t *testing.T) {
	f := newFixture(t)
	f.store.patientErr = errors.New("connection reset")

	rec := f.do(t, http.MethodPost, "/find-patient", f.bearer(t), patientLookupRequest{
		FirstName:   "Jane",
		LastName:    "Doe",
		DateOfBirth: "1985-07-03",
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAsk(t *testing.T) {
	f := newFixture(t)
	f.pipeline.answer = "The latest labs are within normal range."
	f.pipeline.contexts = []string{"Date: 2024-03-01\nPhysician: Dr. Smith\nContent: Labs normal."}

	rec := f.do(t, http.MethodPost, "/ask", f.bearer(t), queryRequest{
		PatientID: 42,
		Question:  "How are the latest labs?",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[queryResponse](t, rec)
	assert.Equal(t, "The latest labs are within normal range.", body.Answer)
	assert.Equal(t, f.pipeline.contexts, body.RetrievedContext)

	assert.Equal(t, int64(7), f.pipeline.gotDoctorID)
	assert.Equal(t, int64(42), f.pipeline.gotPatientID)
	assert.Equal(t, "How are the latest labs?", f.pipeline.gotQuestion)
}

func TestAskValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  queryRequest
	}{
		{"missing patient id", queryRequest{Question: "q"}},
		{"missing question", queryRequest{PatientID: 42}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/ask", f.bearer(t), tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAskRejectsUnknownFields(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/ask",
		strings.NewReader(`{"patient_id": 42, "question": "q", "mystery": true}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", f.bearer(t))
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAskPipelineFailure(t *testing.T) {
	f := newFixture(t)
	f.pipeline.err = errors.New("model offline")

	rec := f.do(t, http.MethodPost, "/ask", f.bearer(t), queryRequest{PatientID: 42, Question: "q"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to answer question.")
}

func TestCreateNote(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/patients/42/notes", f.bearer(t), soapNoteRequest{
		Subjective: "Patient reports fatigue.",
		Objective:  "BP 118/76.",
		Assessment: "Likely viral.",
		Plan:       "Rest and fluids.",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[soapNoteResponse](t, rec)
	assert.True(t, body.Success)
	assert.Equal(t, "New SOAP note successfully saved.", body.Message)

	note := f.store.gotNote
	assert.Equal(t, int64(42), note.PatientID)
	assert.Equal(t, "Gregory House", note.AttendingPhysician)
	assert.Equal(t, "Patient reports fatigue.", note.Subjective)

	// The embedded text is the synthesized SOAP content.
	assert.Equal(t, note.Content(), f.embedder.gotText)

	require.Len(t, f.store.loggedActions, 1)
	assert.Equal(t, records.ActionCreateNote, f.store.loggedActions[0])
	require.NotNil(t, f.store.loggedPIDs[0])
	assert.Equal(t, int64(42), *f.store.loggedPIDs[0])
}

func TestCreateNoteInvalidPatientID(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/patients/abc/notes", "/patients/0/notes", "/patients/-3/notes"} {
		rec := f.do(t, http.MethodPost, path, f.bearer(t), soapNoteRequest{Subjective: "s"})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "path %s", path)
	}
}

func TestCreateNoteEmbeddingFailure(t *testing.T) {
	f := newFixture(t)
	f.embedder.err = errors.New("model offline")

	rec := f.do(t, http.MethodPost, "/patients/42/notes", f.bearer(t), soapNoteRequest{Subjective: "s"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to save SOAP note.")
	assert.Empty(t, f.store.loggedActions)
}

func TestCreateNoteInsertFailure(t *testing.T) {
	f := newFixture(t)
	f.store.noteErr = errors.New("constraint violation")

	rec := f.do(t, http.MethodPost, "/patients/42/notes", f.bearer(t), soapNoteRequest{Subjective: "s"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to save SOAP note.")
}
