package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/pgvector/pgvector-go"

	"github.com/clinrag/clinrag/internal/auth"
	"github.com/clinrag/clinrag/internal/records"
)

// tokenResponse is the OAuth2-style login response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type patientLookupRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth"`
}

type patientLookupResponse struct {
	PatientID int64  `json:"patient_id"`
	Message   string `json:"message"`
}

type queryRequest struct {
	PatientID int64  `json:"patient_id"`
	Question  string `json:"question"`
}

type queryResponse struct {
	Answer           string   `json:"answer"`
	RetrievedContext []string `json:"retrieved_context"`
}

type soapNoteRequest struct {
	Subjective string `json:"subjective"`
	Objective  string `json:"objective"`
	Assessment string `json:"assessment"`
	Plan       string `json:"plan"`
}

type soapNoteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// login exchanges form-encoded credentials for a bearer token. Unknown
// usernames and wrong passwords get the same response.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form data.")
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	doctor, err := s.store.GetDoctorByUsername(r.Context(), username)
	if err != nil {
		if !errors.Is(err, records.ErrNotFound) {
			s.logger.Error("doctor lookup failed", "username", username, "error", err)
		}
		writeUnauthorized(w, "Incorrect username or password")
		return
	}
	if !auth.VerifyPassword(password, doctor.HashedPassword) {
		writeUnauthorized(w, "Incorrect username or password")
		return
	}

	token, err := s.tokens.Sign(map[string]any{
		"sub":  doctor.Username,
		"role": doctor.Role,
	})
	if err != nil {
		s.logger.Error("token signing failed", "username", username, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	s.store.LogAction(r.Context(), doctor.ID, records.ActionLogin, nil)
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

// findPatient resolves a natural-key lookup to a patient ID. Ambiguous
// matches are reported exactly like misses.
func (s *Server) findPatient(w http.ResponseWriter, r *http.Request) {
	doctor, ok := doctorFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "Could not validate credentials")
		return
	}

	var req patientLookupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.FirstName == "" || req.LastName == "" || req.DateOfBirth == "" {
		writeError(w, http.StatusBadRequest, "first_name, last_name and date_of_birth are required.")
		return
	}

	patientID, err := s.store.FindPatientByDetails(r.Context(), req.FirstName, req.LastName, req.DateOfBirth)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Patient not found or details are ambiguous.")
			return
		}
		s.logger.Error("patient lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	s.store.LogAction(r.Context(), doctor.ID, records.ActionPatientSearch, &patientID)
	writeJSON(w, http.StatusOK, patientLookupResponse{
		PatientID: patientID,
		Message:   fmt.Sprintf("Patient found by Dr. %s.", doctor.FullName),
	})
}

// ask answers a clinician question grounded in the patient's records.
func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	doctor, ok := doctorFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "Could not validate credentials")
		return
	}

	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.PatientID == 0 || req.Question == "" {
		writeError(w, http.StatusBadRequest, "patient_id and question are required.")
		return
	}

	answer, contexts, err := s.pipeline.Answer(r.Context(), doctor.ID, req.PatientID, req.Question)
	if err != nil {
		s.logger.Error("answer pipeline failed", "patient_id", req.PatientID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to answer question.")
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{Answer: answer, RetrievedContext: contexts})
}

// createNote files a SOAP note for the patient in the path, attributed to
// the authenticated doctor.
func (s *Server) createNote(w http.ResponseWriter, r *http.Request) {
	doctor, ok := doctorFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "Could not validate credentials")
		return
	}

	patientID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || patientID <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid patient id.")
		return
	}

	var req soapNoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	note := records.SOAPNote{
		PatientID:          patientID,
		AttendingPhysician: doctor.FullName,
		Subjective:         req.Subjective,
		Objective:          req.Objective,
		Assessment:         req.Assessment,
		Plan:               req.Plan,
	}

	vec, err := s.embedder.Embed(r.Context(), note.Content())
	if err != nil {
		s.logger.Error("note embedding failed", "patient_id", patientID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save SOAP note.")
		return
	}
	note.Embedding = pgvector.NewVector(vec)

	if _, err := s.store.InsertSOAPNote(r.Context(), note); err != nil {
		s.logger.Error("note insert failed", "patient_id", patientID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save SOAP note.")
		return
	}

	s.store.LogAction(r.Context(), doctor.ID, records.ActionCreateNote, &patientID)
	writeJSON(w, http.StatusOK, soapNoteResponse{Success: true, Message: "New SOAP note successfully saved."})
}
