package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	domainerrors "coai/contexts/incident-governance/council-engine/domain/errors"
	councilhttp "coai/contexts/incident-governance/council-engine/transport/http"
)

func writeCouncilError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, councilhttp.ErrorResponse{Code: code, Message: message})
}

func writeCouncilDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domainerrors.ErrConfiguration):
		writeCouncilError(w, http.StatusBadRequest, "invalid_configuration", err.Error())
	case errors.Is(err, domainerrors.ErrInvalidSessionInput),
		errors.Is(err, domainerrors.ErrInvalidVoteInput):
		writeCouncilError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, domainerrors.ErrUnknownAgent):
		writeCouncilError(w, http.StatusBadRequest, "unknown_agent", err.Error())
	case errors.Is(err, domainerrors.ErrIdempotencyKeyRequired):
		writeCouncilError(w, http.StatusBadRequest, "idempotency_key_required", err.Error())
	case errors.Is(err, domainerrors.ErrSessionNotFound):
		writeCouncilError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, domainerrors.ErrSessionClosed):
		writeCouncilError(w, http.StatusConflict, "session_closed", err.Error())
	case errors.Is(err, domainerrors.ErrAlreadyCompleted):
		writeCouncilError(w, http.StatusConflict, "already_completed", err.Error())
	case errors.Is(err, domainerrors.ErrIdempotencyConflict):
		writeCouncilError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	case errors.Is(err, domainerrors.ErrDuplicateVote),
		errors.Is(err, domainerrors.ErrConflict):
		writeCouncilError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domainerrors.ErrIncompleteSession):
		writeCouncilError(w, http.StatusUnprocessableEntity, "incomplete_session", err.Error())
	case errors.Is(err, domainerrors.ErrSessionNotTerminal):
		writeCouncilError(w, http.StatusUnprocessableEntity, "session_not_terminal", err.Error())
	default:
		writeCouncilError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func requireCouncilRequestID(w http.ResponseWriter, r *http.Request) bool {
	if strings.TrimSpace(r.Header.Get("X-Request-Id")) == "" {
		writeCouncilError(w, http.StatusBadRequest, "missing_request_id", "X-Request-Id header is required")
		return false
	}
	return true
}

func requireCouncilIdempotencyKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" {
		writeCouncilError(w, http.StatusBadRequest, "idempotency_key_required", "Idempotency-Key header is required")
		return "", false
	}
	return key, true
}

func requireCouncilSessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionID := strings.TrimSpace(r.PathValue("session_id"))
	if sessionID == "" {
		writeCouncilError(w, http.StatusBadRequest, "invalid_request", "session_id is required")
		return "", false
	}
	return sessionID, true
}

// decodeCouncilBody accepts an empty body for endpoints whose fields are all optional.
func decodeCouncilBody(w http.ResponseWriter, r *http.Request, target any, allowEmpty bool) bool {
	err := json.NewDecoder(r.Body).Decode(target)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return true
	}
	writeCouncilError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
	return false
}

func parseCouncilLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		writeCouncilError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
		return 0, false
	}
	return limit, true
}

func (s *Server) handleCouncilOpenSession(w http.ResponseWriter, r *http.Request) {
	if !requireCouncilRequestID(w, r) {
		return
	}
	idempotencyKey, ok := requireCouncilIdempotencyKey(w, r)
	if !ok {
		return
	}

	var req councilhttp.OpenSessionRequest
	if !decodeCouncilBody(w, r, &req, false) {
		return
	}
	if err := req.Validate(); err != nil {
		writeCouncilError(w, http.StatusBadRequest, "invalid_request", "subject_id and subject_type are required")
		return
	}

	resp, err := s.council.Handler.OpenSessionHandler(r.Context(), idempotencyKey, req)
	if err != nil {
		writeCouncilDomainError(w, err)
		return
	}
	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleCouncilListSessions(w http.ResponseWriter, r *http.Request) {
	if !requireCouncilRequestID(w, r) {
		return
	}
	limit, ok := parseCouncilLimit(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	resp, err := s.council.Handler.ListSessionsHandler(r.Context(), query.Get("status"), query.Get("subject_type"), limit)
	if err != nil {
		writeCouncilDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCouncilGetSession(w http.ResponseWriter, r *http.Request) {
	if !requireCouncilRequestID(w, r) {
		return
	}
	sessionID, ok := requireCouncilSessionID(w, r)
	if !ok {
		return
	}
	resp, err := s.council.Handler.GetSessionHandler(r.Context(), sessionID)
	if err != nil {
		writeCouncilDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCouncilSubmitVote(w http.ResponseWriter, r *http.Request) {
	if !requireCouncilRequestID(w, r) {
		return
	}
	sessionID, ok := requireCouncilSessionID(w, r)
	if !ok {
		return
	}
	// Agent dedup and stored-result replay make these writes idempotent, so the
	// key is checked for presence only.
	if _, ok := requireCouncilIdempotencyKey(w, r); !ok {
		return
	}

	var req councilhttp.SubmitVoteRequest
	if !decodeCouncilBody(w, r, &req, false) {
		return
	}
	if err := req.Validate(); err != nil {
		writeCouncilError(w, http.StatusBadRequest, "invalid_request", "agent_id and decision are required")
		return
	}

	resp, err := s.council.Handler.SubmitVoteHandler(r.Context(), sessionID, req)
	if err != nil {
		writeCouncilDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCouncilListVotes(w http.ResponseWriter, r *http.Request) {
	if !requireCouncilRequestID(w, r) {
		return
	}
	sessionID, ok := requireCouncilSessionID(w, r)
	if !ok {
		return
	}
	resp, err := s.council.Handler.ListVotesHandler(r.Context(), sessionID)
	if err != nil {
		writeCouncilDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCouncilTally(w http.ResponseWriter, r *http.Request) {
	if !requireCouncilRequestID(w, r) {
		return
	}
	sessionID, ok := requireCouncilSessionID(w, r)
	if !ok {
		return
	}
	resp, err := s.council.Handler.TallyHandler(r.Context(), sessionID)
	if err != nil {
		writeCouncilDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCouncilMetrics(w http.ResponseWriter, r *http.Request) {
	if !requireCouncilRequestID(w, r) {
		return
	}
	sessionID, ok := requireCouncilSessionID(w, r)
	if !ok {
		return
	}
	resp, err := s.council.Handler.MetricsHandler(r.Context(), sessionID)
	if err != nil {
		writeCouncilDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCouncilFinalize(w http.ResponseWriter, r *http.Request) {
	if !requireCouncilRequestID(w, r) {
		return
	}
	sessionID, ok := requireCouncilSessionID(w, r)
	if !ok {
		return
	}
	if _, ok := requireCouncilIdempotencyKey(w, r); !ok {
		return
	}

	var req councilhttp.FinalizeSessionRequest
	if !decodeCouncilBody(w, r, &req, true) {
		return
	}

	resp, err := s.council.Handler.FinalizeSessionHandler(r.Context(), sessionID, req)
	if err != nil {
		writeCouncilDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCouncilComplete(w http.ResponseWriter, r *http.Request) {
	if !requireCouncilRequestID(w, r) {
		return
	}
	idempotencyKey, ok := requireCouncilIdempotencyKey(w, r)
	if !ok {
		return
	}
	sessionID, ok := requireCouncilSessionID(w, r)
	if !ok {
		return
	}

	var req councilhttp.CompleteSessionRequest
	if !decodeCouncilBody(w, r, &req, true) {
		return
	}
	reviewerID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if reviewerID == "" && strings.TrimSpace(req.ReviewerID) == "" {
		writeCouncilError(w, http.StatusBadRequest, "missing_reviewer", "X-User-Id header or reviewer_id is required")
		return
	}

	resp, err := s.council.Handler.CompleteSessionHandler(r.Context(), sessionID, reviewerID, idempotencyKey, req)
	if err != nil {
		writeCouncilDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCouncilRoster(w http.ResponseWriter, r *http.Request) {
	if !requireCouncilRequestID(w, r) {
		return
	}
	resp, err := s.council.Handler.RosterHandler(r.Context())
	if err != nil {
		writeCouncilDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCouncilListReviews(w http.ResponseWriter, r *http.Request) {
	if !requireCouncilRequestID(w, r) {
		return
	}
	limit, ok := parseCouncilLimit(w, r)
	if !ok {
		return
	}
	resp, err := s.council.Handler.ListReviewsHandler(r.Context(), limit)
	if err != nil {
		writeCouncilDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
