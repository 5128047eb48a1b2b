package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"ioc-registry/pkg/threat"
)

type createThreatRequest struct {
	Type     string  `json:"type"`
	Value    string  `json:"value"`
	Severity string  `json:"severity"`
	Source   *string `json:"source"`
}

// errorResponse is the failure body for every endpoint.
type errorResponse struct {
	Detail string `json:"detail"`
}

type deleteResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.threats.Health(r.Context()))
}

// handleNotFound covers every unrouted path, including /api/threats/{id}
// requests whose id segment is not numeric.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusNotFound, errorResponse{Detail: "Not Found"})
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Detail: "Method Not Allowed"})
}

func (s *Server) handleAPIRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": "IOC Manager API v1.0.0",
		"threats": "/api/threats",
		"health":  "/health",
	})
}

func (s *Server) handleListThreats(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	input := threat.ListInput{
		Type:     query.Get("type"),
		Severity: query.Get("severity"),
	}

	if raw := query.Get("skip"); raw != "" {
		skip, err := strconv.Atoi(raw)
		if err != nil {
			s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: "skip must be an integer"})
			return
		}
		input.Skip = &skip
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: "limit must be an integer"})
			return
		}
		input.Limit = &limit
	}

	threats, err := s.threats.List(r.Context(), input)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, threats)
}

func (s *Server) handleCreateThreat(w http.ResponseWriter, r *http.Request) {
	var req createThreatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: "invalid request body"})
		return
	}

	created, err := s.threats.Create(r.Context(), threat.CreateInput{
		Type:     req.Type,
		Value:    req.Value,
		Severity: req.Severity,
		Source:   req.Source,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetThreat(w http.ResponseWriter, r *http.Request) {
	id, ok := s.threatID(w, r)
	if !ok {
		return
	}

	found, err := s.threats.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, found)
}

func (s *Server) handleDeleteThreat(w http.ResponseWriter, r *http.Request) {
	id, ok := s.threatID(w, r)
	if !ok {
		return
	}

	if err := s.threats.Delete(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, deleteResponse{
		Message: fmt.Sprintf("Threat %d deleted successfully", id),
		ID:      id,
	})
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.threats.Statistics(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

// threatID parses the id path variable. The route pattern keeps it
// numeric, so failures only happen on values too large for int64.
func (s *Server) threatID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Detail: "invalid threat id"})
		return 0, false
	}
	return id, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Error encoding response", "error", err)
	}
}

// writeError maps service errors onto the wire: validation failures are
// 422, duplicate values 409, missing records 404, anything else 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		validationErr *threat.ValidationError
		conflictErr   *threat.ConflictError
		notFoundErr   *threat.NotFoundError
	)

	switch {
	case errors.As(err, &validationErr):
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: validationErr.Error()})
	case errors.As(err, &conflictErr):
		s.writeJSON(w, http.StatusConflict, errorResponse{Detail: conflictErr.Error()})
	case errors.As(err, &notFoundErr):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Detail: notFoundErr.Error()})
	default:
		s.logger.Error("Request failed", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "internal server error"})
	}
}
