package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/tokenrisk/internal/domain/token"
	"github.com/sawpanic/tokenrisk/internal/engine"
)

const maxRequestBody = 1 << 16

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", "Request body must be JSON with a tokenAddress field")
		return
	}
	s.analyze(w, r, req.TokenAddress, req.ForceRefresh)
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	s.analyze(w, r, mux.Vars(r)["address"], refresh)
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request, address string, refresh bool) {
	if _, err := token.ParseAddress(address); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_address", err.Error())
		return
	}

	result, err := s.deps.Analyzer.AnalyzeToken(r.Context(), address, engine.Options{ForceRefresh: refresh})
	if err != nil {
		status, code := classifyError(err)
		writeError(w, r, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeError(w, r, http.StatusNotFound, "endpoint_not_found", "The requested endpoint does not exist")
}

// classifyError maps engine errors to an HTTP status and error code.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, token.ErrInvalidAddress):
		return http.StatusBadRequest, "invalid_address"
	case errors.Is(err, engine.ErrPipeline):
		return http.StatusBadGateway, "analysis_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeJSON writes JSON response with proper error handling
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func newErrorResponse(r *http.Request, status int, code, message string) ErrorResponse {
	return ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		RequestID: RequestID(r.Context()),
		Timestamp: time.Now().UTC(),
	}
}

// writeError writes standardized error response
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, newErrorResponse(r, status, code, message))
}
