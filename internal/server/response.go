package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/youthpolicy/policyrag/internal/index"
	"github.com/youthpolicy/policyrag/internal/rag"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string, details map[string]string) {
	respondJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
		Details: details,
	})
}

// respondEngineError maps engine and store errors onto status codes
func (s *Server) respondEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, "invalid_request", verr.Message, verr.Fields)
	case errors.Is(err, rag.ErrInvalidRequest):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
	case errors.Is(err, rag.ErrNotReady):
		respondError(w, http.StatusServiceUnavailable, "not_ready", "정책 인덱스가 준비되지 않았습니다", nil)
	case errors.Is(err, index.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", "정책을 찾을 수 없습니다", nil)
	default:
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "요청 처리 중 오류가 발생했습니다", nil)
	}
}
