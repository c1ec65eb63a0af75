package http

import (
	"time"

	"github.com/sawpanic/tokenrisk/internal/domain/token"
	"github.com/sawpanic/tokenrisk/internal/engine"
)

// AnalyzeRequest is the body of POST /api/v1/analyze.
type AnalyzeRequest struct {
	TokenAddress string `json:"tokenAddress"`
	ForceRefresh bool   `json:"forceRefresh"`
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Stream message types.
const (
	MessagePhase  = "phase"
	MessageResult = "result"
	MessageError  = "error"
)

// StreamMessage is one WebSocket frame of an analysis stream.
type StreamMessage struct {
	Type   string                 `json:"type"`
	Phase  engine.Phase           `json:"phase,omitempty"`
	Result *token.SuperTokenScore `json:"result,omitempty"`
	Error  *ErrorResponse         `json:"error,omitempty"`
}
