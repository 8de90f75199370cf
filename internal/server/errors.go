package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/licitaradar/radar/internal/model"
	"github.com/licitaradar/radar/pkg/billing"
)

// httpStatusByCode is the single place error codes meet transport
// codes. Handlers never pick HTTP statuses themselves.
var httpStatusByCode = map[model.ErrorCode]int{
	model.ErrValidation:        http.StatusBadRequest,
	model.ErrQuotaExceeded:     http.StatusPaymentRequired,
	model.ErrRateLimit:         http.StatusTooManyRequests,
	model.ErrSourceUnavailable: http.StatusBadGateway,
	model.ErrAllSourcesFailed:  http.StatusBadGateway,
	model.ErrTimeout:           http.StatusGatewayTimeout,
	model.ErrInternal:          http.StatusInternalServerError,
}

// errorBody is the wire shape of every error response.
type errorBody struct {
	Detail        string          `json:"detail"`
	ErrorCode     model.ErrorCode `json:"error_code"`
	SearchID      string          `json:"search_id,omitempty"`
	CorrelationID string          `json:"correlation_id"`
	Timestamp     time.Time       `json:"timestamp"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, searchID string, err error) {
	if eris.Is(err, billing.ErrUnauthorized) {
		s.writeErrorCode(w, r, http.StatusUnauthorized, model.ErrValidation, searchID, "invalid or missing credentials")
		return
	}

	code := model.CodeOf(err)
	status, ok := httpStatusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	detail := err.Error()
	if code == model.ErrInternal {
		// Internals stay in the log, not in the response.
		zap.L().Error("internal error", zap.String("path", r.URL.Path), zap.Error(err))
		detail = "internal error"
	}
	s.writeErrorCode(w, r, status, code, searchID, detail)
}

func (s *Server) writeErrorCode(w http.ResponseWriter, r *http.Request, status int, code model.ErrorCode, searchID, detail string) {
	if code == model.ErrQuotaExceeded || code == model.ErrRateLimit {
		w.Header().Set("Retry-After", "3600")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{
		Detail:        detail,
		ErrorCode:     code,
		SearchID:      searchID,
		CorrelationID: correlationID(r.Context()),
		Timestamp:     time.Now().UTC(),
	})
}
