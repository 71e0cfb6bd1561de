package report

import (
	"net/http"
	"time"

	"reporting-service/internal/apperr"
	"reporting-service/internal/model"
)

// Metadata accompanies every successful report payload. Filters echo the
// effective post-narrowing scope, not what the caller requested.
type Metadata struct {
	ReportType  string            `json:"report_type"`
	Filters     model.ScopeFilter `json:"filters"`
	GeneratedAt time.Time         `json:"generated_at"`
}

type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Envelope is the uniform success/error wrapper returned by every report
// endpoint.
type Envelope struct {
	Success  bool       `json:"success"`
	Data     any        `json:"data,omitempty"`
	Metadata *Metadata  `json:"metadata,omitempty"`
	Error    *ErrorBody `json:"error,omitempty"`
}

// Success wraps a report payload. Empty or zero-valued payloads are still
// successes; "no data in range" is never an error.
func Success(reportType string, filters model.ScopeFilter, data any, generatedAt time.Time) Envelope {
	return Envelope{
		Success: true,
		Data:    data,
		Metadata: &Metadata{
			ReportType:  reportType,
			Filters:     filters,
			GeneratedAt: generatedAt,
		},
	}
}

// Failure wraps a classified error. Validation messages pass through;
// configuration and database failures surface a generic message so no
// internal detail or driver error reaches the caller.
func Failure(err error) Envelope {
	classified := apperr.Classify(err)
	return Envelope{
		Success: false,
		Error: &ErrorBody{
			Kind:    string(classified.Kind),
			Message: apperr.CallerMessage(err),
		},
	}
}

// StatusFor maps a classified error onto the HTTP status the handler
// responds with.
func StatusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
