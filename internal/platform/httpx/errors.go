// Package httpx provides HTTP response utilities.
package httpx

import (
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/payables/internal/shared"
)

// StatusFor maps a domain error kind to an HTTP status.
func StatusFor(kind shared.ErrorKind) int {
	switch kind {
	case shared.KindUnauthorized:
		return http.StatusForbidden
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindInvalidState:
		return http.StatusConflict
	case shared.KindValidation:
		return http.StatusUnprocessableEntity
	case shared.KindConflict:
		return http.StatusConflict
	case shared.KindDependency:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
// Internal errors are logged and their detail withheld from the client.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	domainErr := shared.AsError(err)
	status := StatusFor(domainErr.Kind)
	detail := domainErr.Message
	if status >= http.StatusInternalServerError {
		if logger != nil {
			logger.Error("request failed", slog.String("kind", string(domainErr.Kind)), slog.Any("error", err))
		}
		if domainErr.Kind == shared.KindInternal {
			detail = ""
		}
	}
	JSON(w, status, ProblemDetail{
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
		Kind:   string(domainErr.Kind),
		Code:   domainErr.Code,
	})
}
