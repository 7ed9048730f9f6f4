package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ignite/metrics-hub/internal/datanorm"
	"github.com/ignite/metrics-hub/internal/domain"
	"github.com/ignite/metrics-hub/internal/pkg/httputil"
	"github.com/ignite/metrics-hub/internal/pkg/logger"
	"github.com/ignite/metrics-hub/internal/service/overview"
	"github.com/ignite/metrics-hub/internal/service/revenueimport"
	"github.com/ignite/metrics-hub/internal/validation"
)

// Internal errors (database details, file paths) never reach API consumers.
// 5xx responses carry a generic message and the full error is logged.

// clientErrors maps service sentinels to a status and a machine readable code.
// Their messages describe user input and are safe to return.
var clientErrors = []struct {
	err    error
	status int
	code   string
}{
	{datanorm.ErrUnsupportedFormat, http.StatusBadRequest, "unsupported_format"},
	{datanorm.ErrEmptyFile, http.StatusBadRequest, "empty_file"},
	{datanorm.ErrMappingIncomplete, http.StatusBadRequest, "mapping_incomplete"},
	{datanorm.ErrDuplicateMapping, http.StatusBadRequest, "duplicate_mapping"},
	{datanorm.ErrUnknownField, http.StatusBadRequest, "unknown_field"},
	{datanorm.ErrUnknownColumn, http.StatusBadRequest, "unknown_column"},
	{domain.ErrUnknownPlatform, http.StatusBadRequest, "unknown_platform"},
	{overview.ErrInvalidRange, http.StatusBadRequest, "invalid_range"},
	{revenueimport.ErrNotFound, http.StatusNotFound, "not_found"},
	{revenueimport.ErrBatchFinalized, http.StatusConflict, "batch_finalized"},
}

// respondServiceError writes the response for an error returned by a service.
func respondServiceError(w http.ResponseWriter, err error) {
	var ve *validation.Error
	if errors.As(err, &ve) {
		httputil.ErrorDetails(w, http.StatusBadRequest, "validation_failed", ve.Error(), ve.Fields)
		return
	}
	var pe *datanorm.ParseError
	if errors.As(err, &pe) {
		httputil.ErrorDetails(w, http.StatusBadRequest, "parse_failure", pe.Error(), nil)
		return
	}
	for _, ce := range clientErrors {
		if errors.Is(err, ce.err) {
			httputil.ErrorDetails(w, ce.status, ce.code, err.Error(), nil)
			return
		}
	}
	respondSafeError(w, http.StatusInternalServerError, err, safeErrorMessage(http.StatusInternalServerError, err))
}

// sanitizedError logs the full internal error and returns a public-safe message.
func sanitizedError(code int, internalErr error, publicMsg string) string {
	if internalErr != nil {
		logger.Error("request failed", "status", code, "public", publicMsg, "error", internalErr)
	}
	return publicMsg
}

// respondSafeError logs the internal error and sends a sanitized JSON error.
func respondSafeError(w http.ResponseWriter, code int, internalErr error, publicMsg string) {
	httputil.Error(w, code, sanitizedError(code, internalErr, publicMsg))
}

// safeErrorMessage maps common internal error patterns to public-safe messages.
// 4xx messages describe user input and are returned as is.
func safeErrorMessage(code int, internalErr error) string {
	if code < 500 {
		if internalErr != nil {
			return internalErr.Error()
		}
		return "Bad request"
	}

	if internalErr == nil {
		return "An internal error occurred"
	}

	errStr := strings.ToLower(internalErr.Error())

	switch {
	case strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "dial tcp"):
		return "Service temporarily unavailable"

	case strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "context canceled"):
		return "Request timed out"

	case strings.Contains(errStr, "sql") ||
		strings.Contains(errStr, "pq:") ||
		strings.Contains(errStr, "query") ||
		strings.Contains(errStr, "scan") ||
		strings.Contains(errStr, "transaction") ||
		strings.Contains(errStr, "database"):
		return "A database error occurred"

	case strings.Contains(errStr, "s3") ||
		strings.Contains(errStr, "dynamodb"):
		return "A storage error occurred"

	case strings.Contains(errStr, "permission") ||
		strings.Contains(errStr, "access denied"):
		return "Access denied"

	default:
		return "An internal error occurred"
	}
}
