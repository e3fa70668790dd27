package handlers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/hirepulse/visitor-telemetry/internal/infrastructure/observability"
	apperrors "github.com/hirepulse/visitor-telemetry/pkg/errors"
)

// maxBodyBytes caps ingestion payloads.
const maxBodyBytes = 1 << 20

// storeRetryAfter is the Retry-After hint, in seconds, sent with store failures.
const storeRetryAfter = "1"

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondWithAppError maps the service error taxonomy onto HTTP status codes.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		switch appErr.Type {
		case apperrors.ErrorTypeValidation:
			respondWithError(w, http.StatusBadRequest, appErr.Message)
			return
		case apperrors.ErrorTypeNotFound:
			respondWithError(w, http.StatusNotFound, appErr.Message)
			return
		case apperrors.ErrorTypeStore:
			observability.LoggerFromContext(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("store unavailable")
			w.Header().Set("Retry-After", storeRetryAfter)
			respondWithError(w, http.StatusServiceUnavailable, "store unavailable, retry later")
			return
		}
	}

	observability.LoggerFromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	respondWithError(w, http.StatusInternalServerError, "internal server error")
}

// decodeJSON reads a bounded JSON body into dst, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return false
	}
	return true
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// requestOrigin fills ip and user agent from the request when the payload omits them.
func requestOrigin(r *http.Request, ip, userAgent *string) {
	if *ip == "" {
		*ip = clientIP(r)
	}
	if *userAgent == "" {
		*userAgent = r.UserAgent()
	}
}
