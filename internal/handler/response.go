package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ewhall/parley/internal/service"
)

// writeOK writes a success envelope. Every field of payload is merged
// next to "ok": true.
func writeOK(w http.ResponseWriter, status int, payload map[string]any) {
	body := map[string]any{"ok": true}
	for k, v := range payload {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// writeErr maps a service error onto the failure envelope and an HTTP
// status. Internal errors surface with an opaque message.
func writeErr(w http.ResponseWriter, err error) {
	kind := service.KindOf(err)
	msg := publicMessage(err, kind)
	body := map[string]any{"ok": false, "error": msg}
	if details := service.DetailsOf(err); details != nil {
		body["details"] = details
	}
	if kind == service.KindInternal {
		log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, statusOf(kind), body)
}

// writeErrMsg writes a failure envelope with an explicit status and message.
func writeErrMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Error encoding response")
	}
}

func statusOf(kind service.Kind) int {
	switch kind {
	case service.KindUnauthenticated:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindValidation, service.KindPrecondition:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage exposes only the tagged message, never the wrapped
// engine-internal error text.
func publicMessage(err error, kind service.Kind) string {
	if kind == service.KindInternal {
		return "internal error"
	}
	var se *service.Error
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}

// decodeJSON reads and decodes JSON from a request body.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// bearerToken extracts the Authorization bearer token, or "".
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
