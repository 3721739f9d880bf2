package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/matchcast/predictions-api/internal/logic"
)

const apiKeyHeader = "X-API-Key"

// Health check endpoint
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// Ready check endpoint. Only bound dependencies are checked.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checks := map[string]bool{}
	if h.predictions != nil {
		checks["store"] = h.predictions.Ping(ctx) == nil
	} else {
		checks["store"] = false
	}
	if h.ch != nil {
		checks["clickhouse"] = h.ch.Ping(ctx) == nil
	}
	if h.pg != nil {
		checks["postgres"] = h.pg.Ping(ctx) == nil
	}

	allHealthy := true
	for _, ok := range checks {
		if !ok {
			allHealthy = false
			break
		}
	}

	body := map[string]interface{}{
		"ready":  allHealthy,
		"checks": checks,
	}
	if h.analytics != nil {
		body["queueDepth"] = h.analytics.QueueDepth()
	}

	status := http.StatusOK
	if !allHealthy {
		status = http.StatusServiceUnavailable
	}
	h.jsonResponse(w, status, body)
}

// RequireStore short-circuits every route when no prediction store is bound
func (h *Handler) RequireStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.predictions == nil {
			h.logger.Errorw("Prediction store is not bound", "path", r.URL.Path)
			h.errorResponse(w, http.StatusInternalServerError, logic.KindConfig,
				"prediction store is not configured: set KV_BACKEND and its connection URL")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAPIKey checks the X-API-Key header against the configured secret
func (h *Handler) RequireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.apiKey == "" {
			h.errorResponse(w, http.StatusInternalServerError, logic.KindConfig, "API key is not configured")
			return
		}
		got := r.Header.Get(apiKeyHeader)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.apiKey)) != 1 {
			h.errorResponse(w, http.StatusUnauthorized, logic.KindAuth, "missing or invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AnswerOptions replies 200 to any OPTIONS request that reaches the router.
// Preflights carrying an Origin are answered earlier by the CORS handler.
func (h *Handler) AnswerOptions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) errorResponse(w http.ResponseWriter, status int, kind logic.Kind, message string) {
	h.jsonResponse(w, status, map[string]string{"error": message, "kind": string(kind)})
}

// statusForKind maps error kinds to HTTP statuses
var statusForKind = map[logic.Kind]int{
	logic.KindAuth:              http.StatusUnauthorized,
	logic.KindConfig:            http.StatusInternalServerError,
	logic.KindValidation:        http.StatusBadRequest,
	logic.KindNotFound:          http.StatusNotFound,
	logic.KindConflict:          http.StatusConflict,
	logic.KindAlreadyInProgress: http.StatusConflict,
	logic.KindGenerationTimeout: http.StatusGatewayTimeout,
}

// writeError renders a logic error. Internal errors get a stable message;
// the cause is only logged.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := logic.KindOf(err)
	status, ok := statusForKind[kind]
	if !ok {
		h.logger.Errorw("Request failed", "path", r.URL.Path, "method", r.Method, "error", err)
		h.errorResponse(w, http.StatusInternalServerError, logic.KindInternal, "internal error")
		return
	}

	var e *logic.Error
	message := string(kind)
	if errors.As(err, &e) && e.Message != "" {
		message = e.Message
	}
	if status >= 500 {
		h.logger.Errorw("Request failed", "path", r.URL.Path, "kind", kind, "error", err)
	}
	h.jsonResponse(w, status, map[string]string{"error": message, "kind": string(kind)})
}

// validationError reports a bad body with the route's required field set
func (h *Handler) validationError(w http.ResponseWriter, message string, required []string) {
	h.jsonResponse(w, http.StatusBadRequest, map[string]interface{}{
		"error":    message,
		"kind":     logic.KindValidation,
		"required": required,
	})
}

// decodeJSON reads a size-limited JSON body into dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
