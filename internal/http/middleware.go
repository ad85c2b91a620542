package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

type contextKey string

const (
	clientIDKey  contextKey = "client_id"
	requestIDKey contextKey = "request_id"
)

// ClientIdentityMiddleware reads the client identity resolved by the
// upstream authentication layer from the X-Client-ID header. It does not
// authenticate anything itself.
func ClientIdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID, err := strconv.ParseInt(r.Header.Get("X-Client-ID"), 10, 64)
		if err != nil || clientID <= 0 {
			respondError(w, http.StatusUnauthorized, "client", "missing client identity")
			return
		}

		ctx := context.WithValue(r.Context(), clientIDKey, clientID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = fmt.Sprintf("req-%d", time.Now().UnixNano())
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getClientIDFromContext(ctx context.Context) int64 {
	if clientID, ok := ctx.Value(clientIDKey).(int64); ok {
		return clientID
	}
	return 0
}
