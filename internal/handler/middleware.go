package handler

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/event-booking/internal/audit"
	"github.com/Shivanand-hulikatti/event-booking/internal/logging"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// Logger attaches a request-scoped logrus entry to the context and writes one
// access log line per request. It must run after chi's RequestID middleware.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		entry := logrus.WithFields(logrus.Fields{
			"request_id": chimiddleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
		})

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(logging.ToContext(r.Context(), entry)))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		entry.WithFields(logrus.Fields{
			"status":      status,
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
			"remote_addr": r.RemoteAddr,
		}).Info("request completed")
	})
}

// CORS allows the configured origins. With none configured every origin is
// allowed.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case len(allowed) == 0:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "":
				if _, ok := allowed[origin]; ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
				}
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers",
				strings.Join([]string{"Content-Type", HeaderUserID, HeaderUserRole}, ", "))

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type callerKey struct{}

// Identity resolves the caller from the gateway headers. A missing user id is
// 401; an unknown role is 403. An absent role means a regular user.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if userID == "" {
			writeJSON(w, http.StatusUnauthorized, model.ErrorResponse{
				Error: "missing " + HeaderUserID + " header",
				Code:  "unauthenticated",
			})
			return
		}

		role := model.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderUserRole))))
		if role == "" {
			role = model.RoleUser
		}
		if !role.Valid() {
			writeServiceError(w, r, model.ErrForbidden)
			return
		}

		caller := model.Caller{UserID: userID, Role: role}
		ctx := context.WithValue(r.Context(), callerKey{}, caller)
		ctx = audit.WithOriginAddress(ctx, clientAddress(r))
		ctx = logging.ToContext(ctx, logging.FromContext(ctx).WithField("user_id", userID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects non-admin callers with 403. It must run after Identity.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !callerFrom(r.Context()).IsAdmin() {
			writeServiceError(w, r, model.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerFrom(ctx context.Context) model.Caller {
	c, _ := ctx.Value(callerKey{}).(model.Caller)
	return c
}

// clientAddress strips the port from RemoteAddr, which chi's RealIP has
// already replaced with the forwarded client address when present.
func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
