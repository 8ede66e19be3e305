package httpx

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	apperrors "github.com/target/mmk-auth-bridge/internal/errors"
)

// Logging returns a middleware that logs HTTP requests and responses.
// Query strings are not logged: callbacks carry authorization codes.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// OptionalAuth loads the session named by the session cookie into the request context.
// Requests without a live session continue unauthenticated and a stale cookie is cleared.
// A store failure is a server error rather than a silent logout.
func OptionalAuth(authSvc AuthServiceInterface, cookies CookieOptions, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handle := cookieValue(r, SessionCookieName)
			if handle == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, err := authSvc.GetSession(r.Context(), handle)
			switch {
			case err == nil:
				r = r.WithContext(SetSessionInContext(r.Context(), &session))
			case apperrors.IsNotAuthenticated(err):
				cookies.clear(w, SessionCookieName)
			default:
				writeAppError(w, r, logger, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
