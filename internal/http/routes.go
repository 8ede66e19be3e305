package httpx

import (
	"log/slog"
	"net/http"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Auth         AuthServiceInterface
	Cookies      CookieOptions
	BaseURL      string
	RedirectPath string
	Redirects    *RedirectAllowlist
	ServiceName  string
	Logger       *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := services.ServiceName
	if name == "" {
		name = "mmk-auth-bridge"
	}
	redirectPath := services.RedirectPath
	if redirectPath == "" {
		redirectPath = "/redirect"
	}

	h := &AuthHandlers{
		Svc:         services.Auth,
		Cookies:     services.Cookies,
		RedirectURI: services.BaseURL + redirectPath,
		Redirects:   services.Redirects,
		ServiceName: name,
		Logger:      logger,
	}

	mux.Handle("GET /healthz", healthHandler(name))
	mux.Handle("HEAD /healthz", healthHandler(name))
	registerAuthRoutes(mux, h, redirectPath)

	return mux
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers, redirectPath string) {
	withSession := OptionalAuth(h.Svc, h.Cookies, h.logger())

	mux.Handle("GET /{$}", withSession(http.HandlerFunc(h.Index)))
	mux.Handle("GET /me", withSession(http.HandlerFunc(h.Me)))
	mux.Handle("GET /auth/status", withSession(http.HandlerFunc(h.Status)))

	mux.HandleFunc("GET /login", h.Login)
	mux.HandleFunc("GET /auth/login", h.Login)
	mux.HandleFunc("GET "+redirectPath, h.Callback)
	mux.HandleFunc("POST "+redirectPath, h.Callback)
	mux.HandleFunc("GET /assertion", h.Assertion)
	mux.HandleFunc("GET /logout", h.Logout)
	mux.HandleFunc("POST /logout", h.Logout)
}
