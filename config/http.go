package config

import (
	"strings"
	"time"
)

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8000"`

	// Port, when set, overrides the port in Addr (platforms commonly inject PORT).
	Port string `env:"PORT"`

	// BaseURL is the externally visible base URL (e.g., "https://auth.example.com").
	// The provider redirect URI is BaseURL + REDIRECT_PATH.
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8000"`

	// PostLogoutAllowedOrigins lists where /logout may send the browser afterwards.
	// Entries are origins (https://app.example.com) or domain suffixes (.example.com).
	// The BaseURL origin is always allowed.
	PostLogoutAllowedOrigins []string `env:"POST_LOGOUT_ALLOWED_ORIGINS" envSeparator:","`

	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT"    envDefault:"10s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if p := strings.TrimSpace(h.Port); p != "" {
		h.Addr = ":" + p
	}
	h.BaseURL = strings.TrimRight(strings.TrimSpace(h.BaseURL), "/")

	origins := h.PostLogoutAllowedOrigins[:0]
	for _, o := range h.PostLogoutAllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	h.PostLogoutAllowedOrigins = origins

	if h.ReadHeaderTimeout <= 0 {
		h.ReadHeaderTimeout = 10 * time.Second
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 10 * time.Second
	}
}
