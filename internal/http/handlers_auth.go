package httpx

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	domainauth "github.com/target/mmk-auth-bridge/internal/domain/auth"
	apperrors "github.com/target/mmk-auth-bridge/internal/errors"
	"github.com/target/mmk-auth-bridge/internal/service"
)

// AuthServiceInterface defines the interface for auth service operations.
type AuthServiceInterface interface {
	BeginLogin(ctx context.Context, in service.BeginLoginInput) (service.InitiateResult, error)
	CompleteLogin(ctx context.Context, flowKey string, params domainauth.CallbackParams) (*service.CompleteLoginResult, error)
	GetSession(ctx context.Context, handle string) (domainauth.SessionRecord, error)
	IssueAssertion(ctx context.Context, handle string, ttl time.Duration) (service.Assertion, error)
	Logout(ctx context.Context, handle, postLogoutRedirect string) (string, error)
	SessionTTL() time.Duration
	FlowTTL() time.Duration
}

var _ AuthServiceInterface = (*service.AuthService)(nil)

// defaultReturnPath is where a completed login lands without return_to.
const defaultReturnPath = "/me"

// maxTTLMinutes is the largest minute count a time.Duration can hold.
// The minter clamps the result to its configured maximum.
const maxTTLMinutes = math.MaxInt64 / int64(time.Minute)

// AuthHandlers provides HTTP handlers for the login flow, session introspection,
// assertions and logout.
type AuthHandlers struct {
	Svc         AuthServiceInterface
	Cookies     CookieOptions
	RedirectURI string // absolute callback URL registered with the provider
	Redirects   *RedirectAllowlist
	ServiceName string
	Logger      *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// userBody is the public view of a session.
type userBody struct {
	Authenticated bool                           `json:"authenticated"`
	User          *domainauth.CanonicalIdentity `json:"user"`
	ExpiresAt     *time.Time                     `json:"expires_at,omitempty"`
}

func sessionBody(r *http.Request, withExpiry bool) userBody {
	s, ok := GetSessionFromContext(r.Context())
	if !ok {
		return userBody{}
	}
	body := userBody{Authenticated: true, User: &s.Identity}
	if withExpiry {
		exp := s.ExpiresAt
		body.ExpiresAt = &exp
	}
	return body
}

// Index reports that the service is up and whether the caller is signed in.
// GET /.
func (h *AuthHandlers) Index(w http.ResponseWriter, r *http.Request) {
	body := sessionBody(r, false)
	WriteJSON(w, http.StatusOK, map[string]any{
		"message":       h.ServiceName + " is running",
		"authenticated": body.Authenticated,
		"user":          body.User,
	})
}

// Login starts a login attempt and sends the browser to the provider.
// GET /login?return_to=<relative path>.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	result, err := h.Svc.BeginLogin(r.Context(), service.BeginLoginInput{
		RedirectURI: h.RedirectURI,
		ReturnTo:    safeReturnPath(r.URL.Query().Get("return_to")),
	})
	if err != nil {
		writeAppError(w, r, h.logger(), err)
		return
	}

	h.Cookies.setFlow(w, result.FlowKey, h.Svc.FlowTTL())
	http.Redirect(w, r, result.AuthURL, http.StatusFound)
}

// Callback completes the login the provider redirected back for.
// GET|POST {REDIRECT_PATH}?code=<code>&state=<state>.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	flowKey := cookieValue(r, FlowCookieName)
	// The flow is consumed whatever the outcome.
	h.Cookies.clear(w, FlowCookieName)

	params := domainauth.CallbackParams{
		Code:             r.FormValue("code"),
		State:            r.FormValue("state"),
		Error:            r.FormValue("error"),
		ErrorDescription: r.FormValue("error_description"),
	}
	result, err := h.Svc.CompleteLogin(r.Context(), flowKey, params)
	if err != nil {
		h.logger().InfoContext(r.Context(), "login failed", "code", apperrors.GetCode(err))
		writeAppError(w, r, h.logger(), err)
		return
	}

	h.Cookies.setSession(w, result.Handle, h.Svc.SessionTTL())
	target := safeReturnPath(result.ReturnTo)
	if target == "" {
		target = defaultReturnPath
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// Me returns the signed-in user or 401.
// GET /me.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	body := sessionBody(r, false)
	if !body.Authenticated {
		WriteJSON(w, http.StatusUnauthorized, body)
		return
	}
	WriteJSON(w, http.StatusOK, body)
}

// Status returns the current authentication status. It never fails for a missing session.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, sessionBody(r, true))
}

// Assertion mints an internal assertion for the signed-in user.
// GET /assertion?ttl_min=<minutes>.
func (h *AuthHandlers) Assertion(w http.ResponseWriter, r *http.Request) {
	var ttl time.Duration
	if raw := r.URL.Query().Get("ttl_min"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			WriteError(w, ErrorParams{
				Code:    http.StatusBadRequest,
				ErrCode: "invalid_request",
				Err:     errors.New("ttl_min must be a positive integer"),
			})
			return
		}
		ttl = time.Duration(min(int64(minutes), maxTTLMinutes)) * time.Minute
	}

	a, err := h.Svc.IssueAssertion(r.Context(), cookieValue(r, SessionCookieName), ttl)
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, map[string]any{"token": a.Token, "expires_at": a.ExpiresAt})
	case apperrors.IsNotAuthenticated(err):
		WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "not_authenticated"})
	case apperrors.IsNotConfigured(err):
		WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_jwt_not_configured"})
	default:
		writeAppError(w, r, h.logger(), err)
	}
}

// Logout destroys the session and sends the browser to the provider's end-session endpoint.
// GET|POST /logout?post_logout_redirect_uri=<allowed URL>.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	postLogout := h.Redirects.ResolveOrDefault(r.FormValue("post_logout_redirect_uri"))

	target, err := h.Svc.Logout(r.Context(), cookieValue(r, SessionCookieName), postLogout)
	if err != nil {
		writeAppError(w, r, h.logger(), err)
		return
	}
	h.Cookies.clear(w, SessionCookieName)
	http.Redirect(w, r, target, http.StatusFound)
}
