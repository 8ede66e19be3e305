package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-auth-bridge/internal/adapters/memory"
	domainauth "github.com/target/mmk-auth-bridge/internal/domain/auth"
	apperrors "github.com/target/mmk-auth-bridge/internal/errors"
	mockauth "github.com/target/mmk-auth-bridge/internal/mocks/auth"
	"github.com/target/mmk-auth-bridge/internal/ports"
	"github.com/target/mmk-auth-bridge/internal/service"
	"github.com/target/mmk-auth-bridge/internal/testutil"
)

const (
	testBaseURL = "https://bridge.example.com"
	testSecret  = "0123456789abcdef0123456789abcdef"
)

type bridgeFixture struct {
	handler http.Handler
	idp     *mockauth.FakeIdentityProvider
	clock   *testutil.Clock
}

func newBridgeFixture(t *testing.T, secret string) *bridgeFixture {
	t.Helper()
	clock := testutil.NewClock(testutil.TestTime())
	idp := mockauth.NewFakeIdentityProvider()

	flows, err := service.NewFlowCoordinator(service.FlowCoordinatorOptions{
		Provider: idp,
		Flows:    memory.NewFlowStore(clock.Now),
		Now:      clock.Now,
	})
	require.NoError(t, err)
	svc, err := service.NewAuthService(service.AuthServiceOptions{
		Flows:    flows,
		Sessions: memory.NewSessionStore(memory.SessionStoreOptions{Now: clock.Now}),
		Provider: idp,
		Minter: service.NewAssertionMinter(service.AssertionMinterOptions{
			Secret: []byte(secret),
			Now:    clock.Now,
		}),
	})
	require.NoError(t, err)

	redirects, err := NewRedirectAllowlist(testBaseURL, []string{"https://chat.example.com"})
	require.NoError(t, err)

	return &bridgeFixture{
		handler: NewRouter(RouterServices{
			Auth:      svc,
			Cookies:   CookieOptions{Secure: true, SameSite: http.SameSiteStrictMode},
			BaseURL:   testBaseURL,
			Redirects: redirects,
		}),
		idp:   idp,
		clock: clock,
	}
}

func (f *bridgeFixture) do(t *testing.T, method, target string, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	resp := rec.Result()
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

// startLogin runs /login and returns the flow cookie and the state sent to the provider.
func (f *bridgeFixture) startLogin(t *testing.T, returnTo string) (*http.Cookie, string) {
	t.Helper()
	target := "/login"
	if returnTo != "" {
		target += "?return_to=" + url.QueryEscape(returnTo)
	}
	resp := f.do(t, http.MethodGet, target)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	flow := findCookie(resp, FlowCookieName)
	require.NotNil(t, flow)
	return flow, loc.Query().Get("state")
}

// login completes a full login and returns the session cookie.
func (f *bridgeFixture) login(t *testing.T) *http.Cookie {
	t.Helper()
	flow, state := f.startLogin(t, "")
	resp := f.do(t, http.MethodGet, "/redirect?code=abc&state="+url.QueryEscape(state), flow)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	session := findCookie(resp, SessionCookieName)
	require.NotNil(t, session)
	return session
}

func TestLogin_RedirectsToProviderWithFlowCookie(t *testing.T) {
	f := newBridgeFixture(t, "")
	resp := f.do(t, http.MethodGet, "/auth/login?return_to=/chat")

	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), f.idp.AuthURL))
	assert.Equal(t, testBaseURL+"/redirect", f.idp.LastAuthRequest().RedirectURI)

	flow := findCookie(resp, FlowCookieName)
	require.NotNil(t, flow)
	assert.True(t, flow.HttpOnly)
	assert.True(t, flow.Secure)
	assert.Equal(t, http.SameSiteLaxMode, flow.SameSite)
	assert.Equal(t, int(domainauth.DefaultFlowTTL.Seconds()), flow.MaxAge)
	assert.NotEqual(t, f.idp.LastAuthRequest().State, flow.Value)
}

func TestCallback_Success(t *testing.T) {
	f := newBridgeFixture(t, "")
	flow, state := f.startLogin(t, "/chat?x=1")

	resp := f.do(t, http.MethodGet, "/redirect?code=abc&state="+url.QueryEscape(state), flow)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/chat?x=1", resp.Header.Get("Location"))

	session := findCookie(resp, SessionCookieName)
	require.NotNil(t, session)
	assert.Len(t, session.Value, 43)
	assert.True(t, session.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, session.SameSite)
	assert.Equal(t, int(service.DefaultSessionTTL.Seconds()), session.MaxAge)

	cleared := findCookie(resp, FlowCookieName)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)
	assert.Equal(t, "abc", f.idp.LastExchange().Code)
}

func TestCallback_DefaultsToMe(t *testing.T) {
	f := newBridgeFixture(t, "")
	flow, state := f.startLogin(t, "https://evil.example.net/")

	resp := f.do(t, http.MethodGet, "/redirect?code=abc&state="+url.QueryEscape(state), flow)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/me", resp.Header.Get("Location"))
}

func TestCallback_AcceptsPost(t *testing.T) {
	f := newBridgeFixture(t, "")
	flow, state := f.startLogin(t, "")

	form := url.Values{"code": {"abc"}, "state": {state}}
	req := httptest.NewRequest(http.MethodPost, "/redirect", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(flow)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.NotNil(t, findCookie(rec.Result(), SessionCookieName))
}

func TestCallback_Failures(t *testing.T) {
	t.Run("state mismatch", func(t *testing.T) {
		f := newBridgeFixture(t, "")
		flow, _ := f.startLogin(t, "")
		resp := f.do(t, http.MethodGet, "/redirect?code=abc&state=forged", flow)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "invalid_state", decodeBody(t, resp)["error"])
		assert.Nil(t, findCookie(resp, SessionCookieName))
		assert.Zero(t, f.idp.ExchangeCalls())
	})

	t.Run("expired flow", func(t *testing.T) {
		f := newBridgeFixture(t, "")
		flow, state := f.startLogin(t, "")
		f.clock.Advance(domainauth.DefaultFlowTTL + time.Second)
		resp := f.do(t, http.MethodGet, "/redirect?code=abc&state="+url.QueryEscape(state), flow)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "invalid_state", decodeBody(t, resp)["error"])
		assert.Nil(t, findCookie(resp, SessionCookieName))
		assert.Zero(t, f.idp.ExchangeCalls())
	})

	t.Run("no flow cookie", func(t *testing.T) {
		f := newBridgeFixture(t, "")
		resp := f.do(t, http.MethodGet, "/redirect?code=abc&state=s")

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "no_active_flow", decodeBody(t, resp)["error"])
		assert.Empty(t, resp.Header.Get("Location"))
	})

	t.Run("replayed callback", func(t *testing.T) {
		f := newBridgeFixture(t, "")
		flow, state := f.startLogin(t, "")
		target := "/redirect?code=abc&state=" + url.QueryEscape(state)
		require.Equal(t, http.StatusFound, f.do(t, http.MethodGet, target, flow).StatusCode)

		resp := f.do(t, http.MethodGet, target, flow)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "no_active_flow", decodeBody(t, resp)["error"])
	})

	t.Run("provider denied", func(t *testing.T) {
		f := newBridgeFixture(t, "")
		flow, state := f.startLogin(t, "")
		resp := f.do(t, http.MethodGet,
			"/redirect?error=access_denied&error_description=cancelled&state="+url.QueryEscape(state), flow)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, "access_denied", body["error"])
		assert.Equal(t, "cancelled", body["error_description"])
		assert.Nil(t, findCookie(resp, SessionCookieName))
	})

	t.Run("provider unreachable", func(t *testing.T) {
		f := newBridgeFixture(t, "")
		f.idp.ExchangeFunc = func(context.Context, ports.ExchangeInput) (domainauth.ProviderTokenResult, error) {
			return domainauth.ProviderTokenResult{}, apperrors.ProviderUnreachable(context.DeadlineExceeded)
		}
		flow, state := f.startLogin(t, "")
		resp := f.do(t, http.MethodGet, "/redirect?code=abc&state="+url.QueryEscape(state), flow)

		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		assert.Equal(t, "provider_unreachable", decodeBody(t, resp)["error"])
	})
}

func TestMeAndStatus(t *testing.T) {
	f := newBridgeFixture(t, "")

	resp := f.do(t, http.MethodGet, "/me")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, false, body["authenticated"])
	assert.Nil(t, body["user"])

	resp = f.do(t, http.MethodGet, "/auth/status")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, decodeBody(t, resp)["authenticated"])

	session := f.login(t)

	resp = f.do(t, http.MethodGet, "/me", session)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, true, body["authenticated"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "mock-sub-1", user["sub"])
	assert.Equal(t, "mock.user@example.com", user["email"])
	assert.Equal(t, []any{"Reader"}, user["roles"])
	assert.NotContains(t, body, "tokens")

	resp = f.do(t, http.MethodGet, "/auth/status", session)
	body = decodeBody(t, resp)
	assert.Equal(t, true, body["authenticated"])
	assert.NotEmpty(t, body["expires_at"])

	resp = f.do(t, http.MethodGet, "/", session)
	body = decodeBody(t, resp)
	assert.Equal(t, "mmk-auth-bridge is running", body["message"])
	assert.Equal(t, true, body["authenticated"])
}

func TestMe_ExpiredSessionClearsCookie(t *testing.T) {
	f := newBridgeFixture(t, "")
	session := f.login(t)
	f.clock.Advance(service.DefaultSessionTTL)

	resp := f.do(t, http.MethodGet, "/me", session)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	cleared := findCookie(resp, SessionCookieName)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)
}

func TestAssertion(t *testing.T) {
	t.Run("requires a session before the secret", func(t *testing.T) {
		f := newBridgeFixture(t, "")
		resp := f.do(t, http.MethodGet, "/assertion")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "not_authenticated", decodeBody(t, resp)["error"])

		resp = f.do(t, http.MethodGet, "/assertion", f.login(t))
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "internal_jwt_not_configured", decodeBody(t, resp)["error"])
	})

	t.Run("issues a token", func(t *testing.T) {
		f := newBridgeFixture(t, testSecret)
		resp := f.do(t, http.MethodGet, "/assertion?ttl_min=5", f.login(t))
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		token, _ := body["token"].(string)
		require.NotEmpty(t, token)

		verifier := service.NewAssertionMinter(service.AssertionMinterOptions{
			Secret: []byte(testSecret),
			Now:    f.clock.Now,
		})
		claims, err := verifier.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, "mock-sub-1", claims.Subject)
		assert.Equal(t, 5*time.Minute, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
	})

	t.Run("huge ttl is clamped", func(t *testing.T) {
		f := newBridgeFixture(t, testSecret)
		resp := f.do(t, http.MethodGet, "/assertion?ttl_min=99999999999", f.login(t))
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		verifier := service.NewAssertionMinter(service.AssertionMinterOptions{
			Secret: []byte(testSecret),
			Now:    f.clock.Now,
		})
		claims, err := verifier.Verify(body["token"].(string))
		require.NoError(t, err)
		assert.Equal(t, service.DefaultAssertionTTL, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
	})

	t.Run("rejects a bad ttl", func(t *testing.T) {
		f := newBridgeFixture(t, testSecret)
		resp := f.do(t, http.MethodGet, "/assertion?ttl_min=soon", f.login(t))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestLogout(t *testing.T) {
	f := newBridgeFixture(t, "")
	session := f.login(t)

	resp := f.do(t, http.MethodGet,
		"/logout?post_logout_redirect_uri="+url.QueryEscape("https://chat.example.com/bye"), session)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "https://chat.example.com/bye", loc.Query().Get("post_logout_redirect_uri"))
	cleared := findCookie(resp, SessionCookieName)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)

	resp = f.do(t, http.MethodGet, "/me", session)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogout_UnlistedRedirectFallsBackToBase(t *testing.T) {
	f := newBridgeFixture(t, "")
	resp := f.do(t, http.MethodPost,
		"/logout?post_logout_redirect_uri="+url.QueryEscape("https://evil.example.net/"))
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, testBaseURL+"/", loc.Query().Get("post_logout_redirect_uri"))
}

func TestHealthz(t *testing.T) {
	f := newBridgeFixture(t, "")

	resp := f.do(t, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	body := decodeBody(t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "mmk-auth-bridge", body["service"])

	resp = f.do(t, http.MethodHead, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
