package httpx

import (
	"net/http"
	"time"
)

const (
	// SessionCookieName carries the opaque session handle and nothing else.
	SessionCookieName = "session_id"
	// FlowCookieName carries the per-browser key of the login in progress.
	FlowCookieName = "auth_flow"
)

// CookieOptions are the attributes shared by every cookie the bridge sets.
type CookieOptions struct {
	Secure   bool
	SameSite http.SameSite
	Domain   string
}

func (o CookieOptions) sameSite() http.SameSite {
	if o.SameSite == 0 || o.SameSite == http.SameSiteDefaultMode {
		return http.SameSiteLaxMode
	}
	return o.SameSite
}

func (o CookieOptions) setSession(w http.ResponseWriter, handle string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    handle,
		Path:     "/",
		Domain:   o.Domain,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: o.sameSite(),
		MaxAge:   int(ttl.Seconds()),
	})
}

// setFlow is always Lax: the provider's callback is a cross-site top-level
// navigation and a Strict cookie would not come back with it.
func (o CookieOptions) setFlow(w http.ResponseWriter, key string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     FlowCookieName,
		Value:    key,
		Path:     "/",
		Domain:   o.Domain,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	})
}

// clear expires a cookie, mirroring the attributes used when it was set.
func (o CookieOptions) clear(w http.ResponseWriter, name string) {
	sameSite := o.sameSite()
	if name == FlowCookieName {
		sameSite = http.SameSiteLaxMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   o.Domain,
		HttpOnly: true,
		Secure:   o.Secure,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: sameSite,
	})
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
