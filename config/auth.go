package config

import (
	"errors"
	"fmt"
	"strings"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModeOAuth uses OAuth/OIDC for authentication.
	AuthModeOAuth AuthMode = "oauth"
	// AuthModeMock uses mock/dev authentication (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "oauth", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oauth, mock)", v)
	}
}

// DevAuthConfig controls mock/dev authentication identity.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	Subject  string   `env:"SUBJECT"   envDefault:"dev-user"`
	Name     string   `env:"NAME"      envDefault:"Dev User"`
	Email    string   `env:"EMAIL"     envDefault:"dev@example.com"`
	TenantID string   `env:"TENANT_ID" envDefault:"dev-tenant"`
	Roles    []string `env:"ROLES"     envDefault:"Reader"          envSeparator:";"`
}

// AuthConfig groups identity provider configuration.
type AuthConfig struct {
	// Mode determines which identity provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oauth"`

	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	TenantID     string `env:"TENANT_ID"`

	// Authority is the OIDC issuer. Defaults to the Azure AD v2.0 issuer for TenantID.
	Authority string `env:"AUTHORITY"`

	// RedirectPath is the callback path registered with the provider.
	RedirectPath string `env:"REDIRECT_PATH" envDefault:"/redirect"`

	// Scopes requested at login, space-separated.
	Scopes []string `env:"SCOPES" envDefault:"openid profile email" envSeparator:" "`

	// LogoutURL overrides the discovered end_session_endpoint.
	LogoutURL string `env:"LOGOUT_URL"`

	// Prompt is forwarded to the authorization endpoint when set (e.g. select_account).
	Prompt string `env:"AUTH_PROMPT"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`
}

// Sanitize trims values and derives the default authority.
func (a *AuthConfig) Sanitize() {
	a.ClientID = strings.TrimSpace(a.ClientID)
	a.TenantID = strings.TrimSpace(a.TenantID)
	a.Authority = strings.TrimRight(strings.TrimSpace(a.Authority), "/")
	if a.Authority == "" && a.TenantID != "" {
		a.Authority = AzureAuthority(a.TenantID)
	}
	if a.RedirectPath = strings.TrimSpace(a.RedirectPath); a.RedirectPath == "" {
		a.RedirectPath = "/redirect"
	}

	scopes := make([]string, 0, len(a.Scopes))
	for _, s := range a.Scopes {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	a.Scopes = scopes
}

// Validate requires provider credentials in oauth mode.
func (a *AuthConfig) Validate() error {
	if a.Mode == AuthModeMock {
		return nil
	}
	var missing []string
	if a.ClientID == "" {
		missing = append(missing, "CLIENT_ID")
	}
	if a.ClientSecret == "" {
		missing = append(missing, "CLIENT_SECRET")
	}
	if a.TenantID == "" {
		missing = append(missing, "TENANT_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required identity provider settings: %s", strings.Join(missing, ", "))
	}
	if a.Authority == "" {
		return errors.New("AUTHORITY could not be derived")
	}
	return nil
}

// AzureAuthority returns the Azure AD v2.0 issuer for a tenant.
func AzureAuthority(tenantID string) string {
	return "https://login.microsoftonline.com/" + tenantID + "/v2.0"
}
