package httpx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedirectAllowlist_RejectsBadEntries(t *testing.T) {
	_, err := NewRedirectAllowlist("not a url", nil)
	assert.Error(t, err)

	for _, entry := range []string{".com", ".co.uk", "ftp://files.example.com", "example.com"} {
		_, err := NewRedirectAllowlist(testBaseURL, []string{entry})
		assert.Error(t, err, entry)
	}
}

func TestRedirectAllowlist_Resolve(t *testing.T) {
	a, err := NewRedirectAllowlist(testBaseURL, []string{"https://chat.example.com", ".example.org", " "})
	require.NoError(t, err)

	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"/after", testBaseURL + "/after", true},
		{testBaseURL + "/x?y=1", testBaseURL + "/x?y=1", true},
		{"https://CHAT.example.com/bye", "https://CHAT.example.com/bye", true},
		{"https://app.example.org/", "https://app.example.org/", true},
		{"https://example.org", "https://example.org", true},
		{"http://app.example.org/", "", false},
		{"https://example.org.evil.net/", "", false},
		{"https://evilexample.org/", "", false},
		{"//evil.example.net/", "", false},
		{"https://user@chat.example.com/", "", false},
		{"javascript:alert(1)", "", false},
		{"relative", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := a.Resolve(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, testBaseURL+"/", a.ResolveOrDefault("https://evil.example.net"))
}

func TestSafeReturnPath(t *testing.T) {
	assert.Equal(t, "/chat?x=1", safeReturnPath("/chat?x=1"))
	for _, bad := range []string{"", "chat", "//evil.example.net", `/\evil.example.net`, "https://evil.example.net/"} {
		assert.Empty(t, safeReturnPath(bad), bad)
	}
}
