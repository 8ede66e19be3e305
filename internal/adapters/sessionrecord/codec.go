// Package sessionrecord serializes session records for out-of-process stores.
// Identity fields are stored as plain JSON; the raw provider token set is sealed
// with the configured Encryptor so tokens are never at rest in cleartext.
package sessionrecord

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/target/mmk-auth-bridge/internal/data/cryptoutil"
	domainauth "github.com/target/mmk-auth-bridge/internal/domain/auth"
)

// Codec encodes and decodes SessionRecords.
type Codec struct {
	enc cryptoutil.Encryptor
}

// NewCodec returns a Codec. A nil encryptor falls back to NoopEncryptor.
func NewCodec(enc cryptoutil.Encryptor) Codec {
	if enc == nil {
		enc = cryptoutil.NoopEncryptor{}
	}
	return Codec{enc: enc}
}

// stored is the wire shape.
type stored struct {
	Handle       string                       `json:"handle"`
	Identity     domainauth.CanonicalIdentity `json:"identity"`
	SealedTokens string                       `json:"tokens"`
	CreatedAt    time.Time                    `json:"created_at"`
	ExpiresAt    time.Time                    `json:"expires_at"`
	Permanent    bool                         `json:"permanent"`
}

// SealTokens encrypts a token set.
func (c Codec) SealTokens(tokens domainauth.TokenSet) (string, error) {
	raw, err := json.Marshal(tokens)
	if err != nil {
		return "", fmt.Errorf("marshal tokens: %w", err)
	}
	sealed, err := c.enc.Encrypt(raw)
	if err != nil {
		return "", fmt.Errorf("seal tokens: %w", err)
	}
	return sealed, nil
}

// OpenTokens decrypts a token set sealed by SealTokens.
func (c Codec) OpenTokens(sealed string) (domainauth.TokenSet, error) {
	var tokens domainauth.TokenSet
	if sealed == "" {
		return tokens, nil
	}
	raw, err := c.enc.Decrypt(sealed)
	if err != nil {
		return tokens, fmt.Errorf("open tokens: %w", err)
	}
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return tokens, fmt.Errorf("unmarshal tokens: %w", err)
	}
	return tokens, nil
}

// Marshal encodes rec with its tokens sealed.
func (c Codec) Marshal(rec domainauth.SessionRecord) ([]byte, error) {
	if rec.Handle == "" {
		return nil, errors.New("session handle cannot be empty")
	}
	sealed, err := c.SealTokens(rec.Tokens)
	if err != nil {
		return nil, err
	}
	return json.Marshal(stored{
		Handle:       rec.Handle,
		Identity:     rec.Identity,
		SealedTokens: sealed,
		CreatedAt:    rec.CreatedAt,
		ExpiresAt:    rec.ExpiresAt,
		Permanent:    rec.Permanent,
	})
}

// Unmarshal decodes data produced by Marshal.
func (c Codec) Unmarshal(data []byte) (domainauth.SessionRecord, error) {
	var s stored
	if err := json.Unmarshal(data, &s); err != nil {
		return domainauth.SessionRecord{}, fmt.Errorf("unmarshal session: %w", err)
	}
	tokens, err := c.OpenTokens(s.SealedTokens)
	if err != nil {
		return domainauth.SessionRecord{}, err
	}
	if s.Identity.Roles == nil {
		s.Identity.Roles = []string{}
	}
	return domainauth.SessionRecord{
		Handle:    s.Handle,
		Identity:  s.Identity,
		Tokens:    tokens,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
		Permanent: s.Permanent,
	}, nil
}
