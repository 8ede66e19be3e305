package bootstrap

import (
	"log/slog"

	"github.com/target/mmk-auth-bridge/internal/data/cryptoutil"
)

// CreateEncryptor creates the AES-GCM encryptor that seals tokens held by the
// redis and postgres session stores. A hex key of 64 characters is used as-is;
// anything else is hashed to 32 bytes.
// Returns a noop encryptor if the key is empty or invalid (with warning log).
//
//nolint:ireturn // Returning interface is intentional for encryptor abstraction
func CreateEncryptor(key string, logger *slog.Logger) cryptoutil.Encryptor {
	if key == "" {
		if logger != nil {
			logger.Warn("session encryption key is empty, tokens are stored unsealed")
		}
		return cryptoutil.NoopEncryptor{}
	}

	enc, err := cryptoutil.NewAESGCMEncryptor(cryptoutil.KeyFromString(key))
	if err != nil {
		if logger != nil {
			logger.Warn("failed to create encryptor, tokens are stored unsealed", "error", err)
		}
		return cryptoutil.NoopEncryptor{}
	}

	return enc
}
