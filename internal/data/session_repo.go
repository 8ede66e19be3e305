package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/target/mmk-auth-bridge/internal/adapters/sessionrecord"
	"github.com/target/mmk-auth-bridge/internal/data/cryptoutil"
	"github.com/target/mmk-auth-bridge/internal/data/pgxutil"
	domainauth "github.com/target/mmk-auth-bridge/internal/domain/auth"
	apperrors "github.com/target/mmk-auth-bridge/internal/errors"
	"github.com/target/mmk-auth-bridge/internal/ports"
)

const maxSessionInsertAttempts = 3

var (
	_ ports.SessionStore = (*SessionRepo)(nil)
	_ ports.Sweeper      = (*SessionRepo)(nil)
)

// SessionRepo persists sessions in the auth_sessions table. Provider tokens are
// sealed with the configured Encryptor; identity is stored as JSONB.
type SessionRepo struct {
	DB    *sql.DB
	codec sessionrecord.Codec
	clock TimeProvider
}

// SessionRepoOptions configures a SessionRepo.
type SessionRepoOptions struct {
	DB        *sql.DB
	Encryptor cryptoutil.Encryptor // Optional: defaults to a no-op encryptor
	Clock     TimeProvider         // Optional: defaults to RealTimeProvider
}

// NewSessionRepo creates a new SessionRepo.
func NewSessionRepo(opts SessionRepoOptions) *SessionRepo {
	r := &SessionRepo{DB: opts.DB, codec: sessionrecord.NewCodec(opts.Encryptor), clock: opts.Clock}
	if r.clock == nil {
		r.clock = RealTimeProvider{}
	}
	return r
}

type sessionRow struct {
	Handle    string                       `db:"handle"`
	Identity  domainauth.CanonicalIdentity `db:"identity"`
	Tokens    string                       `db:"tokens"`
	Permanent bool                         `db:"permanent"`
	CreatedAt time.Time                    `db:"created_at"`
	ExpiresAt time.Time                    `db:"expires_at"`
}

const insertSessionSQL = `
	INSERT INTO auth_sessions (handle, identity, tokens, permanent, created_at, expires_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

// Create inserts a new session. A primary-key collision is retried with a fresh handle.
func (r *SessionRepo) Create(
	ctx context.Context,
	identity domainauth.CanonicalIdentity,
	tokens domainauth.TokenSet,
	ttl time.Duration,
) (string, error) {
	if ttl <= 0 {
		return "", errors.New("session ttl must be positive")
	}
	sealed, err := r.codec.SealTokens(tokens)
	if err != nil {
		return "", err
	}
	if identity.Roles == nil {
		identity.Roles = []string{}
	}
	now := r.clock.Now().UTC()

	for range maxSessionInsertAttempts {
		handle, genErr := cryptoutil.RandomToken(cryptoutil.TokenBytes)
		if genErr != nil {
			return "", fmt.Errorf("generate session handle: %w", genErr)
		}
		err = pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
			_, execErr := conn.Exec(ctx, insertSessionSQL, handle, identity, sealed, true, now, now.Add(ttl))
			return execErr
		})
		if err == nil {
			return handle, nil
		}
		mapped := apperrors.MapDBError(err)
		if !apperrors.IsConflict(mapped) {
			return "", fmt.Errorf("insert session: %w", mapped)
		}
	}
	return "", errors.New("could not allocate a unique session handle")
}

const selectSessionSQL = `
	SELECT handle, identity, tokens, permanent, created_at, expires_at
	FROM auth_sessions
	WHERE handle = $1 AND expires_at > $2`

func (r *SessionRepo) Get(ctx context.Context, handle string) (domainauth.SessionRecord, bool, error) {
	if handle == "" {
		return domainauth.SessionRecord{}, false, nil
	}
	var row sessionRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, selectSessionSQL, handle, r.clock.Now().UTC())
		if err != nil {
			return err
		}
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[sessionRow])
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return domainauth.SessionRecord{}, false, nil
	}
	if err != nil {
		return domainauth.SessionRecord{}, false, fmt.Errorf("get session: %w", apperrors.MapDBError(err))
	}

	tokens, err := r.codec.OpenTokens(row.Tokens)
	if err != nil {
		return domainauth.SessionRecord{}, false, err
	}
	if row.Identity.Roles == nil {
		row.Identity.Roles = []string{}
	}
	return domainauth.SessionRecord{
		Handle:    row.Handle,
		Identity:  row.Identity,
		Tokens:    tokens,
		CreatedAt: row.CreatedAt,
		ExpiresAt: row.ExpiresAt,
		Permanent: row.Permanent,
	}, true, nil
}

func (r *SessionRepo) Destroy(ctx context.Context, handle string) error {
	if handle == "" {
		return nil
	}
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM auth_sessions WHERE handle = $1`, handle); err != nil {
		return fmt.Errorf("delete session: %w", apperrors.MapDBError(err))
	}
	return nil
}

// PurgeExpired deletes every session at or past its expiry.
func (r *SessionRepo) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM auth_sessions WHERE expires_at <= $1`, r.clock.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge sessions rows affected: %w", err)
	}
	return n, nil
}
