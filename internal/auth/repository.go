package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type Repository struct {
	db *sql.DB
}

type CleanupResult struct {
	DeletedLoginAttempts int64 `json:"deleted_login_attempts"`
	DeletedSessoes       int64 `json:"deleted_sessoes"`
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByUsuario(ctx context.Context, usuario string) (Usuario, error) {
	var u Usuario
	err := r.db.QueryRowContext(ctx, `
		SELECT id, usuario, email, senha_hash, created_at, updated_at
		FROM usuarios
		WHERE usuario = $1
	`, usuario).Scan(&u.ID, &u.Usuario, &u.Email, &u.SenhaHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Usuario{}, err
		}
		return Usuario{}, fmt.Errorf("query usuario: %w", err)
	}

	return u, nil
}

// UpsertAdminUsuario creates or refreshes the bootstrap account. Used only
// at startup when ADMIN_USUARIO/ADMIN_SENHA are configured.
func (r *Repository) UpsertAdminUsuario(ctx context.Context, usuario, email, plainSenha string) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate uuid v7: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plainSenha), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash senha: %w", err)
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO usuarios (id, usuario, email, senha_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (usuario)
		DO UPDATE SET
			email = EXCLUDED.email,
			senha_hash = EXCLUDED.senha_hash,
			updated_at = EXCLUDED.updated_at
	`, id.String(), usuario, email, string(hash), now)
	if err != nil {
		return fmt.Errorf("upsert admin usuario: %w", err)
	}

	return nil
}

func (r *Repository) GetLoginAttempt(ctx context.Context, usuario string) (LoginAttempt, error) {
	attempt := LoginAttempt{Usuario: usuario}

	var lockedUntil sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT failed_attempts, locked_until
		FROM auth_login_attempts
		WHERE usuario = $1
	`, usuario).Scan(&attempt.FailedAttempts, &lockedUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return attempt, nil
		}
		return LoginAttempt{}, fmt.Errorf("query login attempt: %w", err)
	}
	if lockedUntil.Valid {
		value := lockedUntil.Time.UTC()
		attempt.LockedUntil = &value
	}

	return attempt, nil
}

// RegisterFailedAttempt bumps the failure counter under a row lock and
// returns the lock expiry when the threshold is crossed.
func (r *Repository) RegisterFailedAttempt(ctx context.Context, usuario string, maxAttempts int, lockDuration time.Duration, now time.Time) (*time.Time, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin login attempt tx: %w", err)
	}
	defer tx.Rollback()

	var failed int
	var lockedUntil sql.NullTime
	err = tx.QueryRowContext(ctx, `
		SELECT failed_attempts, locked_until
		FROM auth_login_attempts
		WHERE usuario = $1
		FOR UPDATE
	`, usuario).Scan(&failed, &lockedUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			failed = 0
			lockedUntil = sql.NullTime{}
		} else {
			return nil, fmt.Errorf("lock login attempt row: %w", err)
		}
	}

	if lockedUntil.Valid && now.Before(lockedUntil.Time) {
		until := lockedUntil.Time.UTC()
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit existing lock tx: %w", err)
		}
		return &until, nil
	}

	failed++
	var nextLock *time.Time
	var nextLockValue any = nil
	if failed >= maxAttempts {
		until := now.UTC().Add(lockDuration)
		nextLock = &until
		nextLockValue = until
		failed = 0
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO auth_login_attempts (usuario, failed_attempts, locked_until, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (usuario)
		DO UPDATE SET
			failed_attempts = EXCLUDED.failed_attempts,
			locked_until = EXCLUDED.locked_until,
			updated_at = EXCLUDED.updated_at
	`, usuario, failed, nextLockValue, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("upsert failed login attempt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit login attempt tx: %w", err)
	}

	return nextLock, nil
}

func (r *Repository) ResetLoginAttempt(ctx context.Context, usuario string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM auth_login_attempts
		WHERE usuario = $1
	`, usuario)
	if err != nil {
		return fmt.Errorf("reset login attempts: %w", err)
	}

	return nil
}

// CreateSessao records an issued access token by hash, for audit and
// cleanup. The raw token never touches the database.
func (r *Repository) CreateSessao(ctx context.Context, usuarioID, rawToken string, expiresAt time.Time) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate sessao id: %w", err)
	}

	hash := sha256.Sum256([]byte(rawToken))
	tokenHash := hex.EncodeToString(hash[:])

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO auth_sessoes (id, usuario_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
	`, id.String(), usuarioID, tokenHash, expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("insert sessao: %w", err)
	}

	return nil
}

// CleanupStaleAuthData removes expired session records and stale lockout
// rows in bounded batches.
func (r *Repository) CleanupStaleAuthData(ctx context.Context, sessaoRetention time.Duration, loginAttemptRetention time.Duration, batchSize int) (CleanupResult, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	if sessaoRetention <= 0 {
		sessaoRetention = 14 * 24 * time.Hour
	}
	if loginAttemptRetention <= 0 {
		loginAttemptRetention = 30 * 24 * time.Hour
	}

	sessaoCutoff := time.Now().UTC().Add(-sessaoRetention)
	loginCutoff := time.Now().UTC().Add(-loginAttemptRetention)

	deletedSessoes, err := r.deleteStaleSessoes(ctx, sessaoCutoff, batchSize)
	if err != nil {
		return CleanupResult{}, err
	}

	deletedLoginAttempts, err := r.deleteStaleLoginAttempts(ctx, loginCutoff, batchSize)
	if err != nil {
		return CleanupResult{}, err
	}

	return CleanupResult{
		DeletedLoginAttempts: deletedLoginAttempts,
		DeletedSessoes:       deletedSessoes,
	}, nil
}

func (r *Repository) deleteStaleSessoes(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT id
			FROM auth_sessoes
			WHERE expires_at < $1
			ORDER BY created_at ASC
			LIMIT $2
		)
		DELETE FROM auth_sessoes t
		USING stale
		WHERE t.id = stale.id
	`, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete stale sessoes: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale sessoes rows affected: %w", err)
	}

	return affected, nil
}

func (r *Repository) deleteStaleLoginAttempts(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT usuario
			FROM auth_login_attempts
			WHERE updated_at < $1
			  AND (locked_until IS NULL OR locked_until < NOW())
			ORDER BY updated_at ASC
			LIMIT $2
		)
		DELETE FROM auth_login_attempts t
		USING stale
		WHERE t.usuario = stale.usuario
	`, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete stale login attempts: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale login attempts rows affected: %w", err)
	}

	return affected, nil
}
