package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultAccessTTL   = 24 * time.Hour
	defaultMaxAttempts = 5
	defaultLockWindow  = 15 * time.Minute
)

// Store is the persistence surface the service needs; *Repository satisfies
// it, tests substitute fakes.
type Store interface {
	GetByUsuario(ctx context.Context, usuario string) (Usuario, error)
	UpsertAdminUsuario(ctx context.Context, usuario, email, plainSenha string) error
	GetLoginAttempt(ctx context.Context, usuario string) (LoginAttempt, error)
	RegisterFailedAttempt(ctx context.Context, usuario string, maxAttempts int, lockDuration time.Duration, now time.Time) (*time.Time, error)
	ResetLoginAttempt(ctx context.Context, usuario string) error
	CreateSessao(ctx context.Context, usuarioID, rawToken string, expiresAt time.Time) error
}

type Service struct {
	store        Store
	jwtSecret    []byte
	accessTTL    time.Duration
	maxAttempts  int
	lockDuration time.Duration
}

func NewService(store Store, jwtSecret string) *Service {
	return &Service{
		store:        store,
		jwtSecret:    []byte(jwtSecret),
		accessTTL:    defaultAccessTTL,
		maxAttempts:  defaultMaxAttempts,
		lockDuration: defaultLockWindow,
	}
}

func (s *Service) WithSecurityConfig(maxAttempts int, lockDuration time.Duration, accessTTL time.Duration) {
	if maxAttempts > 0 {
		s.maxAttempts = maxAttempts
	}
	if lockDuration > 0 {
		s.lockDuration = lockDuration
	}
	if accessTTL > 0 {
		s.accessTTL = accessTTL
	}
}

// Login checks the credential pair against the usuarios table. The username
// is matched exactly as stored; the senha is compared against its bcrypt
// hash. On success an access token is issued and its hash recorded.
func (s *Service) Login(ctx context.Context, usuario, senha string) (LoginResult, error) {
	usuario = strings.TrimSpace(usuario)
	senha = strings.TrimSpace(senha)

	if usuario == "" || senha == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	attempt, err := s.store.GetLoginAttempt(ctx, usuario)
	if err != nil {
		return LoginResult{}, err
	}
	if attempt.LockedUntil != nil && now.Before(*attempt.LockedUntil) {
		return LoginResult{}, ErrLoginLocked{Until: *attempt.LockedUntil}
	}

	u, err := s.store.GetByUsuario(ctx, usuario)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return LoginResult{}, s.registerFailure(ctx, usuario, now)
		}
		return LoginResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.SenhaHash), []byte(senha)); err != nil {
		return LoginResult{}, s.registerFailure(ctx, usuario, now)
	}

	if err := s.store.ResetLoginAttempt(ctx, usuario); err != nil {
		return LoginResult{}, err
	}

	token, expiresIn, err := s.issueAccessToken(u.ID)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.store.CreateSessao(ctx, u.ID, token, now.Add(s.accessTTL)); err != nil {
		return LoginResult{}, err
	}

	return LoginResult{
		Usuario:   u.Usuario,
		Token:     token,
		ExpiresIn: expiresIn,
	}, nil
}

func (s *Service) registerFailure(ctx context.Context, usuario string, now time.Time) error {
	lockedUntil, err := s.store.RegisterFailedAttempt(ctx, usuario, s.maxAttempts, s.lockDuration, now)
	if err != nil {
		return err
	}
	if lockedUntil != nil {
		return ErrLoginLocked{Until: *lockedUntil}
	}
	return ErrInvalidCredentials
}

func (s *Service) issueAccessToken(usuarioID string) (string, int64, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": usuarioID,
		"iat": now.Unix(),
		"exp": now.Add(s.accessTTL).Unix(),
		"typ": "access",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	encoded, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", 0, fmt.Errorf("sign jwt: %w", err)
	}

	return encoded, int64(s.accessTTL.Seconds()), nil
}

// BootstrapFromEnv seeds the single admin account when both values are
// configured. Leaving both empty skips the bootstrap entirely.
func (s *Service) BootstrapFromEnv(ctx context.Context, adminUsuario, adminEmail, adminSenha string) error {
	adminUsuario = strings.TrimSpace(adminUsuario)
	adminEmail = strings.TrimSpace(adminEmail)
	adminSenha = strings.TrimSpace(adminSenha)

	if adminUsuario == "" && adminSenha == "" {
		return nil
	}
	if adminUsuario == "" || adminSenha == "" {
		return fmt.Errorf("ADMIN_USUARIO and ADMIN_SENHA are required together")
	}

	return s.store.UpsertAdminUsuario(ctx, adminUsuario, adminEmail, adminSenha)
}

var ErrInvalidCredentials = errors.New("invalid credentials")

type ErrLoginLocked struct {
	Until time.Time
}

func (e ErrLoginLocked) Error() string {
	return "login temporarily locked"
}
