package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeStore struct {
	usuarios    map[string]Usuario
	lockedUntil *time.Time
	failed      int
	resets      int
	sessoes     int
	getErr      error
	sessaoErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{usuarios: make(map[string]Usuario)}
}

func (s *fakeStore) addUsuario(t *testing.T, usuario, senha string) Usuario {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(senha), bcrypt.MinCost)
	require.NoError(t, err)
	u := Usuario{ID: "id-" + usuario, Usuario: usuario, SenhaHash: string(hash)}
	s.usuarios[usuario] = u
	return u
}

func (s *fakeStore) GetByUsuario(_ context.Context, usuario string) (Usuario, error) {
	if s.getErr != nil {
		return Usuario{}, s.getErr
	}
	u, ok := s.usuarios[usuario]
	if !ok {
		return Usuario{}, sql.ErrNoRows
	}
	return u, nil
}

func (s *fakeStore) UpsertAdminUsuario(_ context.Context, usuario, email, plainSenha string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plainSenha), bcrypt.MinCost)
	if err != nil {
		return err
	}
	s.usuarios[usuario] = Usuario{ID: "id-" + usuario, Usuario: usuario, Email: email, SenhaHash: string(hash)}
	return nil
}

func (s *fakeStore) GetLoginAttempt(_ context.Context, usuario string) (LoginAttempt, error) {
	return LoginAttempt{Usuario: usuario, FailedAttempts: s.failed, LockedUntil: s.lockedUntil}, nil
}

func (s *fakeStore) RegisterFailedAttempt(_ context.Context, _ string, maxAttempts int, lockDuration time.Duration, now time.Time) (*time.Time, error) {
	s.failed++
	if s.failed >= maxAttempts {
		until := now.Add(lockDuration)
		s.failed = 0
		return &until, nil
	}
	return nil, nil
}

func (s *fakeStore) ResetLoginAttempt(_ context.Context, _ string) error {
	s.resets++
	s.failed = 0
	return nil
}

func (s *fakeStore) CreateSessao(_ context.Context, _, _ string, _ time.Time) error {
	if s.sessaoErr != nil {
		return s.sessaoErr
	}
	s.sessoes++
	return nil
}

func TestLoginSuccess(t *testing.T) {
	store := newFakeStore()
	store.addUsuario(t, "rafael", "segredo-forte")
	service := NewService(store, "test-secret")

	result, err := service.Login(context.Background(), "rafael", "segredo-forte")
	require.NoError(t, err)
	assert.Equal(t, "rafael", result.Usuario)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, int64((24 * time.Hour).Seconds()), result.ExpiresIn)
	assert.Equal(t, 1, store.resets)
	assert.Equal(t, 1, store.sessoes)

	// The issued token is a valid HS256 access token for the user.
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(result.Token, claims, func(*jwt.Token) (any, error) {
		return []byte("test-secret"), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "id-rafael", claims["sub"])
	assert.Equal(t, "access", claims["typ"])
}

func TestLoginUnknownUsuario(t *testing.T) {
	store := newFakeStore()
	service := NewService(store, "test-secret")

	_, err := service.Login(context.Background(), "desconhecido", "qualquer")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 0, store.sessoes)
}

func TestLoginWrongSenha(t *testing.T) {
	store := newFakeStore()
	store.addUsuario(t, "rafael", "segredo-forte")
	service := NewService(store, "test-secret")

	_, err := service.Login(context.Background(), "rafael", "errada")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginEmptyFields(t *testing.T) {
	service := NewService(newFakeStore(), "test-secret")

	_, err := service.Login(context.Background(), "", "senha")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = service.Login(context.Background(), "rafael", "   ")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginLockoutAfterRepeatedFailures(t *testing.T) {
	store := newFakeStore()
	store.addUsuario(t, "rafael", "segredo-forte")
	service := NewService(store, "test-secret")
	service.WithSecurityConfig(3, 15*time.Minute, 0)

	var err error
	for i := 0; i < 3; i++ {
		_, err = service.Login(context.Background(), "rafael", "errada")
	}

	var locked ErrLoginLocked
	require.ErrorAs(t, err, &locked)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), locked.Until, time.Minute)
}

func TestLoginRespectsExistingLock(t *testing.T) {
	store := newFakeStore()
	store.addUsuario(t, "rafael", "segredo-forte")
	until := time.Now().UTC().Add(10 * time.Minute)
	store.lockedUntil = &until
	service := NewService(store, "test-secret")

	_, err := service.Login(context.Background(), "rafael", "segredo-forte")
	var locked ErrLoginLocked
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, until, locked.Until)
}

func TestLoginStoreFailureIsNot401(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("connection refused")
	service := NewService(store, "test-secret")

	_, err := service.Login(context.Background(), "rafael", "senha")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestBootstrapFromEnv(t *testing.T) {
	store := newFakeStore()
	service := NewService(store, "test-secret")

	// Both empty: no-op.
	require.NoError(t, service.BootstrapFromEnv(context.Background(), "", "", ""))
	assert.Empty(t, store.usuarios)

	// Only one configured: error.
	require.Error(t, service.BootstrapFromEnv(context.Background(), "admin", "", ""))

	require.NoError(t, service.BootstrapFromEnv(context.Background(), "admin", "admin@example.com", "senha-admin"))
	_, err := service.Login(context.Background(), "admin", "senha-admin")
	assert.NoError(t, err)
}
