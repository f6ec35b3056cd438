// AngelaMos | 2026
// fakes_test.go

package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/tenant-runtime/internal/config"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/core"
)

type memoryRepo struct {
	mu     sync.Mutex
	tokens map[string]RefreshToken
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{tokens: make(map[string]RefreshToken)}
}

func (m *memoryRepo) Create(_ context.Context, token *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	token.CreatedAt = time.Now()
	m.tokens[token.ID] = *token
	return nil
}

func (m *memoryRepo) FindByID(_ context.Context, id string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[id]
	if !ok {
		return nil, fmt.Errorf("find refresh token: %w", core.ErrNotFound)
	}
	return &token, nil
}

func (m *memoryRepo) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, id)
	return nil
}

func (m *memoryRepo) DeleteMatching(_ context.Context, id, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[id]
	if !ok || token.TokenHash != hash {
		return false, nil
	}
	delete(m.tokens, id)
	return true, nil
}

func (m *memoryRepo) Rotate(
	_ context.Context,
	oldID, oldHash string,
	next *RefreshToken,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.tokens[oldID]
	if !ok || old.TokenHash != oldHash || old.IsExpired() {
		return fmt.Errorf("rotate refresh token: %w", core.ErrTokenInvalid)
	}
	delete(m.tokens, oldID)
	next.UserID = old.UserID
	next.CreatedAt = time.Now()
	m.tokens[next.ID] = *next
	return nil
}

func (m *memoryRepo) DeleteExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, token := range m.tokens {
		if token.IsExpired() {
			delete(m.tokens, id)
			n++
		}
	}
	return n, nil
}

func (m *memoryRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

type memoryUsers struct {
	mu      sync.Mutex
	byID    map[string]*UserInfo
	byEmail map[string]*UserInfo
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{
		byID:    make(map[string]*UserInfo),
		byEmail: make(map[string]*UserInfo),
	}
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (*UserInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("get user: %w", core.ErrUserNotFound)
	}
	return u, nil
}

func (m *memoryUsers) GetByID(_ context.Context, id string) (*UserInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("get user: %w", core.ErrUserNotFound)
	}
	return u, nil
}

func (m *memoryUsers) Create(
	_ context.Context,
	email, passwordHash, name string,
) (*UserInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(email)
	if _, ok := m.byEmail[email]; ok {
		return nil, fmt.Errorf("create user: %w", core.ErrDuplicateKey)
	}
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	u := &UserInfo{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		Role:         "user",
		CreatedAt:    time.Now(),
	}
	m.byID[u.ID] = u
	m.byEmail[email] = u
	return u, nil
}

func (m *memoryUsers) UpdatePassword(_ context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return core.ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		AccessTokenExpire:  15 * time.Minute,
		RefreshTokenExpire: 24 * time.Hour,
		Issuer:             "tenant-runtime-test",
		Audience:           "tenant-runtime-test",
	}
}

func newTestJWT(t *testing.T, cfg config.JWTConfig) *JWTManager {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	m, err := NewJWTManagerFromKey(key, cfg)
	require.NoError(t, err)
	return m
}

func newTestService(t *testing.T) (*Service, *memoryRepo, *memoryUsers) {
	t.Helper()
	repo := newMemoryRepo()
	users := newMemoryUsers()
	svc := NewService(repo, newTestJWT(t, testJWTConfig()), users, Options{})
	return svc, repo, users
}
