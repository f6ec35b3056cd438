// AngelaMos | 2026
// jwt_test.go

package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/tenant-runtime/internal/core"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	m := newTestJWT(t, testJWTConfig())

	token, expiresAt, err := m.CreateAccessToken("user-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := m.VerifyAccessToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.NotEmpty(t, claims.TokenID)
}

func TestVerifyAccessTokenRejects(t *testing.T) {
	cfg := testJWTConfig()
	m := newTestJWT(t, cfg)

	other := newTestJWT(t, cfg)
	foreign, _, err := other.CreateAccessToken("user-1")
	require.NoError(t, err)

	expiredCfg := cfg
	expiredCfg.AccessTokenExpire = -time.Minute
	expiredMgr := newTestJWT(t, expiredCfg)
	expiredMgr.privateKey = m.privateKey
	expired, _, err := expiredMgr.CreateAccessToken("user-1")
	require.NoError(t, err)

	wrongAudCfg := cfg
	wrongAudCfg.Audience = "someone-else"
	wrongAud := newTestJWT(t, wrongAudCfg)
	wrongAud.privateKey = m.privateKey
	audToken, _, err := wrongAud.CreateAccessToken("user-1")
	require.NoError(t, err)

	valid, _, err := m.CreateAccessToken("user-1")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"empty", ""},
		{"foreign signing key", foreign},
		{"expired", expired},
		{"wrong audience", audToken},
		{"tampered", valid[:len(valid)-4] + "AAAA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.VerifyAccessToken(context.Background(), tt.token)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrTokenInvalid)
		})
	}
}

func TestEnsureKeyPair(t *testing.T) {
	dir := t.TempDir()
	priv := filepath.Join(dir, "private.pem")
	pub := filepath.Join(dir, "public.pem")

	created, err := EnsureKeyPair(priv, pub)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = EnsureKeyPair(priv, pub)
	require.NoError(t, err)
	assert.False(t, created)

	cfg := testJWTConfig()
	cfg.PrivateKeyPath = priv
	m, err := NewJWTManager(cfg)
	require.NoError(t, err)

	token, _, err := m.CreateAccessToken("user-2")
	require.NoError(t, err)
	_, err = m.VerifyAccessToken(context.Background(), token)
	require.NoError(t, err)
}

func TestJWKSHandler(t *testing.T) {
	m := newTestJWT(t, testJWTConfig())

	rec := httptest.NewRecorder()
	m.GetJWKSHandler()(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var set struct {
		Keys []map[string]any `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &set))
	require.Len(t, set.Keys, 1)
	assert.Equal(t, m.GetKeyID(), set.Keys[0]["kid"])
	assert.NotContains(t, set.Keys[0], "d")
}
