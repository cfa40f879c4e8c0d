// AngelaMos | 2026
// auth_test.go

package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wealthsupernova/supernova/internal/config"
	"github.com/wealthsupernova/supernova/internal/core"
	"github.com/wealthsupernova/supernova/internal/tier"
)

func testJWT(t *testing.T) *JWTManager {
	t.Helper()
	raw, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	key, err := jwk.Import(raw)
	require.NoError(t, err)

	m, err := newJWTManager(key, config.JWTConfig{
		AccessTokenExpire:  15 * time.Minute,
		RefreshTokenExpire: 24 * time.Hour,
		Issuer:             "supernova-test",
		Audience:           "supernova-web",
	})
	require.NoError(t, err)
	return m
}

type memTokens struct {
	mu     sync.Mutex
	byHash map[string]*RefreshToken
}

func newMemTokens() *memTokens {
	return &memTokens{byHash: map[string]*RefreshToken{}}
}

func (m *memTokens) Create(_ context.Context, tok *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tok
	cp.CreatedAt = time.Now()
	m.byHash[tok.TokenHash] = &cp
	return nil
}

func (m *memTokens) FindByHash(_ context.Context, hash string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.byHash[hash]
	if !ok {
		return nil, fmt.Errorf("find refresh token: %w", core.ErrNotFound)
	}
	cp := *tok
	return &cp, nil
}

func (m *memTokens) Rotate(_ context.Context, previousID string, next *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var prev *RefreshToken
	for _, tok := range m.byHash {
		if tok.ID == previousID {
			prev = tok
		}
	}
	if prev == nil || prev.IsUsed || prev.RevokedAt != nil {
		return fmt.Errorf("claim refresh token: %w", core.ErrNotFound)
	}
	prev.IsUsed = true
	prev.ReplacedByID = &next.ID

	cp := *next
	cp.CreatedAt = time.Now()
	m.byHash[next.TokenHash] = &cp
	return nil
}

func (m *memTokens) Revoke(_ context.Context, scope RevokeScope, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var n int64
	for _, tok := range m.byHash {
		var field string
		switch scope {
		case RevokeToken:
			field = tok.ID
		case RevokeFamily:
			field = tok.FamilyID
		case RevokeUser:
			field = tok.UserID
		}
		if field == key && tok.RevokedAt == nil {
			tok.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

func (m *memTokens) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type memIdentities struct {
	mu      sync.Mutex
	byID    map[string]*Identity
	byEmail map[string]*Identity
}

func newMemIdentities() *memIdentities {
	return &memIdentities{byID: map[string]*Identity{}, byEmail: map[string]*Identity{}}
}

func (m *memIdentities) GetByEmail(_ context.Context, email string) (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *id
	return &cp, nil
}

func (m *memIdentities) GetByID(_ context.Context, userID string) (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byID[userID]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *id
	return &cp, nil
}

func (m *memIdentities) Create(_ context.Context, email, hash, name string) (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[email]; ok {
		return nil, fmt.Errorf("create account: %w", core.ErrDuplicateKey)
	}
	id := &Identity{
		ID:           fmt.Sprintf("u-%d", len(m.byID)+1),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         "user",
		Tier:         tier.Free,
	}
	m.byID[id.ID] = id
	m.byEmail[email] = id
	cp := *id
	return &cp, nil
}

func (m *memIdentities) IncrementTokenVersion(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[userID].TokenVersion++
	return nil
}

func (m *memIdentities) UpdatePassword(_ context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[userID].PasswordHash = hash
	return nil
}

type memBlacklist struct {
	mu  sync.Mutex
	ids map[string]time.Duration
}

func (b *memBlacklist) Add(_ context.Context, jti string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ids[jti] = ttl
	return nil
}

func (b *memBlacklist) Contains(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.ids[jti]
	return ok, nil
}

type authFixture struct {
	svc        *Service
	tokens     *memTokens
	identities *memIdentities
	blacklist  *memBlacklist
}

func newAuthFixture(t *testing.T) *authFixture {
	f := &authFixture{
		tokens:     newMemTokens(),
		identities: newMemIdentities(),
		blacklist:  &memBlacklist{ids: map[string]time.Duration{}},
	}
	f.svc = NewService(
		f.tokens,
		testJWT(t),
		f.identities,
		f.blacklist,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return f
}

func register(t *testing.T, f *authFixture) *AuthResponse {
	t.Helper()
	resp, err := f.svc.Register(context.Background(), RegisterRequest{
		Email:    "ada@x.com",
		Password: "correct-horse-battery",
		Name:     "Ada",
	}, "test-agent", "127.0.0.1")
	require.NoError(t, err)
	return resp
}

func TestJWT_CarriesTierAndVersion(t *testing.T) {
	m := testJWT(t)

	signed, exp, err := m.CreateAccessToken(&Identity{
		ID:           "u-1",
		Role:         "admin",
		Tier:         tier.Premium,
		TokenVersion: 3,
	})
	require.NoError(t, err)

	claims, err := m.VerifyAccessToken(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, tier.Premium, claims.Tier)
	assert.Equal(t, 3, claims.TokenVersion)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, exp, claims.ExpiresAt, time.Second)
}

func TestJWT_RejectsForeignKey(t *testing.T) {
	signed, _, err := testJWT(t).CreateAccessToken(&Identity{ID: "u-1", Tier: tier.Free})
	require.NoError(t, err)

	_, err = testJWT(t).VerifyAccessToken(context.Background(), signed)
	require.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestRegisterAndLogin(t *testing.T) {
	f := newAuthFixture(t)
	resp := register(t, f)
	assert.Equal(t, tier.Free, resp.User.Tier)
	assert.Equal(t, "Bearer", resp.Tokens.TokenType)

	_, err := f.svc.Register(context.Background(), RegisterRequest{
		Email: "ada@x.com", Password: "another-password", Name: "Ada",
	}, "", "")
	require.ErrorIs(t, err, ErrEmailExists)

	_, err = f.svc.Login(context.Background(), LoginRequest{
		Email: "ada@x.com", Password: "wrong-password",
	}, "", "")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(context.Background(), LoginRequest{
		Email: "nobody@x.com", Password: "whatever-pass",
	}, "", "")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	logged, err := f.svc.Login(context.Background(), LoginRequest{
		Email: "ada@x.com", Password: "correct-horse-battery",
	}, "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, logged.Tokens.AccessToken)
}

func TestRefresh_RotatesAndDetectsReuse(t *testing.T) {
	f := newAuthFixture(t)
	first := register(t, f)

	second, err := f.svc.Refresh(context.Background(), first.Tokens.RefreshToken, "", "")
	require.NoError(t, err)
	assert.NotEqual(t, first.Tokens.RefreshToken, second.Tokens.RefreshToken)

	_, err = f.svc.Refresh(context.Background(), first.Tokens.RefreshToken, "", "")
	require.ErrorIs(t, err, ErrTokenReuse)

	_, err = f.svc.Refresh(context.Background(), second.Tokens.RefreshToken, "", "")
	require.ErrorIs(t, err, core.ErrTokenRevoked)

	_, err = f.svc.Refresh(context.Background(), "never-issued", "", "")
	require.ErrorIs(t, err, core.ErrTokenInvalid)
}

// racingTokens lets a rival request rotate the same token just before the
// caller does.
type racingTokens struct {
	*memTokens
}

func (r racingTokens) Rotate(ctx context.Context, previousID string, next *RefreshToken) error {
	rival := *next
	rival.ID = "rival"
	rival.TokenHash = "rival-hash"
	if err := r.memTokens.Rotate(ctx, previousID, &rival); err != nil {
		return err
	}
	return r.memTokens.Rotate(ctx, previousID, next)
}

func TestRefresh_ConcurrentRotationRevokesFamily(t *testing.T) {
	f := newAuthFixture(t)
	first := register(t, f)
	svc := NewService(
		racingTokens{f.tokens},
		testJWT(t),
		f.identities,
		f.blacklist,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	_, err := svc.Refresh(context.Background(), first.Tokens.RefreshToken, "", "")
	require.ErrorIs(t, err, ErrTokenReuse)

	rival, err := f.tokens.FindByHash(context.Background(), "rival-hash")
	require.NoError(t, err)
	assert.NotNil(t, rival.RevokedAt)
}

func TestLogout_BlacklistsAccessToken(t *testing.T) {
	f := newAuthFixture(t)
	resp := register(t, f)
	ctx := context.Background()

	claims, err := f.svc.VerifyAccessToken(ctx, resp.Tokens.AccessToken)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, resp.Tokens.RefreshToken, claims))
	assert.Contains(t, f.blacklist.ids, claims.ID)

	_, err = f.svc.VerifyAccessToken(ctx, resp.Tokens.AccessToken)
	require.ErrorIs(t, err, core.ErrTokenRevoked)

	_, err = f.svc.Refresh(ctx, resp.Tokens.RefreshToken, "", "")
	require.ErrorIs(t, err, core.ErrTokenRevoked)
}

func TestLogoutAll_InvalidatesOutstandingTokens(t *testing.T) {
	f := newAuthFixture(t)
	resp := register(t, f)
	ctx := context.Background()

	require.NoError(t, f.svc.LogoutAll(ctx, resp.User.ID))

	_, err := f.svc.VerifyAccessToken(ctx, resp.Tokens.AccessToken)
	require.ErrorIs(t, err, core.ErrTokenRevoked)
}

func TestChangePassword(t *testing.T) {
	f := newAuthFixture(t)
	resp := register(t, f)
	ctx := context.Background()

	err := f.svc.ChangePassword(ctx, resp.User.ID, "not-the-password", "brand-new-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, f.svc.ChangePassword(ctx, resp.User.ID, "correct-horse-battery", "brand-new-password"))

	_, err = f.svc.Login(ctx, LoginRequest{Email: "ada@x.com", Password: "brand-new-password"}, "", "")
	require.NoError(t, err)
}
