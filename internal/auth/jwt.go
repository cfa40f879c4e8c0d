// AngelaMos | 2026
// jwt.go

package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/wealthsupernova/supernova/internal/config"
	"github.com/wealthsupernova/supernova/internal/core"
	"github.com/wealthsupernova/supernova/internal/middleware"
	"github.com/wealthsupernova/supernova/internal/tier"
)

const (
	refreshTokenBytes = 32
	clockSkew         = 30 * time.Second

	claimRole    = "role"
	claimTier    = "tier"
	claimVersion = "token_version"
	claimType    = "type"
	typeAccess   = "access"
)

type JWTManager struct {
	privateKey jwk.Key
	publicKey  jwk.Key
	publicJWKS jwk.Set
	config     config.JWTConfig
}

func NewJWTManager(cfg config.JWTConfig) (*JWTManager, error) {
	privateKeyPEM, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	privateKey, err := jwk.ParseKey(privateKeyPEM, jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return newJWTManager(privateKey, cfg)
}

func newJWTManager(privateKey jwk.Key, cfg config.JWTConfig) (*JWTManager, error) {
	if err := privateKey.Set(jwk.AlgorithmKey, jwa.ES256()); err != nil {
		return nil, fmt.Errorf("set algorithm: %w", err)
	}

	var kid string
	if err := privateKey.Get(jwk.KeyIDKey, &kid); err != nil || kid == "" {
		if err := privateKey.Set(jwk.KeyIDKey, uuid.New().String()[:8]); err != nil {
			return nil, fmt.Errorf("set key id: %w", err)
		}
	}

	publicKey, err := privateKey.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}
	if err := publicKey.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, fmt.Errorf("set key usage: %w", err)
	}

	publicJWKS := jwk.NewSet()
	if err := publicJWKS.AddKey(publicKey); err != nil {
		return nil, fmt.Errorf("add key to set: %w", err)
	}

	return &JWTManager{
		privateKey: privateKey,
		publicKey:  publicKey,
		publicJWKS: publicJWKS,
		config:     cfg,
	}, nil
}

func GenerateKeyPair(privateKeyPath, publicKeyPath string) error {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	jwkPrivate, err := jwk.Import(privateKey)
	if err != nil {
		return fmt.Errorf("import private key: %w", err)
	}

	keyID := uuid.New().String()[:8]
	if setErr := jwkPrivate.Set(jwk.KeyIDKey, keyID); setErr != nil {
		return fmt.Errorf("set key id: %w", setErr)
	}
	if setErr := jwkPrivate.Set(jwk.AlgorithmKey, jwa.ES256()); setErr != nil {
		return fmt.Errorf("set algorithm: %w", setErr)
	}

	privatePEM, err := jwk.Pem(jwkPrivate)
	if err != nil {
		return fmt.Errorf("encode private key: %w", err)
	}

	if writeErr := os.WriteFile(privateKeyPath, privatePEM, 0o600); writeErr != nil {
		return fmt.Errorf("write private key: %w", writeErr)
	}

	jwkPublic, err := jwkPrivate.PublicKey()
	if err != nil {
		return fmt.Errorf("derive public key: %w", err)
	}

	publicPEM, err := jwk.Pem(jwkPublic)
	if err != nil {
		return fmt.Errorf("encode public key: %w", err)
	}

	//nolint:gosec // G306: public key is intentionally world-readable
	if writeErr := os.WriteFile(publicKeyPath, publicPEM, 0o644); writeErr != nil {
		return fmt.Errorf("write public key: %w", writeErr)
	}

	return nil
}

// CreateAccessToken signs a short-lived token for id and returns it with
// its expiry.
func (m *JWTManager) CreateAccessToken(id *Identity) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.config.AccessTokenExpire)

	token, err := jwt.NewBuilder().
		JwtID(uuid.New().String()).
		Issuer(m.config.Issuer).
		Audience([]string{m.config.Audience}).
		Subject(id.ID).
		IssuedAt(now).
		Expiration(expiresAt).
		NotBefore(now).
		Claim(claimRole, id.Role).
		Claim(claimTier, id.Tier.String()).
		Claim(claimVersion, id.TokenVersion).
		Claim(claimType, typeAccess).
		Build()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.ES256(), m.privateKey))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return string(signed), expiresAt, nil
}

func (m *JWTManager) VerifyAccessToken(
	_ context.Context,
	tokenString string,
) (*middleware.AccessTokenClaims, error) {
	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.ES256(), m.publicKey),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(clockSkew),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
	)
	if err != nil {
		if isTokenExpiredError(err) {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenExpired)
		}
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
	}

	var tokenType string
	if err := token.Get(claimType, &tokenType); err != nil || tokenType != typeAccess {
		return nil, fmt.Errorf("verify token: wrong token type: %w", core.ErrTokenInvalid)
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf("verify token: missing subject: %w", core.ErrTokenInvalid)
	}

	var role, tierClaim string
	var version float64
	if token.Get(claimRole, &role) != nil ||
		token.Get(claimTier, &tierClaim) != nil ||
		token.Get(claimVersion, &version) != nil {
		return nil, fmt.Errorf("verify token: missing claims: %w", core.ErrTokenInvalid)
	}

	// Unknown tiers read as free.
	t, err := tier.Parse(tierClaim)
	if err != nil {
		t = tier.Free
	}

	jti, _ := token.JwtID()
	exp, _ := token.Expiration()

	return &middleware.AccessTokenClaims{
		ID:           jti,
		UserID:       subject,
		Role:         role,
		Tier:         t,
		TokenVersion: int(version),
		ExpiresAt:    exp,
	}, nil
}

// isTokenExpiredError matches jwx's validation failure for the exp claim.
func isTokenExpiredError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, `"exp"`) || strings.Contains(msg, "exp not satisfied")
}

func (m *JWTManager) GetJWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")

		//nolint:errcheck // best-effort response write
		_ = json.NewEncoder(w).Encode(m.publicJWKS)
	}
}

type RefreshTokenData struct {
	Token     string
	Hash      string
	ExpiresAt time.Time
	FamilyID  string
}

// CreateRefreshToken issues an opaque refresh token in familyID, or in a new
// family when familyID is empty.
func (m *JWTManager) CreateRefreshToken(familyID string) (*RefreshTokenData, error) {
	token, err := core.GenerateSecureToken(refreshTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	hash := core.HashToken(token)
	expiresAt := time.Now().Add(m.config.RefreshTokenExpire)

	if familyID == "" {
		familyID = uuid.New().String()
	}

	return &RefreshTokenData{
		Token:     token,
		Hash:      hash,
		ExpiresAt: expiresAt,
		FamilyID:  familyID,
	}, nil
}

