// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wealthsupernova/supernova/internal/core"
	"github.com/wealthsupernova/supernova/internal/middleware"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenReuse         = errors.New("token reuse detected")
	ErrEmailExists        = errors.New("email already exists")
)

// IdentityStore is the account lookup auth depends on.
type IdentityStore interface {
	GetByEmail(ctx context.Context, email string) (*Identity, error)
	GetByID(ctx context.Context, id string) (*Identity, error)
	Create(ctx context.Context, email, passwordHash, name string) (*Identity, error)
	IncrementTokenVersion(ctx context.Context, userID string) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// Blacklist remembers logged-out access tokens by jti until they expire.
type Blacklist interface {
	Add(ctx context.Context, jti string, ttl time.Duration) error
	Contains(ctx context.Context, jti string) (bool, error)
}

const blacklistPrefix = "blacklist:"

type RedisBlacklist struct {
	client *redis.Client
}

func NewRedisBlacklist(client *redis.Client) *RedisBlacklist {
	return &RedisBlacklist{client: client}
}

func (b *RedisBlacklist) Add(ctx context.Context, jti string, ttl time.Duration) error {
	if err := b.client.Set(ctx, blacklistPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}

func (b *RedisBlacklist) Contains(ctx context.Context, jti string) (bool, error) {
	n, err := b.client.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return n > 0, nil
}

type Service struct {
	repo       Repository
	jwt        *JWTManager
	identities IdentityStore
	blacklist  Blacklist
	logger     *slog.Logger
}

func NewService(
	repo Repository,
	jwt *JWTManager,
	identities IdentityStore,
	blacklist Blacklist,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		jwt:        jwt,
		identities: identities,
		blacklist:  blacklist,
		logger:     logger,
	}
}

func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	id, err := s.identities.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // equalize timing with the found path
			_, _, _ = core.VerifyPasswordTimingSafe(req.Password, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get identity: %w", err)
	}

	valid, newHash, err := core.VerifyPasswordTimingSafe(req.Password, &id.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		return nil, ErrInvalidCredentials
	}

	if newHash != "" {
		if err := s.identities.UpdatePassword(ctx, id.ID, newHash); err != nil {
			s.logger.Warn("password rehash failed", "user_id", id.ID, "error", err)
		}
	}

	return s.issue(ctx, id, userAgent, ipAddress, "", "")
}

func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.identities.Create(ctx, req.Email, passwordHash, req.Name)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	return s.issue(ctx, id, userAgent, ipAddress, "", "")
}

// Refresh rotates a refresh token. Presenting a token that was already
// rotated revokes its whole family.
func (s *Service) Refresh(
	ctx context.Context,
	refreshToken, userAgent, ipAddress string,
) (*AuthResponse, error) {
	stored, err := s.repo.FindByHash(ctx, core.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("find token: %w", err)
	}

	if stored.IsUsed {
		return nil, s.reuseDetected(ctx, stored)
	}

	if !stored.Usable(time.Now()) {
		if stored.RevokedAt != nil {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenRevoked)
		}
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenExpired)
	}

	id, err := s.identities.GetByID(ctx, stored.UserID)
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}

	resp, err := s.issue(ctx, id, userAgent, ipAddress, stored.FamilyID, stored.ID)
	if errors.Is(err, core.ErrNotFound) {
		// Another request rotated this token first.
		return nil, s.reuseDetected(ctx, stored)
	}
	return resp, err
}

func (s *Service) reuseDetected(ctx context.Context, stored *RefreshToken) error {
	if _, err := s.repo.Revoke(ctx, RevokeFamily, stored.FamilyID); err != nil {
		s.logger.Error("revoke reused token family", "family_id", stored.FamilyID, "error", err)
	}
	s.logger.Warn("refresh token reuse", "user_id", stored.UserID, "family_id", stored.FamilyID)
	return ErrTokenReuse
}

// Logout revokes the refresh token and blacklists the access token that
// made the request until it would have expired anyway.
func (s *Service) Logout(
	ctx context.Context,
	refreshToken string,
	claims *middleware.AccessTokenClaims,
) error {
	if claims == nil {
		return fmt.Errorf("logout: %w", core.ErrUnauthorized)
	}

	stored, err := s.repo.FindByHash(ctx, core.HashToken(refreshToken))
	switch {
	case errors.Is(err, core.ErrNotFound):
	case err != nil:
		return fmt.Errorf("find token: %w", err)
	case stored.UserID != claims.UserID:
		return fmt.Errorf("logout: %w", core.ErrForbidden)
	default:
		if _, err := s.repo.Revoke(ctx, RevokeToken, stored.ID); err != nil {
			return err
		}
	}

	ttl := time.Until(claims.ExpiresAt)
	if claims.ID == "" || ttl <= 0 {
		return nil
	}
	return s.blacklist.Add(ctx, claims.ID, ttl)
}

func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	if _, err := s.repo.Revoke(ctx, RevokeUser, userID); err != nil {
		return err
	}
	if err := s.identities.IncrementTokenVersion(ctx, userID); err != nil {
		return fmt.Errorf("increment token version: %w", err)
	}
	return nil
}

func (s *Service) ChangePassword(
	ctx context.Context,
	userID, currentPassword, newPassword string,
) error {
	id, err := s.identities.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get identity: %w", err)
	}

	valid, _, err := core.VerifyPasswordWithRehash(currentPassword, id.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		return ErrInvalidCredentials
	}

	newHash, err := core.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.identities.UpdatePassword(ctx, userID, newHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	return s.LogoutAll(ctx, userID)
}

func (s *Service) Me(ctx context.Context, userID string) (*UserResponse, error) {
	id, err := s.identities.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := toUserResponse(id)
	return &resp, nil
}

// VerifyAccessToken checks the signature, then rejects tokens that were
// logged out or issued before the account's last LogoutAll.
func (s *Service) VerifyAccessToken(
	ctx context.Context,
	token string,
) (*middleware.AccessTokenClaims, error) {
	claims, err := s.jwt.VerifyAccessToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if claims.ID != "" {
		revoked, err := s.blacklist.Contains(ctx, claims.ID)
		if err != nil {
			// Fall through to the token version check.
			s.logger.Warn("token blacklist unavailable", "error", err)
		} else if revoked {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
		}
	}

	id, err := s.identities.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
		}
		return nil, err
	}
	if claims.TokenVersion < id.TokenVersion {
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
	}

	return claims, nil
}

// PruneExpired deletes refresh tokens that expired more than grace ago.
func (s *Service) PruneExpired(ctx context.Context, grace time.Duration) (int64, error) {
	return s.repo.DeleteExpired(ctx, time.Now().Add(-grace))
}

func (s *Service) issue(
	ctx context.Context,
	id *Identity,
	userAgent, ipAddress, familyID, previousID string,
) (*AuthResponse, error) {
	accessToken, expiresAt, err := s.jwt.CreateAccessToken(id)
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	refresh, err := s.jwt.CreateRefreshToken(familyID)
	if err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}

	stored := &RefreshToken{
		ID:        uuid.New().String(),
		UserID:    id.ID,
		TokenHash: refresh.Hash,
		FamilyID:  refresh.FamilyID,
		ExpiresAt: refresh.ExpiresAt,
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}
	if previousID == "" {
		err = s.repo.Create(ctx, stored)
	} else {
		err = s.repo.Rotate(ctx, previousID, stored)
	}
	if err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &AuthResponse{
		User: toUserResponse(id),
		Tokens: TokenResponse{
			AccessToken:  accessToken,
			RefreshToken: refresh.Token,
			TokenType:    "Bearer",
			ExpiresIn:    int(time.Until(expiresAt).Seconds()),
			ExpiresAt:    expiresAt,
		},
	}, nil
}
