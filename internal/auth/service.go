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

	"github.com/carterperez-dev/templates/tenant-runtime/internal/core"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type UserInfo struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	Create(
		ctx context.Context,
		email, passwordHash, name string,
	) (*UserInfo, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

type Options struct {
	MinPasswordLength int
	Logger            *slog.Logger
}

type Service struct {
	repo         Repository
	jwt          *JWTManager
	userProvider UserProvider
	minPassword  int
	logger       *slog.Logger
}

func NewService(
	repo Repository,
	jwt *JWTManager,
	userProvider UserProvider,
	opts Options,
) *Service {
	if opts.MinPasswordLength <= 0 {
		opts.MinPasswordLength = 8
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Service{
		repo:         repo,
		jwt:          jwt,
		userProvider: userProvider,
		minPassword:  opts.MinPasswordLength,
		logger:       opts.Logger,
	}
}

func (s *Service) Signup(
	ctx context.Context,
	req SignupRequest,
	meta ClientMeta,
) (*AuthResponse, error) {
	if len(req.Password) < s.minPassword {
		return nil, core.Invalid(
			"password must be at least %d characters",
			s.minPassword,
		)
	}

	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.userProvider.Create(ctx, req.Email, passwordHash, req.Name)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, core.DuplicateError("email")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return s.IssuePair(ctx, user, meta)
}

// Login answers unknown email and wrong password identically, in time as
// well as in error.
func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	meta ClientMeta,
) (*AuthResponse, error) {
	user, err := s.userProvider.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			//nolint:errcheck // equalizes timing with the known-user path
			_, _, _ = core.CheckPassword(req.Password, "")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	valid, rehash, err := core.CheckPassword(req.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		return nil, ErrInvalidCredentials
	}

	if rehash != "" {
		if err := s.userProvider.UpdatePassword(ctx, user.ID, rehash); err != nil {
			s.logger.Warn("password rehash failed", "user_id", user.ID, "error", err)
		}
	}

	return s.IssuePair(ctx, user, meta)
}

// IssuePair mints an access token and a fresh refresh record for user.
func (s *Service) IssuePair(
	ctx context.Context,
	user *UserInfo,
	meta ClientMeta,
) (*AuthResponse, error) {
	refresh, secret, err := s.newRefreshToken(user.ID, meta)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, refresh); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return s.buildResponse(user, refresh, secret)
}

// VerifyRefresh checks a composite refresh token. Expired records are
// purged on sight. All rejections wrap ErrTokenInvalid.
func (s *Service) VerifyRefresh(
	ctx context.Context,
	token string,
) (*RefreshToken, error) {
	id, secret, err := core.SplitRefreshToken(token)
	if err != nil {
		return nil, err
	}
	if uuid.Validate(id) != nil {
		return nil, fmt.Errorf("verify refresh: %w", core.ErrTokenInvalid)
	}

	stored, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("verify refresh: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("verify refresh: %w", err)
	}

	if stored.IsExpired() {
		if err := s.repo.DeleteByID(ctx, stored.ID); err != nil {
			s.logger.Warn("purge expired refresh token failed",
				"token_id", stored.ID,
				"error", err,
			)
		}
		return nil, fmt.Errorf("verify refresh: expired: %w", core.ErrTokenInvalid)
	}

	if !core.CompareTokenHash(secret, stored.TokenHash) {
		return nil, fmt.Errorf("verify refresh: mismatch: %w", core.ErrTokenInvalid)
	}

	return stored, nil
}

// Refresh rotates token. The old record is consumed in the same statement
// that stores its replacement, so a token is usable exactly once.
func (s *Service) Refresh(
	ctx context.Context,
	token string,
	meta ClientMeta,
) (*AuthResponse, error) {
	stored, err := s.VerifyRefresh(ctx, token)
	if err != nil {
		return nil, err
	}

	next, secret, err := s.newRefreshToken(stored.UserID, meta)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Rotate(ctx, stored.ID, stored.TokenHash, next); err != nil {
		return nil, err
	}

	user, err := s.userProvider.GetByID(ctx, next.UserID)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("refresh: %w", err)
	}

	return s.buildResponse(user, next, secret)
}

// Revoke deletes the refresh record behind token. Unknown or malformed
// tokens are a successful no-op.
func (s *Service) Revoke(ctx context.Context, token string) error {
	id, secret, err := core.SplitRefreshToken(token)
	if err != nil || uuid.Validate(id) != nil {
		return nil
	}

	if _, err := s.repo.DeleteMatching(ctx, id, core.HashToken(secret)); err != nil {
		return fmt.Errorf("revoke: %w", err)
	}

	return nil
}

func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx)
}

func (s *Service) GetCurrentUser(
	ctx context.Context,
	userID string,
) (*UserResponse, error) {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := toUserResponse(user)
	return &resp, nil
}

func (s *Service) newRefreshToken(
	userID string,
	meta ClientMeta,
) (*RefreshToken, string, error) {
	secret, err := core.GenerateRefreshSecret()
	if err != nil {
		return nil, "", fmt.Errorf("generate refresh token: %w", err)
	}

	return &RefreshToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		TokenHash: core.HashToken(secret),
		ExpiresAt: time.Now().Add(s.jwt.RefreshTokenTTL()),
		UserAgent: truncate(meta.UserAgent, 512),
		IPAddress: truncate(meta.IPAddress, 64),
	}, secret, nil
}

func (s *Service) buildResponse(
	user *UserInfo,
	refresh *RefreshToken,
	secret string,
) (*AuthResponse, error) {
	accessToken, expiresAt, err := s.jwt.CreateAccessToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	return &AuthResponse{
		User: toUserResponse(user),
		Tokens: TokenResponse{
			AccessToken:      accessToken,
			RefreshToken:     core.ComposeRefreshToken(refresh.ID, secret),
			TokenType:        "Bearer",
			ExpiresIn:        int(s.jwt.AccessTokenTTL() / time.Second),
			ExpiresAt:        expiresAt,
			RefreshExpiresAt: refresh.ExpiresAt,
		},
	}, nil
}

func toUserResponse(user *UserInfo) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
