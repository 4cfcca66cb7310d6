package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/taskmanager/internal/apperrors"
	"github.com/nkiryanov/taskmanager/internal/models"
	"github.com/nkiryanov/taskmanager/internal/repository"
	"github.com/nkiryanov/taskmanager/internal/service/auth/tokenmanager"
)

const (
	defaultAccessHeaderName = "Authorization"
	defaultAccessAuthScheme = "Bearer"
	defaultMaxSessions      = 5
	defaultTimeout          = 5 * time.Second
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

type Config struct {
	// Hasher to use during user registration or login process
	// BcryptHasher if not set
	Hasher PasswordHasher

	// How many live refresh tokens user may have, the oldest are revoked on login
	MaxSessions int

	// Upper bound for every service call including password hashing
	Timeout time.Duration
}

// Returned on successful login
type LoginResult struct {
	Tokens models.TokenPair
	User   models.User
}

// Auth service
type AuthService struct {
	tokens  *tokenmanager.TokenManager
	hasher  PasswordHasher
	storage repository.Storage

	maxSessions int
	timeout     time.Duration

	accessHeaderName string
	accessAuthScheme string

	// Hash compared on login for not existed users so response time does not reveal them
	dummyHash func() (string, error)
}

func NewService(cfg Config, tokens *tokenmanager.TokenManager, storage repository.Storage) (*AuthService, error) {
	if tokens == nil || storage == nil {
		return nil, errors.New("token manager and storage must not be nil")
	}

	// Set default bcrypt hasher if not provided by user
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = BcryptHasher{}
	}

	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = defaultMaxSessions
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &AuthService{
		tokens:           tokens,
		hasher:           hasher,
		storage:          storage,
		maxSessions:      cfg.MaxSessions,
		timeout:          cfg.Timeout,
		accessHeaderName: defaultAccessHeaderName,
		accessAuthScheme: defaultAccessAuthScheme,
		dummyHash: sync.OnceValues(func() (string, error) {
			return hasher.Hash("not-a-real-password")
		}),
	}, nil
}

// Register new user
// No tokens issued, user has to login
func (s *AuthService) Register(ctx context.Context, email string, password string, name *string) (models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	hash, err := withContext(ctx, func() (string, error) {
		return s.hasher.Hash(password)
	})
	if err != nil {
		return models.User{}, fmt.Errorf("can't use this as password. Err: %w", err)
	}

	user, err := s.storage.User().CreateUser(ctx, email, hash, name)
	if err != nil {
		return user, fmt.Errorf("can't create user. Err: %w", err)
	}

	return user, nil
}

// Login user and issue token pair
// Unknown email and wrong password are indistinguishable
func (s *AuthService) Login(ctx context.Context, email string, password string) (LoginResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.storage.User().GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		_, err = withContext(ctx, func() (struct{}, error) {
			hash, err := s.dummyHash()
			if err != nil {
				return struct{}{}, err
			}
			return struct{}{}, s.hasher.Compare(hash, password)
		})
		if isContextError(err) {
			return LoginResult{}, err
		}
		return LoginResult{}, apperrors.ErrInvalidCredentials
	case err != nil:
		return LoginResult{}, fmt.Errorf("can't get user. Err: %w", err)
	}

	_, err = withContext(ctx, func() (struct{}, error) {
		return struct{}{}, s.hasher.Compare(user.PasswordHash, password)
	})
	switch {
	case isContextError(err):
		return LoginResult{}, err
	case err != nil:
		return LoginResult{}, apperrors.ErrInvalidCredentials
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return LoginResult{}, err
	}

	now := time.Now()
	err = s.storage.InTx(ctx, func(tx repository.Storage) error {
		_, err := tx.Refresh().Save(ctx, models.RefreshToken{
			ID:        uuid.New(),
			UserID:    user.ID,
			Token:     pair.Refresh.Value,
			CreatedAt: now,
			ExpiresAt: pair.Refresh.ExpiresAt,
		})
		if err != nil {
			return err
		}

		_, err = tx.Refresh().RevokeExcess(ctx, user.ID, s.maxSessions, now)
		return err
	})
	if err != nil {
		return LoginResult{}, fmt.Errorf("can't save refresh token. Err: %w", err)
	}

	return LoginResult{Tokens: pair, User: user}, nil
}

// Issue new access token for valid refresh token
// Refresh token itself is not rotated
func (s *AuthService) Refresh(ctx context.Context, refresh string) (models.IssuedToken, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	userID, err := s.tokens.ParseRefresh(refresh)
	if err != nil {
		return models.IssuedToken{}, err
	}

	token, err := s.storage.Refresh().Get(ctx, refresh)
	if err != nil {
		return models.IssuedToken{}, err
	}

	switch {
	case token.UserID != userID:
		return models.IssuedToken{}, apperrors.ErrRefreshTokenNotFound
	case token.RevokedAt != nil:
		return models.IssuedToken{}, apperrors.ErrRefreshTokenRevoked
	case token.IsExpired(time.Now()):
		return models.IssuedToken{}, apperrors.ErrRefreshTokenExpired
	}

	user, err := s.storage.User().GetUserByID(ctx, token.UserID)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("can't get token owner. Err: %w", err)
	}

	access, err := s.tokens.IssueAccess(user)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("token could not generated, sorry. Err: %w", err)
	}

	return access, nil
}

// Logout authenticated user
// Revoke presented refresh token if it belongs to the user or every user token if 'all' set
func (s *AuthService) Logout(ctx context.Context, claim models.AccessClaim, refresh string, all bool) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := time.Now()

	if all {
		if _, err := s.storage.Refresh().RevokeAll(ctx, claim.UserID, now); err != nil {
			return fmt.Errorf("can't revoke tokens. Err: %w", err)
		}
		return nil
	}

	if refresh == "" {
		return nil
	}

	err := s.storage.Refresh().Revoke(ctx, claim.UserID, refresh, now)
	if err != nil && !errors.Is(err, apperrors.ErrRefreshTokenNotFound) {
		return fmt.Errorf("can't revoke token. Err: %w", err)
	}

	return nil
}

// Verify access token and return its claim
func (s *AuthService) Authenticate(access string) (models.AccessClaim, error) {
	return s.tokens.ParseAccess(access)
}

// Read access token from request header and verify it
func (s *AuthService) GetClaimFromRequest(r *http.Request) (models.AccessClaim, error) {
	header := r.Header.Get(s.accessHeaderName)
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, s.accessAuthScheme) || strings.TrimSpace(token) == "" {
		return models.AccessClaim{}, apperrors.ErrAccessTokenInvalid
	}

	return s.Authenticate(strings.TrimSpace(token))
}

func (s *AuthService) issuePair(user models.User) (models.TokenPair, error) {
	access, err := s.tokens.IssueAccess(user)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not generated, sorry. Err: %w", err)
	}

	refresh, err := s.tokens.IssueRefresh(user)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not generated, sorry. Err: %w", err)
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

// Login reports timeout the same way for known and unknown emails
func isContextError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// Run fn in goroutine and return early if context is done
func withContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}

	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{value: v, err: err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-done:
		return res.value, res.err
	}
}
