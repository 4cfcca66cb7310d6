package tokenmanager

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/taskmanager/internal/apperrors"
	"github.com/nkiryanov/taskmanager/internal/models"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultSigningMethod   = "HS256"
	defaultRefreshTokenTTL = 7 * 24 * time.Hour

	accessAudience  = "access"
	refreshAudience = "refresh"
	refreshType     = "refresh"
)

type AccessTokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

type RefreshTokenClaims struct {
	jwt.RegisteredClaims
	Type string `json:"typ"`
}

// Token manager with sensible default
type Config struct {
	// Secret key to sign tokens
	// Required to be set
	SecretKey string

	// Secret key to sign refresh tokens
	// If not set both access and refresh keys are derived from SecretKey
	RefreshSecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type TokenManager struct {
	accessKey  []byte
	refreshKey []byte

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod

	// Access and refresh token lifetimes
	accessTTL  time.Duration
	refreshTTL time.Duration

	now func() time.Time
}

func New(cfg Config) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}
	if cfg.RefreshSecretKey == cfg.SecretKey {
		return nil, errors.New("refresh secret key must differ from access one")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	alg, ok := jwt.GetSigningMethod(cfg.Alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing method: %q", cfg.Alg)
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	accessKey, refreshKey, err := signingKeys(cfg.SecretKey, cfg.RefreshSecretKey)
	if err != nil {
		return nil, err
	}

	return &TokenManager{
		accessKey:  accessKey,
		refreshKey: refreshKey,
		alg:        alg,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}, nil
}

func (m *TokenManager) IssueAccess(user models.User) (models.IssuedToken, error) {
	now := m.now().Truncate(time.Second)
	expiresAt := now.Add(m.accessTTL)

	token := jwt.NewWithClaims(
		m.alg,
		AccessTokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   user.ID.String(),
				Audience:  jwt.ClaimStrings{accessAudience},
				ID:        uuid.NewString(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			Email: user.Email,
		},
	)
	value, err := token.SignedString(m.accessKey)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	return models.IssuedToken{Value: value, ExpiresAt: expiresAt}, nil
}

// Refresh token is JWT too, but it is trusted only while its record in storage is valid
func (m *TokenManager) IssueRefresh(user models.User) (models.IssuedToken, error) {
	now := m.now().Truncate(time.Second)
	expiresAt := now.Add(m.refreshTTL)

	token := jwt.NewWithClaims(
		m.alg,
		RefreshTokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   user.ID.String(),
				Audience:  jwt.ClaimStrings{refreshAudience},
				ID:        uuid.NewString(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			Type: refreshType,
		},
	)
	value, err := token.SignedString(m.refreshKey)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing refresh token. Err: %w", err)
	}

	return models.IssuedToken{Value: value, ExpiresAt: expiresAt}, nil
}

// Parse and validate access token
func (m *TokenManager) ParseAccess(access string) (models.AccessClaim, error) {
	claims := &AccessTokenClaims{}

	_, err := jwt.ParseWithClaims(access, claims, m.keyFunc(m.accessKey), m.parserOptions(accessAudience)...)
	if err != nil {
		return models.AccessClaim{}, fmt.Errorf("%w: %w", apperrors.ErrAccessTokenInvalid, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return models.AccessClaim{}, fmt.Errorf("%w: bad subject: %w", apperrors.ErrAccessTokenInvalid, err)
	}

	return models.AccessClaim{
		UserID:    userID,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Parse and validate refresh token signature and claims
// Returns id of the user the token issued for
func (m *TokenManager) ParseRefresh(refresh string) (uuid.UUID, error) {
	claims := &RefreshTokenClaims{}

	_, err := jwt.ParseWithClaims(refresh, claims, m.keyFunc(m.refreshKey), m.parserOptions(refreshAudience)...)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return uuid.Nil, fmt.Errorf("%w: %w", apperrors.ErrRefreshTokenExpired, err)
	case err != nil:
		return uuid.Nil, fmt.Errorf("%w: %w", apperrors.ErrRefreshTokenInvalid, err)
	}

	if claims.Type != refreshType {
		return uuid.Nil, fmt.Errorf("%w: unexpected token type %q", apperrors.ErrRefreshTokenInvalid, claims.Type)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject: %w", apperrors.ErrRefreshTokenInvalid, err)
	}

	return userID, nil
}

func (m *TokenManager) keyFunc(key []byte) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		return key, nil
	}
}

func (m *TokenManager) parserOptions(audience string) []jwt.ParserOption {
	return []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
}
