package tokenmanager

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/secureauth/internal/apperrors"
	"github.com/nkiryanov/secureauth/internal/clock"
	"github.com/nkiryanov/secureauth/internal/models"
)

const (
	DefaultAccessTTL     = 15 * time.Minute
	DefaultRefreshTTL    = 7 * 24 * time.Hour
	defaultSigningMethod = "HS256"
)

type Claims struct {
	jwt.RegisteredClaims
	Type models.TokenType `json:"type"`
}

// Token manager with sensible default
type Config struct {
	// Secret key to sign tokens
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm: HS256, HS384 or HS512
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// If not set than wall clock is used
	Clock clock.Clock
}

// Issue and verify self-contained signed tokens
// It has no state except the key, so it is safe to use concurrently
type TokenManager struct {
	// Secret key to sign tokens
	key []byte

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod

	// Access and refresh token lifetimes
	accessTTL  time.Duration
	refreshTTL time.Duration

	clock clock.Clock
}

func New(cfg Config) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	alg, ok := jwt.GetSigningMethod(cfg.Alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("signing method %q is not supported, use one of HS256, HS384, HS512", cfg.Alg)
	}

	if cfg.AccessTTL < 0 || cfg.RefreshTTL < 0 {
		return nil, fmt.Errorf("token TTL must not be negative, got access %s, refresh %s", cfg.AccessTTL, cfg.RefreshTTL)
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, DefaultAccessTTL)
	setDefaultDuration(&cfg.RefreshTTL, DefaultRefreshTTL)

	if cfg.Clock == nil {
		cfg.Clock = clock.Real
	}

	return &TokenManager{
		key:        []byte(cfg.SecretKey),
		alg:        alg,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		clock:      cfg.Clock,
	}, nil
}

func (m *TokenManager) AccessTTL() time.Duration {
	return m.accessTTL
}

func (m *TokenManager) RefreshTTL() time.Duration {
	return m.refreshTTL
}

func (m *TokenManager) IssueAccess(userID int64) (models.IssuedToken, error) {
	return m.issue(userID, models.TokenAccess, m.accessTTL)
}

func (m *TokenManager) IssueRefresh(userID int64) (models.IssuedToken, error) {
	return m.issue(userID, models.TokenRefresh, m.refreshTTL)
}

// Issue access and refresh tokens at once
func (m *TokenManager) IssuePair(userID int64) (models.TokenPair, error) {
	var pair models.TokenPair

	access, err := m.IssueAccess(userID)
	if err != nil {
		return pair, err
	}

	refresh, err := m.IssueRefresh(userID)
	if err != nil {
		return pair, err
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

func (m *TokenManager) issue(userID int64, typ models.TokenType, ttl time.Duration) (models.IssuedToken, error) {
	// JWT keeps time with seconds precision, so truncate it to return exactly what is encoded
	now := m.clock.Now().Truncate(time.Second)
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(
		m.alg,
		Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				Subject:   strconv.FormatInt(userID, 10),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			Type: typ,
		},
	)

	value, err := token.SignedString(m.key)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing %s token. Err: %w", typ, err)
	}

	return models.IssuedToken{Value: value, ExpiresAt: expiresAt}, nil
}

// Parse and validate token of any type
// Always returns *apperrors.TokenError on failure
func (m *TokenManager) Verify(value string) (models.TokenClaims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(
		value,
		claims,
		func(t *jwt.Token) (any, error) {
			if t.Method.Alg() != m.alg.Alg() {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return m.key, nil
		},
		jwt.WithTimeFunc(m.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return models.TokenClaims{}, &apperrors.TokenError{Reason: reasonOf(err), Err: err}
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return models.TokenClaims{}, &apperrors.TokenError{Reason: apperrors.TokenMalformed, Err: err}
	}

	if claims.Type != models.TokenAccess && claims.Type != models.TokenRefresh {
		return models.TokenClaims{}, &apperrors.TokenError{
			Reason: apperrors.TokenUnsupported,
			Err:    fmt.Errorf("unknown token type %q", claims.Type),
		}
	}

	var issuedAt time.Time
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}

	return models.TokenClaims{
		SubjectID: userID,
		Type:      claims.Type,
		IssuedAt:  issuedAt,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Return the type of the valid token
func (m *TokenManager) TypeOf(value string) (models.TokenType, error) {
	claims, err := m.Verify(value)
	if err != nil {
		return "", err
	}
	return claims.Type, nil
}

// Any token that does not pass verification is considered expired
// Use Verify to get the exact reason
func (m *TokenManager) IsExpired(value string) bool {
	_, err := m.Verify(value)
	return err != nil
}

func reasonOf(err error) apperrors.TokenReason {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperrors.TokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return apperrors.TokenBadSignature
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return apperrors.TokenUnsupported
	default:
		return apperrors.TokenMalformed
	}
}
