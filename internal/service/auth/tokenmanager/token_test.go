package tokenmanager

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/secureauth/internal/apperrors"
	"github.com/nkiryanov/secureauth/internal/clock"
	"github.com/nkiryanov/secureauth/internal/models"
)

func mustParseTime(value string) time.Time {
	dt, err := time.Parse("2006-01-02 15:04:05Z07:00", value)
	if err != nil {
		panic(err)
	}
	return dt
}

func requireTokenError(t *testing.T, err error, reason apperrors.TokenReason) {
	t.Helper()

	require.Error(t, err)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken, "every verification error must be ErrInvalidToken")

	var tokenErr *apperrors.TokenError
	require.ErrorAs(t, err, &tokenErr)
	require.Equal(t, reason, tokenErr.Reason)
}

func Test_TokenManager(t *testing.T) {
	t.Parallel()

	const testUserID int64 = 42
	start := mustParseTime("2024-01-01 19:00:01Z")

	newManager := func(t *testing.T, c clock.Clock) *TokenManager {
		m, err := New(Config{
			SecretKey:  "test-secret-key",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 24 * time.Hour,
			Clock:      c,
		})
		require.NoError(t, err, "token manager should be created without errors")
		return m
	}

	t.Run("new defaults", func(t *testing.T) {
		m, err := New(Config{SecretKey: "secret"})
		require.NoError(t, err, "token manager should be created without errors")

		require.Equal(t, []byte("secret"), m.key, "secret key should be set")
		require.Equal(t, DefaultAccessTTL, m.accessTTL, "default access token TTL should be set")
		require.Equal(t, DefaultRefreshTTL, m.refreshTTL, "default refresh token TTL")
		require.Equal(t, defaultSigningMethod, m.alg.Alg(), "default signing method should be set")
		require.Equal(t, 15*time.Minute, m.AccessTTL(), "default access TTL should be 15 minutes")
		require.Equal(t, 7*24*time.Hour, m.RefreshTTL(), "default refresh TTL should be 7 days")
	})

	t.Run("new fail", func(t *testing.T) {
		tests := []struct {
			name string
			cfg  Config
		}{
			{"empty secret", Config{}},
			{"asymmetric alg", Config{SecretKey: "secret", Alg: "RS256"}},
			{"unknown alg", Config{SecretKey: "secret", Alg: "what"}},
			{"negative access ttl", Config{SecretKey: "secret", AccessTTL: -time.Minute}},
			{"negative refresh ttl", Config{SecretKey: "secret", RefreshTTL: -time.Hour}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := New(tt.cfg)

				require.Error(t, err)
			})
		}
	})

	t.Run("round trip", func(t *testing.T) {
		tests := []struct {
			name  string
			issue func(m *TokenManager, userID int64) (models.IssuedToken, error)
			typ   models.TokenType
			ttl   time.Duration
		}{
			{"access", (*TokenManager).IssueAccess, models.TokenAccess, 15 * time.Minute},
			{"refresh", (*TokenManager).IssueRefresh, models.TokenRefresh, 24 * time.Hour},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				m := newManager(t, clock.NewManual(start))

				for _, userID := range []int64{1, testUserID, 1 << 40} {
					token, err := tt.issue(m, userID)
					require.NoError(t, err)
					require.WithinDuration(t, start.Add(tt.ttl), token.ExpiresAt, 0)

					claims, err := m.Verify(token.Value)

					require.NoError(t, err)
					assert.Equal(t, userID, claims.SubjectID)
					assert.Equal(t, tt.typ, claims.Type)
					assert.WithinDuration(t, start, claims.IssuedAt, 0)
					assert.WithinDuration(t, token.ExpiresAt, claims.ExpiresAt, 0)
				}
			})
		}
	})

	t.Run("claims", func(t *testing.T) {
		m := newManager(t, clock.NewManual(start))
		access, err := m.IssueAccess(testUserID)
		require.NoError(t, err)

		// Parse with library directly, time func is required cause token is issued in the past
		token, err := jwt.ParseWithClaims(access.Value, &Claims{}, func(token *jwt.Token) (any, error) {
			return []byte("test-secret-key"), nil
		}, jwt.WithTimeFunc(func() time.Time { return start }))
		require.NoError(t, err)

		claims, ok := token.Claims.(*Claims)
		require.True(t, ok, "claims should be of type Claims")
		assert.Equal(t, "42", claims.Subject, "subject should be user id")
		assert.Equal(t, models.TokenAccess, claims.Type)
		assert.NotEmpty(t, claims.ID, "token has to has jti")
		assert.Equal(t, "HS256", token.Method.Alg())
	})

	t.Run("generate different tokens", func(t *testing.T) {
		m := newManager(t, clock.NewManual(start))

		pair1, err := m.IssuePair(testUserID)
		require.NoError(t, err)
		pair2, err := m.IssuePair(testUserID)
		require.NoError(t, err)

		assert.NotEqual(t, pair1.Refresh.Value, pair2.Refresh.Value, "refresh tokens issued at same second should be different")
		assert.NotEqual(t, pair1.Access.Value, pair2.Access.Value, "access tokens issued at same second should be different")
	})

	t.Run("expired", func(t *testing.T) {
		c := clock.NewManual(start)
		m := newManager(t, c)
		access, err := m.IssueAccess(testUserID)
		require.NoError(t, err)
		refresh, err := m.IssueRefresh(testUserID)
		require.NoError(t, err)

		c.Advance(15*time.Minute + time.Second)

		_, err = m.Verify(access.Value)
		requireTokenError(t, err, apperrors.TokenExpired)
		require.True(t, m.IsExpired(access.Value))

		// Refresh token lives longer
		_, err = m.Verify(refresh.Value)
		require.NoError(t, err)
		require.False(t, m.IsExpired(refresh.Value))

		c.Advance(24 * time.Hour)

		_, err = m.Verify(refresh.Value)
		requireTokenError(t, err, apperrors.TokenExpired)
	})

	t.Run("expires exactly at exp", func(t *testing.T) {
		c := clock.NewManual(start)
		m := newManager(t, c)
		access, err := m.IssueAccess(testUserID)
		require.NoError(t, err)

		c.Set(access.ExpiresAt)

		_, err = m.Verify(access.Value)
		requireTokenError(t, err, apperrors.TokenExpired)
	})

	t.Run("not a token", func(t *testing.T) {
		m := newManager(t, clock.NewManual(start))

		_, err := m.Verify("invalid token")

		requireTokenError(t, err, apperrors.TokenMalformed)
		require.True(t, m.IsExpired("invalid token"), "not verifiable token is considered expired")
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := New(Config{SecretKey: "other-secret", Clock: clock.NewManual(start)})
		require.NoError(t, err)
		access, err := other.IssueAccess(testUserID)
		require.NoError(t, err)

		_, err = newManager(t, clock.NewManual(start)).Verify(access.Value)

		requireTokenError(t, err, apperrors.TokenBadSignature)
	})

	t.Run("not signed token", func(t *testing.T) {
		m := newManager(t, clock.NewManual(start))

		token := jwt.NewWithClaims(
			jwt.SigningMethodNone,
			Claims{
				RegisteredClaims: jwt.RegisteredClaims{
					ID:        uuid.NewString(),
					Subject:   "42",
					IssuedAt:  jwt.NewNumericDate(start),
					ExpiresAt: jwt.NewNumericDate(start.Add(15 * time.Minute)),
				},
				Type: models.TokenAccess,
			},
		)
		access, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = m.Verify(access)

		requireTokenError(t, err, apperrors.TokenUnsupported)
	})

	t.Run("unknown type", func(t *testing.T) {
		m := newManager(t, clock.NewManual(start))

		token := jwt.NewWithClaims(
			jwt.SigningMethodHS256,
			Claims{
				RegisteredClaims: jwt.RegisteredClaims{
					Subject:   "42",
					ExpiresAt: jwt.NewNumericDate(start.Add(time.Minute)),
				},
				Type: "ID",
			},
		)
		value, err := token.SignedString([]byte("test-secret-key"))
		require.NoError(t, err)

		_, err = m.Verify(value)
		requireTokenError(t, err, apperrors.TokenUnsupported)

		_, err = m.TypeOf(value)
		requireTokenError(t, err, apperrors.TokenUnsupported)
	})

	t.Run("no expiration", func(t *testing.T) {
		m := newManager(t, clock.NewManual(start))

		token := jwt.NewWithClaims(
			jwt.SigningMethodHS256,
			Claims{
				RegisteredClaims: jwt.RegisteredClaims{Subject: "42"},
				Type:             models.TokenAccess,
			},
		)
		value, err := token.SignedString([]byte("test-secret-key"))
		require.NoError(t, err)

		_, err = m.Verify(value)

		requireTokenError(t, err, apperrors.TokenMalformed)
	})

	t.Run("TypeOf", func(t *testing.T) {
		m := newManager(t, clock.NewManual(start))
		pair, err := m.IssuePair(testUserID)
		require.NoError(t, err)

		typ, err := m.TypeOf(pair.Access.Value)
		require.NoError(t, err)
		require.Equal(t, models.TokenAccess, typ)

		typ, err = m.TypeOf(pair.Refresh.Value)
		require.NoError(t, err)
		require.Equal(t, models.TokenRefresh, typ)
	})
}
