package postgres

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/secureauth/internal/apperrors"
	"github.com/nkiryanov/secureauth/internal/models"
	"github.com/nkiryanov/secureauth/internal/testutil"
)

func Test_UserRepo(t *testing.T) {
	t.Parallel() // It's ok to run in parallel with other tests, but not with subtests

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	newUser := func(email, phone string) models.User {
		return models.User{Email: email, Phone: phone, PasswordHash: "hashedpassword123", IsActive: true}
	}

	t.Run("create user ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			user, err := r.CreateUser(t.Context(), newUser("user@example.com", "+10000000001"))

			require.NoError(t, err)
			assert.Greater(t, user.ID, int64(0), "ID should be generated")
			assert.Equal(t, "user@example.com", user.Email)
			assert.Equal(t, "+10000000001", user.Phone)
			assert.Equal(t, "hashedpassword123", user.PasswordHash)
			assert.True(t, user.IsActive)
			assert.Empty(t, user.Roles, "new user has no roles")
			assert.Nil(t, user.LastLogin, "new user never logged in")
			assert.WithinDuration(t, time.Now(), user.CreatedAt, 5*time.Second, "CreatedAt should be recent")
		})
	})

	t.Run("create users without phone", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			first, err := r.CreateUser(t.Context(), newUser("first@example.com", ""))
			require.NoError(t, err)
			_, err = r.CreateUser(t.Context(), newUser("second@example.com", ""))

			require.NoError(t, err, "empty phone is stored as NULL, so it must not collide")
			assert.Empty(t, first.Phone)
		})
	})

	t.Run("create user duplicate", func(t *testing.T) {
		tests := []struct {
			name    string
			second  models.User
			wantErr error
		}{
			{"email", newUser("dup@example.com", "+10000000002"), apperrors.ErrDuplicateEmail},
			{"phone", newUser("other@example.com", "+10000000001"), apperrors.ErrDuplicatePhone},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
					r := UserRepo{DB: tx}
					_, err := r.CreateUser(t.Context(), newUser("dup@example.com", "+10000000001"))
					require.NoError(t, err)

					_, err = r.CreateUser(t.Context(), tt.second)

					require.ErrorIs(t, err, tt.wantErr)
				})
			})
		}
	})

	t.Run("get user ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), newUser("find@example.com", "+10000000003"))
			require.NoError(t, err)
			err = r.AssignRole(t.Context(), created.ID, models.RoleCustomer)
			require.NoError(t, err)

			byID, err := r.GetUserByID(t.Context(), created.ID)
			require.NoError(t, err)
			byEmail, err := r.GetUserByEmail(t.Context(), created.Email)
			require.NoError(t, err)
			byPhone, err := r.GetUserByPhone(t.Context(), created.Phone)
			require.NoError(t, err)

			for _, got := range []models.User{byID, byEmail, byPhone} {
				assert.Equal(t, created.ID, got.ID)
				assert.Equal(t, created.Email, got.Email)
				assert.Equal(t, created.Phone, got.Phone)
				assert.Equal(t, created.PasswordHash, got.PasswordHash)
				assert.Equal(t, created.CreatedAt, got.CreatedAt)
				assert.Equal(t, []models.Role{models.RoleCustomer}, got.Roles)
			}
		})
	})

	t.Run("get user not found", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			_, err := r.GetUserByID(t.Context(), 99999)
			assert.ErrorIs(t, err, apperrors.ErrUserNotFound, "should return well known error")

			_, err = r.GetUserByEmail(t.Context(), "nobody@example.com")
			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

			_, err = r.GetUserByPhone(t.Context(), "+19999999999")
			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})

	t.Run("exists", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			_, err := r.CreateUser(t.Context(), newUser("exists@example.com", "+10000000004"))
			require.NoError(t, err)

			exists, err := r.ExistsByEmail(t.Context(), "exists@example.com")
			require.NoError(t, err)
			assert.True(t, exists)

			exists, err = r.ExistsByPhone(t.Context(), "+10000000004")
			require.NoError(t, err)
			assert.True(t, exists)

			exists, err = r.ExistsByEmail(t.Context(), "nobody@example.com")
			require.NoError(t, err)
			assert.False(t, exists)
		})
	})

	t.Run("update last login", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), newUser("login@example.com", ""))
			require.NoError(t, err)
			at := testutil.MustParseTime("2024-01-01 19:00:01Z")

			err = r.UpdateLastLogin(t.Context(), created.ID, at)
			require.NoError(t, err)

			got, err := r.GetUserByID(t.Context(), created.ID)
			require.NoError(t, err)
			require.NotNil(t, got.LastLogin)
			assert.WithinDuration(t, at, *got.LastLogin, 0)

			err = r.UpdateLastLogin(t.Context(), 99999, at)
			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})

	t.Run("assign role", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), newUser("roles@example.com", ""))
			require.NoError(t, err)

			require.NoError(t, r.AssignRole(t.Context(), created.ID, models.RoleCustomer))
			require.NoError(t, r.AssignRole(t.Context(), created.ID, models.RoleCustomer), "assigning twice is ok")
			require.NoError(t, r.AssignRole(t.Context(), created.ID, models.RoleAdmin))

			got, err := r.GetUserByID(t.Context(), created.ID)
			require.NoError(t, err)
			assert.Equal(t, []models.Role{models.RoleAdmin, models.RoleCustomer}, got.Roles, "roles are sorted by name")
		})
	})

	t.Run("assign unknown role", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), newUser("unknown-role@example.com", ""))
			require.NoError(t, err)

			err = r.AssignRole(t.Context(), created.ID, models.Role("ROOT"))

			require.ErrorIs(t, err, apperrors.ErrRoleNotFound)
		})
	})
}
