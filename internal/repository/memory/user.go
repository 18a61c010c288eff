package memory

import (
	"context"
	"slices"
	"time"

	"github.com/nkiryanov/secureauth/internal/apperrors"
	"github.com/nkiryanov/secureauth/internal/models"
)

type UserRepo struct {
	s *Storage
}

func (r *UserRepo) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	r.s.lock()
	defer r.s.unlock()
	st := r.s.st

	if _, ok := st.emails[user.Email]; ok {
		return models.User{}, apperrors.ErrDuplicateEmail
	}
	if _, ok := st.phones[user.Phone]; ok && user.Phone != "" {
		return models.User{}, apperrors.ErrDuplicatePhone
	}

	st.lastUserID++
	user.ID = st.lastUserID
	user.CreatedAt = time.Now().UTC()
	user.Roles = []models.Role{}
	user.LastLogin = nil

	st.users[user.ID] = user
	st.emails[user.Email] = user.ID
	if user.Phone != "" {
		st.phones[user.Phone] = user.ID
	}

	return copyUser(user), nil
}

func (r *UserRepo) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	r.s.lock()
	defer r.s.unlock()

	user, ok := r.s.st.users[id]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}
	return copyUser(user), nil
}

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return r.getByIndex(func(st *state) (int64, bool) {
		id, ok := st.emails[email]
		return id, ok
	})
}

func (r *UserRepo) GetUserByPhone(ctx context.Context, phone string) (models.User, error) {
	return r.getByIndex(func(st *state) (int64, bool) {
		id, ok := st.phones[phone]
		return id, ok
	})
}

func (r *UserRepo) getByIndex(lookup func(*state) (int64, bool)) (models.User, error) {
	r.s.lock()
	defer r.s.unlock()

	id, ok := lookup(r.s.st)
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}
	return copyUser(r.s.st.users[id]), nil
}

func (r *UserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	r.s.lock()
	defer r.s.unlock()

	_, ok := r.s.st.emails[email]
	return ok, nil
}

func (r *UserRepo) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	r.s.lock()
	defer r.s.unlock()

	_, ok := r.s.st.phones[phone]
	return ok, nil
}

func (r *UserRepo) UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error {
	r.s.lock()
	defer r.s.unlock()

	user, ok := r.s.st.users[userID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	user.LastLogin = &at
	r.s.st.users[userID] = user

	return nil
}

func (r *UserRepo) AssignRole(ctx context.Context, userID int64, role models.Role) error {
	r.s.lock()
	defer r.s.unlock()
	st := r.s.st

	if !slices.Contains(st.roles, role) {
		return apperrors.ErrRoleNotFound
	}

	user, ok := st.users[userID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	if slices.Contains(user.Roles, role) {
		return nil
	}

	// Keep roles sorted by name, the same way database returns them
	user.Roles = append(slices.Clone(user.Roles), role)
	slices.Sort(user.Roles)
	st.users[userID] = user

	return nil
}
