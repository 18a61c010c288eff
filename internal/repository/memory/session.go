package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/nkiryanov/secureauth/internal/apperrors"
	"github.com/nkiryanov/secureauth/internal/models"
	"github.com/nkiryanov/secureauth/internal/repository"
)

type SessionRepo struct {
	s *Storage
}

func (r *SessionRepo) Create(ctx context.Context, session models.Session) (models.Session, error) {
	r.s.lock()
	defer r.s.unlock()
	st := r.s.st

	if _, ok := st.users[session.UserID]; !ok {
		return models.Session{}, apperrors.ErrUserNotFound
	}
	if _, ok := st.tokens[session.RefreshToken]; ok {
		return models.Session{}, apperrors.ErrSessionConflict
	}

	st.lastSessionID++
	session.ID = st.lastSessionID
	st.sessions[session.ID] = session
	st.tokens[session.RefreshToken] = session.ID

	return session, nil
}

func (r *SessionRepo) GetByID(ctx context.Context, id int64) (models.Session, error) {
	r.s.lock()
	defer r.s.unlock()

	session, ok := r.s.st.sessions[id]
	if !ok {
		return models.Session{}, apperrors.ErrSessionNotFound
	}
	return session, nil
}

func (r *SessionRepo) GetActiveByRefreshToken(ctx context.Context, refreshToken string) (models.Session, error) {
	r.s.lock()
	defer r.s.unlock()

	id, ok := r.s.st.tokens[refreshToken]
	if !ok {
		return models.Session{}, apperrors.ErrSessionNotFound
	}

	session := r.s.st.sessions[id]
	if session.Revoked {
		return models.Session{}, apperrors.ErrSessionNotFound
	}
	return session, nil
}

func (r *SessionRepo) Revoke(ctx context.Context, id int64, at time.Time) error {
	r.s.lock()
	defer r.s.unlock()

	session, ok := r.s.st.sessions[id]
	if ok && !session.Revoked {
		r.s.st.sessions[id] = revoke(session, at)
	}
	return nil
}

func (r *SessionRepo) RevokeAllByUser(ctx context.Context, userID int64, at time.Time) (int64, error) {
	return r.revokeWhere(func(s models.Session) bool { return s.UserID == userID }, func(s models.Session) models.Session {
		return revoke(s, at)
	}), nil
}

func (r *SessionRepo) RevokeExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.revokeWhere(func(s models.Session) bool { return s.ExpiresAt.Before(now) }, func(s models.Session) models.Session {
		s.Revoked = true
		s.UpdatedAt = now
		return s
	}), nil
}

// Apply fn to every not revoked session matching the filter
func (r *SessionRepo) revokeWhere(match func(models.Session) bool, fn func(models.Session) models.Session) int64 {
	r.s.lock()
	defer r.s.unlock()

	var revoked int64
	for id, session := range r.s.st.sessions {
		if session.Revoked || !match(session) {
			continue
		}
		r.s.st.sessions[id] = fn(session)
		revoked++
	}
	return revoked
}

func (r *SessionRepo) TouchLastUsed(ctx context.Context, id int64, at time.Time) error {
	r.s.lock()
	defer r.s.unlock()

	session, ok := r.s.st.sessions[id]
	if !ok {
		return nil
	}

	if at.After(session.LastUsedAt) {
		session.LastUsedAt = at
	}
	if at.After(session.UpdatedAt) {
		session.UpdatedAt = at
	}
	r.s.st.sessions[id] = session

	return nil
}

func (r *SessionRepo) ListActiveByUser(ctx context.Context, userID int64, now time.Time, opts repository.ListSessionsOpts) ([]models.Session, error) {
	r.s.lock()
	defer r.s.unlock()

	sessions := r.activeByUser(userID, now)
	if len(opts.DeviceTypes) > 0 {
		sessions = slices.DeleteFunc(sessions, func(s models.Session) bool {
			return !slices.Contains(opts.DeviceTypes, s.DeviceType)
		})
	}
	slices.SortFunc(sessions, func(a, b models.Session) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return sessions, nil
}

func (r *SessionRepo) CountActiveByUser(ctx context.Context, userID int64, now time.Time) (int, error) {
	r.s.lock()
	defer r.s.unlock()

	return len(r.activeByUser(userID, now)), nil
}

func (r *SessionRepo) activeByUser(userID int64, now time.Time) []models.Session {
	sessions := make([]models.Session, 0)
	for _, session := range r.s.st.sessions {
		if session.UserID == userID && session.IsActive(now) {
			sessions = append(sessions, session)
		}
	}
	return sessions
}

func revoke(s models.Session, at time.Time) models.Session {
	s.Revoked = true
	if at.Before(s.ExpiresAt) {
		s.ExpiresAt = at
	}
	s.UpdatedAt = at
	return s
}
