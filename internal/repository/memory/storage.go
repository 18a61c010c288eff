// Package memory keeps users and sessions in process memory.
// It is used when no database is configured and in service tests
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/nkiryanov/secureauth/internal/models"
	"github.com/nkiryanov/secureauth/internal/repository"
)

type state struct {
	users      map[int64]models.User
	emails     map[string]int64
	phones     map[string]int64
	lastUserID int64

	sessions      map[int64]models.Session
	tokens        map[string]int64
	lastSessionID int64

	roles []models.Role
}

func newState() *state {
	return &state{
		users:    make(map[int64]models.User),
		emails:   make(map[string]int64),
		phones:   make(map[string]int64),
		sessions: make(map[int64]models.Session),
		tokens:   make(map[string]int64),
		roles:    []models.Role{models.RoleCustomer, models.RoleAdmin},
	}
}

func (st *state) clone() *state {
	users := make(map[int64]models.User, len(st.users))
	for id, u := range st.users {
		users[id] = copyUser(u)
	}

	return &state{
		users:         users,
		emails:        maps.Clone(st.emails),
		phones:        maps.Clone(st.phones),
		lastUserID:    st.lastUserID,
		sessions:      maps.Clone(st.sessions),
		tokens:        maps.Clone(st.tokens),
		lastSessionID: st.lastSessionID,
		roles:         slices.Clone(st.roles),
	}
}

type Storage struct {
	mu *sync.Mutex
	st *state

	// Set for storage given to InTx callback, the lock is held by InTx already
	inTx bool
}

func NewStorage() repository.Storage {
	return &Storage{mu: &sync.Mutex{}, st: newState()}
}

func (s *Storage) User() repository.UserRepo {
	return &UserRepo{s: s}
}

func (s *Storage) Session() repository.SessionRepo {
	return &SessionRepo{s: s}
}

// Run fn holding the storage lock. Changes made by fn are dropped if it fails
func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) error {
	s.lock()
	defer s.unlock()

	snapshot := s.st.clone()

	err := fn(&Storage{mu: s.mu, st: s.st, inTx: true})
	if err != nil {
		*s.st = *snapshot
	}

	return err
}

func (s *Storage) lock() {
	if !s.inTx {
		s.mu.Lock()
	}
}

func (s *Storage) unlock() {
	if !s.inTx {
		s.mu.Unlock()
	}
}

func copyUser(u models.User) models.User {
	u.Roles = slices.Clone(u.Roles)
	if u.LastLogin != nil {
		lastLogin := *u.LastLogin
		u.LastLogin = &lastLogin
	}
	return u
}
