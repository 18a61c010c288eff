package session

import (
	"context"
	"time"

	"github.com/nkiryanov/secureauth/internal/logger"
)

const DefaultSweepInterval = 5 * time.Minute

// Sweeper periodically revokes expired sessions
type Sweeper struct {
	interval time.Duration
	sessions *SessionService
	logger   logger.Logger
}

func NewSweeper(sessions *SessionService, interval time.Duration, logger logger.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	return &Sweeper{
		interval: interval,
		sessions: sessions,
		logger:   logger,
	}
}

// Run sweeper until context is done
// Returned channel is closed when sweeper stopped
func (s *Sweeper) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})
	s.logger.Debug("Starting sessions sweeper", "interval", s.interval)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("Sessions sweeper stopped by context")
				return

			case <-ticker.C:
				revoked, err := s.sessions.SweepExpired(ctx, s.sessions.clock.Now())
				if err != nil {
					s.logger.Error("Failed to sweep expired sessions", "error", err)
					continue
				}
				if revoked > 0 {
					s.logger.Info("Expired sessions revoked", "revoked", revoked)
				}
			}
		}
	}()

	return idleStopped
}
