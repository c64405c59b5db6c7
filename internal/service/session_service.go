package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grading-api/internal/gradingconfig"
	"github.com/noah-isme/gema-grading-api/internal/observability"
)

// ErrSessionNotFound indicates the session was never mounted or has been unmounted.
var ErrSessionNotFound = errors.New("grading session not found")

// Session is a mounted configuration form. Done is closed once the session is
// unmounted or swept.
type Session struct {
	ID        string
	CreatedAt time.Time
	Store     *gradingconfig.Store
	Done      <-chan struct{}
}

// SessionService mounts and unmounts configuration sessions. Sessions live in
// memory only and are discarded after sitting idle for the configured TTL.
type SessionService interface {
	Create() Session
	Get(id string) (Session, error)
	Delete(id string) error
	Count() int
	Start(ctx context.Context)
}

type sessionEntry struct {
	session  Session
	done     chan struct{}
	lastSeen time.Time
}

type sessionService struct {
	mu        sync.Mutex
	sessions  map[string]*sessionEntry
	idleTTL   time.Duration
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewSessionService constructs the in-memory session registry.
func NewSessionService(idleTTL time.Duration, validate *validator.Validate, logger zerolog.Logger) SessionService {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	return &sessionService{
		sessions:  map[string]*sessionEntry{},
		idleTTL:   idleTTL,
		validator: validate,
		logger:    logger.With().Str("component", "session_service").Logger(),
		now:       time.Now,
	}
}

func (s *sessionService) Create() Session {
	now := s.now()
	done := make(chan struct{})
	session := Session{
		ID:        uuid.NewString(),
		CreatedAt: now.UTC(),
		Store:     gradingconfig.NewStore(gradingconfig.WithValidator(s.validator)),
		Done:      done,
	}

	s.mu.Lock()
	s.sessions[session.ID] = &sessionEntry{session: session, done: done, lastSeen: now}
	count := len(s.sessions)
	s.mu.Unlock()

	observability.SessionsActive().Set(float64(count))
	s.logger.Debug().Str("session_id", session.ID).Msg("session mounted")
	return session
}

func (s *sessionService) Get(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	entry.lastSeen = s.now()
	return entry.session, nil
}

func (s *sessionService) Delete(id string) error {
	s.mu.Lock()
	entry, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
		close(entry.done)
	}
	count := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	observability.SessionsActive().Set(float64(count))
	s.logger.Debug().Str("session_id", id).Msg("session unmounted")
	return nil
}

func (s *sessionService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Start sweeps idle sessions until ctx is cancelled.
func (s *sessionService) Start(ctx context.Context) {
	interval := s.idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if expired := s.sweep(); expired > 0 {
					s.logger.Info().Int("expired", expired).Msg("idle sessions discarded")
				}
			}
		}
	}()
}

func (s *sessionService) sweep() int {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	expired := 0
	for id, entry := range s.sessions {
		if entry.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			close(entry.done)
			expired++
		}
	}
	count := len(s.sessions)
	s.mu.Unlock()

	if expired > 0 {
		observability.SessionsActive().Set(float64(count))
	}
	return expired
}
