package game

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"quizhive/internal/domain"
)

// codeAlphabet avoids characters that read ambiguously when typed from a
// screen (no I, O, 0, 1).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const maxCodeAttempts = 64

// Presence marks live session codes in an external store (advisory only; the
// in-process map stays authoritative).
type Presence interface {
	Mark(ctx context.Context, code string) error
	Clear(ctx context.Context, code string) error
}

// Registry owns the set of live sessions and routes join codes to them. It is
// the only structure shared between connections; all its operations are safe
// for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	rnd      *rand.Rand

	codeLength int
	defaults   Config
	presence   Presence
	log        zerolog.Logger
}

// RegistryConfig configures the registry. Presence may be nil.
type RegistryConfig struct {
	CodeLength      int
	SessionDefaults Config
	Presence        Presence
	Logger          zerolog.Logger
}

func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = 5
	}
	return &Registry{
		sessions:   make(map[string]*Session),
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
		codeLength: cfg.CodeLength,
		defaults:   cfg.SessionDefaults,
		presence:   cfg.Presence,
		log:        cfg.Logger,
	}
}

// Create validates the question set, assigns a collision-checked join code,
// and starts the session goroutine. The returned host token lets its holder
// claim the host seat on join.
func (r *Registry) Create(ctx context.Context, set domain.QuestionSet, cfg Config) (*Session, string, error) {
	if err := set.Validate(); err != nil {
		return nil, "", err
	}
	merged := r.mergeDefaults(cfg)
	hostToken := uuid.NewString()

	r.mu.Lock()
	code, err := r.uniqueCodeLocked()
	if err != nil {
		r.mu.Unlock()
		return nil, "", err
	}
	session := newSession(code, set, hostToken, merged, r.log, r.remove)
	r.sessions[code] = session
	r.mu.Unlock()

	if r.presence != nil {
		if err := r.presence.Mark(ctx, code); err != nil {
			r.log.Warn().Err(err).Str("session", code).Msg("presence mark failed")
		}
	}

	go session.run()
	r.log.Info().Str("session", code).Str("set", set.ID).Msg("session created")
	return session, hostToken, nil
}

// Get routes an inbound join code to its live session.
func (r *Registry) Get(code string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[code]
	return session, ok
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) remove(code string) {
	r.mu.Lock()
	delete(r.sessions, code)
	r.mu.Unlock()
	if r.presence != nil {
		if err := r.presence.Clear(context.Background(), code); err != nil {
			r.log.Warn().Err(err).Str("session", code).Msg("presence clear failed")
		}
	}
	r.log.Info().Str("session", code).Msg("session removed")
}

// uniqueCodeLocked retries until an unused code is found. Exhaustion is an
// internal retryable condition, never surfaced to users.
func (r *Registry) uniqueCodeLocked() (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := r.randomCodeLocked()
		if _, taken := r.sessions[code]; !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("join code space exhausted after %d attempts", maxCodeAttempts)
}

func (r *Registry) randomCodeLocked() string {
	buf := make([]byte, r.codeLength)
	for i := range buf {
		buf[i] = codeAlphabet[r.rnd.Intn(len(codeAlphabet))]
	}
	return string(buf)
}

func (r *Registry) mergeDefaults(cfg Config) Config {
	d := r.defaults
	if cfg.MaxPlayers <= 0 {
		cfg.MaxPlayers = d.MaxPlayers
	}
	if cfg.RevealPause <= 0 {
		cfg.RevealPause = d.RevealPause
	}
	if cfg.HostGrace <= 0 {
		cfg.HostGrace = d.HostGrace
	}
	if cfg.DefaultTimeLimit <= 0 {
		cfg.DefaultTimeLimit = d.DefaultTimeLimit
	}
	if cfg.BasePoints <= 0 {
		cfg.BasePoints = d.BasePoints
	}
	if cfg.Match == nil {
		cfg.Match = d.Match
	}
	if cfg.FilterName == nil {
		cfg.FilterName = d.FilterName
	}
	return cfg
}
