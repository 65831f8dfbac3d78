package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"quizhive/internal/domain"
)

func newTestRegistry() *Registry {
	return NewRegistry(RegistryConfig{
		CodeLength:      5,
		SessionDefaults: testConfig(),
		Logger:          zerolog.Nop(),
	})
}

func TestRegistryAssignsDistinctCodes(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	seen := make(map[string]struct{})
	for i := 0; i < 20; i++ {
		s, hostToken, err := r.Create(ctx, flatSet(1), Config{})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if hostToken == "" {
			t.Fatalf("expected host token")
		}
		if len(s.Code()) != 5 {
			t.Fatalf("expected 5-char code, got %q", s.Code())
		}
		if _, dup := seen[s.Code()]; dup {
			t.Fatalf("duplicate join code %q among live sessions", s.Code())
		}
		seen[s.Code()] = struct{}{}
	}
	if r.Len() != 20 {
		t.Fatalf("expected 20 live sessions, got %d", r.Len())
	}
}

func TestRegistryLookupAndRemoval(t *testing.T) {
	r := newTestRegistry()
	s, hostToken, err := r.Create(context.Background(), flatSet(1), Config{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, ok := r.Get(s.Code())
	if !ok || got != s {
		t.Fatalf("expected lookup to find the session")
	}
	if _, ok := r.Get("NOPES"); ok {
		t.Fatalf("expected unknown code to miss")
	}

	hostID, _, _, err := s.Join("Host", "", hostToken)
	if err != nil {
		t.Fatalf("host join: %v", err)
	}
	if err := s.End(hostID); err != nil {
		t.Fatalf("end: %v", err)
	}

	waitDone(t, s)
	deadline := time.Now().Add(waitTimeout)
	for {
		if _, ok := r.Get(s.Code()); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session not removed after terminal state")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRegistryRejectsInvalidSet(t *testing.T) {
	r := newTestRegistry()
	_, _, err := r.Create(context.Background(), domain.QuestionSet{ID: "empty"}, Config{})
	if domain.CodeOf(err) != domain.CodeValidation {
		t.Fatalf("expected validation error for empty set, got %v", err)
	}
}

type recordingPresence struct {
	mu      sync.Mutex
	marked  []string
	cleared []string
}

func (p *recordingPresence) Mark(_ context.Context, code string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.marked = append(p.marked, code)
	return nil
}

func (p *recordingPresence) Clear(_ context.Context, code string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleared = append(p.cleared, code)
	return nil
}

func TestRegistryMaintainsPresence(t *testing.T) {
	presence := &recordingPresence{}
	r := NewRegistry(RegistryConfig{
		SessionDefaults: testConfig(),
		Presence:        presence,
		Logger:          zerolog.Nop(),
	})

	s, hostToken, err := r.Create(context.Background(), flatSet(1), Config{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	presence.mu.Lock()
	if len(presence.marked) != 1 || presence.marked[0] != s.Code() {
		presence.mu.Unlock()
		t.Fatalf("expected presence mark for %s, got %v", s.Code(), presence.marked)
	}
	presence.mu.Unlock()

	hostID, _, _, _ := s.Join("Host", "", hostToken)
	_ = s.End(hostID)
	waitDone(t, s)

	deadline := time.Now().Add(waitTimeout)
	for {
		presence.mu.Lock()
		cleared := len(presence.cleared)
		presence.mu.Unlock()
		if cleared == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected presence clear after session end")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
