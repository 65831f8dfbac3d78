package game

import (
	"sort"
	"time"

	"quizhive/internal/domain"
)

// answerRecord is a player's single live answer for one question. A later
// valid submission for the same question overwrites it.
type answerRecord struct {
	chosen  []int
	elapsed time.Duration // relative to question start
	correct bool
	points  int
}

type player struct {
	id        string
	name      string
	isHost    bool
	connected bool
	joinOrder int
	score     int
	// lastCorrectAt is the submission time of the player's most recent
	// correct answer; it breaks leaderboard ties in favor of whoever
	// answered correctly first.
	lastCorrectAt time.Time
	answers       map[int]*answerRecord
}

// roster is the per-session player registry. It is owned by the session
// goroutine and is not safe for concurrent use.
type roster struct {
	byID       map[string]*player
	order      []*player
	maxPlayers int
}

func newRoster(maxPlayers int) *roster {
	return &roster{
		byID:       make(map[string]*player),
		maxPlayers: maxPlayers,
	}
}

// add registers a new player. Names must be unique among current players and
// capacity must not be exceeded. Players are never removed before session end.
func (r *roster) add(id, name string, isHost bool) (*player, error) {
	if r.maxPlayers > 0 && len(r.order) >= r.maxPlayers {
		return nil, domain.Capacity("session is full")
	}
	for _, p := range r.order {
		if p.name == name {
			return nil, domain.Validation("display name already taken")
		}
	}
	p := &player{
		id:        id,
		name:      name,
		isHost:    isHost,
		connected: true,
		joinOrder: len(r.order),
		answers:   make(map[int]*answerRecord),
	}
	r.byID[id] = p
	r.order = append(r.order, p)
	return p, nil
}

func (r *roster) get(id string) (*player, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// markDisconnected flags the player inactive. Score and answer history stay.
func (r *roster) markDisconnected(id string) {
	if p, ok := r.byID[id]; ok {
		p.connected = false
	}
}

// markConnected reactivates a player on reconnect with the same id.
func (r *roster) markConnected(id string) bool {
	p, ok := r.byID[id]
	if !ok {
		return false
	}
	p.connected = true
	return true
}

// recordAnswer stores the submission, overwriting any earlier one for the
// same question. Targeting validation happens in the session loop.
func (r *roster) recordAnswer(id string, questionIdx int, chosen []int, elapsed time.Duration) error {
	p, ok := r.byID[id]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	p.answers[questionIdx] = &answerRecord{chosen: chosen, elapsed: elapsed}
	return nil
}

// activeNonHostCount counts connected non-host players, the HostStart gate.
func (r *roster) activeNonHostCount() int {
	n := 0
	for _, p := range r.order {
		if p.connected && !p.isHost {
			n++
		}
	}
	return n
}

// allActiveAnswered reports whether every connected player has a recorded
// answer for the question, which ends the answering phase early.
func (r *roster) allActiveAnswered(questionIdx int) bool {
	any := false
	for _, p := range r.order {
		if !p.connected {
			continue
		}
		any = true
		if p.answers[questionIdx] == nil {
			return false
		}
	}
	return any
}

func (r *roster) infos() []domain.PlayerInfo {
	infos := make([]domain.PlayerInfo, 0, len(r.order))
	for _, p := range r.order {
		infos = append(infos, domain.PlayerInfo{
			ID:        p.id,
			Name:      p.name,
			Connected: p.connected,
			IsHost:    p.isHost,
		})
	}
	return infos
}

// leaderboard ranks players by score descending; ties go to whoever reached
// their score first, then to earlier join order.
func (r *roster) leaderboard() []domain.LeaderboardEntry {
	ranked := append([]*player(nil), r.order...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if !a.lastCorrectAt.Equal(b.lastCorrectAt) {
			// zero time (never scored) sorts after any real timestamp
			if a.lastCorrectAt.IsZero() {
				return false
			}
			if b.lastCorrectAt.IsZero() {
				return true
			}
			return a.lastCorrectAt.Before(b.lastCorrectAt)
		}
		return a.joinOrder < b.joinOrder
	})

	entries := make([]domain.LeaderboardEntry, 0, len(ranked))
	for i, p := range ranked {
		entries = append(entries, domain.LeaderboardEntry{
			PlayerID: p.id,
			Name:     p.name,
			Score:    p.score,
			Rank:     i + 1,
		})
	}
	return entries
}
