package game

import (
	"time"

	"quizhive/internal/domain"
)

// EventType names an outbound protocol message.
type EventType string

const (
	EventJoined   EventType = "joined"
	EventLobby    EventType = "lobby"
	EventQuestion EventType = "question"
	EventReveal   EventType = "reveal"
	EventGameEnd  EventType = "gameEnd"
	EventError    EventType = "error"
)

// Event is one outbound message. It marshals directly as the wire envelope.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// droppable reports whether the event may be skipped for a slow subscriber.
// Lobby roster snapshots are redundant (a fresher one always follows);
// everything else is a state transition the client must observe.
func (e Event) droppable() bool {
	return e.Type == EventLobby
}

// JoinedPayload acknowledges a join. PlayerID is stable across reconnects.
type JoinedPayload struct {
	PlayerID    string `json:"playerId"`
	Code        string `json:"code"`
	Reconnected bool   `json:"reconnected"`
}

// LobbyPayload is the roster snapshot broadcast while waiting for the host.
type LobbyPayload struct {
	Players []domain.PlayerInfo `json:"players"`
	HostID  string              `json:"hostId"`
}

// QuestionPayload carries one question without its correct-answer data.
type QuestionPayload struct {
	Index        int                 `json:"index"`
	Total        int                 `json:"total"`
	Kind         domain.QuestionKind `json:"kind"`
	Title        string              `json:"title"`
	Prompt       string              `json:"prompt"`
	Image        domain.ImageRef     `json:"imageRef,omitempty"`
	Options      []string            `json:"options"`
	MinSelect    int                 `json:"minSelect,omitempty"`
	MaxSelect    int                 `json:"maxSelect,omitempty"`
	TimeLimitSec int                 `json:"timeLimitSec"`
	Deadline     time.Time           `json:"deadline"`
}

// RevealPayload closes a question: correct answer, per-player outcomes, and
// the updated leaderboard.
type RevealPayload struct {
	Index       int                       `json:"index"`
	Correct     []int                     `json:"correctIndices"`
	Results     []domain.AnswerResult     `json:"results"`
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
}

// GameEndPayload is the final broadcast before the session is removed.
type GameEndPayload struct {
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
	Aborted     bool                      `json:"aborted"`
	Reason      string                    `json:"reason,omitempty"`
}

// ErrorPayload is a targeted rejection; the connection stays open.
type ErrorPayload struct {
	Code    domain.ErrCode `json:"code"`
	Message string         `json:"message"`
}

// Subscriber receives the session's ordered broadcast stream. The channel is
// closed when the session ends or the subscriber is detached for falling
// behind.
type Subscriber struct {
	playerID string
	ch       chan Event
}

// Events returns the ordered stream of session events.
func (s *Subscriber) Events() <-chan Event { return s.ch }

// PlayerID identifies the player this subscription belongs to.
func (s *Subscriber) PlayerID() string { return s.playerID }
