package domain

import (
	"fmt"
	"time"
)

// QuestionKind discriminates the question variants. Every switch over it must
// handle all values and reject anything else.
type QuestionKind string

const (
	SingleChoice   QuestionKind = "single"
	MultipleChoice QuestionKind = "multiple"
)

// ScoringMode selects how points are computed for a correct answer.
type ScoringMode string

const (
	// ScoringStandard awards base * (1 - 0.5*elapsedFraction), floored.
	ScoringStandard ScoringMode = "standard"
	// ScoringFlat awards the full base on a correct answer.
	ScoringFlat ScoringMode = "flat"
	// ScoringNone never awards points (practice mode).
	ScoringNone ScoringMode = "none"
)

// ImageRef is an opaque handle to an uploaded image. The session engine never
// interprets it; it is echoed verbatim to clients.
type ImageRef string

// Question is immutable once a session starts.
type Question struct {
	Kind      QuestionKind `json:"kind"`
	Title     string       `json:"title"`
	Prompt    string       `json:"prompt"`
	Image     ImageRef     `json:"imageRef,omitempty"`
	Options   []string     `json:"options"`
	Correct   []int        `json:"correct"`
	MinSelect int          `json:"minSelect,omitempty"`
	MaxSelect int          `json:"maxSelect,omitempty"`
	// TimeLimitSec bounds the answering window. Zero falls back to the
	// session default.
	TimeLimitSec int         `json:"timeLimitSec"`
	Mode         ScoringMode `json:"mode"`
	Points       int         `json:"points"` // base value, session default if zero
}

// TimeLimit returns the answering window, or fallback when unset.
func (q Question) TimeLimit(fallback time.Duration) time.Duration {
	if q.TimeLimitSec <= 0 {
		return fallback
	}
	return time.Duration(q.TimeLimitSec) * time.Second
}

// Validate checks structural invariants before a set is accepted for play.
func (q Question) Validate() error {
	if len(q.Options) < 2 {
		return Validation("question needs at least two options")
	}
	for _, idx := range q.Correct {
		if idx < 0 || idx >= len(q.Options) {
			return Validation(fmt.Sprintf("correct index %d out of range", idx))
		}
	}
	switch q.Kind {
	case SingleChoice:
		if len(q.Correct) != 1 {
			return Validation("single-choice question needs exactly one correct option")
		}
	case MultipleChoice:
		if len(q.Correct) < 1 {
			return Validation("multiple-choice question needs at least one correct option")
		}
		if q.MinSelect < 0 || q.MaxSelect < 0 || (q.MaxSelect > 0 && q.MinSelect > q.MaxSelect) {
			return Validation("invalid select bounds")
		}
	default:
		return Validation(fmt.Sprintf("unknown question kind %q", q.Kind))
	}
	switch q.Mode {
	case ScoringStandard, ScoringFlat, ScoringNone, "":
	default:
		return Validation(fmt.Sprintf("unknown scoring mode %q", q.Mode))
	}
	return nil
}

// QuestionSet is the immutable ordered question list a session plays through.
type QuestionSet struct {
	ID        string     `json:"id"`
	Title     string     `json:"title,omitempty"`
	Questions []Question `json:"questions"`
}

// Validate checks the whole set.
func (s QuestionSet) Validate() error {
	if len(s.Questions) == 0 {
		return Validation("question set is empty")
	}
	for i, q := range s.Questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
	}
	return nil
}

// AnswerSubmission is the transient input from a participant.
type AnswerSubmission struct {
	PlayerID      string
	QuestionIndex int
	Chosen        []int
}

// AnswerResult summarizes one player's outcome for one question.
type AnswerResult struct {
	PlayerID   string `json:"playerId"`
	Answered   bool   `json:"answered"`
	Correct    bool   `json:"correct"`
	Awarded    int    `json:"awarded"`
	TotalScore int    `json:"totalScore"`
}

// PlayerInfo is the roster view broadcast in lobby snapshots.
type PlayerInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	IsHost    bool   `json:"isHost"`
}

// LeaderboardEntry is one ranked row of the scoreboard.
type LeaderboardEntry struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Rank     int    `json:"rank"`
}
