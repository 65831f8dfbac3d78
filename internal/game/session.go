// Package game implements the quiz session engine: one goroutine per session
// consuming a serialized command queue and fanning its state transitions out
// to every attached connection.
package game

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"quizhive/internal/domain"
)

// State is one phase of the session machine.
type State string

const (
	StateLobby          State = "lobby"
	StateStarting       State = "starting"
	StateQuestionActive State = "question_active"
	StateQuestionReveal State = "question_reveal"
	StateFinished       State = "finished"
	StateAborted        State = "aborted"
)

const subscriberBuffer = 32

// Config carries per-session settings. Zero values fall back to defaults.
type Config struct {
	MaxPlayers       int
	RevealPause      time.Duration
	HostGrace        time.Duration
	DefaultTimeLimit time.Duration
	BasePoints       int
	Match            MatchPolicy
	// FilterName validates display names at join. Nil accepts anything
	// non-empty.
	FilterName func(string) (string, error)
	// OnTransition observes every state change, in order. Used by tests.
	OnTransition func(State)
}

func (c Config) withDefaults() Config {
	if c.MaxPlayers <= 0 {
		c.MaxPlayers = 50
	}
	if c.RevealPause <= 0 {
		c.RevealPause = 5 * time.Second
	}
	if c.HostGrace <= 0 {
		c.HostGrace = 30 * time.Second
	}
	if c.DefaultTimeLimit <= 0 {
		c.DefaultTimeLimit = 20 * time.Second
	}
	if c.BasePoints <= 0 {
		c.BasePoints = 1000
	}
	if c.Match == nil {
		c.Match = ExactMatch
	}
	return c
}

// Session runs one quiz game. All state behind cmds is owned by the run
// goroutine; public methods only enqueue commands and wait for replies.
type Session struct {
	code      string
	createdAt time.Time
	cfg       Config
	set       domain.QuestionSet
	hostToken string
	log       zerolog.Logger
	now       func() time.Time

	cmds chan command
	done chan struct{}

	// everything below is touched only by the run goroutine
	state         State
	players       *roster
	hostID        string
	qIndex        int
	questionStart time.Time
	deadline      time.Time
	phaseTimer    timer
	graceTimer    timer
	subs          map[*Subscriber]struct{}
	onTerminal    func(code string)
}

func newSession(code string, set domain.QuestionSet, hostToken string, cfg Config, log zerolog.Logger, onTerminal func(string)) *Session {
	cfg = cfg.withDefaults()
	return &Session{
		code:       code,
		createdAt:  time.Now(),
		cfg:        cfg,
		set:        set,
		hostToken:  hostToken,
		log:        log.With().Str("session", code).Logger(),
		now:        time.Now,
		cmds:       make(chan command, 64),
		done:       make(chan struct{}),
		state:      StateLobby,
		players:    newRoster(cfg.MaxPlayers),
		subs:       make(map[*Subscriber]struct{}),
		onTerminal: onTerminal,
	}
}

// Code returns the public join code.
func (s *Session) Code() string { return s.code }

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Done is closed once the session reaches Finished or Aborted.
func (s *Session) Done() <-chan struct{} { return s.done }

// Join attaches a participant. A non-empty playerID reattaches the existing
// player with full score and answer history; otherwise a new player is
// created (Lobby only). A matching hostToken claims the host seat.
func (s *Session) Join(name, playerID, hostToken string) (string, *Subscriber, bool, error) {
	cmd := joinCmd{name: name, playerID: playerID, hostToken: hostToken, reply: make(chan joinReply, 1)}
	select {
	case s.cmds <- cmd:
	case <-s.done:
		return "", nil, false, domain.ErrSessionClosed
	}
	select {
	case rep := <-cmd.reply:
		return rep.playerID, rep.sub, rep.reconnected, rep.err
	case <-s.done:
		return "", nil, false, domain.ErrSessionClosed
	}
}

// Start begins the game. Host only; requires at least one connected non-host
// player.
func (s *Session) Start(playerID string) error {
	return s.roundTrip(startCmd{playerID: playerID, reply: make(chan error, 1)})
}

// SubmitAnswer records an answer for the currently active question. A second
// submission before the deadline silently replaces the first.
func (s *Session) SubmitAnswer(playerID string, questionIndex int, chosen []int) error {
	return s.roundTrip(answerCmd{playerID: playerID, index: questionIndex, chosen: chosen, reply: make(chan error, 1)})
}

// Skip advances past the current phase. Host only.
func (s *Session) Skip(playerID string) error {
	return s.roundTrip(skipCmd{playerID: playerID, reply: make(chan error, 1)})
}

// End aborts the session. Host only.
func (s *Session) End(playerID string) error {
	return s.roundTrip(endCmd{playerID: playerID, reply: make(chan error, 1)})
}

// Disconnect marks the player inactive. Their score and history survive until
// the session ends; the host gets a grace window before the session aborts.
func (s *Session) Disconnect(playerID string) {
	select {
	case s.cmds <- disconnectCmd{playerID: playerID}:
	case <-s.done:
	}
}

func (s *Session) roundTrip(cmd command) error {
	var reply chan error
	switch c := cmd.(type) {
	case startCmd:
		reply = c.reply
	case answerCmd:
		reply = c.reply
	case skipCmd:
		reply = c.reply
	case endCmd:
		reply = c.reply
	default:
		return fmt.Errorf("unroutable command %T", cmd)
	}
	select {
	case s.cmds <- cmd:
	case <-s.done:
		return domain.ErrSessionClosed
	}
	select {
	case err := <-reply:
		return err
	case <-s.done:
		// the command may have been applied right before terminal; a reply
		// sitting in the buffer is still authoritative. Without one the
		// command was never processed.
		select {
		case err := <-reply:
			return err
		default:
			return domain.ErrSessionClosed
		}
	}
}

// run is the session's single serialization point.
func (s *Session) run() {
	for cmd := range s.cmds {
		switch c := cmd.(type) {
		case joinCmd:
			c.reply <- s.handleJoin(c)
		case startCmd:
			c.reply <- s.handleStart(c.playerID)
		case answerCmd:
			c.reply <- s.handleAnswer(c)
		case skipCmd:
			c.reply <- s.handleSkip(c.playerID)
		case endCmd:
			c.reply <- s.handleEnd(c.playerID)
		case disconnectCmd:
			s.handleDisconnect(c.playerID)
		case timerCmd:
			s.handleTimer(c)
		}
		if s.terminal() {
			s.shutdown()
			return
		}
	}
}

func (s *Session) terminal() bool {
	return s.state == StateFinished || s.state == StateAborted
}

func (s *Session) transition(next State) {
	s.log.Debug().Str("from", string(s.state)).Str("to", string(next)).Msg("transition")
	s.state = next
	if s.cfg.OnTransition != nil {
		s.cfg.OnTransition(next)
	}
}

func (s *Session) handleJoin(c joinCmd) joinReply {
	if c.playerID != "" {
		return s.handleReconnect(c)
	}

	if s.state != StateLobby {
		return joinReply{err: domain.Capacity("game already started")}
	}
	name := c.name
	if s.cfg.FilterName != nil {
		filtered, err := s.cfg.FilterName(name)
		if err != nil {
			return joinReply{err: err}
		}
		name = filtered
	} else if name == "" {
		return joinReply{err: domain.Validation("display name is empty")}
	}

	isHost := false
	if c.hostToken != "" {
		if c.hostToken != s.hostToken {
			return joinReply{err: domain.Validation("invalid host token")}
		}
		if s.hostID != "" {
			return joinReply{err: domain.State("host already joined")}
		}
		isHost = true
	}

	p, err := s.players.add(uuid.NewString(), name, isHost)
	if err != nil {
		return joinReply{err: err}
	}
	if isHost {
		s.hostID = p.id
	}

	sub := s.attach(p.id)
	s.broadcastLobby()
	s.log.Info().Str("player", p.id).Str("name", name).Bool("host", isHost).Msg("joined")
	return joinReply{playerID: p.id, sub: sub}
}

func (s *Session) handleReconnect(c joinCmd) joinReply {
	p, ok := s.players.get(c.playerID)
	if !ok {
		return joinReply{err: domain.ErrPlayerNotFound}
	}
	s.players.markConnected(p.id)
	if p.isHost {
		s.graceTimer.cancel()
	}

	sub := s.attach(p.id)
	s.sendSnapshot(sub)
	s.broadcastLobby()
	s.log.Info().Str("player", p.id).Msg("reconnected")
	return joinReply{playerID: p.id, sub: sub, reconnected: true}
}

// sendSnapshot catches a reconnecting subscriber up with the current phase.
func (s *Session) sendSnapshot(sub *Subscriber) {
	sub.ch <- Event{Type: EventLobby, Payload: s.lobbyPayload()}
	if s.state == StateQuestionActive {
		sub.ch <- Event{Type: EventQuestion, Payload: s.questionPayload()}
	}
}

func (s *Session) handleStart(playerID string) error {
	if playerID != s.hostID {
		return domain.ErrNotHost
	}
	if s.state != StateLobby {
		return domain.State("game already started")
	}
	if s.players.activeNonHostCount() < 1 {
		return domain.State("need at least one player to start")
	}
	s.transition(StateStarting)
	s.qIndex = 0
	s.beginQuestion()
	return nil
}

// beginQuestion broadcasts the current question and arms the deadline timer.
func (s *Session) beginQuestion() {
	q := s.set.Questions[s.qIndex]
	limit := q.TimeLimit(s.cfg.DefaultTimeLimit)
	s.questionStart = s.now()
	s.deadline = s.questionStart.Add(limit)

	s.transition(StateQuestionActive)
	s.broadcast(Event{Type: EventQuestion, Payload: s.questionPayload()})
	s.armPhaseTimer(limit, timerDeadline)
}

func (s *Session) armPhaseTimer(d time.Duration, purpose timerPurpose) {
	s.phaseTimer.arm(d, func(gen uint64) {
		select {
		case s.cmds <- timerCmd{purpose: purpose, gen: gen}:
		case <-s.done:
		}
	})
}

func (s *Session) handleAnswer(c answerCmd) error {
	if s.state != StateQuestionActive {
		return domain.State("no question is active")
	}
	p, ok := s.players.get(c.playerID)
	if !ok {
		return domain.ErrPlayerNotFound
	}
	if !p.connected {
		return domain.State("player is not active")
	}
	if c.index != s.qIndex {
		return domain.Validation("submission targets a different question")
	}

	q := s.set.Questions[s.qIndex]
	chosen, err := validateChoice(q, c.chosen)
	if err != nil {
		return err
	}

	elapsed := s.now().Sub(s.questionStart)
	if err := s.players.recordAnswer(c.playerID, s.qIndex, chosen, elapsed); err != nil {
		return err
	}

	if s.players.allActiveAnswered(s.qIndex) {
		s.reveal()
	}
	return nil
}

// validateChoice checks the chosen indices against the question variant.
func validateChoice(q domain.Question, chosen []int) ([]int, error) {
	if len(chosen) == 0 {
		return nil, domain.Validation("no option chosen")
	}
	seen := make(map[int]struct{}, len(chosen))
	deduped := make([]int, 0, len(chosen))
	for _, idx := range chosen {
		if idx < 0 || idx >= len(q.Options) {
			return nil, domain.Validation("option index out of range")
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		deduped = append(deduped, idx)
	}
	switch q.Kind {
	case domain.SingleChoice:
		if len(deduped) != 1 {
			return nil, domain.Validation("single-choice question takes exactly one option")
		}
	case domain.MultipleChoice:
		if q.MinSelect > 0 && len(deduped) < q.MinSelect {
			return nil, domain.Validation("too few options chosen")
		}
		if q.MaxSelect > 0 && len(deduped) > q.MaxSelect {
			return nil, domain.Validation("too many options chosen")
		}
	default:
		return nil, domain.Validation("unknown question kind")
	}
	return deduped, nil
}

// reveal scores the current question once per player, broadcasts the outcome,
// and arms the auto-advance pause.
func (s *Session) reveal() {
	s.phaseTimer.cancel()
	q := s.set.Questions[s.qIndex]
	limit := q.TimeLimit(s.cfg.DefaultTimeLimit)

	results := make([]domain.AnswerResult, 0, len(s.players.order))
	for _, p := range s.players.order {
		rec := p.answers[s.qIndex]
		res := domain.AnswerResult{PlayerID: p.id}
		if rec != nil {
			fraction := float64(rec.elapsed) / float64(limit)
			correct, points := Score(q, rec.chosen, fraction, s.cfg.BasePoints, s.cfg.Match)
			rec.correct = correct
			rec.points = points
			res.Answered = true
			res.Correct = correct
			res.Awarded = points
			if points > 0 {
				p.score += points
			}
			if correct {
				// stamp the submission, not the reveal: every player in this
				// loop reveals at the same instant, but whoever answered
				// correctly first must win the tie
				p.lastCorrectAt = s.questionStart.Add(rec.elapsed)
			}
		}
		res.TotalScore = p.score
		results = append(results, res)
	}

	s.transition(StateQuestionReveal)
	s.broadcast(Event{Type: EventReveal, Payload: RevealPayload{
		Index:       s.qIndex,
		Correct:     append([]int(nil), q.Correct...),
		Results:     results,
		Leaderboard: s.players.leaderboard(),
	}})
	s.armPhaseTimer(s.cfg.RevealPause, timerAdvance)
}

// advance moves to the next question or finishes the game.
func (s *Session) advance() {
	s.phaseTimer.cancel()
	if s.qIndex+1 < len(s.set.Questions) {
		s.qIndex++
		s.beginQuestion()
		return
	}
	s.finish(StateFinished, "")
}

func (s *Session) handleSkip(playerID string) error {
	if playerID != s.hostID {
		return domain.ErrNotHost
	}
	switch s.state {
	case StateQuestionActive:
		s.reveal()
	case StateQuestionReveal:
		s.advance()
	default:
		return domain.State("nothing to skip")
	}
	return nil
}

func (s *Session) handleEnd(playerID string) error {
	if playerID != s.hostID {
		return domain.ErrNotHost
	}
	s.finish(StateAborted, "ended by host")
	return nil
}

func (s *Session) handleDisconnect(playerID string) {
	p, ok := s.players.get(playerID)
	if !ok {
		return
	}
	s.players.markDisconnected(playerID)
	s.dropSubscribers(playerID)

	if p.isHost && !s.terminal() {
		s.graceTimer.arm(s.cfg.HostGrace, func(gen uint64) {
			select {
			case s.cmds <- timerCmd{purpose: timerGrace, gen: gen}:
			case <-s.done:
			}
		})
	}

	switch s.state {
	case StateLobby:
		s.broadcastLobby()
	case StateQuestionActive:
		// the departed player no longer blocks the early transition
		if s.players.allActiveAnswered(s.qIndex) {
			s.reveal()
		}
	}
	s.log.Info().Str("player", playerID).Msg("disconnected")
}

func (s *Session) handleTimer(c timerCmd) {
	switch c.purpose {
	case timerDeadline:
		if s.state == StateQuestionActive && s.phaseTimer.live(c.gen) {
			s.reveal()
		}
	case timerAdvance:
		if s.state == StateQuestionReveal && s.phaseTimer.live(c.gen) {
			s.advance()
		}
	case timerGrace:
		if !s.terminal() && s.graceTimer.live(c.gen) {
			s.log.Warn().Msg("host did not return, aborting")
			s.finish(StateAborted, "host disconnected")
		}
	}
}

func (s *Session) finish(state State, reason string) {
	s.phaseTimer.cancel()
	s.graceTimer.cancel()
	s.transition(state)
	s.broadcast(Event{Type: EventGameEnd, Payload: GameEndPayload{
		Leaderboard: s.players.leaderboard(),
		Aborted:     state == StateAborted,
		Reason:      reason,
	}})
}

// shutdown closes all subscriptions and signals the registry. Runs once, as
// the final action of the run goroutine.
func (s *Session) shutdown() {
	for sub := range s.subs {
		close(sub.ch)
		delete(s.subs, sub)
	}
	close(s.done)
	if s.onTerminal != nil {
		s.onTerminal(s.code)
	}
	s.log.Info().Str("state", string(s.state)).Msg("session closed")
}

func (s *Session) attach(playerID string) *Subscriber {
	sub := &Subscriber{playerID: playerID, ch: make(chan Event, subscriberBuffer)}
	s.subs[sub] = struct{}{}
	return sub
}

// dropSubscribers detaches any subscriptions held by the player.
func (s *Session) dropSubscribers(playerID string) {
	for sub := range s.subs {
		if sub.playerID == playerID {
			close(sub.ch)
			delete(s.subs, sub)
		}
	}
}

func (s *Session) lobbyPayload() LobbyPayload {
	return LobbyPayload{Players: s.players.infos(), HostID: s.hostID}
}

func (s *Session) questionPayload() QuestionPayload {
	q := s.set.Questions[s.qIndex]
	return QuestionPayload{
		Index:        s.qIndex,
		Total:        len(s.set.Questions),
		Kind:         q.Kind,
		Title:        q.Title,
		Prompt:       q.Prompt,
		Image:        q.Image,
		Options:      append([]string(nil), q.Options...),
		MinSelect:    q.MinSelect,
		MaxSelect:    q.MaxSelect,
		TimeLimitSec: int(q.TimeLimit(s.cfg.DefaultTimeLimit) / time.Second),
		Deadline:     s.deadline,
	}
}

func (s *Session) broadcastLobby() {
	s.broadcast(Event{Type: EventLobby, Payload: s.lobbyPayload()})
}

// broadcast fans an event out to every subscriber, preserving the session's
// total order. Redundant lobby snapshots are dropped for a full subscriber; a
// subscriber that cannot take a critical event is detached and its player
// marked inactive rather than stalling the session.
func (s *Session) broadcast(ev Event) {
	var stalled []*Subscriber
	for sub := range s.subs {
		select {
		case sub.ch <- ev:
		default:
			if ev.droppable() {
				continue
			}
			stalled = append(stalled, sub)
		}
	}
	for _, sub := range stalled {
		s.log.Warn().Str("player", sub.playerID).Msg("subscriber fell behind, detaching")
		close(sub.ch)
		delete(s.subs, sub)
		s.players.markDisconnected(sub.playerID)
	}
}
