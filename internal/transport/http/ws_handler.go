package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"quizhive/internal/game"
)

// WSHandler bridges one websocket connection to a session: inbound frames
// become session commands, and the session's broadcast stream is pumped back
// out. One handler serves all sessions; routing is by join code.
type WSHandler struct {
	registry *game.Registry
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewWSHandler(registry *game.Registry, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		registry: registry,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionIndex int   `json:"questionIndex"`
	ChosenIndices []int `json:"chosenIndices"`
}

// ServeWS upgrades the request and attaches it to the session named by the
// join code. Query params: code, name, playerId (reconnect), hostToken.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	name := r.URL.Query().Get("name")
	playerID := r.URL.Query().Get("playerId")
	hostToken := r.URL.Query().Get("hostToken")
	if code == "" {
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}
	if name == "" && playerID == "" {
		http.Error(w, "missing name", http.StatusBadRequest)
		return
	}

	session, ok := h.registry.Get(code)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	joinedID, sub, reconnected, err := session.Join(name, playerID, hostToken)
	if err != nil {
		_ = conn.WriteJSON(errorEvent(err))
		return
	}

	send := make(chan game.Event, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	pumpDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug().Err(err).Msg("ws write error")
				return
			}
		}
	}()

	go func() {
		defer close(pumpDone)
		for {
			select {
			case ev, ok := <-sub.Events():
				if !ok {
					// session ended or we were detached; unblock the reader
					_ = conn.Close()
					return
				}
				select {
				case send <- ev:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- game.Event{Type: game.EventJoined, Payload: game.JoinedPayload{
		PlayerID:    joinedID,
		Code:        code,
		Reconnected: reconnected,
	}}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(session, joinedID, inbound, send)
	}

	session.Disconnect(joinedID)
	close(closeSignals)
	<-pumpDone
	close(send)
	<-writerDone
}

func (h *WSHandler) dispatch(session *game.Session, playerID string, inbound inboundMessage, send chan<- game.Event) {
	var err error
	switch inbound.Type {
	case "start":
		err = session.Start(playerID)
	case "answer":
		var payload answerPayload
		if jsonErr := json.Unmarshal(inbound.Payload, &payload); jsonErr != nil {
			sendEvent(send, errorMessage("invalid answer payload"))
			return
		}
		err = session.SubmitAnswer(playerID, payload.QuestionIndex, payload.ChosenIndices)
	case "skip":
		err = session.Skip(playerID)
	case "end":
		err = session.End(playerID)
	default:
		sendEvent(send, errorMessage("unsupported message type"))
		return
	}
	if err != nil {
		sendEvent(send, errorEvent(err))
	}
}

// sendEvent never blocks the read loop on a stalled writer.
func sendEvent(send chan<- game.Event, ev game.Event) {
	select {
	case send <- ev:
	default:
	}
}
