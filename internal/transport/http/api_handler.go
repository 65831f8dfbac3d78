package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"quizhive/internal/domain"
	"quizhive/internal/game"
)

const maxImageBytes = 8 << 20

// QuestionSetRepository loads question sets (from cache/backing store).
type QuestionSetRepository interface {
	GetQuestionSet(ctx context.Context, id string) (domain.QuestionSet, error)
}

// ImageStore accepts uploads and serves them back by their opaque refs. The
// session engine never reads image bytes; only this boundary does.
type ImageStore interface {
	Save(ctx context.Context, contentType string, data []byte) (domain.ImageRef, error)
	Get(ctx context.Context, ref domain.ImageRef) (contentType string, data []byte, ok bool)
}

// APIHandler serves the request/response boundary: session creation and image
// uploads, both of which happen before a game starts.
type APIHandler struct {
	registry *game.Registry
	sets     QuestionSetRepository
	images   ImageStore
	log      zerolog.Logger
}

func NewAPIHandler(registry *game.Registry, sets QuestionSetRepository, images ImageStore, log zerolog.Logger) *APIHandler {
	return &APIHandler{registry: registry, sets: sets, images: images, log: log}
}

type createSessionRequest struct {
	QuestionSetID        string `json:"questionSetId"`
	MaxPlayers           int    `json:"maxPlayers,omitempty"`
	RevealPauseSec       int    `json:"revealPauseSec,omitempty"`
	HostGraceSec         int    `json:"hostGraceSec,omitempty"`
	QuestionTimeLimitSec int    `json:"questionTimeLimitSec,omitempty"`
	BasePoints           int    `json:"basePoints,omitempty"`
}

type createSessionResponse struct {
	Code      string `json:"code"`
	HostToken string `json:"hostToken"`
}

// CreateSession loads the question set and spins up a session, returning its
// join code and the host token.
func (h *APIHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.Validation("invalid request body"))
		return
	}
	if req.QuestionSetID == "" {
		writeError(w, domain.Validation("questionSetId is required"))
		return
	}

	set, err := h.sets.GetQuestionSet(r.Context(), req.QuestionSetID)
	if err != nil {
		writeError(w, err)
		return
	}

	session, hostToken, err := h.registry.Create(r.Context(), set, game.Config{
		MaxPlayers:       req.MaxPlayers,
		RevealPause:      time.Duration(req.RevealPauseSec) * time.Second,
		HostGrace:        time.Duration(req.HostGraceSec) * time.Second,
		DefaultTimeLimit: time.Duration(req.QuestionTimeLimitSec) * time.Second,
		BasePoints:       req.BasePoints,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{
		Code:      session.Code(),
		HostToken: hostToken,
	})
}

type uploadImageResponse struct {
	ImageRef domain.ImageRef `json:"imageRef"`
}

// UploadImage stores the raw request body and returns an opaque ref to embed
// in question data.
func (h *APIHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImageBytes+1))
	if err != nil {
		writeError(w, domain.Validation("could not read upload"))
		return
	}
	if len(data) == 0 {
		writeError(w, domain.Validation("empty upload"))
		return
	}
	if len(data) > maxImageBytes {
		writeError(w, domain.Validation("upload too large"))
		return
	}

	ref, err := h.images.Save(r.Context(), r.Header.Get("Content-Type"), data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, uploadImageResponse{ImageRef: ref})
}

// ServeImage streams a previously uploaded image back. Mounted under
// /images/{ref}.
func (h *APIHandler) ServeImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ref := domain.ImageRef(strings.TrimPrefix(r.URL.Path, "/images/"))
	if ref == "" {
		writeError(w, domain.Validation("image ref is required"))
		return
	}
	contentType, data, ok := h.images.Get(r.Context(), ref)
	if !ok {
		writeError(w, domain.NotFound("image not found"))
		return
	}
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch domain.CodeOf(err) {
	case domain.CodeValidation:
		status = http.StatusBadRequest
	case domain.CodeState, domain.CodeCapacity:
		status = http.StatusConflict
	case domain.CodeNotFound:
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{
		"code":    string(domain.CodeOf(err)),
		"message": err.Error(),
	})
}

func errorEvent(err error) game.Event {
	return game.Event{Type: game.EventError, Payload: game.ErrorPayload{
		Code:    domain.CodeOf(err),
		Message: err.Error(),
	}}
}

func errorMessage(msg string) game.Event {
	return game.Event{Type: game.EventError, Payload: game.ErrorPayload{
		Code:    domain.CodeValidation,
		Message: msg,
	}}
}
