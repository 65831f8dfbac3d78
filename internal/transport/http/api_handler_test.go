package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"quizhive/internal/domain"
	"quizhive/internal/infra/memory"
)

func newAPIServer(t *testing.T) (*httptest.Server, *APIHandler) {
	t.Helper()
	registry := newTestRegistry()
	sets := memory.NewQuestionSetRepository(memory.NewStaticLoader(map[string]domain.QuestionSet{
		"set-1": sampleSet(),
	}), time.Minute)
	api := NewAPIHandler(registry, sets, memory.NewImageStore(), zerolog.Nop())

	mux := http.NewServeMux()
	mux.HandleFunc("/sessions", api.CreateSession)
	mux.HandleFunc("/images", api.UploadImage)
	mux.HandleFunc("/images/", api.ServeImage)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, api
}

func TestCreateSessionReturnsCodeAndHostToken(t *testing.T) {
	server, api := newAPIServer(t)

	body := bytes.NewBufferString(`{"questionSetId":"set-1"}`)
	resp, err := http.Post(server.URL+"/sessions", "application/json", body)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var created createSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Code == "" || created.HostToken == "" {
		t.Fatalf("expected code and host token, got %+v", created)
	}
	if _, ok := api.registry.Get(created.Code); !ok {
		t.Fatalf("expected session registered under %s", created.Code)
	}
}

func TestCreateSessionUnknownSet(t *testing.T) {
	server, _ := newAPIServer(t)

	resp, err := http.Post(server.URL+"/sessions", "application/json",
		strings.NewReader(`{"questionSetId":"missing"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	server, _ := newAPIServer(t)

	resp, err := http.Post(server.URL+"/sessions", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing set id, got %d", resp.StatusCode)
	}
}

func TestUploadImageReturnsOpaqueRef(t *testing.T) {
	server, _ := newAPIServer(t)

	resp, err := http.Post(server.URL+"/images", "image/png", bytes.NewReader([]byte{0x89, 'P', 'N', 'G'}))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var uploaded uploadImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if uploaded.ImageRef == "" {
		t.Fatalf("expected an image ref")
	}
}

func TestUploadedImageIsServedBack(t *testing.T) {
	server, _ := newAPIServer(t)

	data := []byte{0x89, 'P', 'N', 'G'}
	resp, err := http.Post(server.URL+"/images", "image/png", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	var uploaded uploadImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		t.Fatalf("decode: %v", err)
	}

	got, err := http.Get(server.URL + "/images/" + string(uploaded.ImageRef))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer got.Body.Close()
	if got.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", got.StatusCode)
	}
	if ct := got.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("expected image/png, got %s", ct)
	}
	served, err := io.ReadAll(got.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(served, data) {
		t.Fatalf("expected uploaded bytes back, got %v", served)
	}
}

func TestServeImageUnknownRef(t *testing.T) {
	server, _ := newAPIServer(t)

	resp, err := http.Get(server.URL + "/images/ghost")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestUploadImageRejectsEmptyBody(t *testing.T) {
	server, _ := newAPIServer(t)

	resp, err := http.Post(server.URL+"/images", "image/png", bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
