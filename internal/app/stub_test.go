package app

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/five82/easel/internal/imageapi"
)

// genServer imitates api.py for whole batches: every job reports one
// progress frame, then finishes with a small PNG.
type genServer struct {
	*httptest.Server

	mu       sync.Mutex
	prompts  []string
	requests []imageapi.GenerationRequest
	polls    map[string]int
	failJob  int  // 1-based job that answers 500 on create; 0 never
	noImages bool // finished jobs carry an empty response
}

func newGenServer(t *testing.T) *genServer {
	t.Helper()
	s := &genServer{polls: map[string]int{}}
	payload := encodedPNG(t)
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/text_to_image":
			var req imageapi.GenerationRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			s.prompts = append(s.prompts, req.Prompt)
			s.requests = append(s.requests, req)
			if s.failJob == len(s.prompts) {
				http.Error(w, "CUDA out of memory", http.StatusInternalServerError)
				return
			}
			id := uuid.NewString()
			s.polls[id] = 0
			_ = json.NewEncoder(w).Encode(imageapi.CreateJobResponse{JobID: id})
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/jobs/"):
			id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/jobs/"), "/")
			n, ok := s.polls[id]
			if !ok {
				http.NotFound(w, r)
				return
			}
			s.polls[id] = n + 1
			if n == 0 {
				_ = json.NewEncoder(w).Encode(imageapi.JobStatus{
					Response: []imageapi.Frame{{Step: 50, Total: 100}},
				})
				return
			}
			status := imageapi.JobStatus{Finished: true}
			if !s.noImages {
				status.Response = []imageapi.Frame{{Step: 100, Total: 100, Img: payload}}
			}
			_ = json.NewEncoder(w).Encode(status)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *genServer) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

func (s *genServer) Requests() []imageapi.GenerationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]imageapi.GenerationRequest(nil), s.requests...)
}

// Bind returns host:port, the form config files use.
func (s *genServer) Bind() string {
	return strings.TrimPrefix(s.URL, "http://")
}

func encodedPNG(t *testing.T) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 6))
	img.Set(2, 3, color.NRGBA{R: 200, G: 10, B: 10, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}
