package imageapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)
	assert.Equal(t, defaultAPIBind, u.Host)

	u, err = parseBaseURL("http://example.com:1234/path?x=1#frag")
	require.NoError(t, err)
	assert.Empty(t, u.Path)
	assert.Empty(t, u.RawQuery)
	assert.Empty(t, u.Fragment)
}

// stubServer is a minimal stand-in for api.py. status returns the payload for
// the n-th poll (starting at 1).
type stubServer struct {
	*httptest.Server
	jobID   string
	polls   atomic.Int32
	mu      sync.Mutex
	created []GenerationRequest
}

func newStubServer(t *testing.T, status func(poll int) JobStatus) *stubServer {
	t.Helper()
	s := &stubServer{jobID: uuid.NewString()}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/text_to_image":
			var req GenerationRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			s.mu.Lock()
			s.created = append(s.created, req)
			s.mu.Unlock()
			_ = json.NewEncoder(w).Encode(CreateJobResponse{JobID: s.jobID})
		case r.Method == http.MethodGet && r.URL.Path == "/jobs/"+s.jobID+"/":
			n := int(s.polls.Add(1))
			_ = json.NewEncoder(w).Encode(status(n))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *stubServer) requests() []GenerationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]GenerationRequest(nil), s.created...)
}

func newTestClient(t *testing.T, addr string, opts ...ClientOption) *Client {
	t.Helper()
	opts = append([]ClientOption{WithPollInterval(5 * time.Millisecond)}, opts...)
	c, err := NewClient(addr, opts...)
	require.NoError(t, err)
	return c
}

func TestClient_CreateJobSendsRequestAndReturnsID(t *testing.T) {
	t.Parallel()

	srv := newStubServer(t, func(int) JobStatus { return JobStatus{Finished: true} })
	c := newTestClient(t, srv.URL)

	id, err := c.CreateJob(context.Background(), GenerationRequest{Prompt: "a red circle", Images: 2, Steps: 200})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, srv.jobID, id)

	created := srv.requests()
	require.Len(t, created, 1)
	assert.Equal(t, GenerationRequest{Prompt: "a red circle", Images: 2, Steps: 200}, created[0])
}

func TestClient_CreateJobEncodesWireNames(t *testing.T) {
	t.Parallel()

	payloads := make(chan map[string]any, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		payloads <- payload
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.True(t, strings.HasPrefix(r.Header.Get("User-Agent"), "easel/"))
		_, _ = w.Write([]byte(`{"job_id":"abc"}`))
	}))
	t.Cleanup(server.Close)

	c := newTestClient(t, server.URL)
	_, err := c.CreateJob(context.Background(), GenerationRequest{Prompt: "p", Images: 1, Steps: 50})
	require.NoError(t, err)

	payload := <-payloads
	assert.Equal(t, "p", payload["prompt"])
	assert.Equal(t, float64(1), payload["n_images"])
	assert.Equal(t, float64(50), payload["n_inf_steps"])
	_, hasStream := payload["stream_freq"]
	assert.False(t, hasStream, "stream_freq should be omitted when zero")
}

func TestClient_CreateJobRejectsEmptyJobID(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"job_id":"  "}`))
	}))
	t.Cleanup(server.Close)

	c := newTestClient(t, server.URL)
	_, err := c.CreateJob(context.Background(), GenerationRequest{Prompt: "p", Images: 1, Steps: 50})
	require.ErrorIs(t, err, ErrRequestFailed)
}

func TestClient_ValidatesBeforeSending(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	t.Cleanup(server.Close)
	c := newTestClient(t, server.URL)

	cases := []GenerationRequest{
		{Prompt: "  ", Images: 1, Steps: 50},
		{Prompt: "p", Images: 0, Steps: 50},
		{Prompt: "p", Images: 1, Steps: 0},
		{Prompt: "p", Images: 1, Steps: 50, StreamFreq: -1},
	}
	for _, req := range cases {
		_, err := c.Generate(context.Background(), req)
		assert.ErrorIs(t, err, ErrInvalidRequest, "request %#v", req)
	}
	assert.Zero(t, hits.Load())
}

func TestGenerate_EndToEndSingleImage(t *testing.T) {
	t.Parallel()

	png := encodePNG(t, 4, 3)
	srv := newStubServer(t, func(int) JobStatus {
		return JobStatus{Finished: true, Response: []Frame{{Step: 50, Total: 50, Img: png}}}
	})
	c := newTestClient(t, srv.URL)

	images, err := c.Generate(context.Background(), GenerationRequest{Prompt: "a red circle", Images: 1, Steps: 50})
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, 4, images[0].Bounds().Dx())
	assert.Equal(t, 3, images[0].Bounds().Dy())
	assert.EqualValues(t, 1, srv.polls.Load())
}

func TestGenerate_StopsPollingOnFirstFinished(t *testing.T) {
	t.Parallel()

	png := encodePNG(t, 2, 2)
	srv := newStubServer(t, func(n int) JobStatus {
		if n >= 3 {
			return JobStatus{Finished: true, Response: []Frame{{Step: 10, Total: 10, Img: png}, {Step: 10, Total: 10, Img: png}}}
		}
		return JobStatus{Response: []Frame{{Step: n * 3, Total: 10}}}
	})
	c := newTestClient(t, srv.URL)

	var jobSeen string
	images, err := c.Generate(context.Background(),
		GenerationRequest{Prompt: "p", Images: 2, Steps: 10},
		WithJobStarted(func(id string) { jobSeen = id }),
	)
	require.NoError(t, err)
	assert.Len(t, images, 2)
	assert.Equal(t, srv.jobID, jobSeen)

	time.Sleep(30 * time.Millisecond)
	assert.EqualValues(t, 3, srv.polls.Load(), "no polls after finished")
}

func TestGenerate_ProgressIsMonotonicAndBounded(t *testing.T) {
	t.Parallel()

	steps := []int{10, 0, 30, 20, 40, 120}
	srv := newStubServer(t, func(n int) JobStatus {
		if n > len(steps) {
			return JobStatus{Finished: true}
		}
		if n == 2 {
			// a poll without progress information is skipped silently
			return JobStatus{Response: []Frame{}}
		}
		return JobStatus{Response: []Frame{{Step: steps[n-1], Total: 100}}}
	})
	c := newTestClient(t, srv.URL)

	var seen []Progress
	_, err := c.Generate(context.Background(),
		GenerationRequest{Prompt: "p", Images: 1, Steps: 100},
		WithProgress(func(p Progress) { seen = append(seen, p) }),
	)
	require.NoError(t, err)

	got := make([]int, 0, len(seen))
	for i, p := range seen {
		assert.LessOrEqual(t, p.Step, p.Total)
		assert.Equal(t, srv.jobID, p.JobID)
		if i > 0 {
			assert.GreaterOrEqual(t, p.Step, seen[i-1].Step)
		}
		got = append(got, p.Step)
	}
	assert.Equal(t, []int{10, 30, 40, 100}, got)
}

func TestGenerate_CorruptPayloadFailsWithDecodeError(t *testing.T) {
	t.Parallel()

	png := encodePNG(t, 2, 2)
	srv := newStubServer(t, func(int) JobStatus {
		return JobStatus{Finished: true, Response: []Frame{{Img: png}, {Img: "bm90IGFuIGltYWdl"}}}
	})
	c := newTestClient(t, srv.URL)

	images, err := c.Generate(context.Background(), GenerationRequest{Prompt: "p", Images: 2, Steps: 10})
	require.ErrorIs(t, err, ErrDecode)
	assert.Nil(t, images)

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, 1, decodeErr.Index)
}

func TestGenerate_ConnectivityIsDistinctFromRequestFailure(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closedAddr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c := newTestClient(t, closedAddr)
	_, err = c.Generate(context.Background(), GenerationRequest{Prompt: "p", Images: 1, Steps: 50})
	require.ErrorIs(t, err, ErrConnectivity)
	assert.NotErrorIs(t, err, ErrRequestFailed)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	c = newTestClient(t, server.URL)
	_, err = c.Generate(context.Background(), GenerationRequest{Prompt: "p", Images: 1, Steps: 50})
	require.ErrorIs(t, err, ErrRequestFailed)
	assert.NotErrorIs(t, err, ErrConnectivity)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusInternalServerError, reqErr.Status)
	assert.Contains(t, err.Error(), "returned status 500")
}

func TestGenerate_JobTimeout(t *testing.T) {
	t.Parallel()

	srv := newStubServer(t, func(n int) JobStatus {
		return JobStatus{Response: []Frame{{Step: 1, Total: 100}}}
	})
	c := newTestClient(t, srv.URL, WithJobTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := c.Generate(context.Background(), GenerationRequest{Prompt: "p", Images: 1, Steps: 100})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrConnectivity)
	assert.Contains(t, err.Error(), "did not finish within")
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGenerate_StalledPollIsRetriedNotTimedOut(t *testing.T) {
	t.Parallel()

	png := encodePNG(t, 2, 2)
	srv := newStubServer(t, func(n int) JobStatus {
		if n == 1 {
			// Longer than the per-request timeout below.
			time.Sleep(300 * time.Millisecond)
			return JobStatus{}
		}
		return JobStatus{Finished: true, Response: []Frame{{Step: 10, Total: 10, Img: png}}}
	})
	c := newTestClient(t, srv.URL,
		WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}),
		WithJobTimeout(10*time.Minute),
	)

	images, err := c.Generate(context.Background(), GenerationRequest{Prompt: "p", Images: 1, Steps: 10})
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.GreaterOrEqual(t, srv.polls.Load(), int32(2))
}

func TestGenerate_StalledServerHitsJobDeadlineNotRequestTimeout(t *testing.T) {
	t.Parallel()

	srv := newStubServer(t, func(int) JobStatus {
		time.Sleep(200 * time.Millisecond)
		return JobStatus{}
	})
	c := newTestClient(t, srv.URL,
		WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}),
		WithJobTimeout(400*time.Millisecond),
	)

	start := time.Now()
	_, err := c.Generate(context.Background(), GenerationRequest{Prompt: "p", Images: 1, Steps: 10})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "did not finish within 400ms")
	assert.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond)
}

func TestTransportError_RequestTimeoutIsConnectivity(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL, WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}))
	ctx := context.Background()
	_, err := c.FetchJob(ctx, "abc")
	require.ErrorIs(t, err, ErrConnectivity)
	assert.True(t, isRequestTimeout(ctx, err))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.False(t, isRequestTimeout(cancelled, err))
}

func TestGenerate_CancelledContext(t *testing.T) {
	t.Parallel()

	srv := newStubServer(t, func(int) JobStatus { return JobStatus{} })
	c := newTestClient(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for srv.polls.Load() < 2 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	_, err := c.Generate(ctx, GenerationRequest{Prompt: "p", Images: 1, Steps: 100})
	require.ErrorIs(t, err, context.Canceled)
}

func TestClient_FetchJobErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/jobs/bad/":
			_, _ = w.Write([]byte("{not-json"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	c := newTestClient(t, server.URL)

	_, err := c.FetchJob(context.Background(), "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")

	_, err = c.FetchJob(context.Background(), "missing")
	require.ErrorIs(t, err, ErrRequestFailed)

	_, err = c.FetchJob(context.Background(), " ")
	require.Error(t, err)

	_, err = c.FetchJob(context.Background(), "a/b")
	require.Error(t, err)
}

func TestClient_Alive(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(server.Close)

	c := newTestClient(t, server.URL)
	assert.True(t, c.Alive(context.Background()))

	server.Close()
	assert.False(t, c.Alive(context.Background()))
}
