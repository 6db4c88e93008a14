package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/resumatch/internal/testutil"
	"github.com/xhad/resumatch/internal/types"
	"github.com/xhad/resumatch/pkg/llm"
	"github.com/xhad/resumatch/pkg/matcher"
	"github.com/xhad/resumatch/pkg/scraper"
	"github.com/xhad/resumatch/pkg/session"
	"github.com/xhad/resumatch/pkg/store"
)

const testResume = `# Jane Doe
Backend engineer based in Berlin

## Experience
Acme Corp: built payment services in Go

## Skills
Kubernetes, PostgreSQL, Terraform
`

type cannedGenerator struct {
	mu       sync.Mutex
	response string
	err      error
	prompts  []string
}

func (g *cannedGenerator) Generate(ctx context.Context, prompt string, structured bool) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	return g.response, g.err
}

type testEnv struct {
	srv     *httptest.Server
	gen     *cannedGenerator
	tempDir string
}

func newTestEnv(t *testing.T, bodyLimit int64) *testEnv {
	t.Helper()

	vs, err := store.NewDisk(filepath.Join(t.TempDir(), "vector_db"), llm.NewHashEmbedder(256))
	require.NoError(t, err)

	gen := &cannedGenerator{response: "**Match Score:** 78/100\n\n**Analysis:**\nGood overlap on Kubernetes."}
	tempDir := t.TempDir()

	svc, err := matcher.New(matcher.Config{NResults: 5, PreviewLength: 200, TempDir: tempDir}, matcher.Deps{
		Store:   vs,
		Critic:  llm.NewWithGenerator(llm.ChatConfig{}, gen),
		Fetcher: scraper.NewWithConfig(scraper.ScraperConfig{RateLimit: 100, AllowPrivate: true}),
	})
	require.NoError(t, err)

	s := New(Config{BodyLimit: bodyLimit}, svc, session.NewManager(0), nil)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, gen: gen, tempDir: tempDir}
}

func (e *testEnv) ingest(t *testing.T, filename, content, sessionID string) (*http.Response, []byte) {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	if sessionID != "" {
		require.NoError(t, mw.WriteField("session_id", sessionID))
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(e.srv.URL+"/ingest", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (e *testEnv) analyze(t *testing.T, payload any) (*http.Response, []byte) {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := http.Post(e.srv.URL+"/analyze", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decodeError(t *testing.T, data []byte) string {
	t.Helper()
	var e types.ErrorResponse
	require.NoError(t, json.Unmarshal(data, &e))
	return e.Detail
}

func TestRootAndHealth(t *testing.T) {
	env := newTestEnv(t, 0)

	resp, err := http.Get(env.srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	var msg types.MessageResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msg))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "AI Resume Matcher API is running", msg.Message)

	resp, err = http.Get(env.srv.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "OK", string(body))

	resp, err = http.Get(env.srv.URL + "/ui")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), "/ws")

	resp, err = http.Get(env.srv.URL + "/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestIngestThenAnalyze(t *testing.T) {
	env := newTestEnv(t, 0)

	resp, data := env.ingest(t, "jane.md", testResume, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var ingested types.IngestResponse
	require.NoError(t, json.Unmarshal(data, &ingested))
	assert.Equal(t, "jane.md", ingested.Filename)
	assert.Equal(t, 3, ingested.ChunksAdded)
	assert.Equal(t, "success", ingested.Status)
	require.NotEmpty(t, ingested.SessionID)

	resp, data = env.analyze(t, types.AnalyzeRequest{
		JobDescription: "Looking for Kubernetes and Terraform experience",
		SessionID:      ingested.SessionID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var analysis types.AnalyzeResponse
	require.NoError(t, json.Unmarshal(data, &analysis))
	assert.Equal(t, 78, analysis.MatchScore)
	assert.Equal(t, "ok", analysis.Status)
	assert.Empty(t, analysis.ErrorKind)
	assert.Contains(t, analysis.MatchAnalysis, "Match Score")
	assert.NotEmpty(t, analysis.ContextUsed)
	assert.LessOrEqual(t, len([]rune(analysis.ContextUsed)), 203)

	entries, err := os.ReadDir(env.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestIngestPDFThenAnalyze(t *testing.T) {
	env := newTestEnv(t, 0)

	resp, data := env.ingest(t, "jane.pdf", string(testutil.ResumePDF()), "pdf-session")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var ingested types.IngestResponse
	require.NoError(t, json.Unmarshal(data, &ingested))
	assert.GreaterOrEqual(t, ingested.ChunksAdded, 2)

	resp, data = env.analyze(t, types.AnalyzeRequest{
		JobDescription: "Platform engineer with Kubernetes and Terraform",
		SessionID:      "pdf-session",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var analysis types.AnalyzeResponse
	require.NoError(t, json.Unmarshal(data, &analysis))
	assert.GreaterOrEqual(t, analysis.MatchScore, 0)
	assert.LessOrEqual(t, analysis.MatchScore, 100)
	assert.NotEmpty(t, analysis.ContextUsed)
	assert.LessOrEqual(t, len([]rune(analysis.ContextUsed)), 203)

	entries, err := os.ReadDir(env.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestIngest_KeepsClientSessionID(t *testing.T) {
	env := newTestEnv(t, 0)

	resp, data := env.ingest(t, "jane.md", testResume, "client-42")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var ingested types.IngestResponse
	require.NoError(t, json.Unmarshal(data, &ingested))
	assert.Equal(t, "client-42", ingested.SessionID)
}

func TestIngest_Errors(t *testing.T) {
	env := newTestEnv(t, 0)

	tests := []struct {
		name      string
		filename  string
		content   string
		sessionID string
		status    int
	}{
		{"missing file", "", "", "", http.StatusBadRequest},
		{"unsupported format", "resume.odt", "x", "", http.StatusUnsupportedMediaType},
		{"corrupt pdf", "resume.pdf", "%PDF-1.4 nope", "", http.StatusBadRequest},
		{"empty text", "blank.txt", "   ", "", http.StatusBadRequest},
		{"invalid session id", "jane.md", testResume, "../../etc", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := env.ingest(t, tt.filename, tt.content, tt.sessionID)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.NotEmpty(t, decodeError(t, data))
		})
	}

	entries, err := os.ReadDir(env.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestIngest_DuplicateIsConflict(t *testing.T) {
	env := newTestEnv(t, 0)

	resp, _ := env.ingest(t, "jane.md", testResume, "dup-session")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data := env.ingest(t, "jane.md", testResume, "dup-session")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, decodeError(t, data), "already ingested")
}

func TestAnalyze_Errors(t *testing.T) {
	env := newTestEnv(t, 0)

	t.Run("unknown session", func(t *testing.T) {
		resp, data := env.analyze(t, types.AnalyzeRequest{JobDescription: "Go", SessionID: "nobody"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Contains(t, decodeError(t, data), "upload a resume first")
	})

	t.Run("missing job description", func(t *testing.T) {
		resp, data := env.analyze(t, map[string]string{"session_id": "abc"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, decodeError(t, data), "job_description is required")
	})

	t.Run("missing session id", func(t *testing.T) {
		resp, data := env.analyze(t, map[string]string{"job_description": "Go"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, decodeError(t, data), "session_id is required")
	})

	t.Run("blank job description", func(t *testing.T) {
		resp, _ := env.ingest(t, "jane.md", testResume, "blank-jd")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = env.analyze(t, types.AnalyzeRequest{JobDescription: "   ", SessionID: "blank-jd"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("malformed json", func(t *testing.T) {
		resp, err := http.Post(env.srv.URL+"/analyze", "application/json", strings.NewReader("{"))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAnalyze_BodyLimit(t *testing.T) {
	env := newTestEnv(t, 64)

	resp, _ := env.analyze(t, types.AnalyzeRequest{
		JobDescription: strings.Repeat("Go ", 100),
		SessionID:      "limit",
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestAnalyze_DegradedInference(t *testing.T) {
	env := newTestEnv(t, 0)
	env.gen.err = io.ErrUnexpectedEOF

	resp, _ := env.ingest(t, "jane.md", testResume, "degraded")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data := env.analyze(t, types.AnalyzeRequest{JobDescription: "Go", SessionID: "degraded"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var analysis types.AnalyzeResponse
	require.NoError(t, json.Unmarshal(data, &analysis))
	assert.Equal(t, "degraded", analysis.Status)
	assert.Equal(t, string(llm.FailureUpstream), analysis.ErrorKind)
	assert.True(t, strings.HasPrefix(analysis.MatchAnalysis, "Error: "))
	assert.Zero(t, analysis.MatchScore)
}

func TestAnalyze_JobURL(t *testing.T) {
	env := newTestEnv(t, 0)

	jobs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Platform Engineer</title></head>
			<body><article>Must know Terraform and Kubernetes.</article></body></html>`))
	}))
	defer jobs.Close()

	resp, _ := env.ingest(t, "jane.md", testResume, "with-url")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data := env.analyze(t, types.AnalyzeRequest{JobURL: jobs.URL + "/job/1", SessionID: "with-url"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	env.gen.mu.Lock()
	defer env.gen.mu.Unlock()
	require.NotEmpty(t, env.gen.prompts)
	assert.Contains(t, env.gen.prompts[len(env.gen.prompts)-1], "Must know Terraform and Kubernetes.")
}

func TestSessionsDoNotShareData(t *testing.T) {
	env := newTestEnv(t, 0)

	resp, _ := env.ingest(t, "jane.md", testResume, "alice")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.ingest(t, "bob.md", "## Projects\nRust embedded firmware for drones", "bob")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data := env.analyze(t, types.AnalyzeRequest{JobDescription: "Kubernetes", SessionID: "bob"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var analysis types.AnalyzeResponse
	require.NoError(t, json.Unmarshal(data, &analysis))
	assert.Equal(t, "Rust embedded firmware for drones", analysis.ContextUsed)
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusCode(matcher.ErrNoResume))
	assert.Equal(t, http.StatusConflict, statusCode(matcher.ErrAlreadyIngested))
	assert.Equal(t, http.StatusBadRequest, statusCode(session.ErrInvalidID))
	assert.Equal(t, http.StatusBadGateway, statusCode(matcher.ErrFetchFailed))
	assert.Equal(t, http.StatusInternalServerError, statusCode(io.EOF))
}
