package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/bioscope/internal/domain"
	"github.com/kailas-cloud/bioscope/internal/domain/index"
	domsess "github.com/kailas-cloud/bioscope/internal/domain/session"
	"github.com/kailas-cloud/bioscope/internal/domain/transcript"
	analyzeuc "github.com/kailas-cloud/bioscope/internal/usecase/analyze"
	"github.com/kailas-cloud/bioscope/internal/usecase/extract"
	healthuc "github.com/kailas-cloud/bioscope/internal/usecase/health"
	sessionuc "github.com/kailas-cloud/bioscope/internal/usecase/session"
)

const sessionID = "0b6f7a3e-4f5c-4d8e-9a1b-2c3d4e5f6a7b"

// --- mocks ---

type mockSessions struct {
	snap    domsess.Snapshot
	report  sessionuc.IngestReport
	answer  sessionuc.Answer
	turns   []transcript.Turn
	err     error
	gotDocs []extract.Document
	gotQ    string
	gotID   string
}

func (m *mockSessions) Create(_ context.Context) (domsess.Snapshot, error) { return m.snap, m.err }

func (m *mockSessions) Get(_ context.Context, id string) (domsess.Snapshot, error) {
	m.gotID = id
	return m.snap, m.err
}

func (m *mockSessions) Delete(_ context.Context, id string) error {
	m.gotID = id
	return m.err
}

func (m *mockSessions) Transcript(_ context.Context, _ string) ([]transcript.Turn, error) {
	return m.turns, m.err
}

func (m *mockSessions) Process(ctx context.Context, _ string, docs []extract.Document) (sessionuc.IngestReport, error) {
	m.gotDocs = docs
	domain.UsageFromContext(ctx).AddEmbeddingTokens(120)
	return m.report, m.err
}

func (m *mockSessions) Ask(ctx context.Context, _ string, q string) (sessionuc.Answer, error) {
	m.gotQ = q
	domain.UsageFromContext(ctx).AddEmbeddingTokens(5)
	domain.UsageFromContext(ctx).AddGenerationTokens(80)
	return m.answer, m.err
}

type mockAnalyzer struct {
	result analyzeuc.Result
	err    error
	got    analyzeuc.Request
}

func (m *mockAnalyzer) Analyze(_ context.Context, req analyzeuc.Request) (analyzeuc.Result, error) {
	m.got = req
	return m.result, m.err
}

type mockHealth struct{ report healthuc.Report }

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

// --- helpers ---

func newTestRouter(sessions *mockSessions, analyzer *mockAnalyzer) http.Handler {
	health := &mockHealth{report: healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{"embedding": healthuc.CheckOK}}}
	srv := NewServer(sessions, analyzer, health).WithMaxUploadBytes(1 << 20)
	return Handler(srv, chi.NewRouter())
}

type filePart struct {
	field, name, contentType string
	data                     []byte
}

func multipartBody(t *testing.T, files []filePart, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		h := make(map[string][]string)
		h["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.name)}
		if f.contentType != "" {
			h["Content-Type"] = []string{f.contentType}
		}
		pw, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart: %v", err)
		}
		_, _ = pw.Write(f.data)
	}
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp
}

// --- tests ---

func TestCreateSession(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	sessions := &mockSessions{snap: domsess.Snapshot{ID: sessionID, CreatedAt: created, State: domsess.StateNoIndex}}
	h := newTestRouter(sessions, &mockAnalyzer{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/sessions", http.NoBody))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Location") != "/sessions/"+sessionID {
		t.Errorf("Location = %q", rr.Header().Get("Location"))
	}
	var resp SessionResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != sessionID || resp.State != "no_index" || !resp.CreatedAt.Equal(created) {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Sources == nil {
		t.Error("sources should encode as an empty list")
	}
}

func TestGetSession(t *testing.T) {
	sessions := &mockSessions{snap: domsess.Snapshot{
		ID: sessionID, State: domsess.StateIndexReady, Model: "text-embedding-004",
		Dimensions: 768, Chunks: 3, Sources: []string{"cells.pdf"}, Turns: 2,
	}}
	h := newTestRouter(sessions, &mockAnalyzer{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/sessions/"+sessionID, http.NoBody))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if sessions.gotID != sessionID {
		t.Errorf("service got id %q", sessions.gotID)
	}
	var resp SessionResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.State != "index_ready" || resp.Chunks != 3 || resp.Dimensions != 768 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestSessionRoutes_InvalidID(t *testing.T) {
	h := newTestRouter(&mockSessions{}, &mockAnalyzer{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/sessions/not-a-uuid/transcript", http.NoBody))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != ErrorCodeBadRequest {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestDeleteSession(t *testing.T) {
	h := newTestRouter(&mockSessions{}, &mockAnalyzer{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/sessions/"+sessionID, http.NoBody))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
}

func TestUploadDocuments(t *testing.T) {
	sessions := &mockSessions{report: sessionuc.IngestReport{
		Documents: 2, Pages: 5, Chars: 25000, Chunks: 3, Model: "text-embedding-004", Dimensions: 768,
		SkippedPages: []domain.PageError{{Document: "b.pdf", Page: 4, Err: errors.New("bad content stream")}},
		Sources:      []string{"a.pdf", "b.pdf"},
	}}
	h := newTestRouter(sessions, &mockAnalyzer{})

	body, ct := multipartBody(t, []filePart{
		{field: "files", name: "a.pdf", contentType: "application/pdf", data: []byte("%PDF-1.4 a")},
		{field: "files", name: "b.pdf", data: []byte("%PDF-1.4 b")},
	}, nil)
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sessionID+"/documents", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(sessions.gotDocs) != 2 || sessions.gotDocs[0].Name != "a.pdf" || sessions.gotDocs[1].Name != "b.pdf" {
		t.Fatalf("documents not passed in upload order: %+v", sessions.gotDocs)
	}
	if sessions.gotDocs[0].ContentType != "application/pdf" || string(sessions.gotDocs[1].Data) != "%PDF-1.4 b" {
		t.Errorf("unexpected document content %+v", sessions.gotDocs)
	}
	if rr.Header().Get("X-Embedding-Tokens") != "120" {
		t.Errorf("X-Embedding-Tokens = %q", rr.Header().Get("X-Embedding-Tokens"))
	}

	var resp IngestResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Chunks != 3 || len(resp.SkippedPages) != 1 || resp.SkippedPages[0].Page != 4 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestUploadDocuments_NoFiles(t *testing.T) {
	h := newTestRouter(&mockSessions{}, &mockAnalyzer{})

	body, ct := multipartBody(t, nil, map[string]string{"note": "x"})
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sessionID+"/documents", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestUploadDocuments_TooLarge(t *testing.T) {
	h := newTestRouter(&mockSessions{}, &mockAnalyzer{})

	body, ct := multipartBody(t, []filePart{
		{field: "files", name: "big.pdf", data: bytes.Repeat([]byte("x"), 2<<20)},
	}, nil)
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sessionID+"/documents", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != ErrorCodePayloadTooLarge {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestUploadDocuments_AbortedExtraction(t *testing.T) {
	pageErr := &domain.PageError{Document: "cells.pdf", Page: 7, Err: errors.New("broken font")}
	sessions := &mockSessions{err: fmt.Errorf("extract: %w: %w", domain.ErrExtractionFailed, pageErr)}
	h := newTestRouter(sessions, &mockAnalyzer{})

	body, ct := multipartBody(t, []filePart{{field: "files", name: "cells.pdf", data: []byte("%PDF-")}}, nil)
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sessionID+"/documents", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	var resp map[string]any
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp["code"] != string(ErrorCodeExtractionFailed) || resp["document"] != "cells.pdf" || resp["page"] != float64(7) {
		t.Errorf("unexpected body %v", resp)
	}
}

func TestAskQuestion(t *testing.T) {
	sessions := &mockSessions{answer: sessionuc.Answer{
		Text:    "In the chloroplasts.",
		Sources: []index.Hit{{Position: 2, Score: 0.91, Text: "chloroplasts capture light"}},
	}}
	h := newTestRouter(sessions, &mockAnalyzer{})

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sessionID+"/questions",
		strings.NewReader(`{"question":"Where does photosynthesis happen?"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if sessions.gotQ != "Where does photosynthesis happen?" {
		t.Errorf("question = %q", sessions.gotQ)
	}
	if rr.Header().Get("X-Generation-Tokens") != "80" || rr.Header().Get("X-Embedding-Tokens") != "5" {
		t.Errorf("usage headers missing: %v", rr.Header())
	}
	var resp AnswerResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Answer != "In the chloroplasts." || len(resp.Sources) != 1 || resp.Sources[0].Position != 2 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestAskQuestion_InvalidBody(t *testing.T) {
	h := newTestRouter(&mockSessions{}, &mockAnalyzer{})

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sessionID+"/questions", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestGetTranscript(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 5, 0, 0, time.UTC)
	sessions := &mockSessions{turns: []transcript.Turn{
		{Role: transcript.RoleUser, Content: "q", At: at},
		{Role: transcript.RoleAssistant, Content: "a", At: at},
	}}
	h := newTestRouter(sessions, &mockAnalyzer{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/sessions/"+sessionID+"/transcript", http.NoBody))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp TranscriptResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if len(resp.Turns) != 2 || resp.Turns[0].Role != "user" || resp.Turns[1].Content != "a" {
		t.Errorf("unexpected transcript %+v", resp)
	}
}

func TestAnalyzeImage(t *testing.T) {
	analyzer := &mockAnalyzer{result: analyzeuc.Result{Analysis: "Correct mitosis stage.", Role: analyzeuc.RoleTeacher, Prompt: "p"}}
	h := newTestRouter(&mockSessions{}, analyzer)

	body, ct := multipartBody(t,
		[]filePart{{field: "image", name: "slide.png", contentType: "image/png", data: []byte("png-bytes")}},
		map[string]string{"role": "teacher", "prompt": "Which stage is this?"},
	)
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if analyzer.got.Role != analyzeuc.RoleTeacher || analyzer.got.Prompt != "Which stage is this?" {
		t.Errorf("unexpected request %+v", analyzer.got)
	}
	if string(analyzer.got.Image) != "png-bytes" {
		t.Errorf("image bytes not forwarded")
	}
	var resp AnalyzeResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Analysis != "Correct mitosis stage." || resp.Role != "teacher" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestAnalyzeImage_Errors(t *testing.T) {
	tests := []struct {
		name     string
		files    []filePart
		fields   map[string]string
		err      error
		wantCode int
	}{
		{
			name:     "missing image",
			fields:   map[string]string{"role": "student"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown role",
			files:    []filePart{{field: "image", name: "a.png", data: []byte("x")}},
			fields:   map[string]string{"role": "principal"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "undecodable image",
			files:    []filePart{{field: "image", name: "a.gif", data: []byte("GIF89a")}},
			err:      fmt.Errorf("%w: unknown format", domain.ErrInvalidImage),
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestRouter(&mockSessions{}, &mockAnalyzer{err: tc.err})
			body, ct := multipartBody(t, tc.files, tc.fields)
			req := httptest.NewRequest(http.MethodPost, "/analyze", body)
			req.Header.Set("Content-Type", ct)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d: %s", tc.wantCode, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   ErrorCode
	}{
		{"session not found", domain.ErrSessionNotFound, http.StatusNotFound, ErrorCodeSessionNotFound},
		{"no index", fmt.Errorf("retrieve: %w", domain.ErrNoIndex), http.StatusConflict, ErrorCodeIndexNotReady},
		{"model mismatch", domain.ErrEmbeddingModelMismatch, http.StatusConflict, ErrorCodeModelMismatch},
		{"empty question", domain.ErrEmptyQuestion, http.StatusBadRequest, ErrorCodeValidationFailed},
		{"no text", domain.ErrNoExtractableText, http.StatusUnprocessableEntity, ErrorCodeNoExtractableText},
		{"unsupported", domain.ErrUnsupportedDocument, http.StatusUnsupportedMediaType, ErrorCodeUnsupportedDocument},
		{"missing key", domain.ErrMissingCredential, http.StatusServiceUnavailable, ErrorCodeCredentialMissing},
		{
			"rejected key",
			fmt.Errorf("%w: %w", domain.ErrCredentialRejected, domain.ErrGenerationProviderError),
			http.StatusBadGateway, ErrorCodeCredentialRejected,
		},
		{"embedding provider", domain.ErrEmbeddingProviderError, http.StatusBadGateway, ErrorCodeEmbeddingProviderError},
		{"generation provider", domain.ErrGenerationProviderError, http.StatusBadGateway, ErrorCodeGenerationProviderErr},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, ErrorCodeTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ErrorCodeInternalError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestRouter(&mockSessions{err: tc.err}, &mockAnalyzer{})

			req := httptest.NewRequest(http.MethodPost, "/sessions/"+sessionID+"/questions",
				strings.NewReader(`{"question":"q"}`))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, rr.Code)
			}
			resp := decodeError(t, rr)
			if resp.Code != tc.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tc.wantCode)
			}
			if tc.wantCode == ErrorCodeInternalError && resp.Message != "internal error" {
				t.Errorf("internal details leaked: %q", resp.Message)
			}
		})
	}
}

func TestHealthCheck(t *testing.T) {
	h := newTestRouter(&mockSessions{}, &mockAnalyzer{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp HealthResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Status != "ok" || resp.Checks["embedding"] != "ok" || resp.Version == "" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHealthCheck_Degraded(t *testing.T) {
	health := &mockHealth{report: healthuc.Report{
		Status: healthuc.Degraded,
		Checks: map[string]healthuc.CheckResult{"generation": healthuc.CheckError},
	}}
	h := Handler(NewServer(&mockSessions{}, &mockAnalyzer{}, health), chi.NewRouter())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
