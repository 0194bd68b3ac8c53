package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/bioscope/internal/domain"
	domsess "github.com/kailas-cloud/bioscope/internal/domain/session"
	"github.com/kailas-cloud/bioscope/internal/logger"
	analyzeuc "github.com/kailas-cloud/bioscope/internal/usecase/analyze"
	"github.com/kailas-cloud/bioscope/internal/usecase/extract"
	healthuc "github.com/kailas-cloud/bioscope/internal/usecase/health"
	"github.com/kailas-cloud/bioscope/internal/version"
)

const (
	defaultMaxUploadBytes = 32 << 20
	multipartMemory       = 8 << 20
)

// Server holds the HTTP handlers of the BioScope API.
type Server struct {
	sessions       SessionService
	analyzer       Analyzer
	health         HealthChecker
	maxUploadBytes int64
	errorHandlers  []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(sessions SessionService, analyzer Analyzer, health HealthChecker) *Server {
	return &Server{
		sessions:       sessions,
		analyzer:       analyzer,
		health:         health,
		maxUploadBytes: defaultMaxUploadBytes,
		errorHandlers:  defaultErrorHandlers(),
	}
}

// WithMaxUploadBytes caps the size of multipart uploads.
func (s *Server) WithMaxUploadBytes(n int64) *Server {
	if n > 0 {
		s.maxUploadBytes = n
	}
	return s
}

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.sessions.Create(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", "/sessions/"+snap.ID)
	writeJSON(w, http.StatusCreated, sessionToResponse(snap))
}

// GetSession handles GET /sessions/{session}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request, session string) {
	snap, err := s.sessions.Get(r.Context(), session)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionToResponse(snap))
}

// DeleteSession handles DELETE /sessions/{session}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request, session string) {
	if err := s.sessions.Delete(r.Context(), session); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadDocuments handles POST /sessions/{session}/documents.
func (s *Server) UploadDocuments(w http.ResponseWriter, r *http.Request, session string) {
	if !s.parseMultipart(w, r) {
		return
	}

	var docs []extract.Document
	for _, fh := range r.MultipartForm.File["files"] {
		data, err := readPart(fh)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "failed to read "+fh.Filename)
			return
		}
		docs = append(docs, extract.Document{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	if len(docs) == 0 {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "at least one file is required in field \"files\"")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	report, err := s.sessions.Process(ctx, session, docs)
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	skipped := make([]SkippedPage, len(report.SkippedPages))
	for i, pe := range report.SkippedPages {
		skipped[i] = SkippedPage{Document: pe.Document, Page: pe.Page, Reason: pe.Err.Error()}
	}
	writeJSON(w, http.StatusOK, IngestResponse{
		Documents:    report.Documents,
		Pages:        report.Pages,
		SkippedPages: skipped,
		Chars:        report.Chars,
		Chunks:       report.Chunks,
		Model:        report.Model,
		Dimensions:   report.Dimensions,
		Sources:      nonNil(report.Sources),
	})
}

// AskQuestion handles POST /sessions/{session}/questions.
func (s *Server) AskQuestion(w http.ResponseWriter, r *http.Request, session string) {
	var req QuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	ans, err := s.sessions.Ask(ctx, session, req.Question)
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	sources := make([]SourceChunk, len(ans.Sources))
	for i, h := range ans.Sources {
		sources[i] = SourceChunk{Position: h.Position, Score: h.Score, Text: h.Text}
	}
	writeJSON(w, http.StatusOK, AnswerResponse{Answer: ans.Text, Sources: sources})
}

// GetTranscript handles GET /sessions/{session}/transcript.
func (s *Server) GetTranscript(w http.ResponseWriter, r *http.Request, session string) {
	turns, err := s.sessions.Transcript(r.Context(), session)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]TurnResponse, len(turns))
	for i, t := range turns {
		items[i] = TurnResponse{Role: string(t.Role), Content: t.Content, At: t.At}
	}
	writeJSON(w, http.StatusOK, TranscriptResponse{Turns: items})
}

// AnalyzeImage handles POST /analyze.
func (s *Server) AnalyzeImage(w http.ResponseWriter, r *http.Request) {
	if !s.parseMultipart(w, r) {
		return
	}

	files := r.MultipartForm.File["image"]
	if len(files) != 1 {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "exactly one file is required in field \"image\"")
		return
	}
	data, err := readPart(files[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "failed to read image")
		return
	}

	role, err := analyzeuc.ParseRole(r.FormValue("role"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.analyzer.Analyze(ctx, analyzeuc.Request{
		Image:  data,
		Prompt: r.FormValue("prompt"),
		Role:   role,
	})
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AnalyzeResponse{Analysis: res.Analysis, Role: string(res.Role), Prompt: res.Prompt})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Version: version.String(),
		Checks:  checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// parseMultipart bounds the body and parses the form. It writes the error response itself.
func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrorCodePayloadTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return false
		}
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid multipart body: "+err.Error())
		return false
	}
	return true
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// bindSessionID binds and validates the {session} path parameter.
func bindSessionID(w http.ResponseWriter, r *http.Request, raw string) (string, bool) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "session", raw, &id, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err == nil {
		_, err = uuid.Parse(id)
	}
	if err != nil {
		logger.FromContext(r.Context()).Debug("invalid session id", zap.String("session", raw), zap.Error(err))
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid format for parameter session")
		return "", false
	}
	return id, true
}

func setUsageHeaders(w http.ResponseWriter, usage *domain.RequestUsage) {
	if usage == nil {
		return
	}
	if usage.EmbeddingTokens > 0 {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.EmbeddingTokens))
	}
	if usage.GenerationTokens > 0 {
		w.Header().Set("X-Generation-Tokens", strconv.Itoa(usage.GenerationTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func sessionToResponse(snap domsess.Snapshot) SessionResponse {
	return SessionResponse{
		ID:         snap.ID,
		CreatedAt:  snap.CreatedAt.UTC(),
		LastActive: snap.LastActive.UTC(),
		State:      string(snap.State),
		Model:      snap.Model,
		Dimensions: snap.Dimensions,
		Chunks:     snap.Chunks,
		Sources:    nonNil(snap.Sources),
		Turns:      snap.Turns,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
