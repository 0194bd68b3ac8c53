// Package session orchestrates the per-session RAG workflow: document
// ingestion, question answering and the chat transcript.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bioscope/internal/domain"
	"github.com/kailas-cloud/bioscope/internal/domain/index"
	domsess "github.com/kailas-cloud/bioscope/internal/domain/session"
	"github.com/kailas-cloud/bioscope/internal/domain/transcript"
	"github.com/kailas-cloud/bioscope/internal/logger"
	"github.com/kailas-cloud/bioscope/internal/metrics"
	"github.com/kailas-cloud/bioscope/internal/usecase/extract"
)

// DefaultIdleTTL is how long an untouched session survives.
const DefaultIdleTTL = time.Hour

// IngestReport summarizes a successful Process call.
type IngestReport struct {
	Documents    int
	Pages        int
	SkippedPages []domain.PageError
	Chars        int
	Chunks       int
	Model        string
	Dimensions   int
	Sources      []string
}

// Answer is the reply to a question together with the chunks it was built from.
type Answer struct {
	Text    string
	Sources []index.Hit
}

// Service owns the session registry and runs actions against it.
type Service struct {
	registry  *Registry
	extractor Extractor
	chunker   Chunker
	builder   IndexBuilder
	retriever Retriever
	synth     Synthesizer

	idleTTL time.Duration
	now     func() time.Time
}

// New creates an orchestrator with an unlimited registry and DefaultIdleTTL.
func New(extractor Extractor, chunker Chunker, builder IndexBuilder, retriever Retriever, synth Synthesizer) *Service {
	return &Service{
		registry:  NewRegistry(0),
		extractor: extractor,
		chunker:   chunker,
		builder:   builder,
		retriever: retriever,
		synth:     synth,
		idleTTL:   DefaultIdleTTL,
		now:       time.Now,
	}
}

// WithLimits caps the number of sessions and sets the idle TTL.
func (s *Service) WithLimits(maxSessions int, idleTTL time.Duration) *Service {
	s.registry = NewRegistry(maxSessions)
	if idleTTL > 0 {
		s.idleTTL = idleTTL
	}
	return s
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create starts an empty session. A full registry is swept for idle sessions once
// before failing with domain.ErrTooManySessions.
func (s *Service) Create(ctx context.Context) (domsess.Snapshot, error) {
	sess := domsess.New(s.now())

	err := s.registry.Add(sess)
	if errors.Is(err, domain.ErrTooManySessions) && s.EvictIdle(ctx) > 0 {
		err = s.registry.Add(sess)
	}
	if err != nil {
		return domsess.Snapshot{}, fmt.Errorf("create session: %w", err)
	}
	metrics.ActiveSessions.Set(float64(s.registry.Len()))

	logger.FromContext(ctx).Info("session created", zap.String("session", sess.ID()))

	sess.Lock()
	defer sess.Unlock()
	return sess.Snapshot(), nil
}

// Get returns the current state of a session.
func (s *Service) Get(_ context.Context, id string) (domsess.Snapshot, error) {
	sess, err := s.acquire(id)
	if err != nil {
		return domsess.Snapshot{}, err
	}
	defer s.release(sess)
	return sess.Snapshot(), nil
}

// Delete drops a session and everything it holds. It waits for an action
// already running on the session to finish.
func (s *Service) Delete(ctx context.Context, id string) error {
	sess, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	sess.Lock()
	if sess.Closed() {
		sess.Unlock()
		return domain.ErrSessionNotFound
	}
	s.registry.Remove(id)
	sess.Close()
	sess.Unlock()

	metrics.ActiveSessions.Set(float64(s.registry.Len()))
	logger.FromContext(ctx).Info("session deleted", zap.String("session", id))
	return nil
}

// Transcript returns the session's turns in order.
func (s *Service) Transcript(_ context.Context, id string) ([]transcript.Turn, error) {
	sess, err := s.acquire(id)
	if err != nil {
		return nil, err
	}
	defer s.release(sess)
	return sess.Turns(), nil
}

// Process extracts, chunks and indexes docs, then publishes the new index.
// On any failure the session keeps its previous index.
func (s *Service) Process(ctx context.Context, id string, docs []extract.Document) (IngestReport, error) {
	sess, err := s.acquire(id)
	if err != nil {
		return IngestReport{}, err
	}
	defer s.release(sess)
	ctx = logger.With(ctx, zap.String("session", id))

	start := time.Now()
	report, err := s.ingest(ctx, sess, docs)
	if err != nil {
		metrics.IngestionsTotal.WithLabelValues("error").Inc()
		return IngestReport{}, err
	}
	metrics.IngestionsTotal.WithLabelValues("ok").Inc()
	metrics.IngestionDuration.Observe(time.Since(start).Seconds())
	metrics.IngestedChunks.Observe(float64(report.Chunks))
	metrics.SkippedPagesTotal.Add(float64(len(report.SkippedPages)))

	logger.FromContext(ctx).Info("documents indexed",
		zap.Int("documents", report.Documents),
		zap.Int("pages", report.Pages),
		zap.Int("skipped_pages", len(report.SkippedPages)),
		zap.Int("chunks", report.Chunks),
		zap.String("model", report.Model),
	)
	return report, nil
}

func (s *Service) ingest(ctx context.Context, sess *domsess.Session, docs []extract.Document) (IngestReport, error) {
	ext, err := s.extractor.Extract(ctx, docs)
	if err != nil {
		return IngestReport{}, fmt.Errorf("extract: %w", err)
	}

	chunks := s.chunker.Split(ext.Text)

	idx, err := s.builder.Build(ctx, chunks)
	if err != nil {
		return IngestReport{}, fmt.Errorf("build index: %w", err)
	}

	sources := sourceNames(docs, ext.SkippedPages)
	sess.Publish(idx, sources)

	return IngestReport{
		Documents:    ext.Documents,
		Pages:        ext.Pages,
		SkippedPages: ext.SkippedPages,
		Chars:        utf8.RuneCountInString(ext.Text),
		Chunks:       idx.Len(),
		Model:        idx.Model(),
		Dimensions:   idx.Dimensions(),
		Sources:      sources,
	}, nil
}

// sourceNames lists the uploaded documents that were opened.
func sourceNames(docs []extract.Document, skipped []domain.PageError) []string {
	unopened := make(map[string]bool)
	for _, pe := range skipped {
		if pe.Page == 0 {
			unopened[pe.Document] = true
		}
	}
	names := make([]string, 0, len(docs))
	for _, d := range docs {
		if !unopened[d.Name] {
			names = append(names, d.Name)
		}
	}
	return names
}

// Ask answers a question against the session's current index and records the
// exchange. Nothing is recorded when retrieval or generation fails.
func (s *Service) Ask(ctx context.Context, id, question string) (Answer, error) {
	sess, err := s.acquire(id)
	if err != nil {
		return Answer{}, err
	}
	defer s.release(sess)
	ctx = logger.With(ctx, zap.String("session", id))

	ans, err := s.ask(ctx, sess, question)
	switch {
	case errors.Is(err, domain.ErrNoIndex):
		metrics.QuestionsTotal.WithLabelValues("no_index").Inc()
		return Answer{}, err
	case err != nil:
		metrics.QuestionsTotal.WithLabelValues("error").Inc()
		return Answer{}, err
	}
	metrics.QuestionsTotal.WithLabelValues("ok").Inc()
	return ans, nil
}

func (s *Service) ask(ctx context.Context, sess *domsess.Session, question string) (Answer, error) {
	hits, err := s.retriever.Retrieve(ctx, sess.Index(), question)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieve: %w", err)
	}

	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}

	text, err := s.synth.Answer(ctx, question, texts)
	if err != nil {
		return Answer{}, fmt.Errorf("answer: %w", err)
	}

	if err := sess.AppendExchange(question, text, s.now()); err != nil {
		return Answer{}, fmt.Errorf("record exchange: %w", err)
	}
	return Answer{Text: text, Sources: hits}, nil
}

// EvictIdle removes sessions idle longer than the TTL and returns how many went.
func (s *Service) EvictIdle(ctx context.Context) int {
	removed := s.registry.RemoveIdle(s.now(), s.idleTTL)
	if len(removed) == 0 {
		return 0
	}
	metrics.EvictedSessionsTotal.Add(float64(len(removed)))
	metrics.ActiveSessions.Set(float64(s.registry.Len()))
	logger.FromContext(ctx).Info("idle sessions evicted", zap.Strings("sessions", removed))
	return len(removed)
}

// Run evicts idle sessions every interval until ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.EvictIdle(ctx)
		}
	}
}

// acquire looks up a session, locks it and marks it active. A session closed
// while the caller waited for the lock is reported as not found.
func (s *Service) acquire(id string) (*domsess.Session, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	sess.Lock()
	if sess.Closed() {
		sess.Unlock()
		return nil, domain.ErrSessionNotFound
	}
	sess.Touch(s.now())
	return sess, nil
}

// release marks the session active again and unlocks it.
func (s *Service) release(sess *domsess.Session) {
	sess.Touch(s.now())
	sess.Unlock()
}
