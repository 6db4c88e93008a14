package matcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tmc/langchaingo/schema"
	"github.com/xhad/resumatch/internal/models"
	"github.com/xhad/resumatch/pkg/llm"
	"github.com/xhad/resumatch/pkg/logger"
	"github.com/xhad/resumatch/pkg/parser"
	"github.com/xhad/resumatch/pkg/processor"
	"github.com/xhad/resumatch/pkg/scraper"
	"github.com/xhad/resumatch/pkg/session"
	"github.com/xhad/resumatch/pkg/store"
	"go.uber.org/zap"
)

// Critic scores retrieved resume context against a job description.
type Critic interface {
	Critique(ctx context.Context, resumeContext, jobDescription string) llm.Critique
}

// JobFetcher turns a job posting URL into text.
type JobFetcher interface {
	Fetch(ctx context.Context, url string) (*models.JobPosting, error)
}

type Config struct {
	NResults      int
	PreviewLength int
	// TempDir holds uploads while they are parsed. Empty uses os.TempDir.
	TempDir string
}

// Deps are the collaborators of a Service. Store and Critic are required.
type Deps struct {
	Parser    *parser.Parser
	Processor *processor.Processor
	Store     store.VectorStore
	Critic    Critic
	Fetcher   JobFetcher
	Logger    *zap.Logger
}

// Service runs the ingest and analyze pipeline for every surface. Session
// state is passed in explicitly on each call.
type Service struct {
	config    Config
	parser    *parser.Parser
	processor *processor.Processor
	store     store.VectorStore
	critic    Critic
	fetcher   JobFetcher
	log       *zap.Logger
	locks     keyedMutex
}

func New(config Config, deps Deps) (*Service, error) {
	if deps.Store == nil {
		return nil, errors.New("matcher: vector store is required")
	}
	if deps.Critic == nil {
		return nil, errors.New("matcher: critic is required")
	}
	if config.NResults <= 0 {
		config.NResults = 5
	}
	if config.PreviewLength <= 0 {
		config.PreviewLength = 200
	}
	if deps.Parser == nil {
		deps.Parser = parser.New()
	}
	if deps.Processor == nil {
		proc := processor.New()
		deps.Processor = &proc
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &Service{
		config:    config,
		parser:    deps.Parser,
		processor: deps.Processor,
		store:     deps.Store,
		critic:    deps.Critic,
		fetcher:   deps.Fetcher,
		log:       deps.Logger,
	}, nil
}

type IngestResult struct {
	Binding     session.Binding
	ChunksAdded int
}

// IngestFile stores one uploaded document in the session's current
// collection. The upload is spooled to a temp file which is removed before
// IngestFile returns, whatever the outcome.
func (s *Service) IngestFile(ctx context.Context, st *session.State, filename string, r io.Reader) (*IngestResult, error) {
	start := time.Now()
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return nil, fmt.Errorf("%w: missing filename", ErrInvalidInput)
	}
	if !parser.Supported(filename) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}

	resume, err := s.parseUpload(filename, r)
	if err != nil {
		return nil, err
	}

	chunks := s.processor.Process(resume)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s produced no text", ErrInvalidInput, filename)
	}

	binding, fresh := st.Observe(filename)
	if !fresh {
		if _, ready := st.Current(); ready {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyIngested, filename)
		}
	}

	unlock := s.locks.Lock(binding.CollectionID)
	defer unlock()

	n, err := s.store.Add(ctx, binding.CollectionID, filename, chunks)
	if errors.Is(err, store.ErrDuplicateSource) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyIngested, filename)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}
	st.MarkReady(binding)

	s.log.Info("resume ingested",
		zap.String("session_id", binding.SessionID),
		zap.String("collection", binding.CollectionID),
		zap.String("filename", filename),
		zap.Int("chunks", n),
		zap.Duration("took", time.Since(start)),
	)

	return &IngestResult{Binding: binding, ChunksAdded: n}, nil
}

func (s *Service) parseUpload(filename string, r io.Reader) (*models.Resume, error) {
	tmp, err := os.CreateTemp(s.config.TempDir, "upload-*"+strings.ToLower(filepath.Ext(filename)))
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	path := tmp.Name()
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Debug("temp file cleanup failed", zap.String("path", path), zap.Error(err))
		}
	}()

	_, err = io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read upload: %v", ErrInvalidInput, err)
	}

	resume, err := s.parser.Parse(path, filename)
	if errors.Is(err, parser.ErrUnsupportedFormat) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: could not parse %s: %v", ErrInvalidInput, filename, err)
	}
	return resume, nil
}

// Analysis is the outcome of one analyze call. A failed inference still
// produces an Analysis whose Critique carries the failure.
type Analysis struct {
	Binding     session.Binding
	Critique    llm.Critique
	ContextUsed string
	Chunks      int
}

func (a *Analysis) Status() string {
	if a.Critique.OK() {
		return "ok"
	}
	return "degraded"
}

// Analyze retrieves the session's most relevant chunks for the job
// description and asks the critic to score them.
func (s *Service) Analyze(ctx context.Context, st *session.State, jobDescription string) (*Analysis, error) {
	start := time.Now()
	jobDescription = strings.TrimSpace(jobDescription)
	if jobDescription == "" {
		return nil, fmt.Errorf("%w: job description is required", ErrInvalidInput)
	}

	binding, ok := st.Current()
	if !ok {
		return nil, ErrNoResume
	}

	docs, err := s.store.Query(ctx, binding.CollectionID, jobDescription, s.config.NResults)
	if err != nil {
		return nil, fmt.Errorf("failed to query resume: %w", err)
	}
	if len(docs) == 0 {
		return nil, ErrNoResume
	}

	resumeContext := JoinContext(docs)
	critique := s.critic.Critique(ctx, resumeContext, jobDescription)

	fields := []zap.Field{
		zap.String("session_id", binding.SessionID),
		zap.String("collection", binding.CollectionID),
		zap.Int("chunks", len(docs)),
		zap.Int("score", critique.Score),
		zap.Bool("structured", critique.Structured),
		zap.Duration("took", time.Since(start)),
	}
	if critique.OK() {
		s.log.Info("analysis complete", fields...)
	} else {
		s.log.Warn("analysis degraded", append(fields, zap.Error(critique.Failure))...)
	}
	s.log.Debug("analysis response", zap.String("text", logger.TruncateForLog(critique.Text, 500)))

	return &Analysis{
		Binding:     binding,
		Critique:    critique,
		ContextUsed: Preview(resumeContext, s.config.PreviewLength),
		Chunks:      len(docs),
	}, nil
}

// ResolveJobDescription returns the text to analyze. jobURL wins when set;
// otherwise a description that is itself a single URL is fetched.
func (s *Service) ResolveJobDescription(ctx context.Context, jobDescription, jobURL string) (string, error) {
	target := strings.TrimSpace(jobURL)
	if target == "" && scraper.IsURL(jobDescription) {
		target = strings.TrimSpace(jobDescription)
	}
	if target == "" {
		return jobDescription, nil
	}
	if s.fetcher == nil {
		return "", fmt.Errorf("%w: fetching job postings is disabled", ErrInvalidInput)
	}

	posting, err := s.fetcher.Fetch(ctx, target)
	if errors.Is(err, scraper.ErrInvalidURL) || errors.Is(err, scraper.ErrBlockedAddress) {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	s.log.Info("job posting fetched",
		zap.String("url", target),
		zap.String("title", posting.Title),
		zap.Int("length", len(posting.Content)),
	)

	if posting.Title != "" {
		return posting.Title + "\n\n" + posting.Content, nil
	}
	return posting.Content, nil
}

// Reset clears every collection in the store.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.store.Reset(ctx); err != nil {
		return err
	}
	s.log.Warn("vector store reset")
	return nil
}

// JoinContext concatenates retrieved chunks in rank order.
func JoinContext(docs []schema.Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, d.PageContent)
	}
	return strings.Join(parts, "\n\n")
}

// Preview returns the first n runes of text, followed by "..." when cut.
func Preview(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
