package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/gradingconfig"
	"github.com/noah-isme/gema-grading-api/internal/middleware"
	"github.com/noah-isme/gema-grading-api/internal/models"
	"github.com/noah-isme/gema-grading-api/internal/observability"
	"github.com/noah-isme/gema-grading-api/internal/repository"
	"github.com/noah-isme/gema-grading-api/pkg/ai"
)

var (
	// ErrGraderUnavailable indicates no grading backend is configured.
	ErrGraderUnavailable = errors.New("grading service unavailable")
	// ErrGradingFailed indicates the grading backend returned an error.
	ErrGradingFailed = errors.New("grading service failed")
)

const analysisCachePrefix = "grading:analysis:"

// AnalysisEvent is published after every analysis.
type AnalysisEvent struct {
	AnalysisID  string    `json:"analysis_id"`
	SessionID   string    `json:"session_id"`
	Fingerprint string    `json:"fingerprint"`
	Cached      bool      `json:"cached"`
	Papers      int       `json:"papers"`
	Passed      int       `json:"passed"`
	SentAt      time.Time `json:"sent_at"`
}

// AnalysisService builds grading requests from sessions and dispatches them to the grader.
type AnalysisService interface {
	Preview(ctx context.Context, sessionID string) (gradingconfig.Request, error)
	Analyze(ctx context.Context, sessionID string) (dto.AnalysisResponse, error)
	History(ctx context.Context, sessionID string, limit int) ([]dto.AnalysisResponse, error)
}

// AnalysisOptions groups the optional collaborators of the analysis service.
type AnalysisOptions struct {
	Repository  repository.AnalysisRepository
	Cache       *redis.Client
	CacheTTL    time.Duration
	NATS        *nats.Conn
	NATSSubject string
	Timeout     time.Duration
}

type analysisService struct {
	sessions  SessionService
	grader    ai.Grader
	repo      repository.AnalysisRepository
	cache     *redis.Client
	cacheTTL  time.Duration
	nats      *nats.Conn
	subject   string
	timeout   time.Duration
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewAnalysisService constructs the analysis service. A nil grader makes every
// Analyze call fail with ErrGraderUnavailable.
func NewAnalysisService(sessions SessionService, grader ai.Grader, opts AnalysisOptions, logger zerolog.Logger) AnalysisService {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	return &analysisService{
		sessions:  sessions,
		grader:    grader,
		repo:      opts.Repository,
		cache:     opts.Cache,
		cacheTTL:  opts.CacheTTL,
		nats:      opts.NATS,
		subject:   opts.NATSSubject,
		timeout:   opts.Timeout,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "analysis_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-grading-api/internal/service/analysis"),
		now:       time.Now,
	}
}

func (s *analysisService) Preview(_ context.Context, sessionID string) (gradingconfig.Request, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return gradingconfig.Request{}, err
	}
	return session.Store.BuildRequest()
}

func (s *analysisService) Analyze(ctx context.Context, sessionID string) (dto.AnalysisResponse, error) {
	ctx, span := s.tracer.Start(ctx, "analysis.run", trace.WithAttributes(
		attribute.String("analysis.session_id", sessionID),
	))
	defer span.End()
	if correlation := middleware.CorrelationIDFromContext(ctx); correlation != "" {
		span.SetAttributes(attribute.String("correlation_id", correlation))
	}
	logger := middleware.LoggerFromContext(ctx, s.logger)

	start := s.now()
	defer func() {
		observability.AnalysisLatency().Observe(time.Since(start).Seconds())
	}()

	request, err := s.Preview(ctx, sessionID)
	if err != nil {
		observability.AnalysisResults().WithLabelValues("rejected").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "request_invalid")
		return dto.AnalysisResponse{}, err
	}

	fingerprint := request.Fingerprint()
	span.SetAttributes(
		attribute.String("analysis.fingerprint", fingerprint),
		attribute.Int("analysis.papers", len(request.Papers)),
	)

	if result, ok := s.cached(ctx, fingerprint); ok {
		response := s.buildResponse(sessionID, fingerprint, request, result, true, start)
		s.record(ctx, response, models.AnalysisStatusCached)
		s.publish(ctx, response)
		observability.AnalysisResults().WithLabelValues("cached").Inc()
		span.SetAttributes(attribute.Bool("analysis.cache_hit", true))
		return response, nil
	}

	if s.grader == nil {
		observability.AnalysisResults().WithLabelValues("unavailable").Inc()
		span.RecordError(ErrGraderUnavailable)
		span.SetStatus(codes.Error, "grader_unavailable")
		return dto.AnalysisResponse{}, ErrGraderUnavailable
	}

	gradeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.grader.Grade(gradeCtx, toGradingInput(request))
	if err != nil {
		observability.AnalysisResults().WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "grading_failed")
		logger.Error().Err(err).Str("session_id", sessionID).Msg("grading backend failed")
		return dto.AnalysisResponse{}, fmt.Errorf("%w: %v", ErrGradingFailed, err)
	}
	s.sanitize(&result)

	response := s.buildResponse(sessionID, fingerprint, request, result, false, start)
	s.store(ctx, fingerprint, result)
	s.record(ctx, response, models.AnalysisStatusGraded)
	s.publish(ctx, response)

	observability.AnalysisResults().WithLabelValues("graded").Inc()
	span.SetStatus(codes.Ok, "graded")
	return response, nil
}

func (s *analysisService) History(ctx context.Context, sessionID string, limit int) ([]dto.AnalysisResponse, error) {
	if _, err := s.sessions.Get(sessionID); err != nil {
		return nil, err
	}
	if s.repo == nil {
		return []dto.AnalysisResponse{}, nil
	}

	logger := middleware.LoggerFromContext(ctx, s.logger)
	records, err := s.repo.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.AnalysisResponse, 0, len(records))
	for _, record := range records {
		response := dto.AnalysisResponse{
			ID:          record.ID,
			SessionID:   record.SessionID,
			Fingerprint: record.Fingerprint,
			Cached:      record.Status == models.AnalysisStatusCached,
			DurationMs:  record.DurationMs,
			CreatedAt:   record.CreatedAt,
			Request: dto.RequestSummary{
				PaperCount:      record.PaperCount,
				RubricFileCount: record.RubricFileCount,
				HasPapersText:   record.HasPapersText,
				HasRubricText:   record.HasRubricText,
			},
		}
		s.decodeStored(logger, record.ID, "result", record.Result, &response.Result)
		s.decodeStored(logger, record.ID, "thresholds", record.Thresholds, &response.Request.Thresholds)
		s.decodeStored(logger, record.ID, "weightages", record.Weightages, &response.Request.Weightages)
		responses = append(responses, response)
	}
	return responses, nil
}

func (s *analysisService) decodeStored(logger zerolog.Logger, id, field string, payload []byte, target interface{}) {
	if len(payload) == 0 {
		return
	}
	if err := json.Unmarshal(payload, target); err != nil {
		logger.Warn().Err(err).Str("analysis_id", id).Str("field", field).Msg("failed to decode stored analysis")
	}
}

func (s *analysisService) buildResponse(sessionID, fingerprint string, request gradingconfig.Request, result ai.GradingResult, cached bool, start time.Time) dto.AnalysisResponse {
	return dto.AnalysisResponse{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Fingerprint: fingerprint,
		Cached:      cached,
		Result:      result,
		Request:     dto.NewRequestSummary(request),
		DurationMs:  s.now().Sub(start).Milliseconds(),
		CreatedAt:   s.now().UTC(),
	}
}

func (s *analysisService) cached(ctx context.Context, fingerprint string) (ai.GradingResult, bool) {
	if s.cache == nil || fingerprint == "" {
		return ai.GradingResult{}, false
	}
	payload, err := s.cache.Get(ctx, analysisCachePrefix+fingerprint).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger := middleware.LoggerFromContext(ctx, s.logger)
			logger.Warn().Err(err).Msg("failed to read analysis cache")
		}
		return ai.GradingResult{}, false
	}
	var result ai.GradingResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		logger := middleware.LoggerFromContext(ctx, s.logger)
		logger.Warn().Err(err).Msg("discarding corrupt analysis cache entry")
		return ai.GradingResult{}, false
	}
	return result, true
}

func (s *analysisService) store(ctx context.Context, fingerprint string, result ai.GradingResult) {
	if s.cache == nil || fingerprint == "" {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, analysisCachePrefix+fingerprint, payload, s.cacheTTL).Err(); err != nil {
		logger := middleware.LoggerFromContext(ctx, s.logger)
		logger.Warn().Err(err).Msg("failed to store analysis cache")
	}
}

func (s *analysisService) record(ctx context.Context, response dto.AnalysisResponse, status string) {
	if s.repo == nil {
		return
	}
	thresholds, _ := json.Marshal(response.Request.Thresholds)
	weightages, _ := json.Marshal(response.Request.Weightages)
	result, _ := json.Marshal(response.Result)

	record := models.AnalysisRecord{
		ID:              response.ID,
		SessionID:       response.SessionID,
		Fingerprint:     response.Fingerprint,
		Status:          status,
		PaperCount:      response.Request.PaperCount,
		RubricFileCount: response.Request.RubricFileCount,
		HasPapersText:   response.Request.HasPapersText,
		HasRubricText:   response.Request.HasRubricText,
		Thresholds:      datatypes.JSON(thresholds),
		Weightages:      datatypes.JSON(weightages),
		Result:          datatypes.JSON(result),
		Model:           response.Result.Model,
		DurationMs:      response.DurationMs,
		CreatedAt:       response.CreatedAt,
	}
	if err := s.repo.Create(ctx, &record); err != nil {
		logger := middleware.LoggerFromContext(ctx, s.logger)
		logger.Warn().Err(err).Str("analysis_id", record.ID).Msg("failed to persist analysis record")
	}
}

func (s *analysisService) publish(ctx context.Context, response dto.AnalysisResponse) {
	if s.nats == nil || s.subject == "" {
		return
	}
	passed := 0
	for _, paper := range response.Result.Papers {
		if paper.Passed {
			passed++
		}
	}
	payload, err := json.Marshal(AnalysisEvent{
		AnalysisID:  response.ID,
		SessionID:   response.SessionID,
		Fingerprint: response.Fingerprint,
		Cached:      response.Cached,
		Papers:      len(response.Result.Papers),
		Passed:      passed,
		SentAt:      s.now().UTC(),
	})
	if err != nil {
		return
	}
	if err := s.nats.Publish(s.subject, payload); err != nil {
		logger := middleware.LoggerFromContext(ctx, s.logger)
		logger.Warn().Err(err).Str("subject", s.subject).Msg("failed to publish analysis event")
	}
}

func (s *analysisService) sanitize(result *ai.GradingResult) {
	for i := range result.Papers {
		result.Papers[i].Name = s.sanitizer.Sanitize(result.Papers[i].Name)
		result.Papers[i].Feedback = s.sanitizer.Sanitize(result.Papers[i].Feedback)
	}
}

func toGradingInput(request gradingconfig.Request) ai.GradingInput {
	return ai.GradingInput{
		Papers:      toDocuments(request.Papers),
		PapersText:  request.PapersText,
		RubricText:  request.RubricText,
		RubricFiles: toDocuments(request.RubricFiles),
		Thresholds:  request.Thresholds.Map(),
		Weightages:  request.Weightages.Map(),
	}
}

func toDocuments(files []gradingconfig.FileRef) []ai.Document {
	docs := make([]ai.Document, 0, len(files))
	for _, file := range files {
		docs = append(docs, ai.Document{Name: file.Name, Handle: file.Handle, MimeType: file.MimeType})
	}
	return docs
}
