package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"readly/internal/config"
	"readly/internal/domain"
	"readly/internal/logger"
	"readly/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ComparisonService scores user answers against accepted answers.
type ComparisonService interface {
	// Compare scores one question. Scores are index-aligned with the
	// question's accepted answers.
	Compare(ctx context.Context, q domain.Question) (*domain.ComparisonResult, error)
	// CompareBatch scores every question and returns their maxima in input
	// order. Any failure fails the whole batch.
	CompareBatch(ctx context.Context, batch domain.Batch) (*domain.BatchResult, error)
}

// comparisonService implements ComparisonService. It holds no mutable state;
// the embedder is shared read-only.
type comparisonService struct {
	embedder       domain.EmbeddingService
	embedTimeout   time.Duration
	maxConcurrency int
}

// NewComparisonService creates a new instance of comparisonService.
func NewComparisonService(embedder domain.EmbeddingService, cfg config.ComparisonConfig) ComparisonService {
	concurrency := cfg.MaxConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &comparisonService{
		embedder:       embedder,
		embedTimeout:   cfg.EmbedTimeout,
		maxConcurrency: concurrency,
	}
}

// Compare implements ComparisonService. The embedder is called exactly twice:
// once with all accepted answers, once with the user answer.
func (s *comparisonService) Compare(ctx context.Context, q domain.Question) (*domain.ComparisonResult, error) {
	answers := q.CorrectAnswers()
	if len(answers) == 0 {
		return nil, domain.NewInvariantViolationError("question has no correct answers", nil)
	}

	correct, err := s.embed(ctx, answers)
	if err != nil {
		return nil, err
	}
	user, err := s.embed(ctx, []string{q.UserAnswer()})
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(correct))
	for i, vec := range correct {
		score, err := util.CosineSimilarity(user[0], vec)
		if err != nil {
			return nil, domain.NewInvariantViolationError(fmt.Sprintf("cannot score correct_answers[%d]", i), err)
		}
		scores[i] = score
	}
	return domain.NewComparisonResult(scores)
}

// CompareBatch implements ComparisonService. Questions run concurrently up to
// maxConcurrency; each result lands in its own slot so output order mirrors
// input order.
func (s *comparisonService) CompareBatch(ctx context.Context, batch domain.Batch) (*domain.BatchResult, error) {
	questions := batch.Questions()
	if len(questions) == 0 {
		return nil, domain.NewInvariantViolationError("batch has no questions", nil)
	}

	maxScores := make([]float64, len(questions))
	errs := make([]error, len(questions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)
	scheduled := 0
	for i, q := range questions {
		if gctx.Err() != nil {
			break
		}
		scheduled++
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return err
			}
			res, err := s.Compare(gctx, q)
			if err != nil {
				errs[i] = err
				return err
			}
			maxScores[i] = res.MaxScore
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		idx, cause := firstFailure(errs, ctx.Err() == nil)
		if cause == nil {
			return nil, domain.NewEmbeddingFailureError(err)
		}
		derr := asDomainError(cause).WithContext(domain.ContextQuestionIndex, idx)
		logger.Get().Debug("Batch comparison aborted",
			zap.Int("question_index", idx),
			zap.Int("questions", len(questions)),
			zap.Error(derr))
		return nil, derr
	}
	if scheduled < len(questions) {
		// The caller's context ended before every question was scheduled.
		return nil, domain.NewEmbeddingFailureError(ctx.Err())
	}

	return &domain.BatchResult{MaxScores: maxScores}, nil
}

func (s *comparisonService) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if s.embedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.embedTimeout)
		defer cancel()
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, domain.NewEmbeddingFailureError(err)
	}
	if len(vectors) != len(texts) {
		return nil, domain.NewInvariantViolationError(
			fmt.Sprintf("embedder returned %d vectors for %d texts", len(vectors), len(texts)), nil)
	}
	return vectors, nil
}

// firstFailure picks the lowest-index error. When skipCanceled is set, errors
// that only reflect a sibling's cancellation are passed over unless nothing
// else failed.
func firstFailure(errs []error, skipCanceled bool) (int, error) {
	fallback := -1
	for i, err := range errs {
		if err == nil {
			continue
		}
		if fallback == -1 {
			fallback = i
		}
		if skipCanceled && errors.Is(err, context.Canceled) {
			continue
		}
		return i, err
	}
	if fallback == -1 {
		return 0, nil
	}
	return fallback, errs[fallback]
}

func asDomainError(err error) *domain.DomainError {
	var derr *domain.DomainError
	if errors.As(err, &derr) {
		return derr
	}
	return domain.NewInternalError("comparison failed", err)
}
