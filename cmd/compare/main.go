// Command compare scores a batch of questions offline with the configured
// embedding source. It reads a {"questions": [...]} document from a file or
// stdin and writes {"max_similarity_scores": [...]} to stdout.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"readly/internal/adapter"
	"readly/internal/adapter/embedding"
	"readly/internal/cache"
	"readly/internal/config"
	"readly/internal/domain"
	"readly/internal/dto"
	"readly/internal/logger"
	"readly/internal/service"
	"readly/internal/validation"

	"go.uber.org/zap"
)

func main() {
	input := flag.String("input", "-", "path of the batch request JSON, - for stdin")
	pretty := flag.Bool("pretty", false, "indent the JSON output")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	// Keep stdout for the result.
	if err := logger.Initialize(config.LoggerConfig{Level: "error", Env: cfg.Logger.Env}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	req, err := readRequest(*input, os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read request: %v\n", err)
		os.Exit(2)
	}
	if verrs := validation.NewValidator(cfg.Comparison).ValidateBatch(req.Questions); len(verrs) > 0 {
		for _, ve := range verrs {
			fmt.Fprintf(os.Stderr, "%s: %s\n", ve.Field, ve.Message)
		}
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	embedder, err := embedding.NewFromConfig(ctx, cfg.Embedding)
	if err != nil {
		logger.Get().Fatal("Failed to create embedding service", zap.String("source", cfg.Embedding.Source), zap.Error(err))
	}
	if cfg.Redis.Address != "" {
		redisClient, err := cache.NewRedisClient(cfg.Redis)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Redis cache is not reachable, running without cache: %v\n", err)
		} else {
			defer redisClient.Close()
			ttl := cfg.ParseTTLStringOrDefault(cfg.CacheTTLs.Embedding, 168*time.Hour)
			embedder = embedding.NewCachedEmbeddingService(embedder, adapter.NewRedisCacheAdapter(redisClient), ttl, cfg.Comparison.EmbedTimeout)
		}
	}
	if closer, ok := embedder.(io.Closer); ok {
		defer closer.Close()
	}

	batch, err := toBatch(req.Questions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid request: %v\n", err)
		os.Exit(2)
	}

	res, err := service.NewComparisonService(embedder, cfg.Comparison).CompareBatch(ctx, batch)
	if err != nil {
		var de *domain.DomainError
		if errors.As(err, &de) {
			if idx, ok := de.QuestionIndex(); ok {
				fmt.Fprintf(os.Stderr, "questions[%d]: %v\n", idx, err)
				os.Exit(1)
			}
		}
		fmt.Fprintf(os.Stderr, "Comparison failed: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(dto.BatchCompareResponse{MaxSimilarityScores: res.MaxScores}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write result: %v\n", err)
		os.Exit(1)
	}
}

// readRequest decodes the batch document at path, or from stdin when path is "-".
func readRequest(path string, stdin io.Reader) (*dto.BatchCompareRequest, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var req dto.BatchCompareRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, fmt.Errorf("malformed JSON: %w", err)
	}
	return &req, nil
}

func toBatch(reqs []dto.QuestionRequest) (domain.Batch, error) {
	questions := make([]domain.Question, len(reqs))
	for i, r := range reqs {
		if r.UserAnswer == nil {
			return domain.Batch{}, fmt.Errorf("questions[%d]: %w", i, domain.NewMissingFieldError("user_answer"))
		}
		q, err := domain.NewQuestion(r.CorrectAnswers, *r.UserAnswer)
		if err != nil {
			return domain.Batch{}, fmt.Errorf("questions[%d]: %w", i, err)
		}
		questions[i] = q
	}
	return domain.NewBatch(questions)
}
