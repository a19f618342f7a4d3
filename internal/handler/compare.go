package handler

import (
	"fmt"

	"readly/internal/domain"
	"readly/internal/dto"
	"readly/internal/middleware"
	"readly/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CompareHandler handles answer comparison requests
type CompareHandler struct {
	service service.ComparisonService
}

// NewCompareHandler creates a new CompareHandler instance
func NewCompareHandler(service service.ComparisonService) *CompareHandler {
	return &CompareHandler{
		service: service,
	}
}

// Compare godoc
// @Summary Compare answers
// @Description Scores a user answer against accepted answers. A body with "questions" is treated as a batch and returns one maximum per question, in order.
// @Tags compare
// @Accept json
// @Produce json
// @Param request body dto.CompareRequest true "Single question or batch"
// @Success 200 {object} dto.CompareResponse "single-question shape"
// @Success 200 {object} dto.BatchCompareResponse "batch shape"
// @Failure 422 {object} middleware.ValidationErrorResponse
// @Failure 500 {object} middleware.ErrorResponse
// @Router /compare [post]
func (h *CompareHandler) Compare(c *fiber.Ctx) error {
	req, ok := c.Locals(middleware.CompareRequestKey).(*dto.CompareRequest)
	if !ok {
		return domain.NewInternalError("compare request was not validated", nil)
	}
	if req.IsBatch() {
		return h.respondBatch(c, req.Questions)
	}

	q, err := toQuestion(req.QuestionRequest)
	if err != nil {
		return err
	}
	res, err := h.service.Compare(c.UserContext(), q)
	if err != nil {
		return err
	}
	return c.JSON(dto.CompareResponse{
		SimilarityScores: res.Scores,
		MaxSimilarity:    res.MaxScore,
	})
}

// CompareBatch godoc
// @Summary Compare answers for many questions
// @Description Returns the maximum similarity per question, in request order. Fails as a whole if any question fails.
// @Tags compare
// @Accept json
// @Produce json
// @Param request body dto.BatchCompareRequest true "Batch of questions"
// @Success 200 {object} dto.BatchCompareResponse
// @Failure 422 {object} middleware.ValidationErrorResponse
// @Failure 500 {object} middleware.ErrorResponse
// @Router /compare/batch [post]
func (h *CompareHandler) CompareBatch(c *fiber.Ctx) error {
	req, ok := c.Locals(middleware.BatchCompareRequestKey).(*dto.BatchCompareRequest)
	if !ok {
		return domain.NewInternalError("batch compare request was not validated", nil)
	}
	return h.respondBatch(c, req.Questions)
}

func (h *CompareHandler) respondBatch(c *fiber.Ctx, reqs []dto.QuestionRequest) error {
	questions := make([]domain.Question, len(reqs))
	for i, r := range reqs {
		q, err := toQuestion(r)
		if err != nil {
			if ve, ok := err.(domain.ValidationError); ok {
				ve.Field = fmt.Sprintf("questions[%d].%s", i, ve.Field)
				return ve
			}
			return err
		}
		questions[i] = q
	}
	batch, err := domain.NewBatch(questions)
	if err != nil {
		return err
	}

	res, err := h.service.CompareBatch(c.UserContext(), batch)
	if err != nil {
		return err
	}
	return c.JSON(dto.BatchCompareResponse{MaxSimilarityScores: res.MaxScores})
}

func toQuestion(r dto.QuestionRequest) (domain.Question, error) {
	if r.UserAnswer == nil {
		return domain.Question{}, domain.NewMissingFieldError("user_answer")
	}
	return domain.NewQuestion(r.CorrectAnswers, *r.UserAnswer)
}
