package dto

// QuestionRequest is one question in a comparison request.
// @Description Accepted answers and the answer given by the user
type QuestionRequest struct {
	CorrectAnswers []string `json:"correct_answers" example:"It was just a dream.,Chandu was only dreaming of flying."`
	UserAnswer     *string  `json:"user_answer" example:"Chandu only dreamt of flying."`
}

// CompareRequest is the body of POST /compare. It carries either a single
// question (correct_answers + user_answer) or a batch (questions), never both.
// @Description Single-question or batch comparison request
type CompareRequest struct {
	QuestionRequest
	Questions []QuestionRequest `json:"questions,omitempty"`
}

// IsBatch reports whether the request uses the batch shape.
func (r *CompareRequest) IsBatch() bool {
	return r.Questions != nil
}

// IsMixed reports whether both shapes were sent in one body.
func (r *CompareRequest) IsMixed() bool {
	return r.Questions != nil && (r.CorrectAnswers != nil || r.UserAnswer != nil)
}

// BatchCompareRequest is the body of POST /compare/batch.
// @Description Batch comparison request
type BatchCompareRequest struct {
	Questions []QuestionRequest `json:"questions"`
}

// CompareResponse is the single-question result.
// @Description Per-answer similarity scores and their maximum
type CompareResponse struct {
	SimilarityScores []float64 `json:"similarity_scores"`
	MaxSimilarity    float64   `json:"max_similarity"`
}

// BatchCompareResponse is the batch result, one score per question in request order.
// @Description Maximum similarity per question
type BatchCompareResponse struct {
	MaxSimilarityScores []float64 `json:"max_similarity_scores"`
}

// HeartbeatResponse is returned by GET /heartbeat.
type HeartbeatResponse struct {
	Status  string `json:"status" example:"ONLINE"`
	Message string `json:"message" example:"Service endpoints are currently available."`
}
