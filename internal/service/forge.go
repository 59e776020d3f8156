package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"quinn/internal/errs"
	"quinn/internal/models"
)

// QuestionConfig describes one expected question slot: its category, the
// time a candidate gets to answer and the marks it carries.
type QuestionConfig struct {
	Category             string  `json:"category"`
	ExpectedTimeToAnswer int32   `json:"expected_time_to_answer"`
	TotalMarks           float64 `json:"total_marks"`
}

type GenerateRequest struct {
	ResumeText              string            `json:"cv_data"`
	JobDescription          string            `json:"job_description"`
	SkillDescriptionMap     map[string]string `json:"skill_description_map"`
	PreviousQuestions       []models.QaPair   `json:"previous_questions"`
	ExpectedQuestionsConfig []QuestionConfig  `json:"expected_questions_config"`
}

type GeneratedQuestion struct {
	Question             string `json:"question"`
	EstimatedTimeMinutes int32  `json:"estimated_time_minutes"`
}

type generateResponse struct {
	Questions []GeneratedQuestion `json:"questions"`
}

// Generator produces interview questions from resume and job context. It must
// return exactly one question per requested config.
type Generator interface {
	GenerateInterviewQuestions(ctx context.Context, req *GenerateRequest) ([]GeneratedQuestion, error)
}

// ForgeClient talks to the Forge question-generation service over HTTP.
type ForgeClient struct {
	client *http.Client
	logger *zap.Logger
}

func NewForgeClient(logger *zap.Logger) *ForgeClient {
	return &ForgeClient{
		client: &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}
}

func (f *ForgeClient) GenerateInterviewQuestions(ctx context.Context, req *GenerateRequest) ([]GeneratedQuestion, error) {
	forgeURL := viper.GetString("forge.genurl")

	payloadBytes, err := json.Marshal(req)
	if err != nil {
		return nil, &errs.ErrUpstream{Service: "forge", Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", forgeURL, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, &errs.ErrUpstream{Service: "forge", Err: fmt.Errorf("failed to create HTTP request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, &errs.ErrUpstream{Service: "forge", Err: fmt.Errorf("failed to send HTTP request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errs.ErrUpstream{Service: "forge", Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &errs.ErrUpstream{Service: "forge", Err: fmt.Errorf("non-200 status: %d, body: %s", resp.StatusCode, string(body))}
	}

	var forgeResp generateResponse
	if err := json.Unmarshal(body, &forgeResp); err != nil {
		return nil, &errs.ErrUpstream{Service: "forge", Err: fmt.Errorf("failed to unmarshal response JSON: %w", err)}
	}

	// The contract is one question per requested config; anything else is an
	// invalid response, not a partial success.
	if len(forgeResp.Questions) != len(req.ExpectedQuestionsConfig) {
		return nil, &errs.ErrUpstream{Service: "forge", Err: fmt.Errorf(
			"expected %d questions, got %d", len(req.ExpectedQuestionsConfig), len(forgeResp.Questions))}
	}
	for i, q := range forgeResp.Questions {
		if q.Question == "" {
			return nil, &errs.ErrUpstream{Service: "forge", Err: fmt.Errorf("question %d has empty text", i+1)}
		}
	}

	return forgeResp.Questions, nil
}
