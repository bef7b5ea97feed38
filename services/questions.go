package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/careerloop/backend/models"
)

const (
	ModelName            = "gemini-2.5-flash"
	DefaultQuestionCount = 8
)

// QuestionService generates prep questions for a scheduled interview using
// Gemini.
type QuestionService struct {
	genaiClient *genai.Client
}

func NewQuestionService(apiKey string) *QuestionService {
	genaiClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		slog.Error("Failed to create genai client", "error", err)
		return nil
	}
	return &QuestionService{genaiClient: genaiClient}
}

// GeneratedQuestion is one parsed question from the model response.
type GeneratedQuestion struct {
	Question string `json:"question"`
	Category string `json:"category"`
}

// GenerateQuestions asks the model for prep questions tailored to the
// interview's role, company, and difficulty.
func (q *QuestionService) GenerateQuestions(ctx context.Context, interview *models.Interview, count int) ([]GeneratedQuestion, error) {
	if q.genaiClient == nil {
		return nil, fmt.Errorf("genai client not initialized")
	}
	if count <= 0 {
		count = DefaultQuestionCount
	}

	prompt := fmt.Sprintf(`Generate %d interview preparation questions for the following interview:

Role: %s
Company: %s
Seniority: %s
Interview type: %s

Mix technical, behavioral, and situational questions appropriate for the seniority level.

Respond with a JSON array only, no surrounding text, where each element is:
{"question": "...", "category": "technical" | "behavioral" | "situational"}`,
		count, interview.Role, interview.Company, interview.Difficulty, interview.Type)

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(
			"You are an expert interview coach. You respond with strictly valid JSON.",
			genai.RoleUser,
		),
	}

	result, err := q.genaiClient.Models.GenerateContent(
		ctx,
		ModelName,
		genai.Text(prompt),
		config,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate questions: %w", err)
	}

	questions, err := parseQuestions(result.Text())
	if err != nil {
		return nil, err
	}

	slog.Info("Interview questions generated", "interview_id", interview.ID, "count", len(questions))
	return questions, nil
}

// parseQuestions extracts the JSON array from a model response, tolerating
// markdown code fences around it.
func parseQuestions(response string) ([]GeneratedQuestion, error) {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var questions []GeneratedQuestion
	if err := json.Unmarshal([]byte(cleaned), &questions); err != nil {
		slog.Error("Failed to parse question JSON", "error", err, "response", response)
		return nil, fmt.Errorf("failed to parse question response: %w", err)
	}
	return questions, nil
}
