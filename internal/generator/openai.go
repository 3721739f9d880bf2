package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/matchcast/predictions-api/internal/models"
)

const systemPrompt = `You are a football match analyst. Using only the fixture and context
provided, estimate market probabilities in percent. Reply with a single JSON
object with these fields:
  outcome {home, draw, away}          1X2 probabilities summing to 100
  predictedScore                      most likely score, "H-A"
  goalLine {line, over, under}        usually line 2.5
  btts {yes, no}
  htft                                object keyed "H/H", "H/D", ... "A/A"
  scoreRanges                         object keyed "0-1", "2-3", "4+"
  cleanSheet {home, away}
  corners {line, over, under}
  xg {home, away}
  confidenceLevel                     "High", "Medium" or "Low"
  confidence                          0-100
  confidenceReason                    one sentence
Omit a market rather than guess when the context does not support it.`

// Options configures the OpenAI generator
type Options struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint, for proxies and tests
	BaseURL     string
	Temperature float32
}

// OpenAIGenerator implements logic.Generator with a chat completion in JSON mode
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	temperature float32
	logger      *zap.SugaredLogger
}

func NewOpenAIGenerator(opts Options, logger *zap.Logger) *OpenAIGenerator {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.Model == "" {
		opts.Model = openai.GPT4oMini
	}
	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(cfg),
		model:       opts.Model,
		temperature: opts.Temperature,
		logger:      logger.Sugar().With("component", "generator"),
	}
}

// Generate sends the fixture and its aggregated context to the model and
// parses the structured reply.
func (g *OpenAIGenerator) Generate(ctx context.Context, f models.Fixture, fc *models.AggregatedContext) (*models.Prediction, error) {
	prompt, err := BuildPrompt(f, fc)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		g.logger.Errorw("OpenAI API error", "fixtureId", f.ID, "error", err)
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	g.logger.Debugw("Model reply", "fixtureId", f.ID, "tokens", resp.Usage.TotalTokens)
	return ParsePrediction(resp.Choices[0].Message.Content)
}

// BuildPrompt renders the user message for a fixture
func BuildPrompt(f models.Fixture, fc *models.AggregatedContext) (string, error) {
	if fc == nil {
		fc = &models.AggregatedContext{}
	}
	ctxJSON, err := json.Marshal(fc)
	if err != nil {
		return "", fmt.Errorf("encoding context: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Fixture %d: %s (home) vs %s (away)\n", f.ID, f.HomeTeam, f.AwayTeam)
	fmt.Fprintf(&sb, "Competition: %s, season %d\n", f.League, f.Season)
	fmt.Fprintf(&sb, "Kickoff: %s\n", f.Kickoff.UTC().Format("2006-01-02 15:04 MST"))
	if len(fc.Failures) > 0 {
		fmt.Fprintf(&sb, "Unavailable data: %s\n", strings.Join(fc.Failures, ", "))
	}
	sb.WriteString("\nContext:\n")
	sb.Write(ctxJSON)
	return sb.String(), nil
}

// ParsePrediction decodes the model reply. Code fences are tolerated and
// 1X2 probabilities are rescaled to sum to 100.
func ParsePrediction(content string) (*models.Prediction, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var p models.Prediction
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &p); err != nil {
		return nil, fmt.Errorf("decoding model reply: %w", err)
	}

	o := &p.Outcome
	sum := o.Home + o.Draw + o.Away
	if sum <= 0 || o.Home < 0 || o.Draw < 0 || o.Away < 0 {
		return nil, fmt.Errorf("invalid outcome probabilities %+v", p.Outcome)
	}
	if math.Abs(sum-100) > 0.5 {
		o.Home = round1(o.Home * 100 / sum)
		o.Draw = round1(o.Draw * 100 / sum)
		o.Away = round1(o.Away * 100 / sum)
	}

	switch p.ConfidenceLevel {
	case models.ConfidenceHigh, models.ConfidenceMedium, models.ConfidenceLow, "":
	default:
		// Unknown labels are dropped so the richness label fills in
		p.ConfidenceLevel = ""
	}
	return &p, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
