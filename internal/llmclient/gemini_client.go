// internal/llmclient/gemini_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/coursepilot/api/schemas"
	"github.com/xkilldash9x/coursepilot/internal/config"
)

// generator is the part of genai.Models the client uses.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient answers oracle requests with a Gemini model.
type GeminiClient struct {
	models generator
	cfg    config.OracleConfig
	logger *zap.Logger
}

var _ schemas.Oracle = (*GeminiClient)(nil)

// NewGeminiClient initializes the client for the Gemini API backend.
func NewGeminiClient(ctx context.Context, cfg config.OracleConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required (set GEMINI_API_KEY)")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return newGeminiClient(client.Models, cfg, logger), nil
}

func newGeminiClient(models generator, cfg config.OracleConfig, logger *zap.Logger) *GeminiClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiClient{
		models: models,
		cfg:    cfg,
		logger: logger.Named("llm_client.gemini"),
	}
}

// Complete sends one stateless request. Every failure is reported as
// ErrOracleUnavailable; interpreting the reply is the caller's job.
func (c *GeminiClient) Complete(ctx context.Context, req schemas.OracleRequest) (string, error) {
	if c.cfg.APITimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.APITimeout)
		defer cancel()
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}
	genCfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(c.cfg.Temperature),
		MaxOutputTokens: int32(maxTokens),
		// Short answers leave no room for thinking tokens.
		ThinkingConfig: &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](0)},
	}
	if req.Instruction != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.Instruction, genai.RoleUser)
	}

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.cfg.Model, genai.Text(req.Prompt), genCfg)
	if err != nil {
		return "", c.wrapError(err)
	}
	text, err := responseText(resp)
	if err != nil {
		return "", fmt.Errorf("%w: %v", schemas.ErrOracleUnavailable, err)
	}

	fields := []zap.Field{
		zap.String("model", c.cfg.Model),
		zap.Duration("duration", time.Since(start)),
	}
	if u := resp.UsageMetadata; u != nil {
		fields = append(fields,
			zap.Int32("prompt_tokens", u.PromptTokenCount),
			zap.Int32("completion_tokens", u.CandidatesTokenCount),
		)
	}
	c.logger.Debug("LLM generation complete (Gemini)", fields...)
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("prompt blocked (reason: %s)", resp.PromptFeedback.BlockReason)
		}
		return "", errors.New("gemini API returned no candidates")
	}
	cand := resp.Candidates[0]
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return "", fmt.Errorf("gemini API returned empty content (reason: %s)", cand.FinishReason)
	}
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}

func (c *GeminiClient) wrapError(err error) error {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	}
	switch {
	case code == http.StatusTooManyRequests:
		c.logger.Warn("Gemini rate limit hit.", zap.Error(err))
		return fmt.Errorf("%w: rate limited: %v", schemas.ErrOracleUnavailable, err)
	case code != 0:
		return fmt.Errorf("%w: API error %d: %v", schemas.ErrOracleUnavailable, code, err)
	default:
		return fmt.Errorf("%w: %v", schemas.ErrOracleUnavailable, err)
	}
}
