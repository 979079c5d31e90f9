package llmclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/genai"

	"github.com/xkilldash9x/coursepilot/api/schemas"
	"github.com/xkilldash9x/coursepilot/internal/config"
)

type mockModels struct {
	mock.Mock
}

func (m *mockModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	args := m.Called(ctx, model, contents, cfg)
	resp, _ := args.Get(0).(*genai.GenerateContentResponse)
	return resp, args.Error(1)
}

func testOracleConfig() config.OracleConfig {
	return config.OracleConfig{
		Provider:   config.ProviderGemini,
		Model:      "gemini-test",
		APIKey:     "key",
		APITimeout: time.Second,
		MaxTokens:  64,
	}
}

func reply(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: "model", Parts: parts}}},
	}
}

func TestGeminiComplete(t *testing.T) {
	models := new(mockModels)
	client := newGeminiClient(models, testOracleConfig(), nil)

	models.On("GenerateContent", mock.Anything, "gemini-test", mock.Anything, mock.MatchedBy(func(cfg *genai.GenerateContentConfig) bool {
		return cfg.MaxOutputTokens == 8 &&
			cfg.SystemInstruction != nil &&
			cfg.SystemInstruction.Parts[0].Text == "Only respond with the letter." &&
			*cfg.Temperature == 0
	})).Return(reply(&genai.Part{Text: "thinking", Thought: true}, &genai.Part{Text: "C"}), nil).Once()

	got, err := client.Complete(context.Background(), schemas.OracleRequest{
		Instruction: "Only respond with the letter.",
		Prompt:      "Question: ...",
		MaxTokens:   8,
	})
	require.NoError(t, err)
	assert.Equal(t, "C", got)
	models.AssertExpectations(t)
}

func TestGeminiFailuresAreUnavailable(t *testing.T) {
	cases := []struct {
		name string
		resp *genai.GenerateContentResponse
		err  error
	}{
		{"Transport", nil, errors.New("dial tcp: connection refused")},
		{"RateLimit", nil, genai.APIError{Code: 429, Message: "quota"}},
		{"NoCandidates", &genai.GenerateContentResponse{}, nil},
		{"EmptyContent", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}}}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			models := new(mockModels)
			models.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(tc.resp, tc.err)
			_, err := newGeminiClient(models, testOracleConfig(), nil).Complete(context.Background(), schemas.OracleRequest{Prompt: "q"})
			assert.ErrorIs(t, err, schemas.ErrOracleUnavailable)
		})
	}
}

func TestGeminiRateLimitIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	models := new(mockModels)
	models.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, genai.APIError{Code: 429})
	_, err := newGeminiClient(models, testOracleConfig(), zap.New(core)).Complete(context.Background(), schemas.OracleRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Equal(t, 1, logs.FilterMessage("Gemini rate limit hit.").Len())
}

func TestNewGeminiClientRequiresKey(t *testing.T) {
	cfg := testOracleConfig()
	cfg.APIKey = ""
	_, err := NewGeminiClient(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestStaticClient(t *testing.T) {
	s := NewStaticClient("B")
	got, err := s.Complete(context.Background(), schemas.OracleRequest{})
	require.NoError(t, err)
	assert.Equal(t, "B", got)
	assert.EqualValues(t, 1, s.Calls())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Complete(ctx, schemas.OracleRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRateLimited(t *testing.T) {
	inner := NewStaticClient("A")
	// One request per hour: the second call cannot be served before the deadline.
	limited := NewRateLimited(inner, 1.0/60, nil)

	_, err := limited.Complete(context.Background(), schemas.OracleRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = limited.Complete(ctx, schemas.OracleRequest{})
	assert.ErrorIs(t, err, schemas.ErrOracleUnavailable)
	assert.EqualValues(t, 1, inner.Calls())

	unlimited := NewRateLimited(inner, 0, nil)
	for i := 0; i < 5; i++ {
		_, err := unlimited.Complete(context.Background(), schemas.OracleRequest{})
		require.NoError(t, err)
	}
}

func TestNewClient(t *testing.T) {
	ctx := context.Background()

	client, err := NewClient(ctx, config.OracleConfig{Provider: config.ProviderStatic, StaticReply: "D"}, nil)
	require.NoError(t, err)
	got, err := client.Complete(ctx, schemas.OracleRequest{})
	require.NoError(t, err)
	assert.Equal(t, "D", got)

	_, err = NewClient(ctx, config.OracleConfig{Provider: "openai"}, nil)
	assert.ErrorContains(t, err, "unsupported oracle provider")

	_, err = NewClient(ctx, config.OracleConfig{Provider: config.ProviderGemini}, nil)
	assert.ErrorContains(t, err, "API key is required")
}
