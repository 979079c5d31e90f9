// internal/oracle/gateway.go

// Package oracle is the decision gateway: it turns an answerable unit into a
// request for the external oracle and validates what comes back. It does not
// retry; the retry and fallback policy belongs to the caller.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/coursepilot/api/schemas"
)

const (
	// DefaultMaxTokens is the reply budget for letter answers.
	DefaultMaxTokens = 64
	composeMaxTokens = 256
	summaryMaxTokens = 512
)

// Gateway validates oracle replies against the unit they answer.
type Gateway struct {
	oracle    schemas.Oracle
	maxTokens int
	logger    *zap.Logger
}

// New creates a Gateway. maxTokens bounds letter replies.
func New(oracle schemas.Oracle, maxTokens int, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Gateway{oracle: oracle, maxTokens: maxTokens, logger: logger.Named("oracle")}
}

// Decide asks the oracle for the unit's answer. Free-text units are composed.
// Errors wrap ErrOracleUnavailable or ErrOracleResponseInvalid.
func (g *Gateway) Decide(ctx context.Context, u schemas.AnswerableUnit) (schemas.Decision, error) {
	if u.Kind == schemas.FreeText {
		text, err := g.Compose(ctx, u)
		if err != nil {
			return schemas.Decision{}, err
		}
		return schemas.Decision{Text: text}, nil
	}
	if len(u.Options) == 0 {
		return schemas.Decision{}, fmt.Errorf("%w: unit %d has no options", schemas.ErrOracleResponseInvalid, u.Ordinal)
	}

	reply, err := g.complete(ctx, BuildPrompt(u), g.maxTokens)
	if err != nil {
		return schemas.Decision{}, err
	}
	letters, err := ParseDecision(reply, len(u.Options), u.Kind)
	if err != nil {
		g.logger.Warn("Oracle reply rejected.",
			zap.Int("unit", u.Ordinal),
			zap.String("reply", reply),
			zap.Error(err),
		)
		return schemas.Decision{}, err
	}
	g.logger.Info("Oracle decided.", zap.Int("unit", u.Ordinal), zap.Strings("letters", letters))
	return schemas.Decision{Letters: letters}, nil
}

// Default is the fallback decision: the first option. It reports false for a
// unit without options.
func (g *Gateway) Default(u schemas.AnswerableUnit) (schemas.Decision, bool) {
	if len(u.Options) == 0 {
		return schemas.Decision{}, false
	}
	return schemas.Decision{Letters: []string{u.Options[0].Letter}, Defaulted: true}, true
}

// Compose asks for a short free-text answer.
func (g *Gateway) Compose(ctx context.Context, u schemas.AnswerableUnit) (string, error) {
	u.Kind = schemas.FreeText
	reply, err := g.complete(ctx, BuildPrompt(u), composeMaxTokens)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(reply)
	if text == "" {
		return "", fmt.Errorf("%w: empty free-text answer", schemas.ErrOracleResponseInvalid)
	}
	return text, nil
}

// Summarize condenses reading content into a few bullet points.
func (g *Gateway) Summarize(ctx context.Context, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: nothing to summarize", schemas.ErrOracleResponseInvalid)
	}
	reply, err := g.complete(ctx, buildSummaryPrompt(content), summaryMaxTokens)
	if err != nil {
		return "", err
	}
	summary := strings.TrimSpace(reply)
	if summary == "" {
		return "", fmt.Errorf("%w: empty summary", schemas.ErrOracleResponseInvalid)
	}
	return summary, nil
}

func (g *Gateway) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	reply, err := g.oracle.Complete(ctx, schemas.OracleRequest{
		Instruction: Instruction,
		Prompt:      prompt,
		MaxTokens:   maxTokens,
	})
	if err == nil {
		return reply, nil
	}
	if errors.Is(err, schemas.ErrOracleUnavailable) {
		return "", err
	}
	return "", fmt.Errorf("%w: %v", schemas.ErrOracleUnavailable, err)
}
