// internal/llmclient/static_client.go
package llmclient

import (
	"context"
	"sync/atomic"

	"github.com/xkilldash9x/coursepilot/api/schemas"
)

// StaticClient replies with the same text to every request. It lets the
// pipeline run end to end without network access.
type StaticClient struct {
	Reply string
	calls atomic.Int64
}

var _ schemas.Oracle = (*StaticClient)(nil)

// NewStaticClient creates a StaticClient.
func NewStaticClient(reply string) *StaticClient {
	return &StaticClient{Reply: reply}
}

// Complete returns the fixed reply.
func (s *StaticClient) Complete(ctx context.Context, _ schemas.OracleRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.calls.Add(1)
	return s.Reply, nil
}

// Calls reports how many requests were answered.
func (s *StaticClient) Calls() int64 { return s.calls.Load() }
