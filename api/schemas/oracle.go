package schemas

import "context"

// OracleRequest is one stateless question to the decision oracle.
type OracleRequest struct {
	// Instruction is the system-level directive, e.g. answer with letters only.
	Instruction string
	// Prompt carries the question text and the lettered options.
	Prompt string
	// MaxTokens bounds the reply length.
	MaxTokens int
}

// Oracle is an external text-completion service. No conversation context is
// carried between calls.
type Oracle interface {
	Complete(ctx context.Context, req OracleRequest) (string, error)
}
