// internal/oracle/parse.go
package oracle

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/xkilldash9x/coursepilot/api/schemas"
)

// ParseDecision turns a reply such as "C", "Answer: B." or "A, c and D)" into
// letters. Every letter must name one of optionCount options and a
// single-select reply must carry exactly one. Duplicates collapse and the
// reply's order is kept.
func ParseDecision(reply string, optionCount int, kind schemas.ResponseKind) ([]string, error) {
	text := strings.TrimSpace(reply)
	if len(text) >= len("answer") && strings.EqualFold(text[:len("answer")], "answer") {
		text = strings.TrimLeft(text[len("answer"):], " :")
	}
	text = strings.ToUpper(text)

	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})

	var letters []string
	seen := make(map[string]bool)
	for _, tok := range tokens {
		if tok == "AND" || tok == "&" {
			continue
		}
		tok = strings.TrimLeft(tok, "(")
		tok = strings.TrimRight(tok, ".)")
		idx, ok := schemas.LetterIndex(tok)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not an option letter", schemas.ErrOracleResponseInvalid, tok)
		}
		if idx >= optionCount {
			return nil, fmt.Errorf("%w: %q is out of range for %d options", schemas.ErrOracleResponseInvalid, tok, optionCount)
		}
		if !seen[tok] {
			seen[tok] = true
			letters = append(letters, tok)
		}
	}

	switch {
	case len(letters) == 0:
		return nil, fmt.Errorf("%w: no letter in reply %q", schemas.ErrOracleResponseInvalid, reply)
	case kind != schemas.MultiSelect && len(letters) != 1:
		return nil, fmt.Errorf("%w: single-select reply names %d options", schemas.ErrOracleResponseInvalid, len(letters))
	}
	return letters, nil
}
