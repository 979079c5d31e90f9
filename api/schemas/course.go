package schemas

import (
	"math"
	"strings"
	"time"
)

// ContentType classifies what the current page is for.
type ContentType string

const (
	ContentAssessment ContentType = "assessment"
	ContentVideo      ContentType = "video"
	ContentReading    ContentType = "reading"
	ContentUnknown    ContentType = "unknown"
)

// ResponseKind says how a unit is answered.
type ResponseKind string

const (
	SingleSelect ResponseKind = "single_select"
	MultiSelect  ResponseKind = "multi_select"
	FreeText     ResponseKind = "free_text"
)

// Option is one selectable answer of a unit.
type Option struct {
	// Letter is assigned by extraction order and is not the platform's own labeling.
	Letter string `json:"letter"`
	Text   string `json:"text"`
	// Node is the element the selection gesture targets. It is only valid until
	// the page navigates.
	Node Node `json:"-"`
}

// AnswerableUnit is one question on an assessment page.
type AnswerableUnit struct {
	// Ordinal is the 1-based position in extraction order. It identifies the
	// unit within one page load only.
	Ordinal  int          `json:"ordinal"`
	Prompt   string       `json:"prompt"`
	Kind     ResponseKind `json:"kind"`
	Options  []Option     `json:"options"`
	Strategy string       `json:"strategy"`
	// Input is the text field of a FreeText unit.
	Input Node `json:"-"`
}

// Option returns the option carrying letter.
func (u AnswerableUnit) Option(letter string) (Option, bool) {
	for _, o := range u.Options {
		if o.Letter == letter {
			return o, true
		}
	}
	return Option{}, false
}

// OptionTexts lists options as "A. text" lines, in order.
func (u AnswerableUnit) OptionTexts() []string {
	out := make([]string, 0, len(u.Options))
	for _, o := range u.Options {
		out = append(out, o.Letter+". "+o.Text)
	}
	return out
}

// Decision is the oracle's answer for one unit.
type Decision struct {
	Letters []string `json:"letters,omitempty"`
	Text    string   `json:"text,omitempty"`
	// Defaulted is set when the caller fell back to the default option.
	Defaulted bool `json:"defaulted,omitempty"`
}

// String renders the decision for logs and review entries.
func (d Decision) String() string {
	if len(d.Letters) == 0 {
		return d.Text
	}
	return strings.Join(d.Letters, ",")
}

// AnchorKind names the page a traversal returns to between excursions.
type AnchorKind string

const (
	AnchorOutline AnchorKind = "outline"
	AnchorGrades  AnchorKind = "grades"
)

// AnchorPage is the home base of one traversal.
type AnchorPage struct {
	URL  string     `json:"url"`
	Kind AnchorKind `json:"kind"`
	// SetAt records when the traversal anchored here.
	SetAt time.Time `json:"set_at"`
}

// Letter returns the label for the i-th option (0-based): A..Z, then AA, AB, ...
func Letter(i int) string {
	if i < 0 {
		return ""
	}
	var b []byte
	for i >= 0 {
		b = append([]byte{byte('A' + i%26)}, b...)
		i = i/26 - 1
	}
	return string(b)
}

// LetterIndex is the inverse of Letter. It reports false for anything that is
// not an upper-case letter label.
func LetterIndex(label string) (int, bool) {
	if label == "" {
		return 0, false
	}
	n := 0
	for _, r := range label {
		if r < 'A' || r > 'Z' || n > math.MaxInt32/26 {
			return 0, false
		}
		n = n*26 + int(r-'A'+1)
	}
	return n - 1, true
}
