package schemas_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xkilldash9x/coursepilot/api/schemas"
)

func TestLetter(t *testing.T) {
	cases := map[int]string{0: "A", 1: "B", 25: "Z", 26: "AA", 27: "AB", 51: "AZ", 52: "BA", -1: ""}
	for i, want := range cases {
		assert.Equal(t, want, schemas.Letter(i), "index %d", i)
	}
}

func TestLetterIndexRoundTrip(t *testing.T) {
	for i := 0; i < 200; i++ {
		idx, ok := schemas.LetterIndex(schemas.Letter(i))
		assert.True(t, ok)
		assert.Equal(t, i, idx)
	}

	for _, bad := range []string{"", "a", "A1", "Ä", " "} {
		_, ok := schemas.LetterIndex(bad)
		assert.False(t, ok, "label %q", bad)
	}
}

func TestAnswerableUnitHelpers(t *testing.T) {
	unit := schemas.AnswerableUnit{
		Options: []schemas.Option{{Letter: "A", Text: "red"}, {Letter: "B", Text: "blue"}},
	}

	opt, ok := unit.Option("B")
	assert.True(t, ok)
	assert.Equal(t, "blue", opt.Text)

	_, ok = unit.Option("C")
	assert.False(t, ok)

	assert.Equal(t, []string{"A. red", "B. blue"}, unit.OptionTexts())
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "A,C", schemas.Decision{Letters: []string{"A", "C"}}.String())
	assert.Equal(t, "forty two", schemas.Decision{Text: "forty two"}.String())
}
