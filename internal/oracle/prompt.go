// internal/oracle/prompt.go
package oracle

import (
	"strings"

	"github.com/xkilldash9x/coursepilot/api/schemas"
)

// Instruction is the system directive sent with every request.
const Instruction = `You are an assistant helping complete online coursework.
For multiple choice questions, only respond with the letter of the correct answer (e.g. 'A').
When a question allows several answers, respond with the letters separated by commas (e.g. 'A, C').
For free response questions, provide a concise, accurate answer.
When summarizing course content, extract the key points.`

const (
	singleSelectAsk = "What is the correct answer? Reply with just the letter."
	multiSelectAsk  = "Select all that apply. Reply with just the letters, separated by commas."
	freeTextAsk     = "Please provide a concise, accurate answer (1-2 sentences)."
	summaryAsk      = "Summarize this content in 3-5 bullet points:"

	// maxSummaryInput bounds the reading text sent for summarization, in runes.
	maxSummaryInput = 4000
)

// BuildPrompt renders a unit as question text followed by its lettered options.
func BuildPrompt(u schemas.AnswerableUnit) string {
	var sb strings.Builder
	sb.WriteString("Question: ")
	sb.WriteString(u.Prompt)
	if u.Kind == schemas.FreeText {
		sb.WriteString("\n\n")
		sb.WriteString(freeTextAsk)
		return sb.String()
	}
	sb.WriteString("\n\nOptions:\n")
	for _, line := range u.OptionTexts() {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	if u.Kind == schemas.MultiSelect {
		sb.WriteString(multiSelectAsk)
	} else {
		sb.WriteString(singleSelectAsk)
	}
	return sb.String()
}

func buildSummaryPrompt(text string) string {
	runes := []rune(text)
	if len(runes) > maxSummaryInput {
		runes = runes[:maxSummaryInput]
	}
	return summaryAsk + "\n\n" + string(runes)
}
