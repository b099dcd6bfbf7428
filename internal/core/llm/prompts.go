package llm

import (
	"strings"

	"github.com/joseph-ayodele/formscan/constants"
)

// Token budgets per call.
const (
	NormalizeMaxTokens = 196
	ExtractMaxTokens   = 196
	AnswerMaxTokens    = 128
)

// NotFoundAnswer is what the model is told to say when the context has no answer.
const NotFoundAnswer = "Not found in context."

func normalizePrompt(clipped string) string {
	return "Clean and normalize this OCR text from a filled form. " +
		"Keep all fields, fix spacing/casing, and remove obvious OCR artifacts only. " +
		"Do NOT invent values. Return the cleaned text.\n" +
		"OCR text:\n" + clipped
}

func extractPrompt(clipped string) string {
	var b strings.Builder
	b.WriteString("Extract the following fields from the cleaned OCR form text. ")
	b.WriteString("Respond ONLY as a single-line JSON object with exactly these keys. ")
	b.WriteString("If a field is missing, use an empty string. Do NOT add text outside JSON.\n")
	b.WriteString("Fields:\n")
	for i, k := range constants.FieldNames() {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(k)
	}
	b.WriteString("\nClean text:\n")
	b.WriteString(clipped)
	return b.String()
}

func answerPrompt(question, context string) string {
	return "Answer the user's question using only the provided context from a filled form. " +
		"Prefer the structured fields; if a field is empty, you may cite the clean text. " +
		"If the answer is missing, say '" + NotFoundAnswer + "'\n" +
		"Context:\n" + context + "\n" +
		"Question: " + question
}
