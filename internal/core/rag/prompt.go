package rag

import (
	"fmt"
	"strings"

	"github.com/vmalyshev/studycast/internal/core/domain"
)

// answerPrompt composes the retrieval-augmented prompt: one
// source-attributed block per retrieved chunk, in descending similarity
// order, followed by the question.
func answerPrompt(question string, retrieved []domain.RetrievedChunk) string {
	var contextBuilder strings.Builder
	for i, hit := range retrieved {
		if i > 0 {
			contextBuilder.WriteString("\n\n")
		}
		fmt.Fprintf(&contextBuilder, "[Source: %s]\n%s", hit.Chunk.Path(), hit.Chunk.Text)
	}

	return fmt.Sprintf(`### Instructions
Answer the user's question based solely on the provided context.
When referencing information, mention the source document in your response.
If the question cannot be fully answered using the provided context, acknowledge this limitation and avoid speculation beyond the data.

### Context
%s

### Question
%s

### Response
`, contextBuilder.String(), question)
}
