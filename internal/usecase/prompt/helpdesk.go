package prompt

import (
	"fmt"

	"github.com/kailas-cloud/chatdex/internal/domain"
)

const helpdeskPersona = `You are a helpdesk assistant. Answer the user's question using only the ` +
	`relevant excerpts provided in the context. When you use an excerpt, cite its label ` +
	`(for example [S1]). If the context does not contain the answer, say so instead of guessing. ` +
	`End the answer with a "Sources" section listing the labels you actually used.`

const helpdeskUserTemplate = `Question:
%s

Context:
%s

Answer the question using the context above and cite the labels of the excerpts you use.`

// HelpdeskBuilder produces the retrieval-grounded message sequence: a fixed
// system persona followed by one user message embedding the query and the
// assembled grounding context.
type HelpdeskBuilder struct{}

// Build returns exactly two messages regardless of context size; fitting the
// context into the model's input budget is the caller's configuration concern.
func (HelpdeskBuilder) Build(query, contextText string) []domain.Message {
	return []domain.Message{
		{Role: domain.RoleSystem, Content: helpdeskPersona},
		{Role: domain.RoleUser, Content: fmt.Sprintf(helpdeskUserTemplate, query, contextText)},
	}
}
