package prompt

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/chatdex/internal/domain"
)

const translatePersona = `You are a code translation assistant. Translate the provided source code ` +
	`into the language the user asks for, preserving behavior and structure. Keep identifiers ` +
	`recognizable, note any constructs that have no direct equivalent, and output the translated ` +
	`code in a single fenced block.`

// TranslateBuilder produces the stateless code-translation message sequence.
// No retrieval is involved; the user message is the free text plus, when code
// is attached, a fenced block tagged with its source language.
type TranslateBuilder struct{}

func (TranslateBuilder) Build(text, code, codeLang string) []domain.Message {
	content := text
	if code != "" {
		content = fmt.Sprintf("```%s\n%s\n```", codeLang, strings.TrimRight(code, "\n"))
		if text != "" {
			content += "\n\n" + text
		}
	}
	return []domain.Message{
		{Role: domain.RoleSystem, Content: translatePersona},
		{Role: domain.RoleUser, Content: content},
	}
}
