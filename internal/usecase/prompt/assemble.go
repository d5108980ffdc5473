package prompt

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/chatdex/internal/domain"
)

const blockSeparator = "\n---\n"

// Assemble renders fused hits into one grounding-context block and a parallel
// citation list. Hit i (1-based) is labeled "Si"; blocks appear in fused order
// separated by "---" lines, and citations mirror the blocks index for index.
func Assemble(hits []domain.Hit) (string, []domain.Citation) {
	if len(hits) == 0 {
		return "", nil
	}

	blocks := make([]string, len(hits))
	citations := make([]domain.Citation, len(hits))
	for i, h := range hits {
		label := domain.CitationLabel(i + 1)
		p := h.Payload()
		blocks[i] = fmt.Sprintf("[%s] %s\n%s\n", label, p.Section, p.Text)
		citations[i] = domain.Citation{
			Label:      label,
			URL:        p.SourceLink(),
			Section:    p.Section,
			Collection: h.Collection(),
		}
	}

	return strings.Join(blocks, blockSeparator), citations
}
