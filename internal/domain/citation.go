package domain

import "fmt"

// Citation maps a context label to the source it was rendered from.
// Labels are dense, 1-based ("S1", "S2", ...) and aligned with the order of
// the fused hits within a single turn; they carry no identity across turns.
type Citation struct {
	Label      string `json:"label"`
	URL        string `json:"url,omitempty"`
	Section    string `json:"section,omitempty"`
	Collection string `json:"collection"`
}

// CitationLabel returns the label for a 1-based fused-result position.
func CitationLabel(position int) string {
	return fmt.Sprintf("S%d", position)
}
