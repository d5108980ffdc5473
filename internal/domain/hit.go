package domain

// Payload is the metadata bag attached to a retrieved document chunk.
// All fields are optional; absent fields decode to empty strings. Older
// collections carry the link under "source_url" instead of "url"; SourceLink
// resolves the pair.
type Payload struct {
	URL       string `json:"url,omitempty"`
	SourceURL string `json:"source_url,omitempty"`
	Section   string `json:"section,omitempty"`
	Text      string `json:"text,omitempty"`
}

// SourceLink returns the chunk's link, preferring URL over SourceURL.
func (p Payload) SourceLink() string {
	if p.URL != "" {
		return p.URL
	}
	return p.SourceURL
}

// Hit is a single piece of retrieved evidence. Raw scores are backend-scaled
// and only comparable within one collection; the normalized score is min-max
// rescaled within its collection and comparable across collections for one
// query. Hits are immutable after construction.
type Hit struct {
	collection string
	rawScore   float64
	normScore  float64
	payload    Payload
}

// NewHit creates a hit.
func NewHit(collection string, rawScore, normScore float64, payload Payload) Hit {
	return Hit{
		collection: collection,
		rawScore:   rawScore,
		normScore:  normScore,
		payload:    payload,
	}
}

// Collection returns the name of the collection the hit came from.
func (h Hit) Collection() string { return h.collection }

// RawScore returns the backend similarity score.
func (h Hit) RawScore() float64 { return h.rawScore }

// NormScore returns the per-collection min-max normalized score in [0,1].
func (h Hit) NormScore() float64 { return h.normScore }

// Payload returns the hit metadata.
func (h Hit) Payload() Payload { return h.payload }

// WithNormScore returns a copy of the hit carrying the given normalized score.
func (h Hit) WithNormScore(norm float64) Hit {
	h.normScore = norm
	return h
}
