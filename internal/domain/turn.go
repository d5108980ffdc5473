package domain

// Agent selects the prompt-building strategy for a turn.
type Agent string

const (
	// AgentHelpdesk answers grounded in retrieved documentation excerpts.
	AgentHelpdesk Agent = "helpdesk"
	// AgentTranslate translates source code between languages, no retrieval.
	AgentTranslate Agent = "translate"
)

// Valid reports whether the agent is one of the supported values.
func (a Agent) Valid() bool {
	return a == AgentHelpdesk || a == AgentTranslate
}

// TurnRequest carries everything one turn needs. Conversation identity, agent
// selection, and sampling parameters travel with the request instead of living
// in ambient session state.
type TurnRequest struct {
	ConversationID string
	Agent          Agent
	Query          string
	// Code is an optional source blob for the translate agent.
	Code string
	// CodeLang tags the fenced block when Code is present (e.g. "sas").
	CodeLang    string
	Temperature float32
	MaxTokens   int
}

// TurnResult is the completed exchange: the full accumulated answer and the
// citation list aligned with the labels the model saw in its context block.
type TurnResult struct {
	Answer  string
	Sources []Citation
	// Truncated reports that the token stream ended on a transport failure
	// rather than a natural end-of-stream; Answer holds whatever accumulated.
	Truncated bool
}
