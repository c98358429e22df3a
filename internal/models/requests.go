package models

// API request/response shapes for the HTTP surface.

// PutContextRequest stores short-term conversation context.
type PutContextRequest struct {
	ConversationID string         `json:"conversationId"`
	Context        map[string]any `json:"context"`
	TTLHours       int            `json:"ttlHours,omitempty"`
}

// GetContextResponse returns short-term context, or found=false when the
// entry is absent or expired.
type GetContextResponse struct {
	ConversationID string         `json:"conversationId"`
	Context        map[string]any `json:"context,omitempty"`
	Found          bool           `json:"found"`
}

// UpdateProfileRequest upserts a long-term lead profile.
type UpdateProfileRequest struct {
	LeadID      string         `json:"leadId"`
	Preferences map[string]any `json:"preferences"`
	RFMScore    float64        `json:"rfmScore"`
}

// AppendEpisodeRequest appends one episode to episodic memory.
type AppendEpisodeRequest struct {
	Scenario     string           `json:"scenario"`
	Actions      []map[string]any `json:"actions,omitempty"`
	OutcomeScore float64          `json:"outcomeScore"`
	Notes        string           `json:"notes,omitempty"`
}

// AppendEpisodeResponse returns the assigned episode ID.
type AppendEpisodeResponse struct {
	EpisodeID string `json:"episodeId"`
}

// QueryEpisodesRequest searches episodic memory by scenario similarity.
type QueryEpisodesRequest struct {
	Scenario string `json:"scenario"`
	TopK     int    `json:"topK,omitempty"`
}

// UpsertTripleRequest merges one fact into the semantic knowledge graph.
type UpsertTripleRequest struct {
	Subject   string  `json:"subject"`
	Predicate string  `json:"predicate"`
	Object    string  `json:"object"`
	Weight    float64 `json:"weight"`
}

// QueryTriplesRequest filters the knowledge graph. Empty fields match all.
type QueryTriplesRequest struct {
	Subject   string `json:"subject,omitempty"`
	Predicate string `json:"predicate,omitempty"`
	Object    string `json:"object,omitempty"`
}

// ConsolidateResponse reports one consolidation pass.
type ConsolidateResponse struct {
	Scanned  int `json:"scanned"`
	Promoted int `json:"promoted"`
	Failures int `json:"failures"`
}

// HandoffRequest asks the orchestrator to execute a handoff.
type HandoffRequest struct {
	SourceRoleID  string          `json:"sourceRoleId"`
	DestAgentType AgentType       `json:"destAgentType"`
	Context       *HandoffContext `json:"context"`
}
