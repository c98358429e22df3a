package models

import "time"

// AgentType identifies a role capability in the mesh.
type AgentType string

const (
	AgentLeadTriage AgentType = "LeadTriage"
	AgentEngagement AgentType = "Engagement"
	AgentOptimizer  AgentType = "Optimizer"
	AgentManager    AgentType = "Manager"
)

// IsValid reports whether the agent type is one of the known roles.
func (t AgentType) IsValid() bool {
	switch t {
	case AgentLeadTriage, AgentEngagement, AgentOptimizer, AgentManager:
		return true
	}
	return false
}

// ActionKind is the unit-of-work category recorded on an AgentAction.
type ActionKind string

const (
	ActionTriage        ActionKind = "triage"
	ActionOutreach      ActionKind = "outreach"
	ActionOptimize      ActionKind = "optimize"
	ActionHandoff       ActionKind = "handoff"
	ActionEscalate      ActionKind = "escalate"
	ActionPauseCampaign ActionKind = "pause_campaign"
	ActionUpdateSegment ActionKind = "update_segment"
)

// EscalationReason explains why an action escalated to a manager.
type EscalationReason string

const (
	EscalationNone           EscalationReason = "none"
	EscalationHighValue      EscalationReason = "high_value"
	EscalationComplaint      EscalationReason = "complaint"
	EscalationLegal          EscalationReason = "legal"
	EscalationComplexRequest EscalationReason = "complex_request"
	EscalationLowPerf        EscalationReason = "low_performance"
)

// ConversationState is derived from the action history of a conversation.
// It is never persisted; the orchestrator recomputes it on demand.
type ConversationState string

const (
	StateNew       ConversationState = "New"
	StateTriaged   ConversationState = "Triaged"
	StateEngaged   ConversationState = "Engaged"
	StateEscalated ConversationState = "Escalated"
	StateConverted ConversationState = "Converted"
	StateNurtured  ConversationState = "Nurtured"
)

// LeadProfile is the long-term memory record for a lead. Preferences merge on
// update, RFMScore is replaced, and Interactions only ever increases.
type LeadProfile struct {
	LeadID       string         `json:"leadId"`
	Preferences  map[string]any `json:"preferences"`
	RFMScore     float64        `json:"rfmScore"`
	Interactions int            `json:"interactions"`
	UpdatedAt    int64          `json:"updatedAt"`
}

// Episode is one captured interaction pattern in episodic memory.
type Episode struct {
	ID           string           `json:"id"`
	Scenario     string           `json:"scenario"`
	Actions      []map[string]any `json:"actions"`
	OutcomeScore float64          `json:"outcomeScore"`
	Notes        string           `json:"notes,omitempty"`
	CreatedAt    int64            `json:"createdAt"`
}

// SemanticTriple is a weighted (subject, predicate, object) fact. The key is
// the three fields together; re-upserting never lowers the weight.
type SemanticTriple struct {
	Subject     string  `json:"subject"`
	Predicate   string  `json:"predicate"`
	Object      string  `json:"object"`
	Weight      float64 `json:"weight"`
	AccessCount int     `json:"accessCount"`
}

// ContextEntry is an unexpired short-term entry as seen by consolidation.
type ContextEntry struct {
	ConversationID string         `json:"conversationId"`
	Context        map[string]any `json:"context"`
	CreatedAt      time.Time      `json:"createdAt"`
	ExpiresAt      time.Time      `json:"expiresAt"`
}

// HandoffContext carries summarized state from a source role to a destination
// role. It is consumed exactly once by HandleHandoff and never persisted as a
// first-class entity; only the action log derived from it survives.
type HandoffContext struct {
	Summary         string         `json:"summary"`
	Confidence      float64        `json:"confidence"`
	LeadID          string         `json:"leadId"`
	ConversationID  string         `json:"conversationId"`
	PreviousActions []AgentAction  `json:"previousActions,omitempty"`
	Metadata        map[string]any `json:"metadata"`
	Timestamp       time.Time      `json:"timestamp"`
}

// AgentAction is an immutable record of one unit of work performed by a role.
type AgentAction struct {
	ID               string           `json:"id"`
	Timestamp        time.Time        `json:"timestamp"`
	ConversationID   string           `json:"conversationId"`
	LeadID           string           `json:"leadId"`
	Kind             ActionKind       `json:"kind"`
	SourceAgent      string           `json:"sourceAgent"`
	SourceAgentType  AgentType        `json:"sourceAgentType"`
	DestAgentType    AgentType        `json:"destAgentType,omitempty"`
	Handoff          *HandoffContext  `json:"handoff,omitempty"`
	EscalationReason EscalationReason `json:"escalationReason"`
	Result           map[string]any   `json:"result,omitempty"`
}

// RouteRequest is an inbound request to the orchestrator. Type is the logical
// request type ("lead_triage", "engagement", "campaign_optimization").
type RouteRequest struct {
	Type             string         `json:"type"`
	ConversationID   string         `json:"conversationId"`
	LeadID           string         `json:"leadId,omitempty"`
	LeadData         map[string]any `json:"leadData,omitempty"`
	CampaignData     map[string]any `json:"campaignData,omitempty"`
	EngagementType   string         `json:"engagementType,omitempty"`
	OptimizationType string         `json:"optimizationType,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// AgentResult is the structured outcome of ProcessRequest or HandleHandoff.
// Roles return it for internal faults too; they never propagate errors.
type AgentResult struct {
	Status         string         `json:"status"`
	Message        string         `json:"message,omitempty"`
	ConversationID string         `json:"conversationId"`
	LeadID         string         `json:"leadId,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
	Action         *AgentAction   `json:"action,omitempty"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// OK reports whether the result represents a successful outcome.
func (r *AgentResult) OK() bool {
	return r != nil && r.Status == StatusSuccess
}
