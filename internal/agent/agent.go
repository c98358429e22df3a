package agent

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/purplemerit/leadmesh/internal/memory"
	"github.com/purplemerit/leadmesh/internal/models"
)

// Role is an agent that can process routed requests and accept handoffs from
// other roles. Implementations are safe for concurrent use.
type Role interface {
	// ID returns the unique role identifier.
	ID() string
	// Type returns the role's agent type.
	Type() models.AgentType
	// ProcessRequest handles a routed request end to end.
	ProcessRequest(ctx context.Context, req *models.RouteRequest) *models.AgentResult
	// HandleHandoff resumes work handed off by another role. The handoff
	// context carries the source role's summary and identifiers, which the
	// receiver must preserve.
	HandleHandoff(ctx context.Context, h *models.HandoffContext) *models.AgentResult
}

// newAction builds an immutable action record for the audit trail.
func newAction(kind models.ActionKind, roleID string, roleType models.AgentType, conversationID, leadID string) *models.AgentAction {
	return &models.AgentAction{
		ID:              uuid.NewString(),
		Timestamp:       time.Now().UTC(),
		ConversationID:  conversationID,
		LeadID:          leadID,
		Kind:            kind,
		SourceAgent:     roleID,
		SourceAgentType: roleType,
	}
}

// newHandoff builds the context passed to a destination role. Confidence is
// clamped to [0, 1].
func newHandoff(summary string, confidence float64, conversationID, leadID string, prior []models.AgentAction, metadata map[string]any) *models.HandoffContext {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return &models.HandoffContext{
		Summary:         summary,
		Confidence:      confidence,
		LeadID:          leadID,
		ConversationID:  conversationID,
		PreviousActions: prior,
		Metadata:        metadata,
		Timestamp:       time.Now().UTC(),
	}
}

func successResult(conversationID, leadID, message string, payload map[string]any, action *models.AgentAction) *models.AgentResult {
	return &models.AgentResult{
		Status:         models.StatusSuccess,
		Message:        message,
		ConversationID: conversationID,
		LeadID:         leadID,
		Payload:        payload,
		Action:         action,
	}
}

func errorResult(conversationID, leadID, message string) *models.AgentResult {
	return &models.AgentResult{
		Status:         models.StatusError,
		Message:        message,
		ConversationID: conversationID,
		LeadID:         leadID,
	}
}

// handoffRequest rebuilds a route request from a received handoff so the
// destination role can re-enter its normal processing path. Conversation and
// lead identifiers are carried over verbatim.
func handoffRequest(requestType string, h *models.HandoffContext) *models.RouteRequest {
	req := &models.RouteRequest{
		Type:           requestType,
		ConversationID: h.ConversationID,
		LeadID:         h.LeadID,
		Metadata: map[string]any{
			"handoff_summary":    h.Summary,
			"handoff_confidence": h.Confidence,
		},
	}
	for k, v := range h.Metadata {
		req.Metadata[k] = v
	}
	if lead, ok := h.Metadata["lead_data"].(map[string]any); ok {
		req.LeadData = lead
	}
	if campaign, ok := h.Metadata["campaign_data"].(map[string]any); ok {
		req.CampaignData = campaign
	}
	return req
}

// saveContext merges updates into the conversation's short-term context so
// the consolidation pass sees what each role learned. Existing keys are
// copied, not mutated in place.
func saveContext(mem *memory.Service, conversationID string, updates map[string]any) {
	if mem == nil || conversationID == "" || len(updates) == 0 {
		return
	}
	merged := make(map[string]any, len(updates))
	if existing, ok := mem.GetContext(conversationID); ok {
		for k, v := range existing {
			merged[k] = v
		}
	}
	for k, v := range updates {
		merged[k] = v
	}
	mem.PutContext(conversationID, merged, 0)
}

func stringValue(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func floatValue(m map[string]any, key string) float64 {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}
