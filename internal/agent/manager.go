package agent

import (
	"context"
	"log/slog"

	"github.com/purplemerit/leadmesh/internal/memory"
	"github.com/purplemerit/leadmesh/internal/models"
)

// ManagerRole is the escalation terminus. It does not resolve anything
// itself; it records the escalation and preserves the full handoff context so
// a human picks it up with nothing lost.
type ManagerRole struct {
	id     string
	memory *memory.Service
	logger *slog.Logger
}

func NewManagerRole(id string, mem *memory.Service, logger *slog.Logger) *ManagerRole {
	return &ManagerRole{id: id, memory: mem, logger: logger}
}

func (r *ManagerRole) ID() string             { return r.id }
func (r *ManagerRole) Type() models.AgentType { return models.AgentManager }

func (r *ManagerRole) ProcessRequest(ctx context.Context, req *models.RouteRequest) *models.AgentResult {
	if req == nil {
		return errorResult("", "", "nil request")
	}
	action := newAction(models.ActionEscalate, r.id, models.AgentManager, req.ConversationID, req.LeadID)
	payload := map[string]any{
		"queued_for_review": true,
		"summary":           stringValue(req.Metadata, "handoff_summary"),
	}
	action.Result = payload

	saveContext(r.memory, req.ConversationID, map[string]any{
		"escalated": true,
		"summary":   payload["summary"],
	})

	r.logger.Info("escalation queued for review",
		slog.String("conversation_id", req.ConversationID),
		slog.String("lead_id", req.LeadID))

	return successResult(req.ConversationID, req.LeadID, "escalation queued for review", payload, action)
}

func (r *ManagerRole) HandleHandoff(ctx context.Context, h *models.HandoffContext) *models.AgentResult {
	if h == nil {
		return errorResult("", "", "nil handoff context")
	}
	return r.ProcessRequest(ctx, handoffRequest("manager_review", h))
}
