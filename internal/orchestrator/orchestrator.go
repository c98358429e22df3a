package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/purplemerit/leadmesh/internal/agent"
	"github.com/purplemerit/leadmesh/internal/memory"
	"github.com/purplemerit/leadmesh/internal/models"
	"github.com/purplemerit/leadmesh/internal/resource"
)

// ErrNoAgentAvailable is returned when no registered role matches the
// requested agent type.
var ErrNoAgentAvailable = errors.New("no agent available for requested type")

// requestTypes maps the protocol request type to the agent type that serves
// it.
var requestTypes = map[string]models.AgentType{
	"lead_triage":           models.AgentLeadTriage,
	"engagement":            models.AgentEngagement,
	"campaign_optimization": models.AgentOptimizer,
	"manager_review":        models.AgentManager,
}

// Orchestrator owns the role registry and moves conversations between roles.
type Orchestrator struct {
	mu     sync.RWMutex
	roles  map[string]agent.Role
	byType map[models.AgentType][]string
	memory *memory.Service
	res    *resource.Manager
	logger *slog.Logger
}

func New(mem *memory.Service, res *resource.Manager, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		roles:  make(map[string]agent.Role),
		byType: make(map[models.AgentType][]string),
		memory: mem,
		res:    res,
		logger: logger,
	}
}

// Register adds a role to the registry. Re-registering an existing ID
// replaces the role in place without changing its position in the type order.
func (o *Orchestrator) Register(r agent.Role) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.roles[r.ID()]; !exists {
		o.byType[r.Type()] = append(o.byType[r.Type()], r.ID())
	}
	o.roles[r.ID()] = r
	o.logger.Info("role registered", "roleId", r.ID(), "type", string(r.Type()))
}

// Route dispatches a request to the first registered role of the matching
// type. When the request names a lead but carries no lead data, the data is
// hydrated from the resource layer; a hydration failure is tolerated so
// routing still proceeds on whatever the caller supplied.
func (o *Orchestrator) Route(ctx context.Context, req *models.RouteRequest) (*models.AgentResult, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	agentType, ok := requestTypes[req.Type]
	if !ok {
		return nil, fmt.Errorf("unknown request type %q", req.Type)
	}

	role, err := o.selectRole(agentType)
	if err != nil {
		return nil, err
	}

	if req.LeadID != "" && len(req.LeadData) == 0 {
		if lead, err := o.res.GetLead(ctx, req.LeadID, "Agent-Client"); err != nil {
			o.logger.Warn("lead hydration failed", "leadId", req.LeadID, "error", err)
		} else {
			req.LeadData = lead
		}
	}

	result := role.ProcessRequest(ctx, req)
	o.recordResult(result)

	if result.OK() && result.Action != nil && result.Action.Handoff != nil && result.Action.DestAgentType != "" {
		return o.followHandoff(ctx, result)
	}
	return result, nil
}

// ExecuteHandoff delivers a handoff context to a role of the destination
// type. The context is consumed exactly once; sourceID identifies the role
// (or external caller) initiating the handoff and is recorded on the
// destination's action for the audit trail.
func (o *Orchestrator) ExecuteHandoff(ctx context.Context, sourceID string, destType models.AgentType, h *models.HandoffContext) (*models.AgentResult, error) {
	if h == nil {
		return nil, errors.New("nil handoff context")
	}
	role, err := o.selectRole(destType)
	if err != nil {
		return nil, err
	}
	o.logger.Info("handoff executed",
		slog.String("conversation_id", h.ConversationID),
		slog.String("lead_id", h.LeadID),
		slog.String("source_id", sourceID),
		slog.String("dest_type", string(destType)))

	result := role.HandleHandoff(ctx, h)
	if sourceID != "" && result != nil && result.Action != nil {
		if result.Action.Result == nil {
			result.Action.Result = make(map[string]any, 1)
		}
		result.Action.Result["handoff_source"] = sourceID
	}
	o.recordResult(result)
	return result, nil
}

// Roles returns the registered role IDs grouped by type, in registration
// order.
func (o *Orchestrator) Roles() map[models.AgentType][]string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[models.AgentType][]string, len(o.byType))
	for t, ids := range o.byType {
		out[t] = append([]string(nil), ids...)
	}
	return out
}

// ConversationState derives the conversation's lifecycle stage from its
// recorded action history. State is never stored; replaying the history
// always yields the same answer.
func (o *Orchestrator) ConversationState(conversationID string) (models.ConversationState, error) {
	actions, err := o.memory.ConversationActions(conversationID)
	if err != nil {
		return "", err
	}
	return deriveState(actions), nil
}

func deriveState(actions []models.AgentAction) models.ConversationState {
	state := models.StateNew
	for _, a := range actions {
		switch a.Kind {
		case models.ActionTriage:
			state = models.StateTriaged
		case models.ActionOutreach:
			state = models.StateEngaged
			if converted, ok := a.Result["converted"].(bool); ok && converted {
				state = models.StateConverted
			}
		case models.ActionUpdateSegment:
			state = models.StateNurtured
		case models.ActionEscalate:
			state = models.StateEscalated
		case models.ActionHandoff:
			if state == models.StateNew {
				state = models.StateTriaged
			}
		}
	}
	return state
}

func (o *Orchestrator) selectRole(agentType models.AgentType) (agent.Role, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	ids := o.byType[agentType]
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoAgentAvailable, agentType)
	}
	return o.roles[ids[0]], nil
}

func (o *Orchestrator) followHandoff(ctx context.Context, result *models.AgentResult) (*models.AgentResult, error) {
	h := result.Action.Handoff
	h.PreviousActions = append(h.PreviousActions, *result.Action)
	next, err := o.ExecuteHandoff(ctx, result.Action.SourceAgent, result.Action.DestAgentType, h)
	if err != nil {
		if errors.Is(err, ErrNoAgentAvailable) {
			// The originating action stands on its own when nobody can
			// take the handoff.
			o.logger.Warn("handoff dropped", "destType", string(result.Action.DestAgentType))
			return result, nil
		}
		return nil, err
	}
	return next, nil
}

func (o *Orchestrator) recordResult(result *models.AgentResult) {
	if result == nil || result.Action == nil {
		return
	}
	if err := o.memory.RecordAction(result.Action); err != nil {
		o.logger.Error("action record failed", "actionId", result.Action.ID, "error", err)
	}
}
