package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/purplemerit/leadmesh/internal/gentext"
	"github.com/purplemerit/leadmesh/internal/memory"
	"github.com/purplemerit/leadmesh/internal/models"
)

// EngagementRole runs personalized outreach. Generated content comes from the
// text service when one is configured; the templates are the fallback so
// outreach never fails on an unavailable upstream.
type EngagementRole struct {
	id     string
	rules  EngagementRules
	memory *memory.Service
	gen    *gentext.Client
	logger *slog.Logger
}

func NewEngagementRole(id string, rules EngagementRules, mem *memory.Service, gen *gentext.Client, logger *slog.Logger) *EngagementRole {
	return &EngagementRole{id: id, rules: rules, memory: mem, gen: gen, logger: logger}
}

func (r *EngagementRole) ID() string             { return r.id }
func (r *EngagementRole) Type() models.AgentType { return models.AgentEngagement }

func (r *EngagementRole) ProcessRequest(ctx context.Context, req *models.RouteRequest) *models.AgentResult {
	if req == nil {
		return errorResult("", "", "nil request")
	}
	lead := req.LeadData
	if lead == nil {
		lead = map[string]any{}
	}

	engagementType := req.EngagementType
	if engagementType == "" {
		engagementType = stringValue(req.Metadata, "engagement_type")
	}
	if _, ok := r.rules.Templates[engagementType]; !ok {
		engagementType = "welcome"
	}

	channel := r.SelectChannel(ctx, req.LeadID, lead)
	message := r.composeMessage(ctx, engagementType, channel, lead)

	action := newAction(models.ActionOutreach, r.id, models.AgentEngagement, req.ConversationID, req.LeadID)
	payload := map[string]any{
		"engagement_type": engagementType,
		"channel":         channel,
		"message":         message,
	}
	action.Result = payload

	if req.LeadID != "" {
		prefs := map[string]any{"preferred_channel": channel, "last_engagement": engagementType}
		if err := r.memory.UpdateProfile(req.LeadID, prefs, floatValue(req.Metadata, "lead_score")/100); err != nil {
			r.logger.Warn("profile update failed", "leadId", req.LeadID, "error", err)
		}
	}

	ctxUpdate := map[string]any{
		"category":          "interaction",
		"scenario":          fmt.Sprintf("%s via %s", engagementType, channel),
		"engagement_type":   engagementType,
		"preferred_channel": channel,
	}
	if req.LeadID != "" {
		ctxUpdate["lead_id"] = req.LeadID
	}
	if s, ok := req.Metadata["sentiment"]; ok {
		ctxUpdate["sentiment"] = s
	}
	saveContext(r.memory, req.ConversationID, ctxUpdate)

	if outcome := floatValue(req.Metadata, "outcome_score"); outcome > 0.5 {
		scenario := fmt.Sprintf("%s via %s", engagementType, channel)
		actions := []map[string]any{{"type": "outreach", "channel": channel, "engagement_type": engagementType}}
		if _, err := r.memory.AppendEpisode(ctx, scenario, actions, outcome, stringValue(req.Metadata, "notes")); err != nil {
			r.logger.Warn("episode append failed", "leadId", req.LeadID, "error", err)
		}
	}

	r.logger.Info("outreach executed",
		slog.String("conversation_id", req.ConversationID),
		slog.String("lead_id", req.LeadID),
		slog.String("engagement_type", engagementType),
		slog.String("channel", channel))

	return successResult(req.ConversationID, req.LeadID, "outreach executed", payload, action)
}

func (r *EngagementRole) HandleHandoff(ctx context.Context, h *models.HandoffContext) *models.AgentResult {
	if h == nil {
		return errorResult("", "", "nil handoff context")
	}
	return r.ProcessRequest(ctx, handoffRequest("engagement", h))
}

// SelectChannel picks the outreach channel: a stored preference wins,
// otherwise the persona decides.
func (r *EngagementRole) SelectChannel(ctx context.Context, leadID string, lead map[string]any) string {
	if leadID != "" {
		if profile, err := r.memory.GetProfile(leadID); err == nil && profile != nil {
			if ch, ok := profile.Preferences["preferred_channel"].(string); ok && ch != "" {
				return ch
			}
		}
	}
	if ch := stringValue(lead, "preferred_channel"); ch != "" {
		return ch
	}
	switch stringValue(lead, "persona") {
	case "Founder", "CMO", "CTO":
		return "email"
	case "Marketing Manager":
		return "social"
	}
	return "email"
}

func (r *EngagementRole) composeMessage(ctx context.Context, engagementType, channel string, lead map[string]any) string {
	fallback := r.rules.Templates[engagementType][channel]
	if fallback == "" {
		fallback = r.rules.Templates[engagementType]["email"]
	}
	if r.gen == nil {
		return fallback
	}
	out, err := r.gen.GenerateContent(ctx, lead, engagementType, toneFor(lead))
	if err != nil {
		r.logger.Warn("content generation failed, using template", "error", err)
		return fallback
	}
	if msg, ok := out["content"].(string); ok && msg != "" {
		return msg
	}
	return fallback
}

func toneFor(lead map[string]any) string {
	switch stringValue(lead, "persona") {
	case "Founder", "CTO":
		return "direct"
	case "CMO":
		return "strategic"
	}
	return "friendly"
}
