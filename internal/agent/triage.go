package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/purplemerit/leadmesh/internal/memory"
	"github.com/purplemerit/leadmesh/internal/models"
)

// Triage categories.
const (
	CategoryCampaignQualified = "Campaign Qualified"
	CategoryColdLead          = "Cold Lead"
	CategoryGeneralInquiry    = "General Inquiry"
)

// TriageRole classifies and scores inbound leads, then decides where the
// conversation goes next.
type TriageRole struct {
	id     string
	rules  TriageRules
	memory *memory.Service
	logger *slog.Logger
}

func NewTriageRole(id string, rules TriageRules, mem *memory.Service, logger *slog.Logger) *TriageRole {
	return &TriageRole{id: id, rules: rules, memory: mem, logger: logger}
}

func (r *TriageRole) ID() string             { return r.id }
func (r *TriageRole) Type() models.AgentType { return models.AgentLeadTriage }

func (r *TriageRole) ProcessRequest(ctx context.Context, req *models.RouteRequest) *models.AgentResult {
	if req == nil {
		return errorResult("", "", "nil request")
	}
	lead := req.LeadData
	if lead == nil {
		lead = map[string]any{}
	}

	category := r.Categorize(lead)
	score := r.Score(lead)

	action := newAction(models.ActionTriage, r.id, models.AgentLeadTriage, req.ConversationID, req.LeadID)
	payload := map[string]any{
		"category":   category,
		"lead_score": score,
	}

	industry := stringValue(lead, "industry")

	ctxUpdate := map[string]any{"category": category, "lead_score": score / 100}
	if req.LeadID != "" {
		ctxUpdate["lead_id"] = req.LeadID
	}
	if industry != "" {
		ctxUpdate["industry"] = industry
	}
	saveContext(r.memory, req.ConversationID, ctxUpdate)

	if contains(r.rules.AutoEscalateIndustries, industry) {
		action.Kind = models.ActionEscalate
		action.DestAgentType = models.AgentManager
		action.EscalationReason = escalationFor(industry)
		action.Handoff = newHandoff(
			fmt.Sprintf("Lead in regulated industry %s requires manual review", industry),
			0.9, req.ConversationID, req.LeadID, nil,
			map[string]any{"lead_data": lead, "category": category, "lead_score": score},
		)
		payload["escalated"] = true
		payload["escalation_reason"] = string(action.EscalationReason)
		action.Result = payload
		r.logger.Info("lead escalated",
			slog.String("conversation_id", req.ConversationID),
			slog.String("lead_id", req.LeadID),
			slog.String("industry", industry))
		return successResult(req.ConversationID, req.LeadID, "lead escalated to manager", payload, action)
	}

	priority, nextStep := r.route(category, score)
	payload["priority"] = priority
	payload["next_step"] = nextStep

	if nextStep == "nurture_lead" {
		action.Kind = models.ActionUpdateSegment
		payload["segment"] = "nurture"
	}
	if nextStep == "high_value_lead" || nextStep == "qualified_lead" {
		action.Kind = models.ActionHandoff
		action.DestAgentType = models.AgentEngagement
		if score >= r.rules.HighValueThreshold {
			action.EscalationReason = models.EscalationHighValue
		}
		action.Handoff = newHandoff(
			fmt.Sprintf("Lead triaged as %s with score %.0f", category, score),
			confidenceFor(score), req.ConversationID, req.LeadID, nil,
			map[string]any{
				"lead_data":       lead,
				"category":        category,
				"lead_score":      score,
				"engagement_type": engagementTypeFor(nextStep),
			},
		)
	}
	action.Result = payload

	r.logger.Info("lead triaged",
		slog.String("conversation_id", req.ConversationID),
		slog.String("lead_id", req.LeadID),
		slog.String("category", category),
		slog.Float64("score", score),
		slog.String("priority", priority))

	return successResult(req.ConversationID, req.LeadID, "lead triaged", payload, action)
}

func (r *TriageRole) HandleHandoff(ctx context.Context, h *models.HandoffContext) *models.AgentResult {
	if h == nil {
		return errorResult("", "", "nil handoff context")
	}
	return r.ProcessRequest(ctx, handoffRequest("lead_triage", h))
}

// Categorize assigns one of the triage categories from the lead's attributes.
// Missing attributes degrade to the cold-lead path rather than failing.
func (r *TriageRole) Categorize(lead map[string]any) string {
	industry := stringValue(lead, "industry")
	if contains(r.rules.AutoEscalateIndustries, industry) {
		return CategoryGeneralInquiry
	}
	source := stringValue(lead, "source")
	persona := stringValue(lead, "persona")
	if source == "Google Ads" {
		return CategoryCampaignQualified
	}
	if source == "Website" && (persona == "Founder" || persona == "CMO") {
		return CategoryCampaignQualified
	}
	switch stringValue(lead, "company_size") {
	case "5000+", "1001-5000":
		return CategoryCampaignQualified
	}
	return CategoryColdLead
}

// Score computes a 0-100 lead score from weighted firmographic signals.
func (r *TriageRole) Score(lead map[string]any) float64 {
	score := 0.0
	if w, ok := r.rules.CompanySizeWeights[stringValue(lead, "company_size")]; ok {
		score += w * 30
	}
	if contains(r.rules.HighValueIndustries, stringValue(lead, "industry")) {
		score += 25
	}
	if contains(r.rules.DecisionMakerPersonas, stringValue(lead, "persona")) {
		score += 20
	}
	if contains(r.rules.PriorityRegions, stringValue(lead, "region")) {
		score += 15
	}
	if contains(r.rules.HighIntentSources, stringValue(lead, "source")) {
		score += 10
	}
	if score > 100 {
		score = 100
	}
	return score
}

func (r *TriageRole) route(category string, score float64) (priority, nextStep string) {
	switch {
	case score >= r.rules.HighValueThreshold:
		return "high", "high_value_lead"
	case category == CategoryCampaignQualified:
		return "medium", "qualified_lead"
	default:
		return "low", "nurture_lead"
	}
}

func escalationFor(industry string) models.EscalationReason {
	if industry == "Legal" {
		return models.EscalationLegal
	}
	return models.EscalationComplexRequest
}

func confidenceFor(score float64) float64 {
	return 0.5 + score/200
}

func engagementTypeFor(nextStep string) string {
	if nextStep == "high_value_lead" {
		return "demo_invite"
	}
	return "welcome"
}
