package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/purplemerit/leadmesh/internal/gentext"
	"github.com/purplemerit/leadmesh/internal/memory"
	"github.com/purplemerit/leadmesh/internal/models"
)

// OptimizerRole analyzes campaign performance and recommends budget and
// creative adjustments. Sustained underperformance gets escalated to a
// manager instead of silently auto-adjusted.
type OptimizerRole struct {
	id     string
	rules  OptimizerRules
	memory *memory.Service
	gen    *gentext.Client
	logger *slog.Logger
}

func NewOptimizerRole(id string, rules OptimizerRules, mem *memory.Service, gen *gentext.Client, logger *slog.Logger) *OptimizerRole {
	return &OptimizerRole{id: id, rules: rules, memory: mem, gen: gen, logger: logger}
}

func (r *OptimizerRole) ID() string             { return r.id }
func (r *OptimizerRole) Type() models.AgentType { return models.AgentOptimizer }

func (r *OptimizerRole) ProcessRequest(ctx context.Context, req *models.RouteRequest) *models.AgentResult {
	if req == nil {
		return errorResult("", "", "nil request")
	}
	campaign := req.CampaignData
	if campaign == nil {
		campaign = map[string]any{}
	}

	optimizationType := req.OptimizationType
	switch optimizationType {
	case "performance_check", "ab_test_analysis", "budget_optimization":
	default:
		optimizationType = "performance_check"
	}

	ctr := floatValue(campaign, "ctr")
	cpl := floatValue(campaign, "cpl")
	roas := floatValue(campaign, "roas")
	conv := floatValue(campaign, "conversion_rate")

	action := newAction(models.ActionOptimize, r.id, models.AgentOptimizer, req.ConversationID, req.LeadID)
	payload := map[string]any{
		"optimization_type": optimizationType,
		"performance_score": r.PerformanceScore(campaign),
	}

	if optimizationType != "budget_optimization" && roas < 1.0 && conv < r.rules.ConversionRateThreshold {
		action.Kind = models.ActionEscalate
		action.DestAgentType = models.AgentManager
		action.EscalationReason = models.EscalationLowPerf
		action.Handoff = newHandoff(
			fmt.Sprintf("Campaign underperforming: ROAS %.2f, conversion rate %.3f", roas, conv),
			0.85, req.ConversationID, req.LeadID, nil,
			map[string]any{"campaign_data": campaign, "optimization_type": optimizationType},
		)
		payload["escalated"] = true
		payload["escalation_reason"] = string(models.EscalationLowPerf)
		action.Result = payload
		saveContext(r.memory, req.ConversationID, map[string]any{
			"optimization_type": optimizationType,
			"escalated":         true,
		})
		r.logger.Warn("campaign escalated",
			slog.String("conversation_id", req.ConversationID),
			slog.Float64("roas", roas),
			slog.Float64("conversion_rate", conv))
		return successResult(req.ConversationID, req.LeadID, "campaign escalated to manager", payload, action)
	}

	var recommendations []map[string]any
	switch optimizationType {
	case "ab_test_analysis":
		recommendations = r.analyzeABTest(campaign)
	case "budget_optimization":
		recommendations = r.optimizeBudget(campaign)
		// No conversions and a collapsed ROAS: stop spend instead of halving it.
		if roas < r.rules.ScaleDownThreshold && floatValue(campaign, "conversions") == 0 {
			action.Kind = models.ActionPauseCampaign
			recommendations = []map[string]any{{
				"action": "pause_campaign",
				"reason": fmt.Sprintf("ROAS %.2f with zero conversions", roas),
			}}
		}
	default:
		recommendations = r.checkPerformance(ctr, cpl, roas, conv)
	}

	if r.gen != nil {
		metrics := map[string]any{"ctr": ctr, "cpl": cpl, "roas": roas, "conversion_rate": conv}
		if out, err := r.gen.OptimizeStrategy(ctx, campaign, metrics); err != nil {
			r.logger.Warn("strategy optimization failed", "error", err)
		} else if suggestion, ok := out["strategy"].(string); ok && suggestion != "" {
			recommendations = append(recommendations, map[string]any{
				"action": "strategy_suggestion",
				"reason": suggestion,
			})
		}
	}

	payload["recommendations"] = recommendations
	action.Result = payload

	saveContext(r.memory, req.ConversationID, map[string]any{
		"optimization_type": optimizationType,
		"performance_score": payload["performance_score"],
	})

	r.logger.Info("campaign analyzed",
		slog.String("conversation_id", req.ConversationID),
		slog.String("optimization_type", optimizationType),
		slog.Int("recommendations", len(recommendations)))

	return successResult(req.ConversationID, req.LeadID, "campaign analyzed", payload, action)
}

func (r *OptimizerRole) HandleHandoff(ctx context.Context, h *models.HandoffContext) *models.AgentResult {
	if h == nil {
		return errorResult("", "", "nil handoff context")
	}
	return r.ProcessRequest(ctx, handoffRequest("campaign_optimization", h))
}

// PerformanceScore collapses the core metrics into a single comparable value.
func (r *OptimizerRole) PerformanceScore(campaign map[string]any) float64 {
	return floatValue(campaign, "ctr")*30 +
		floatValue(campaign, "roas")*50 +
		floatValue(campaign, "conversions")*20
}

func (r *OptimizerRole) checkPerformance(ctr, cpl, roas, conv float64) []map[string]any {
	var recs []map[string]any
	if ctr < r.rules.CTRThreshold {
		recs = append(recs, map[string]any{
			"action": "refresh_creative",
			"reason": fmt.Sprintf("CTR %.4f below threshold %.4f", ctr, r.rules.CTRThreshold),
		})
	}
	if cpl > r.rules.CPLThreshold {
		recs = append(recs, map[string]any{
			"action": "tighten_targeting",
			"reason": fmt.Sprintf("CPL %.2f above threshold %.2f", cpl, r.rules.CPLThreshold),
		})
	}
	if roas < r.rules.ROASThreshold && roas >= r.rules.ScaleDownThreshold {
		recs = append(recs, map[string]any{
			"action": "adjust_bidding",
			"reason": fmt.Sprintf("ROAS %.2f below target %.2f", roas, r.rules.ROASThreshold),
		})
	}
	if roas >= r.rules.ScaleUpThreshold {
		recs = append(recs, map[string]any{
			"action": "scale_up",
			"reason": fmt.Sprintf("ROAS %.2f at or above scale-up threshold %.2f", roas, r.rules.ScaleUpThreshold),
		})
	} else if roas < r.rules.ScaleDownThreshold {
		recs = append(recs, map[string]any{
			"action": "scale_down",
			"reason": fmt.Sprintf("ROAS %.2f below scale-down threshold %.2f", roas, r.rules.ScaleDownThreshold),
		})
	}
	if conv < r.rules.ConversionRateThreshold && roas >= 1.0 {
		recs = append(recs, map[string]any{
			"action": "improve_landing_page",
			"reason": fmt.Sprintf("conversion rate %.3f below threshold %.3f", conv, r.rules.ConversionRateThreshold),
		})
	}
	if len(recs) == 0 {
		recs = append(recs, map[string]any{
			"action": "maintain",
			"reason": "all metrics within thresholds",
		})
	}
	return recs
}

func (r *OptimizerRole) analyzeABTest(campaign map[string]any) []map[string]any {
	variants, ok := campaign["variants"].([]any)
	if !ok || len(variants) == 0 {
		return []map[string]any{{
			"action": "configure_test",
			"reason": "no variants present for analysis",
		}}
	}
	bestIdx := 0
	bestScore := -1.0
	for i, raw := range variants {
		v, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		score := floatValue(v, "ctr")*30 + floatValue(v, "conversion_rate")*70
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	name := fmt.Sprintf("variant_%d", bestIdx)
	if v, ok := variants[bestIdx].(map[string]any); ok {
		if n := stringValue(v, "name"); n != "" {
			name = n
		}
	}
	return []map[string]any{{
		"action": "promote_variant",
		"reason": fmt.Sprintf("%s leads with combined score %.2f", name, bestScore),
	}}
}

func (r *OptimizerRole) optimizeBudget(campaign map[string]any) []map[string]any {
	budget := floatValue(campaign, "daily_budget")
	roas := floatValue(campaign, "roas")
	switch {
	case roas >= r.rules.ScaleUpThreshold:
		return []map[string]any{{
			"action":     "increase_budget",
			"new_budget": budget * 1.25,
			"reason":     fmt.Sprintf("ROAS %.2f supports a 25%% budget increase", roas),
		}}
	case roas < r.rules.ScaleDownThreshold:
		return []map[string]any{{
			"action":     "decrease_budget",
			"new_budget": budget * 0.5,
			"reason":     fmt.Sprintf("ROAS %.2f requires halving spend", roas),
		}}
	}
	return []map[string]any{{
		"action": "hold_budget",
		"reason": fmt.Sprintf("ROAS %.2f within operating band", roas),
	}}
}
