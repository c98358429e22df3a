package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/purplemerit/leadmesh/internal/memory"
	"github.com/purplemerit/leadmesh/internal/models"
	"github.com/purplemerit/leadmesh/internal/orchestrator"
	"github.com/purplemerit/leadmesh/internal/resource"
)

// rpcActor is the identity the stdio surface presents to the resource layer.
const rpcActor = "MCP-Server"

// Server implements a line-delimited JSON-RPC 2.0 server over stdio. Each
// line is one request; each response is one line.
type Server struct {
	memory *memory.Service
	orch   *orchestrator.Orchestrator
	res    *resource.Manager
	logger *slog.Logger

	requests atomic.Uint64
}

// NewServer creates a stdio server over the shared services.
func NewServer(mem *memory.Service, orch *orchestrator.Orchestrator, res *resource.Manager, logger *slog.Logger) *Server {
	return &Server{memory: mem, orch: orch, res: res, logger: logger}
}

// Run reads requests from r until EOF, writing one response line per request
// to w.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	// Large seeded payloads can exceed the default line limit.
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			writeResponse(w, errorResponse(nil, codeParseError, "parse error: "+err.Error()))
			continue
		}

		writeResponse(w, s.Handle(ctx, &req))

		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// Handle dispatches a single request and returns its response.
func (s *Server) Handle(ctx context.Context, req *Request) *Response {
	start := time.Now()
	resp := s.dispatch(ctx, req)
	s.logger.Info("rpc request",
		"method", req.Method,
		"requests", s.requests.Add(1),
		"duration_ms", time.Since(start).Milliseconds(),
		"ok", resp.Error == nil)
	return resp
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	var (
		result any
		err    error
	)
	switch req.Method {
	case "getLeadData":
		result, err = s.getLeadData(ctx, req.Params)
	case "searchGraph":
		result, err = s.searchGraph(ctx, req.Params)
	case "storeMemory":
		result, err = s.storeMemory(ctx, req.Params)
	case "recommendAction":
		result, err = s.recommendAction(ctx, req.Params)
	case "updateCampaign":
		result, err = s.updateCampaign(ctx, req.Params)
	case "analyzePerformance":
		result, err = s.analyzePerformance(ctx, req.Params)
	case "ping":
		return &Response{JSONRPC: "2.0", ID: req.ID, Result: map[string]string{}}
	default:
		return errorResponse(req.ID, codeMethodNotFound, "method not found: "+req.Method)
	}

	if err != nil {
		var pe *paramError
		if errors.As(err, &pe) {
			return errorResponse(req.ID, codeInvalidParams, pe.Error())
		}
		s.logger.Error("rpc method failed", "method", req.Method, "error", err)
		return errorResponse(req.ID, codeInternalError, err.Error())
	}
	return &Response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (s *Server) getLeadData(ctx context.Context, params map[string]any) (any, error) {
	leadID, err := requireString(params, "leadId")
	if err != nil {
		return nil, err
	}
	lead, err := s.res.GetLead(ctx, leadID, rpcActor)
	if err != nil {
		return nil, err
	}
	out := map[string]any{"leadId": leadID, "lead": lead}
	if profile, err := s.memory.GetProfile(leadID); err == nil && profile != nil {
		out["profile"] = profile
	}
	return out, nil
}

func (s *Server) searchGraph(ctx context.Context, params map[string]any) (any, error) {
	triples, err := s.memory.QueryTriples(
		optionalString(params, "subject"),
		optionalString(params, "predicate"),
		optionalString(params, "object"),
	)
	if err != nil {
		return nil, err
	}
	return map[string]any{"triples": triples, "count": len(triples)}, nil
}

func (s *Server) storeMemory(ctx context.Context, params map[string]any) (any, error) {
	tier, err := requireString(params, "tier")
	if err != nil {
		return nil, err
	}
	switch tier {
	case "short_term":
		conversationID, err := requireString(params, "conversationId")
		if err != nil {
			return nil, err
		}
		contextData, _ := params["context"].(map[string]any)
		s.memory.PutContext(conversationID, contextData, 0)
		return map[string]any{"stored": true, "tier": tier}, nil
	case "long_term":
		leadID, err := requireString(params, "leadId")
		if err != nil {
			return nil, err
		}
		prefs, _ := params["preferences"].(map[string]any)
		if err := s.memory.UpdateProfile(leadID, prefs, optionalFloat(params, "rfmScore")); err != nil {
			return nil, err
		}
		return map[string]any{"stored": true, "tier": tier}, nil
	case "episodic":
		scenario, err := requireString(params, "scenario")
		if err != nil {
			return nil, err
		}
		actions := toActionList(params["actions"])
		id, err := s.memory.AppendEpisode(ctx, scenario, actions, optionalFloat(params, "outcomeScore"), optionalString(params, "notes"))
		if err != nil {
			return nil, err
		}
		return map[string]any{"stored": true, "tier": tier, "episodeId": id}, nil
	case "semantic":
		subject, err := requireString(params, "subject")
		if err != nil {
			return nil, err
		}
		predicate, err := requireString(params, "predicate")
		if err != nil {
			return nil, err
		}
		object, err := requireString(params, "object")
		if err != nil {
			return nil, err
		}
		if err := s.memory.UpsertTriple(subject, predicate, object, optionalFloat(params, "weight")); err != nil {
			return nil, err
		}
		return map[string]any{"stored": true, "tier": tier}, nil
	default:
		return nil, &paramError{fmt.Sprintf("unknown tier %q", tier)}
	}
}

func (s *Server) recommendAction(ctx context.Context, params map[string]any) (any, error) {
	req := &models.RouteRequest{
		Type:           "lead_triage",
		ConversationID: optionalString(params, "conversationId"),
		LeadID:         optionalString(params, "leadId"),
	}
	if lead, ok := params["leadData"].(map[string]any); ok {
		req.LeadData = lead
	}
	result, err := s.orch.Route(ctx, req)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Server) updateCampaign(ctx context.Context, params map[string]any) (any, error) {
	campaignID, err := requireString(params, "campaignId")
	if err != nil {
		return nil, err
	}
	day, err := requireString(params, "day")
	if err != nil {
		return nil, err
	}
	metrics, ok := params["metrics"].(map[string]any)
	if !ok {
		return nil, &paramError{"metrics must be an object"}
	}
	if _, err := s.res.Access(ctx, "db://campaigns/"+campaignID, resource.ScopeWrite, "updateCampaign", rpcActor); err != nil {
		return nil, err
	}
	if err := s.res.PutCampaignDay(campaignID, day, metrics); err != nil {
		return nil, err
	}
	return map[string]any{"updated": true, "campaignId": campaignID, "day": day}, nil
}

func (s *Server) analyzePerformance(ctx context.Context, params map[string]any) (any, error) {
	campaignData, ok := params["campaignData"].(map[string]any)
	if !ok {
		campaignID, err := requireString(params, "campaignId")
		if err != nil {
			return nil, &paramError{"campaignData or campaignId required"}
		}
		envelope, err := s.res.GetCampaignMetrics(ctx, campaignID, rpcActor)
		if err != nil {
			return nil, err
		}
		// Analyze the latest recorded day.
		if daily, ok := envelope["daily"].([]map[string]any); ok && len(daily) > 0 {
			campaignData = daily[len(daily)-1]
		} else {
			campaignData = envelope
		}
	}
	result, err := s.orch.Route(ctx, &models.RouteRequest{
		Type:             "campaign_optimization",
		ConversationID:   optionalString(params, "conversationId"),
		CampaignData:     campaignData,
		OptimizationType: optionalString(params, "optimizationType"),
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// --- Response helpers ---

func writeResponse(w io.Writer, resp *Response) {
	data, _ := json.Marshal(resp)
	fmt.Fprintf(w, "%s\n", data)
}

func errorResponse(id any, code int, message string) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: message},
	}
}

// --- Param helpers ---

type paramError struct {
	msg string
}

func (e *paramError) Error() string { return e.msg }

func requireString(params map[string]any, key string) (string, error) {
	s, ok := params[key].(string)
	if !ok || s == "" {
		return "", &paramError{fmt.Sprintf("%s is required", key)}
	}
	return s, nil
}

func optionalString(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}

func optionalFloat(params map[string]any, key string) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func toActionList(v any) []map[string]any {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
