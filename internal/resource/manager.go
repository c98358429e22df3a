package resource

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/purplemerit/leadmesh/internal/store"
)

// Scope is the access level requested on a resource.
type Scope string

const (
	ScopeRead        Scope = "read"
	ScopeWrite       Scope = "write"
	ScopeSearch      Scope = "search"
	ScopeConsolidate Scope = "consolidate"
)

// ErrPermissionDenied is returned when an actor lacks access to a resource.
// It is a value, not a panic: permission failures are expected control flow.
var ErrPermissionDenied = errors.New("resource: permission denied")

// ErrNotFound is returned when a resource URI resolves but the record is
// absent.
var ErrNotFound = errors.New("resource: not found")

// AccessRecord captures one access attempt for the audit trail.
type AccessRecord struct {
	ResourceURI string    `json:"resourceUri"`
	Scope       Scope     `json:"scope"`
	Operation   string    `json:"operation"`
	Actor       string    `json:"actor"`
	Success     bool      `json:"success"`
	Timestamp   time.Time `json:"timestamp"`
}

// permissionMatrix maps actor identities to the resource prefixes they may
// touch.
var permissionMatrix = map[string][]string{
	"MCP-Server":       {"db://leads", "db://campaigns", "db://interactions", "kg://graph"},
	"Agent-Client":     {"db://leads", "db://interactions", "analytics://events", "kg://graph"},
	"Optimizer-Worker": {"db://campaigns", "analytics://events", "kg://graph"},
}

// Manager mediates all data and analytics lookups for the core. It checks the
// permission matrix, logs every attempt, and resolves URIs against the
// relational tables and the knowledge graph.
type Manager struct {
	db       *store.DB
	semantic *store.SemanticStore
	logger   *slog.Logger

	mu        sync.Mutex
	accessLog []AccessRecord
}

func NewManager(db *store.DB, semantic *store.SemanticStore, logger *slog.Logger) *Manager {
	return &Manager{db: db, semantic: semantic, logger: logger}
}

// Access resolves a resource URI on behalf of an actor. Denials come back as
// ErrPermissionDenied; they are never raised-and-swallowed.
func (m *Manager) Access(ctx context.Context, resourceURI string, scope Scope, operation, actor string) (map[string]any, error) {
	if !m.allowed(resourceURI, actor) {
		m.record(resourceURI, scope, operation, actor, false)
		return nil, fmt.Errorf("%w: %s on %s", ErrPermissionDenied, actor, resourceURI)
	}

	result, err := m.resolve(ctx, resourceURI, operation)
	m.record(resourceURI, scope, operation, actor, err == nil)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetLead is a convenience wrapper for the hydration path before routing.
func (m *Manager) GetLead(ctx context.Context, leadID, actor string) (map[string]any, error) {
	return m.Access(ctx, "db://leads/"+leadID, ScopeRead, "SELECT", actor)
}

// GetCampaignMetrics returns aggregated daily metrics for a campaign.
func (m *Manager) GetCampaignMetrics(ctx context.Context, campaignID, actor string) (map[string]any, error) {
	return m.Access(ctx, "db://campaigns/"+campaignID, ScopeRead, "SELECT", actor)
}

// PutLead seeds or replaces a lead record. Used by ingestion tooling and
// tests; agents only read.
func (m *Manager) PutLead(leadID string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal lead: %w", err)
	}
	_, err = m.db.Exec(`
		INSERT INTO leads (lead_id, data) VALUES (?, ?)
		ON CONFLICT(lead_id) DO UPDATE SET data = excluded.data
	`, leadID, string(raw))
	if err != nil {
		return fmt.Errorf("put lead: %w", err)
	}
	return nil
}

// PutCampaignDay records one day of campaign metrics.
func (m *Manager) PutCampaignDay(campaignID, day string, metrics map[string]any) error {
	raw, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	_, err = m.db.Exec(`
		INSERT INTO campaign_daily (campaign_id, day, metrics) VALUES (?, ?, ?)
		ON CONFLICT(campaign_id, day) DO UPDATE SET metrics = excluded.metrics
	`, campaignID, day, string(raw))
	if err != nil {
		return fmt.Errorf("put campaign day: %w", err)
	}
	return nil
}

// AccessLog returns a copy of the recorded access attempts.
func (m *Manager) AccessLog() []AccessRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AccessRecord, len(m.accessLog))
	copy(out, m.accessLog)
	return out
}

func (m *Manager) allowed(resourceURI, actor string) bool {
	for _, prefix := range permissionMatrix[actor] {
		if strings.HasPrefix(resourceURI, prefix) {
			return true
		}
	}
	return false
}

func (m *Manager) record(uri string, scope Scope, operation, actor string, success bool) {
	m.mu.Lock()
	m.accessLog = append(m.accessLog, AccessRecord{
		ResourceURI: uri,
		Scope:       scope,
		Operation:   operation,
		Actor:       actor,
		Success:     success,
		Timestamp:   time.Now(),
	})
	m.mu.Unlock()
	if !success {
		m.logger.Warn("resource access denied or failed", "uri", uri, "actor", actor, "operation", operation)
	}
}

func (m *Manager) resolve(ctx context.Context, resourceURI, operation string) (map[string]any, error) {
	switch {
	case strings.HasPrefix(resourceURI, "db://leads/"):
		return m.loadLead(ctx, strings.TrimPrefix(resourceURI, "db://leads/"))
	case strings.HasPrefix(resourceURI, "db://campaigns/"):
		return m.loadCampaign(ctx, strings.TrimPrefix(resourceURI, "db://campaigns/"))
	case strings.HasPrefix(resourceURI, "kg://graph"):
		return m.loadGraph()
	case strings.HasPrefix(resourceURI, "analytics://events"):
		return m.loadAnalytics(ctx)
	default:
		return nil, fmt.Errorf("unknown resource type: %s", resourceURI)
	}
}

func (m *Manager) loadLead(ctx context.Context, leadID string) (map[string]any, error) {
	var raw string
	err := m.db.QueryRowContext(ctx, `SELECT data FROM leads WHERE lead_id = ?`, leadID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: lead %s", ErrNotFound, leadID)
	}
	if err != nil {
		return nil, fmt.Errorf("load lead: %w", err)
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("decode lead: %w", err)
	}
	return data, nil
}

func (m *Manager) loadCampaign(ctx context.Context, campaignID string) (map[string]any, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT day, metrics FROM campaign_daily WHERE campaign_id = ? ORDER BY day ASC
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("load campaign: %w", err)
	}
	defer rows.Close()

	var days []map[string]any
	for rows.Next() {
		var day, raw string
		if err := rows.Scan(&day, &raw); err != nil {
			return nil, fmt.Errorf("scan campaign day: %w", err)
		}
		var metrics map[string]any
		if err := json.Unmarshal([]byte(raw), &metrics); err != nil {
			return nil, fmt.Errorf("decode metrics: %w", err)
		}
		metrics["day"] = day
		days = append(days, metrics)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("%w: campaign %s", ErrNotFound, campaignID)
	}
	return map[string]any{"campaignId": campaignID, "daily": days}, nil
}

func (m *Manager) loadGraph() (map[string]any, error) {
	triples, err := m.semantic.Query("", "", "")
	if err != nil {
		return nil, err
	}
	return map[string]any{"triples": triples, "count": len(triples)}, nil
}

func (m *Manager) loadAnalytics(ctx context.Context) (map[string]any, error) {
	var campaigns, rowCount int
	err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT campaign_id), COUNT(*) FROM campaign_daily`,
	).Scan(&campaigns, &rowCount)
	if err != nil {
		return nil, fmt.Errorf("load analytics: %w", err)
	}
	return map[string]any{
		"totalCampaigns": campaigns,
		"totalDays":      rowCount,
		"generatedAt":    time.Now().UTC().Format(time.RFC3339),
	}, nil
}
