// Package types defines the shared data model for overmind: agents, decisions,
// action results, evolution events, and the aggregate system metrics record.
// These structs are the persisted shapes — JSON tags here define the on-disk
// collection format, so changes must stay backward-readable.
package types

import (
	"fmt"
	"time"
)

// =============================================================================
// AGENTS
// =============================================================================

// AgentStatus models the agent lifecycle. Agents are never physically deleted;
// a terminal status is how an agent leaves the swarm.
type AgentStatus string

const (
	StatusCreated   AgentStatus = "created"
	StatusActive    AgentStatus = "active"
	StatusPaused    AgentStatus = "paused"
	StatusCompleted AgentStatus = "completed"
)

// Role tags an agent with its specialty. The factory owns the template for
// each role; the delegate handler maps each role to its synthetic task.
type Role string

const (
	RoleScout     Role = "scout"     // surveys the environment, produces scan reports
	RoleAnalyst   Role = "analyst"   // digests decision history into reports
	RoleHarvester Role = "harvester" // refills shared resources
	RoleGuardian  Role = "guardian"  // rebalances and protects holdings
	RoleCourier   Role = "courier"   // relays messages between agents
)

// AllRoles returns every known role in stable order.
func AllRoles() []Role {
	return []Role{RoleScout, RoleAnalyst, RoleHarvester, RoleGuardian, RoleCourier}
}

// AgentMetadata carries the mutable performance bookkeeping for one agent.
type AgentMetadata struct {
	CreationRef  string    `json:"creation_ref,omitempty"` // ledger ref of the spawn record
	Progress     int       `json:"progress"`               // 0-100
	LastActiveAt time.Time `json:"last_active_at"`
	SuccessCount int       `json:"success_count"`
	FailureCount int       `json:"failure_count"`
	CurrentTask  string    `json:"current_task,omitempty"` // non-empty while busy
	TaskHistory  []string  `json:"task_history,omitempty"`
}

// Agent is a child unit created and tracked by the root controller.
type Agent struct {
	ID        string        `json:"id"`
	Role      Role          `json:"role"`
	Mission   string        `json:"mission"`
	Address   string        `json:"address"` // external ledger address
	CreatedAt time.Time     `json:"created_at"`
	CreatedBy string        `json:"created_by"`
	Status    AgentStatus   `json:"status"`
	Metadata  AgentMetadata `json:"metadata"`
}

// SuccessRate returns successes over total attempts, or 1.0 for an agent with
// no history (a fresh agent is not treated as failing).
func (a *Agent) SuccessRate() float64 {
	total := a.Metadata.SuccessCount + a.Metadata.FailureCount
	if total == 0 {
		return 1.0
	}
	return float64(a.Metadata.SuccessCount) / float64(total)
}

// Busy reports whether the agent currently holds a delegated task.
func (a *Agent) Busy() bool {
	return a.Metadata.CurrentTask != ""
}

// Validate checks the structural invariants of a persisted agent record.
func (a *Agent) Validate() error {
	if a.ID == "" {
		return &ValidationError{Record: "agent", Field: "id", Reason: "empty"}
	}
	if a.Role == "" {
		return &ValidationError{Record: "agent", Field: "role", Reason: "empty"}
	}
	switch a.Status {
	case StatusCreated, StatusActive, StatusPaused, StatusCompleted:
	default:
		return &ValidationError{Record: "agent", Field: "status", Reason: fmt.Sprintf("unknown status %q", a.Status)}
	}
	if a.Metadata.Progress < 0 || a.Metadata.Progress > 100 {
		return &ValidationError{Record: "agent", Field: "metadata.progress", Reason: "outside 0-100"}
	}
	if a.Metadata.SuccessCount < 0 || a.Metadata.FailureCount < 0 {
		return &ValidationError{Record: "agent", Field: "metadata.counters", Reason: "negative"}
	}
	return nil
}

// =============================================================================
// DECISIONS AND ACTION RESULTS
// =============================================================================

// ActionType enumerates the behaviors the controller can choose per cycle.
type ActionType string

const (
	ActionSpawnAgent ActionType = "spawn_agent"
	ActionCoordinate ActionType = "coordinate_swarm"
	ActionEvolve     ActionType = "evolve_strategy"
	ActionDelegate   ActionType = "delegate_task"
	ActionAnalyze    ActionType = "analyze_performance"
	ActionWait       ActionType = "wait"
)

// AllActionTypes returns every action type in stable order. The decision
// engine's weight vector has exactly one entry per element of this slice.
func AllActionTypes() []ActionType {
	return []ActionType{
		ActionSpawnAgent,
		ActionCoordinate,
		ActionEvolve,
		ActionDelegate,
		ActionAnalyze,
		ActionWait,
	}
}

// SpawnParams parameterizes a spawn_agent decision.
type SpawnParams struct {
	Role Role `json:"role"`
}

// CoordinateParams parameterizes a coordinate_swarm decision.
type CoordinateParams struct {
	Reason string `json:"reason,omitempty"`
}

// EvolveParams parameterizes an evolve_strategy decision.
type EvolveParams struct {
	Trigger string `json:"trigger,omitempty"`
}

// DelegateParams parameterizes a delegate_task decision.
type DelegateParams struct {
	AgentID string `json:"agent_id,omitempty"` // filled by the handler once a target is picked
}

// AnalyzeParams parameterizes an analyze_performance decision.
type AnalyzeParams struct {
	Focus string `json:"focus,omitempty"`
}

// DecisionParams is a tagged union over the per-action parameter shapes.
// Exactly one pointer field is set for a well-formed decision; Extra exists
// for forward compatibility with parameters this version does not know.
type DecisionParams struct {
	Spawn      *SpawnParams      `json:"spawn,omitempty"`
	Coordinate *CoordinateParams `json:"coordinate,omitempty"`
	Evolve     *EvolveParams     `json:"evolve,omitempty"`
	Delegate   *DelegateParams   `json:"delegate,omitempty"`
	Analyze    *AnalyzeParams    `json:"analyze,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Decision is an immutable record of one choice the controller made.
type Decision struct {
	ID         string         `json:"id"`
	Type       ActionType     `json:"type"`
	Reasoning  string         `json:"reasoning"` // human-readable; never load-bearing
	Params     DecisionParams `json:"params"`
	Timestamp  time.Time      `json:"timestamp"`
	Confidence float64        `json:"confidence"` // pre-jitter selection weight, [0,1]
	MadeBy     string         `json:"made_by"`
}

// Validate checks the structural invariants of a persisted decision.
func (d *Decision) Validate() error {
	if d.ID == "" {
		return &ValidationError{Record: "decision", Field: "id", Reason: "empty"}
	}
	switch d.Type {
	case ActionSpawnAgent, ActionCoordinate, ActionEvolve, ActionDelegate, ActionAnalyze, ActionWait:
	default:
		return &ValidationError{Record: "decision", Field: "type", Reason: fmt.Sprintf("unknown action type %q", d.Type)}
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return &ValidationError{Record: "decision", Field: "confidence", Reason: "outside [0,1]"}
	}
	return nil
}

// ActionResult records the outcome of executing one decision. Every decision
// in the log is paired with exactly one result before its cycle completes.
type ActionResult struct {
	Success     bool      `json:"success"`
	DecisionID  string    `json:"decision_id"`
	Outcome     string    `json:"outcome"`
	ExternalRef string    `json:"external_ref,omitempty"` // ledger ref, when one was published
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	DurationMs  int64     `json:"duration_ms"`
}

// DecisionRecord is the decision log entry: a decision and its paired result.
type DecisionRecord struct {
	Decision Decision     `json:"decision"`
	Result   ActionResult `json:"result"`
}

// Validate checks the mutual id linkage of the pair.
func (r *DecisionRecord) Validate() error {
	if err := r.Decision.Validate(); err != nil {
		return err
	}
	if r.Result.DecisionID != r.Decision.ID {
		return &ValidationError{Record: "decision_record", Field: "result.decision_id", Reason: "does not match decision id"}
	}
	return nil
}

// =============================================================================
// EVOLUTION AND METRICS
// =============================================================================

// EvolutionEvent is an append-only audit entry for a weight-vector change.
type EvolutionEvent struct {
	ID          string             `json:"id"`
	Kind        string             `json:"kind"`
	Description string             `json:"description"`
	Before      map[string]float64 `json:"before"` // action type -> base weight
	After       map[string]float64 `json:"after"`
	Timestamp   time.Time          `json:"timestamp"`
	TriggeredBy string             `json:"triggered_by"` // decision id
}

// Validate checks the structural invariants of a persisted evolution event.
func (e *EvolutionEvent) Validate() error {
	if e.ID == "" {
		return &ValidationError{Record: "evolution_event", Field: "id", Reason: "empty"}
	}
	if e.TriggeredBy == "" {
		return &ValidationError{Record: "evolution_event", Field: "triggered_by", Reason: "empty"}
	}
	return nil
}

// SystemMetrics is the single mutable aggregate for the whole system.
// It is read-modify-written under the store's atomic-write discipline.
type SystemMetrics struct {
	TotalAgentsCreated int64     `json:"total_agents_created"`
	ActiveAgents       int64     `json:"active_agents"`
	TotalDecisions     int64     `json:"total_decisions"`
	SuccessfulActions  int64     `json:"successful_actions"`
	FailedActions      int64     `json:"failed_actions"`
	TotalLedgerOps     int64     `json:"total_ledger_ops"`
	AverageCycleTimeMs float64   `json:"average_cycle_time_ms"`
	EvolutionScore     float64   `json:"evolution_score"` // clamped [0,1]
	UptimeSeconds      int64     `json:"uptime_seconds"`
	LastUpdated        time.Time `json:"last_updated"`
}

// Validate checks the clamp invariants of the aggregate record.
func (m *SystemMetrics) Validate() error {
	if m.EvolutionScore < 0 || m.EvolutionScore > 1 {
		return &ValidationError{Record: "metrics", Field: "evolution_score", Reason: "outside [0,1]"}
	}
	if m.SuccessfulActions < 0 || m.FailedActions < 0 || m.TotalDecisions < 0 {
		return &ValidationError{Record: "metrics", Field: "counters", Reason: "negative"}
	}
	return nil
}

// =============================================================================
// WALLETS
// =============================================================================

// WalletRecord is the persisted shape of one identity's signing material.
// The secret key is stored hex-encoded; local custody only.
type WalletRecord struct {
	OwnerID    string    `json:"owner_id"`
	Address    string    `json:"address"`
	PublicKey  string    `json:"public_key"`
	SecretKey  string    `json:"secret_key"`
	Balance    uint64    `json:"balance"` // smallest ledger unit
	Privileged bool      `json:"privileged"`
	CreatedAt  time.Time `json:"created_at"`
}

// Validate checks the structural invariants of a persisted wallet.
func (w *WalletRecord) Validate() error {
	if w.OwnerID == "" {
		return &ValidationError{Record: "wallet", Field: "owner_id", Reason: "empty"}
	}
	if w.Address == "" {
		return &ValidationError{Record: "wallet", Field: "address", Reason: "empty"}
	}
	return nil
}

// =============================================================================
// CYCLE EVENTS
// =============================================================================

// CyclePhase names one of the six phases of the autonomy cycle.
type CyclePhase string

const (
	PhaseObserve CyclePhase = "observe"
	PhaseReason  CyclePhase = "reason"
	PhaseDecide  CyclePhase = "decide"
	PhaseAct     CyclePhase = "act"
	PhaseLog     CyclePhase = "log"
	PhaseEvolve  CyclePhase = "evolve"
)

// CycleEvent is the shape pushed to dashboard/CLI consumers as a cycle runs.
// Pointer fields are set only when the phase produced them.
type CycleEvent struct {
	Cycle     int64           `json:"cycle"`
	Phase     CyclePhase      `json:"phase"`
	Decision  *Decision       `json:"decision,omitempty"`
	Result    *ActionResult   `json:"result,omitempty"`
	Evolution *EvolutionEvent `json:"evolution,omitempty"`
	Err       string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
