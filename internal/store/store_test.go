package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"overmind/internal/types"
)

func testAgent(id string, role types.Role, created time.Time) types.Agent {
	return types.Agent{
		ID:        id,
		Role:      role,
		Mission:   "test mission",
		Address:   "addr-" + id,
		CreatedAt: created,
		CreatedBy: "overmind-root",
		Status:    types.StatusActive,
		Metadata: types.AgentMetadata{
			Progress:     10,
			LastActiveAt: created,
			SuccessCount: 1,
		},
	}
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := New(dir, zap.NewNop())
	require.NoError(t, err)
	return s, dir
}

func TestAgentRoundTrip(t *testing.T) {
	s, dir := newTestStore(t)

	agent := testAgent("a1", types.RoleScout, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	agent.Metadata.TaskHistory = []string{"scan", "scan"}
	require.NoError(t, s.SaveAgent(agent))

	// A fresh store on the same directory must see the identical record.
	reloaded, err := New(dir, zap.NewNop())
	require.NoError(t, err)

	got, ok := reloaded.GetAgent("a1")
	require.True(t, ok)
	if diff := cmp.Diff(agent, got); diff != "" {
		t.Errorf("agent round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecisionLogRoundTripAndOrder(t *testing.T) {
	s, dir := newTestStore(t)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"d1", "d2", "d3"} {
		rec := types.DecisionRecord{
			Decision: types.Decision{
				ID:         id,
				Type:       types.ActionWait,
				Reasoning:  "idle",
				Timestamp:  base.Add(time.Duration(i) * time.Minute),
				Confidence: 0.3,
				MadeBy:     "overmind-root",
			},
			Result: types.ActionResult{
				Success:    true,
				DecisionID: id,
				Outcome:    "waited",
				Timestamp:  base.Add(time.Duration(i) * time.Minute),
			},
		}
		require.NoError(t, s.AppendDecision(rec))
	}

	recent := s.RecentDecisions(2)
	require.Len(t, recent, 2)
	require.Equal(t, "d3", recent[0].Decision.ID, "newest first")
	require.Equal(t, "d2", recent[1].Decision.ID)

	reloaded, err := New(dir, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 3, reloaded.DecisionCount())
	if diff := cmp.Diff(s.RecentDecisions(0), reloaded.RecentDecisions(0)); diff != "" {
		t.Errorf("decision log mismatch after reload (-want +got):\n%s", diff)
	}
}

func TestAppendDecisionRejectsUnlinkedPair(t *testing.T) {
	s, _ := newTestStore(t)
	rec := types.DecisionRecord{
		Decision: types.Decision{ID: "d1", Type: types.ActionWait, Timestamp: time.Now(), Confidence: 0.3, MadeBy: "x"},
		Result:   types.ActionResult{DecisionID: "other", Timestamp: time.Now()},
	}
	err := s.AppendDecision(rec)
	require.Error(t, err)
	require.Equal(t, 0, s.DecisionCount())
}

func TestQueryAgentsConjunctiveAndStable(t *testing.T) {
	s, _ := newTestStore(t)

	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveAgent(testAgent("a1", types.RoleScout, t0)))
	require.NoError(t, s.SaveAgent(testAgent("a2", types.RoleScout, t0.Add(time.Hour))))
	require.NoError(t, s.SaveAgent(testAgent("a3", types.RoleAnalyst, t0.Add(2*time.Hour))))

	paused := testAgent("a4", types.RoleScout, t0.Add(3*time.Hour))
	paused.Status = types.StatusPaused
	require.NoError(t, s.SaveAgent(paused))

	// Conjunction: role AND status AND created-after.
	got := s.QueryAgents(AgentFilter{
		Role:         types.RoleScout,
		Status:       types.StatusActive,
		CreatedAfter: t0,
	})
	require.Len(t, got, 1)
	require.Equal(t, "a2", got[0].ID)

	// Absent fields impose no constraint.
	all := s.QueryAgents(AgentFilter{})
	require.Len(t, all, 4)

	// Idempotence: same filter, unmodified store, same result.
	again := s.QueryAgents(AgentFilter{Role: types.RoleScout})
	first := s.QueryAgents(AgentFilter{Role: types.RoleScout})
	if diff := cmp.Diff(first, again); diff != "" {
		t.Errorf("query not idempotent (-first +again):\n%s", diff)
	}
}

func TestCorruptLiveFallsBackToBackup(t *testing.T) {
	s, dir := newTestStore(t)

	// Two writes so agents.json.bak holds the first state.
	a1 := testAgent("a1", types.RoleScout, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, s.SaveAgent(a1))
	require.NoError(t, s.SaveAgent(testAgent("a2", types.RoleAnalyst, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))))

	// Corrupt the live file.
	live := filepath.Join(dir, "agents.json")
	require.NoError(t, os.WriteFile(live, []byte("{ not json"), 0644))

	reloaded, err := New(dir, zap.NewNop())
	require.NoError(t, err, "corrupt live with valid backup must not fail")

	got, ok := reloaded.GetAgent("a1")
	require.True(t, ok, "backup contents expected")
	if diff := cmp.Diff(a1, got); diff != "" {
		t.Errorf("backup agent mismatch (-want +got):\n%s", diff)
	}
	_, ok = reloaded.GetAgent("a2")
	require.False(t, ok, "second write was only in the corrupted live file")
}

func TestCorruptLiveAndBackupInitializesEmpty(t *testing.T) {
	s, dir := newTestStore(t)
	require.NoError(t, s.SaveAgent(testAgent("a1", types.RoleScout, time.Now().UTC())))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "agents.json"), []byte("junk"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agents.json.bak"), []byte("junk"), 0644))

	reloaded, err := New(dir, zap.NewNop())
	require.NoError(t, err)
	require.Empty(t, reloaded.ListAgents())
}

func TestInvalidRecordsFilteredOnLoad(t *testing.T) {
	s, dir := newTestStore(t)
	good := testAgent("good", types.RoleScout, time.Now().UTC())
	require.NoError(t, s.SaveAgent(good))

	// Hand-craft a document containing one valid and one invalid record.
	doc := `{"version":1,"agents":{` +
		`"good":` + mustJSON(t, good) + `,` +
		`"bad":{"id":"bad","role":"","status":"active"}}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agents.json"), []byte(doc), 0644))
	// Drop any backup so the doctored live file is the only source.
	_ = os.Remove(filepath.Join(dir, "agents.json.bak"))

	reloaded, err := New(dir, zap.NewNop())
	require.NoError(t, err)

	agents := reloaded.ListAgents()
	require.Len(t, agents, 1, "invalid record must be excluded, not propagated")
	require.Equal(t, "good", agents[0].ID)
}

func TestNoPartialFileVisibleAfterWrite(t *testing.T) {
	s, dir := newTestStore(t)
	require.NoError(t, s.SaveAgent(testAgent("a1", types.RoleScout, time.Now().UTC())))

	// The temp file never survives a completed write.
	_, err := os.Stat(filepath.Join(dir, "agents.json.tmp"))
	require.True(t, os.IsNotExist(err))
}

func TestMetricsUpdateValidatesAndPersists(t *testing.T) {
	s, dir := newTestStore(t)

	got, err := s.UpdateMetrics(func(m *types.SystemMetrics) {
		m.TotalDecisions = 5
		m.EvolutionScore = 0.42
	})
	require.NoError(t, err)
	require.Equal(t, int64(5), got.TotalDecisions)
	require.False(t, got.LastUpdated.IsZero())

	// Out-of-range patch is rejected and the previous aggregate survives.
	_, err = s.UpdateMetrics(func(m *types.SystemMetrics) { m.EvolutionScore = 1.5 })
	require.Error(t, err)
	require.Equal(t, 0.42, s.Metrics().EvolutionScore)

	reloaded, err := New(dir, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 0.42, reloaded.Metrics().EvolutionScore)
}

func TestEvolutionLogAppendAndRead(t *testing.T) {
	s, _ := newTestStore(t)

	ev := types.EvolutionEvent{
		ID:          "ev1",
		Kind:        "weight_adjustment",
		Description: "reinforced wait",
		Before:      map[string]float64{"wait": 0.3},
		After:       map[string]float64{"wait": 0.35},
		Timestamp:   time.Now().UTC(),
		TriggeredBy: "d1",
	}
	require.NoError(t, s.AppendEvolution(ev))

	events := s.RecentEvolution(10)
	require.Len(t, events, 1)
	if diff := cmp.Diff(ev, events[0]); diff != "" {
		t.Errorf("evolution event mismatch (-want +got):\n%s", diff)
	}
}

func TestWalletRoundTrip(t *testing.T) {
	s, dir := newTestStore(t)

	w := types.WalletRecord{
		OwnerID:   "overmind-root",
		Address:   "OMabcdef",
		PublicKey: "deadbeef",
		SecretKey: "cafebabe",
		Balance:   1_000_000,
		CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveWallet(w))

	reloaded, err := New(dir, zap.NewNop())
	require.NoError(t, err)
	got, ok := reloaded.GetWallet("overmind-root")
	require.True(t, ok)
	if diff := cmp.Diff(w, got); diff != "" {
		t.Errorf("wallet round-trip mismatch (-want +got):\n%s", diff)
	}
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}
