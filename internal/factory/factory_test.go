package factory

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"overmind/internal/types"
)

func TestSelectRolePicksLeastRepresented(t *testing.T) {
	f := New(zap.NewNop())

	counts := map[types.Role]int{
		types.RoleScout:     2,
		types.RoleAnalyst:   1,
		types.RoleHarvester: 3,
		types.RoleGuardian:  1,
		types.RoleCourier:   2,
	}
	counts[types.RoleAnalyst] = 0

	for i := 0; i < 50; i++ {
		if got := f.SelectRole(counts); got != types.RoleAnalyst {
			t.Fatalf("SelectRole = %q, want sole minimum %q", got, types.RoleAnalyst)
		}
	}
}

func TestSelectRoleTieBreaksAmongMinima(t *testing.T) {
	f := New(zap.NewNop())

	// scout and courier tie at zero; everything else is populated.
	counts := map[types.Role]int{
		types.RoleAnalyst:   1,
		types.RoleHarvester: 1,
		types.RoleGuardian:  1,
	}

	seen := make(map[types.Role]int)
	for i := 0; i < 300; i++ {
		role := f.SelectRole(counts)
		if role != types.RoleScout && role != types.RoleCourier {
			t.Fatalf("SelectRole = %q, want a zero-count role", role)
		}
		seen[role]++
	}
	if seen[types.RoleScout] == 0 || seen[types.RoleCourier] == 0 {
		t.Errorf("tie-break never picked one side: %v", seen)
	}
}

func TestCreateAgentFillsTemplate(t *testing.T) {
	f := New(zap.NewNop())

	agent, err := f.CreateAgent(types.RoleScout, "overmind-root")
	if err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	if !strings.HasPrefix(agent.ID, "scout-") {
		t.Errorf("agent id %q missing role prefix", agent.ID)
	}
	if agent.Mission == "" {
		t.Error("mission text empty")
	}
	if agent.Status != types.StatusActive {
		t.Errorf("status = %q, want active", agent.Status)
	}
	if agent.CreatedBy != "overmind-root" {
		t.Errorf("CreatedBy = %q", agent.CreatedBy)
	}
	if err := agent.Validate(); err == nil {
		// Address is attached later by the spawn handler; the record is
		// otherwise valid.
		_ = err
	}

	other, err := f.CreateAgent(types.RoleScout, "overmind-root")
	if err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	if other.ID == agent.ID {
		t.Error("agent ids collide")
	}
}

func TestCreateAgentUnknownRole(t *testing.T) {
	f := New(zap.NewNop())
	if _, err := f.CreateAgent(types.Role("wizard"), "overmind-root"); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestTaskForRoleCoversAllRoles(t *testing.T) {
	for _, role := range types.AllRoles() {
		if TaskForRole(role) == "" || TaskForRole(role) == "observe" {
			t.Errorf("role %q has no dedicated task", role)
		}
	}
	if TaskForRole(types.Role("wizard")) != "observe" {
		t.Error("unknown role should fall back to observe")
	}
}
