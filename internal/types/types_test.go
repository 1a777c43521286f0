package types

import (
	"errors"
	"testing"
	"time"
)

func TestAgentSuccessRate(t *testing.T) {
	a := Agent{}
	if got := a.SuccessRate(); got != 1.0 {
		t.Errorf("fresh agent SuccessRate = %v, want 1.0", got)
	}

	a.Metadata.SuccessCount = 3
	a.Metadata.FailureCount = 1
	if got := a.SuccessRate(); got != 0.75 {
		t.Errorf("SuccessRate = %v, want 0.75", got)
	}
}

func TestAgentValidate(t *testing.T) {
	valid := Agent{
		ID:        "agent-1",
		Role:      RoleScout,
		Status:    StatusActive,
		CreatedAt: time.Now(),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid agent rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Agent)
	}{
		{"empty id", func(a *Agent) { a.ID = "" }},
		{"empty role", func(a *Agent) { a.Role = "" }},
		{"unknown status", func(a *Agent) { a.Status = "zombie" }},
		{"progress out of range", func(a *Agent) { a.Metadata.Progress = 101 }},
		{"negative counter", func(a *Agent) { a.Metadata.FailureCount = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := valid
			tt.mutate(&a)
			err := a.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("error type = %T, want *ValidationError", err)
			}
		})
	}
}

func TestDecisionRecordLinkage(t *testing.T) {
	d := Decision{
		ID:         "dec-1",
		Type:       ActionWait,
		Timestamp:  time.Now(),
		Confidence: 0.4,
		MadeBy:     "overmind",
	}
	rec := DecisionRecord{
		Decision: d,
		Result:   ActionResult{Success: true, DecisionID: "dec-1", Timestamp: time.Now()},
	}
	if err := rec.Validate(); err != nil {
		t.Fatalf("linked record rejected: %v", err)
	}

	rec.Result.DecisionID = "dec-2"
	if err := rec.Validate(); err == nil {
		t.Error("expected linkage mismatch to fail validation")
	}
}

func TestMetricsValidateClamps(t *testing.T) {
	m := SystemMetrics{EvolutionScore: 0.5}
	if err := m.Validate(); err != nil {
		t.Fatalf("valid metrics rejected: %v", err)
	}
	m.EvolutionScore = 1.01
	if err := m.Validate(); err == nil {
		t.Error("expected out-of-range evolution score to fail validation")
	}
}

func TestAllActionTypesCoversEnum(t *testing.T) {
	all := AllActionTypes()
	if len(all) != 6 {
		t.Fatalf("AllActionTypes returned %d entries, want 6", len(all))
	}
	seen := make(map[ActionType]bool)
	for _, at := range all {
		if seen[at] {
			t.Errorf("duplicate action type %q", at)
		}
		seen[at] = true
	}
}
