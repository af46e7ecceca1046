package lifecycle

import (
	"errors"
	"testing"

	"github.com/openhrm/workflow-engine/internal/models"
)

func TestNew_RejectsInvalidStatus(t *testing.T) {
	if _, err := New(models.InstanceStatus("BOGUS")); !errors.Is(err, ErrInvalidState) {
		t.Errorf("New(BOGUS) error = %v, want ErrInvalidState", err)
	}
	if _, err := New(models.StatusPending); err != nil {
		t.Errorf("New(PENDING) error = %v", err)
	}
}

func TestFire_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		from    models.InstanceStatus
		trigger Trigger
		want    models.InstanceStatus
		wantErr bool
	}{
		{"pending vote", models.StatusPending, TriggerVote, models.StatusInProgress, false},
		{"pending advance stays pending", models.StatusPending, TriggerAdvance, models.StatusPending, false},
		{"pending approve", models.StatusPending, TriggerApprove, models.StatusApproved, false},
		{"pending reject", models.StatusPending, TriggerReject, models.StatusRejected, false},
		{"pending escalate", models.StatusPending, TriggerEscalate, models.StatusEscalated, false},
		{"pending cancel", models.StatusPending, TriggerCancel, models.StatusCancelled, false},
		{"in-progress approve", models.StatusInProgress, TriggerApprove, models.StatusApproved, false},
		{"in-progress advance resets to pending", models.StatusInProgress, TriggerAdvance, models.StatusPending, false},
		{"escalated vote", models.StatusEscalated, TriggerVote, models.StatusInProgress, false},
		{"escalated approve", models.StatusEscalated, TriggerApprove, models.StatusApproved, false},
		{"escalated re-escalate", models.StatusEscalated, TriggerEscalate, models.StatusEscalated, false},
		{"approved is terminal", models.StatusApproved, TriggerCancel, "", true},
		{"rejected is terminal", models.StatusRejected, TriggerApprove, "", true},
		{"cancelled is terminal", models.StatusCancelled, TriggerEscalate, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.from)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			err = m.Fire(tt.trigger)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("Fire() error = %v, want ErrInvalidTransition", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Fire() error = %v", err)
			}
			if m.State() != tt.want {
				t.Errorf("State() = %s, want %s", m.State(), tt.want)
			}
		})
	}
}

func TestCanFire(t *testing.T) {
	m, _ := New(models.StatusPending)
	if !m.CanFire(TriggerApprove) {
		t.Error("CanFire(APPROVE) from PENDING should be true")
	}

	terminal, _ := New(models.StatusApproved)
	if terminal.CanFire(TriggerCancel) {
		t.Error("CanFire(CANCEL) from APPROVED should be false")
	}
	if got := terminal.Permitted(); len(got) != 0 {
		t.Errorf("Permitted() from APPROVED = %v, want empty", got)
	}
}

func TestPermitted_StableOrder(t *testing.T) {
	m, _ := New(models.StatusPending)
	first := m.Permitted()
	second := m.Permitted()
	if len(first) != 6 {
		t.Fatalf("Permitted() returned %d triggers, want 6", len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatal("Permitted() order is not stable")
		}
	}
}
