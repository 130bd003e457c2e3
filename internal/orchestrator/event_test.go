package orchestrator

import "testing"

func TestActionReviewable(t *testing.T) {
	tests := []struct {
		action Action
		want   bool
	}{
		{ActionOpened, true},
		{ActionReopened, true},
		{ActionUpdated, true},
		{"closed", false},
		{"merged", false},
		{"approved", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := tt.action.Reviewable(); got != tt.want {
			t.Errorf("Action(%q).Reviewable() = %v, want %v", tt.action, got, tt.want)
		}
	}
}

func TestEventKey(t *testing.T) {
	ev := Event{ProjectID: "group/app", MergeRequestID: 12}
	if got := ev.Key(); got != "group/app!12" {
		t.Errorf("Key() = %q", got)
	}
}

func TestEventValidate(t *testing.T) {
	ok := Event{Action: "closed", ProjectID: "42", MergeRequestID: 1}
	if err := ok.Validate(); err != nil {
		t.Errorf("unknown action should validate, got %v", err)
	}

	bad := Event{Action: ActionOpened, ProjectID: "  ", MergeRequestID: 1}
	err := bad.Validate()
	if err == nil {
		t.Fatal("expected error for blank project")
	}
	if err.Error() != "invalid event: projectId is required" {
		t.Errorf("Error() = %q", err.Error())
	}
}
