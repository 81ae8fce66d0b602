package store

import (
	"testing"
	"time"
)

func TestValidTicketTransition(t *testing.T) {
	cases := []struct {
		action string
		from   string
		valid  bool
	}{
		{"claim", "pending", true},
		{"claim", "in-attendance", false},
		{"claim", "finished", false},
		{"cancel", "pending", true},
		{"cancel", "in-attendance", true},
		{"cancel", "canceled", false},
		{"cancel", "finished", false},
		{"finish", "in-attendance", true},
		{"finish", "pending", false},
		{"unknown", "pending", false},
	}

	for _, tt := range cases {
		if got := ValidTicketTransition(tt.action, tt.from); got != tt.valid {
			t.Fatalf("ValidTicketTransition(%q, %q)=%v, want %v", tt.action, tt.from, got, tt.valid)
		}
	}
}

func TestValidOperationTransition(t *testing.T) {
	cases := []struct {
		action string
		from   string
		valid  bool
	}{
		{"pause", "operating", true},
		{"pause", "paused", false},
		{"pause", "finished", false},
		{"resume", "paused", true},
		{"resume", "operating", false},
		{"end", "operating", true},
		{"end", "paused", true},
		{"end", "finished", false},
		{"claim-next", "operating", true},
		{"claim-next", "paused", false},
		{"claim-next", "finished", false},
		{"unknown", "operating", false},
	}

	for _, tt := range cases {
		if got := ValidOperationTransition(tt.action, tt.from); got != tt.valid {
			t.Fatalf("ValidOperationTransition(%q, %q)=%v, want %v", tt.action, tt.from, got, tt.valid)
		}
	}
}

func TestValidTreatmentTransition(t *testing.T) {
	cases := []struct {
		action string
		from   string
		valid  bool
	}{
		{"call-again", "in_service", true},
		{"call-again", "finished", false},
		{"finish", "in_service", true},
		{"finish", "cancelled", false},
		{"cancel", "in_service", true},
		{"cancel", "finished", false},
		{"unknown", "in_service", false},
	}

	for _, tt := range cases {
		if got := ValidTreatmentTransition(tt.action, tt.from); got != tt.valid {
			t.Fatalf("ValidTreatmentTransition(%q, %q)=%v, want %v", tt.action, tt.from, got, tt.valid)
		}
	}
}

func TestDurationMinutes(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		elapsed time.Duration
		want    int
	}{
		{"zero elapsed floors to one", 0, 1},
		{"under thirty seconds floors to one", 20 * time.Second, 1},
		{"thirty seconds rounds up", 30 * time.Second, 1},
		{"ninety seconds rounds to two", 90 * time.Second, 2},
		{"whole minutes", 15 * time.Minute, 15},
		{"rounds down below half minute", 15*time.Minute + 20*time.Second, 15},
		{"negative elapsed floors to one", -5 * time.Minute, 1},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if got := DurationMinutes(base, base.Add(tt.elapsed)); got != tt.want {
				t.Fatalf("DurationMinutes(+%s)=%d, want %d", tt.elapsed, got, tt.want)
			}
		})
	}
}
