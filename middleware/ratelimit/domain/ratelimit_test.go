package domain

import (
	"testing"
	"time"
)

func TestDecision_RetryAfterSecondsRoundsUp(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	cases := []struct {
		name  string
		reset time.Time
		want  int
	}{
		{"exact seconds", now.Add(3 * time.Second), 3},
		{"fraction rounds up", now.Add(2500 * time.Millisecond), 3},
		{"sub second is one", now.Add(10 * time.Millisecond), 1},
		{"already reset is one", now, 1},
		{"in the past is one", now.Add(-5 * time.Second), 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Decision{ResetAt: tc.reset}
			if got := d.RetryAfterSeconds(now); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestRule_Valid(t *testing.T) {
	if !(Rule{Strategy: StrategyFixedWindow, Limit: 5, Interval: time.Minute}).Valid() {
		t.Fatalf("expected fixed window rule to be valid")
	}
	if (Rule{Strategy: StrategyTokenBucket, Limit: 0, Interval: time.Minute}).Valid() {
		t.Fatalf("expected zero limit to be invalid")
	}
	if (Rule{Strategy: StrategyTokenBucket, Limit: 3}).Valid() {
		t.Fatalf("expected zero interval to be invalid")
	}
	if (Rule{Strategy: "sliding", Limit: 3, Interval: time.Second}).Valid() {
		t.Fatalf("expected unknown strategy to be invalid")
	}
}
