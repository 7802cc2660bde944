package synthpipeline

import "testing"

func TestAssignPriority(t *testing.T) {
	long := make([]byte, 201)
	for i := range long {
		long[i] = 'a'
	}

	cases := []struct {
		name string
		text string
		want int
	}{
		{"baseline", string(make([]byte, 100)), 5},
		{"short text gets more urgent", "hi", 4},
		{"command prefix gets most urgent", "!skip", 4 - 2},
		{"long text gets less urgent", string(long), 7},
		{"short and bang combine", "!hi", 5 - 1 - 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := AssignPriority(tc.text)
			if got != tc.want {
				t.Fatalf("AssignPriority(%d bytes) = %d, want %d", len(tc.text), got, tc.want)
			}
		})
	}
}

func TestAssignPriority_ClampsToBounds(t *testing.T) {
	if got := clampPriority(-5); got != minPriority {
		t.Fatalf("clampPriority(-5) = %d, want %d", got, minPriority)
	}
	if got := clampPriority(50); got != maxPriority {
		t.Fatalf("clampPriority(50) = %d, want %d", got, maxPriority)
	}
}
