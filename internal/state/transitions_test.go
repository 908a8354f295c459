package state

import "testing"

func TestIsTransitionAllowed(t *testing.T) {
	testCases := []struct {
		name     string
		from     State
		to       State
		expected bool
	}{
		{name: "pending to active", from: StatePending, to: StateActive, expected: true},
		{name: "active to pending invalid", from: StateActive, to: StatePending, expected: false},
		{name: "active to active invalid", from: StateActive, to: StateActive, expected: false},
		{name: "pending to pending invalid", from: StatePending, to: StatePending, expected: false},
		{name: "unknown state invalid", from: State("banned"), to: StateActive, expected: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if actual := IsTransitionAllowed(tc.from, tc.to); actual != tc.expected {
				t.Errorf("IsTransitionAllowed(%s -> %s) = %t, expected %t", tc.from, tc.to, actual, tc.expected)
			}
		})
	}
}
