package core

import "testing"

func TestDefaultMatcher(t *testing.T) {
	m := DefaultMatcher{}

	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		// Exact match
		{"orders.created", "orders.created", true},
		{"orders.created", "orders.updated", false},
		{"orders", "orders", true},

		// Single-segment wildcard
		{"orders.*", "orders.created", true},
		{"orders.*", "orders.us.created", false},
		{"*.created", "payments.created", true},

		// Multi-segment wildcard
		{"orders.#", "orders.created", true},
		{"orders.#", "orders.us.east.created", true},
		{"#", "anything", true},
		{"#.created", "orders.us.created", true},
		{"orders.#.created", "orders.created", true},

		// Edge cases
		{"orders.created", "orders", false},
		{"orders", "orders.created", false},
		{"orders.*", "orders", false},
		{"orders.#", "orders", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"→"+tt.name, func(t *testing.T) {
			got := m.Match(tt.pattern, tt.name)
			if got != tt.want {
				t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
			}
		})
	}
}

func TestDestinationManagerMatch(t *testing.T) {
	dm := newDestinationManager()
	dm.CreateQueue("orders.created")
	dm.CreateTopic("orders.updated")
	dm.CreateQueue("payments.completed")

	got := dm.Match("orders.*")
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0].Kind() != QueueKind || got[1].Kind() != TopicKind {
		t.Errorf("expected creation order queue then topic, got %s then %s", got[0].Kind(), got[1].Kind())
	}

	dm.SetMatcher(prefixMatcher{})
	if got := dm.Match("pay"); len(got) != 1 || got[0].Name() != "payments.completed" {
		t.Errorf("custom matcher not used: %v", got)
	}
}

type prefixMatcher struct{}

func (prefixMatcher) Match(pattern, name string) bool {
	return len(name) >= len(pattern) && name[:len(pattern)] == pattern
}
