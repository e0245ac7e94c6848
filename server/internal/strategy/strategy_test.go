package strategy

import (
	"slices"
	"testing"
)

func TestTableOrder(t *testing.T) {
	table := Table()

	if len(table) < 2 {
		t.Fatalf("expected at least two strategies, got %d", len(table))
	}

	names := make([]string, 0, len(table))
	for _, c := range table {
		names = append(names, c.Name)
	}

	if !slices.Equal(names, []string{"android", "ios", "web", "default"}) {
		t.Errorf("unexpected strategy order: %v", names)
	}
}

func TestDefaultStrategyHasNoOverride(t *testing.T) {
	table := Table()

	last := table[len(table)-1]
	if len(last.Args) != 0 {
		t.Errorf("final strategy must carry no identity override, got %v", last.Args)
	}
}

func TestIdentityStrategiesSpoofClients(t *testing.T) {
	for _, c := range Table()[:3] {
		if !slices.Contains(c.Args, "--extractor-args") && !slices.Contains(c.Args, "--user-agent") {
			t.Errorf("strategy %q carries no identity parameters", c.Name)
		}
	}
}
