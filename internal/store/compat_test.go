package store

import "testing"

func TestCompatible(t *testing.T) {
	minorRule := map[string]string{"0.2.x": "0.3.0"}
	exactRule := map[string]string{"0.3.3": "0.3.4"}

	tests := []struct {
		name    string
		cached  string
		running string
		rules   map[string]string
		want    bool
	}{
		{"same version", "0.2.7", "0.2.7", minorRule, true},
		{"no rules", "0.1.0", "9.9.9", nil, true},
		{"wildcard applies", "0.2.7", "0.3.0", minorRule, false},
		{"wildcard applies to later running", "0.2.0", "1.4.2", minorRule, false},
		{"running below rule minimum", "0.2.7", "0.2.9", minorRule, true},
		{"wildcard other minor", "0.1.9", "0.3.0", minorRule, true},
		{"wildcard is not a string prefix", "0.20.1", "0.3.0", minorRule, true},
		{"wildcard matches prerelease", "0.2.8-rc.1", "0.3.0", minorRule, false},
		{"exact equal", "0.3.3", "0.3.4", exactRule, false},
		{"exact older", "0.3.1", "0.3.4", exactRule, false},
		{"exact newer", "0.3.4-beta", "0.3.5", exactRule, true},
		{"cached newer than running", "0.5.0", "0.3.4", exactRule, true},
		{"build metadata ignored", "0.3.5+build.7", "0.3.5", exactRule, true},
		{"unparseable cached", "dev", "0.3.4", exactRule, true},
		{"unparseable running", "0.3.1", "dev", exactRule, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compatible(tt.cached, tt.running, tt.rules)
			if got != tt.want {
				t.Errorf("Compatible(%q, %q) = %v, want %v", tt.cached, tt.running, got, tt.want)
			}
		})
	}
}

func TestDefaultBreakingChangesEmpty(t *testing.T) {
	if n := len(DefaultBreakingChanges()); n != 0 {
		t.Errorf("DefaultBreakingChanges has %d rules, want 0", n)
	}
	if !Compatible("0.1.0", "2.0.0", DefaultBreakingChanges()) {
		t.Error("default rules rejected an old cache")
	}
}
