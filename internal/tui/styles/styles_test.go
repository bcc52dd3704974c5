package styles

import "testing"

func TestStatusColor(t *testing.T) {
	tests := []struct {
		status   string
		expected string // Expected color hex value
	}{
		{"pending", "#9CA3AF"},
		{"running", "#60A5FA"},
		{"succeeded", "#10B981"},
		{"failed", "#F87171"},
		{"skipped", "#F59E0B"},
		{"unknown", "#9CA3AF"}, // Should fall back to MutedColor
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			got := StatusColor(tt.status)
			if string(got) != tt.expected {
				t.Errorf("StatusColor(%q) = %q, want %q", tt.status, got, tt.expected)
			}
		})
	}
}

func TestStatusIcon(t *testing.T) {
	tests := []struct {
		status   string
		expected string
	}{
		{"pending", "○"},
		{"running", "●"},
		{"succeeded", "✓"},
		{"failed", "✗"},
		{"skipped", "-"},
		{"unknown", "●"}, // Should fall back to default
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			got := StatusIcon(tt.status)
			if got != tt.expected {
				t.Errorf("StatusIcon(%q) = %q, want %q", tt.status, got, tt.expected)
			}
		})
	}
}

func TestPrefixStyle_Rotates(t *testing.T) {
	first := PrefixStyle(0).GetForeground()
	again := PrefixStyle(len(prefixColors)).GetForeground()
	if first != again {
		t.Errorf("PrefixStyle should rotate every %d packages", len(prefixColors))
	}
	if PrefixStyle(0).GetForeground() == PrefixStyle(1).GetForeground() {
		t.Error("adjacent packages should get different prefix colors")
	}
}
