package messaging

import "testing"

func TestNormalizeE164(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+1 (555) 123-4567", "+15551234567"},
		{"555-123-4567", "+5551234567"},
		{"  +15551234567  ", "+15551234567"},
		{"", ""},
		{"no digits", ""},
	}
	for _, tt := range tests {
		if got := NormalizeE164(tt.in); got != tt.want {
			t.Errorf("NormalizeE164(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMaskPhone(t *testing.T) {
	if got := MaskPhone("+15551234567"); got != "***4567" {
		t.Errorf("MaskPhone long: got %q", got)
	}
	if got := MaskPhone("123"); got != "****" {
		t.Errorf("MaskPhone short: got %q", got)
	}
}
