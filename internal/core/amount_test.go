package core

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in    string
		units int64
		ok    bool
	}{
		{"120", 120, true},
		{" 120 ", 120, true},
		{"$1,250", 1250, true},
		{"NT$300", 300, true},
		{"99.99", 99, true}, // truncated, not rounded
		{"0.99", 0, false},  // truncates to zero
		{"0", 0, false},
		{"-5", 0, false},
		{"", 0, false},
		{"abc", 0, false},
		{"12a", 0, false},
	}
	for _, tc := range cases {
		m, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("ParseAmount(%q) unexpected error: %v", tc.in, err)
			}
			if m.Units != tc.units {
				t.Fatalf("ParseAmount(%q) = %d, want %d", tc.in, m.Units, tc.units)
			}
			continue
		}
		if err == nil {
			t.Fatalf("ParseAmount(%q) expected error, got %d", tc.in, m.Units)
		}
	}
}
