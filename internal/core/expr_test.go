package core

import "testing"

func TestEvalAmountExpr(t *testing.T) {
	cases := []struct {
		in    string
		units int64
	}{
		{"50+20", 70},
		{"100-30", 70},
		{"3*25", 75},
		{"100/4", 25},
		{"3*(40+5)", 135},
		{"(10+5)*2-8", 22},
		{" 50 + 20 ", 70},
		{"120", 120},
		{"99.5+0.4", 99}, // 99.9 truncated
	}
	for _, tc := range cases {
		m, err := EvalAmountExpr(tc.in)
		if err != nil {
			t.Fatalf("EvalAmountExpr(%q) unexpected error: %v", tc.in, err)
		}
		if m.Units != tc.units {
			t.Fatalf("EvalAmountExpr(%q) = %d, want %d", tc.in, m.Units, tc.units)
		}
	}
}

func TestEvalAmountExprRejects(t *testing.T) {
	bads := []string{
		"",
		"abc",
		"50+",
		"+50",
		"50++20",
		"(50+20",
		"50+20)",
		"10/0",
		"rm -rf",
		"50 20",
		"1e3",     // exponent notation is outside the grammar
		"100-200", // negative result
		"5-5",     // zero result
	}
	for _, in := range bads {
		if _, err := EvalAmountExpr(in); err == nil {
			t.Fatalf("EvalAmountExpr(%q) expected error", in)
		}
	}
}
