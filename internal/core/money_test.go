package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1500", "1500", true},
		{"0", "0", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"1.005", "1.01", true}, // half-up rounding
		{" 2.50 ", "2.5", true},
		{"-1", "", false},
		{"+1", "", false},
		{"1e3", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestSumAmounts(t *testing.T) {
	cases := []CaseEntry{
		{Amount: decimal.RequireFromString("1000.10")},
		{Amount: decimal.RequireFromString("0.20")},
	}
	if got := SumAmounts(cases); !got.Equal(decimal.RequireFromString("1000.30")) {
		t.Fatalf("unexpected sum %s", got)
	}
	if !SumAmounts(nil).IsZero() {
		t.Fatalf("empty sum must be zero")
	}
}
