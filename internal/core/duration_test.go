package core

import "testing"

func TestDeriveDuration(t *testing.T) {
	cases := []struct {
		start, end string
		current    int
		want       int
	}{
		{"09:00", "10:30", 0, 90},
		{"23:30", "00:15", 0, 45},
		{"10:00", "10:00", 7, 0},
		{"22:00", "06:00", 0, 480},
		{"", "10:00", 60, 60},
		{"09:00", "", 60, 60},
		{"bad", "10:00", 15, 15},
	}
	for _, tc := range cases {
		if got := DeriveDuration(tc.start, tc.end, tc.current); got != tc.want {
			t.Errorf("DeriveDuration(%q, %q, %d) = %d, want %d", tc.start, tc.end, tc.current, got, tc.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[int]string{
		45:  "45 mins",
		60:  "1 hour",
		90:  "1 hour 30 minutes",
		120: "2 hours",
		135: "2 hours 15 minutes",
	}
	for in, want := range cases {
		if got := FormatDuration(in); got != want {
			t.Errorf("FormatDuration(%d) = %q, want %q", in, got, want)
		}
	}
}
