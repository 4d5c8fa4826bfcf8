package security

import (
	"testing"
	"time"
)

func TestParseTTL(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"30s", 30 * time.Second, true},
		{"15m", 15 * time.Minute, true},
		{"1h", time.Hour, true},
		{"7d", 7 * 24 * time.Hour, true},
		{"", time.Hour, false},
		{"h", time.Hour, false},
		{"10", time.Hour, false},
		{"1.5h", time.Hour, false},
		{"-1h", time.Hour, false},
		{"0m", time.Hour, false},
		{"2w", time.Hour, false},
		{"99999999999999999d", time.Hour, false},
	}
	for _, tc := range cases {
		got, ok := ParseTTL(tc.in, time.Hour)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseTTL(%q) = %s,%v want %s,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
