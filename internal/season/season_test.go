package season

import (
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	cases := []struct {
		date string
		want string
	}{
		{"2024-08-01", "2024-2025"},
		{"2024-07-31", "2023-2024"},
		{"2025-01-15", "2024-2025"},
		{"2025-12-31", "2025-2026"},
		{"2026-10-16", "2026-2027"},
	}
	for _, c := range cases {
		d, err := time.Parse("2006-01-02", c.date)
		if err != nil {
			t.Fatalf("parse %s: %v", c.date, err)
		}
		if got := Key(d); got != c.want {
			t.Errorf("Key(%s) = %q, want %q", c.date, got, c.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-25", "2024-2025", true},
		{"2024/25", "2024-2025", true},
		{"2024-2025", "2024-2025", true},
		{"1999-00", "1999-2000", true},
		{" 2023-24 ", "2023-2024", true},
		{"2024-26", "", false},
		{"2024", "", false},
		{"abcd-ef", "", false},
		{"24-25", "", false},
	}
	for _, c := range cases {
		got, ok := Normalize(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("Normalize(%q) = %q, %v; want %q, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}
