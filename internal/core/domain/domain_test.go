package domain

import (
	"testing"
	"time"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		stock int
		want  StockStatus
	}{
		{5, StockStatusNormal},
		{1, StockStatusNormal},
		{0, StockStatusOutOfStock},
		{-2, StockStatusInsufficient},
	}
	for _, c := range cases {
		if got := StatusOf(c.stock); got != c.want {
			t.Errorf("StatusOf(%d) = %s, want %s", c.stock, got, c.want)
		}
	}
}

func TestRemainingLabel(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		left time.Duration
		want string
	}{
		{3*time.Hour + 12*time.Minute, "3h12m"},
		{24 * time.Hour, "24h0m"},
		{time.Minute, "0h1m"},
		{59 * time.Second, "soon to expire"},
		{0, "soon to expire"},
		{-time.Hour, "soon to expire"},
	}
	for _, c := range cases {
		if got := RemainingLabel(now.Add(c.left), now); got != c.want {
			t.Errorf("RemainingLabel(+%v) = %q, want %q", c.left, got, c.want)
		}
	}
}

func TestReservationExpiredAt(t *testing.T) {
	now := time.Now()
	r := Reservation{ExpiresAt: now.Add(time.Hour)}
	if r.ExpiredAt(now) {
		t.Error("claim with time left must not be expired")
	}
	if !r.ExpiredAt(now.Add(time.Hour)) {
		t.Error("claim at its deadline must be expired")
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"19.99", 1999, false},
		{"10", 1000, false},
		{"0.5", 50, false},
		{"0.05", 5, false},
		{" 7.25 ", 725, false},
		{"", 0, true},
		{"abc", 0, true},
		{"-1.00", 0, true},
		{"1.999", 0, true},
		{"1.-5", 0, true},
	}
	for _, c := range cases {
		got, err := ParseAmount(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseAmount(%q): expected error, got %d", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAmount(%q): unexpected error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseAmount(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(1999); got != "19.99" {
		t.Errorf("FormatAmount(1999) = %q", got)
	}
	if got := FormatAmount(50); got != "0.50" {
		t.Errorf("FormatAmount(50) = %q", got)
	}
	if got := FormatAmount(2850); got != "28.50" {
		t.Errorf("FormatAmount(2850) = %q", got)
	}
}
