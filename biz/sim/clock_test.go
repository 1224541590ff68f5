package sim

import (
	"testing"
	"time"
)

func TestParseQuoteTime(t *testing.T) {
	for _, s := range []string{"2024-05-09 09:45:00", "2024-05-09 09:45:00.500000"} {
		if _, err := parseQuoteTime(s); err != nil {
			t.Errorf("parseQuoteTime(%q) error: %v", s, err)
		}
	}
	if _, err := parseQuoteTime("09:45:00"); err == nil {
		t.Error("expected error for time without date")
	}
}

func TestClockNeverGoesBack(t *testing.T) {
	var c LogicalClock
	t1, _ := parseQuoteTime("2024-05-09 10:00:00")
	t0, _ := parseQuoteTime("2024-05-09 09:00:00")
	c.Advance(t1)
	c.Advance(t0)
	if !c.Now().Equal(t1) {
		t.Errorf("clock went back: %v", c.Now())
	}
	if c.Date() != "20240509" {
		t.Errorf("date = %q", c.Date())
	}
}

func TestInSessionDayWindows(t *testing.T) {
	tt := TradingTime{Day: [][]string{{"09:30:00", "11:30:00"}, {"13:00:00", "15:00:00"}}}
	cases := []struct {
		clock string
		want  bool
	}{
		{"2024-05-09 09:29:59", false},
		{"2024-05-09 09:30:00", true},
		{"2024-05-09 11:29:59", true},
		{"2024-05-09 11:30:00", false},
		{"2024-05-09 12:00:00", false},
		{"2024-05-09 14:59:59", true},
		{"2024-05-09 15:00:00", false},
	}
	for _, c := range cases {
		at, _ := parseQuoteTime(c.clock)
		if got := inSession(tt, at); got != c.want {
			t.Errorf("inSession(%s) = %v, want %v", c.clock, got, c.want)
		}
	}
}

func TestInSessionNightWrapsMidnight(t *testing.T) {
	tt := TradingTime{Night: [][]string{{"21:00:00", "02:30:00"}}}
	in, _ := parseQuoteTime("2024-05-09 23:30:00")
	in2, _ := parseQuoteTime("2024-05-10 01:00:00")
	out, _ := parseQuoteTime("2024-05-10 03:00:00")
	if !inSession(tt, in) || !inSession(tt, in2) {
		t.Error("night session times should be tradable")
	}
	if inSession(tt, out) {
		t.Error("03:00 should be outside the night session")
	}
}

func TestInSessionNoWindows(t *testing.T) {
	at := time.Now()
	if !inSession(TradingTime{}, at) {
		t.Error("empty trading_time should mean always tradable")
	}
}
