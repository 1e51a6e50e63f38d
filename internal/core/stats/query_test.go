package stats

import "testing"

func TestParseStreamID(t *testing.T) {
	ts, ok := parseStreamID("1700000000000-0")
	if !ok {
		t.Fatalf("expected ok")
	}
	if ts.UnixMilli() != 1700000000000 {
		t.Fatalf("UnixMilli = %d, want 1700000000000", ts.UnixMilli())
	}
}

func TestParseStreamIDRejectsMalformed(t *testing.T) {
	if _, ok := parseStreamID("not-a-stream-id"); ok {
		t.Fatalf("expected not ok for malformed id")
	}
}

func TestFieldString(t *testing.T) {
	values := map[string]interface{}{"device": "sw1", "attempts": 3, "missing": nil}
	if got := fieldString(values, "device"); got != "sw1" {
		t.Errorf("device = %q, want sw1", got)
	}
	if got := fieldString(values, "attempts"); got != "3" {
		t.Errorf("attempts = %q, want 3", got)
	}
	if got := fieldString(values, "missing"); got != "" {
		t.Errorf("missing = %q, want empty", got)
	}
	if got := fieldString(values, "absent"); got != "" {
		t.Errorf("absent = %q, want empty", got)
	}
}

func TestRound2(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{33.333333, 33.33},
		{66.666666, 66.67},
		{0, 0},
		{100, 100},
	}
	for _, tc := range cases {
		if got := round2(tc.in); got != tc.want {
			t.Errorf("round2(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestCounterField(t *testing.T) {
	m := map[string]string{"complete": "5", "failed": "bad"}
	if got := counterField(m, "complete"); got != 5 {
		t.Errorf("complete = %d, want 5", got)
	}
	if got := counterField(m, "failed"); got != 0 {
		t.Errorf("failed = %d, want 0 on parse error", got)
	}
	if got := counterField(m, "missing"); got != 0 {
		t.Errorf("missing = %d, want 0", got)
	}
}
