package schedule

import "testing"

// The cascade order is load-bearing: the minute-word strategy must run
// before the meridiem-hour strategy, or "six thirty pm" collapses to a bare
// "six ... pm" and loses its minutes. This white-box test pins the order.
func TestStrategyOrder(t *testing.T) {
	t.Parallel()

	want := []string{"explicit-clock", "minute-word", "meridiem-hour", "bare-digits", "bare-word"}
	if len(strategies) != len(want) {
		t.Fatalf("len(strategies) = %d, want %d", len(strategies), len(want))
	}
	for i, name := range want {
		if strategies[i].name != name {
			t.Errorf("strategies[%d] = %q, want %q", i, strategies[i].name, name)
		}
	}
}
