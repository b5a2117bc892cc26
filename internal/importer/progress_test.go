package importer

import "testing"

func TestPollProgressBounds(t *testing.T) {
	const max = 25
	prev := 0
	for attempt := 1; attempt <= max; attempt++ {
		p := pollProgress(attempt, max)
		if p < progressPollFloor || p > progressPollCeil {
			t.Errorf("pollProgress(%d, %d) = %d, outside [%d, %d]",
				attempt, max, p, progressPollFloor, progressPollCeil)
		}
		if p < prev {
			t.Errorf("pollProgress(%d, %d) = %d regressed below %d", attempt, max, p, prev)
		}
		prev = p
	}
	if got := pollProgress(max, max); got != progressPollCeil {
		t.Errorf("pollProgress at last attempt = %d, want %d", got, progressPollCeil)
	}
}

func TestPollProgressDegenerateInputs(t *testing.T) {
	cases := []struct {
		attempt, max, want int
	}{
		{1, 0, progressPollFloor},
		{1, -3, progressPollFloor},
		{10, 5, progressPollCeil}, // attempt clamped to max
	}
	for _, tc := range cases {
		if got := pollProgress(tc.attempt, tc.max); got != tc.want {
			t.Errorf("pollProgress(%d, %d) = %d, want %d", tc.attempt, tc.max, got, tc.want)
		}
	}
}
