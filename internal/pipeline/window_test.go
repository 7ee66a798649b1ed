package pipeline

import "testing"

func TestResolveStart_ExplicitWins(t *testing.T) {
	explicit := 42
	heatmap := []HeatmapSample{
		{StartTime: 0, EndTime: 10, Value: 1},
		{StartTime: 10, EndTime: 20, Value: 5},
		{StartTime: 20, EndTime: 30, Value: 9},
		{StartTime: 30, EndTime: 40, Value: 9},
		{StartTime: 40, EndTime: 50, Value: 2},
	}

	if got := ResolveStart(&explicit, heatmap); got != 42 {
		t.Errorf("expected explicit start 42, got %d", got)
	}
}

func TestResolveStart_PicksHottestWindow(t *testing.T) {
	// First sample is dropped; among the rest the best 3-sample window
	// starts at 10s, and the lead-in pulls the start back to 0.
	heatmap := []HeatmapSample{
		{StartTime: 0, EndTime: 10, Value: 100},
		{StartTime: 10, EndTime: 20, Value: 5},
		{StartTime: 20, EndTime: 30, Value: 9},
		{StartTime: 30, EndTime: 40, Value: 9},
		{StartTime: 40, EndTime: 50, Value: 2},
	}

	if got := ResolveStart(nil, heatmap); got != 0 {
		t.Errorf("expected resolved start 0, got %d", got)
	}
}

func TestResolveStart_LeadInClampsAtZero(t *testing.T) {
	heatmap := []HeatmapSample{
		{StartTime: 0, EndTime: 5, Value: 1},
		{StartTime: 5, EndTime: 10, Value: 1},
		{StartTime: 10, EndTime: 15, Value: 1},
		{StartTime: 15, EndTime: 20, Value: 1},
		{StartTime: 20, EndTime: 25, Value: 1},
	}

	// All windows tie; first wins at 5s, minus 10s lead-in clamps to 0.
	if got := ResolveStart(nil, heatmap); got != 0 {
		t.Errorf("expected resolved start 0, got %d", got)
	}
}

func TestResolveStart_LateHotWindow(t *testing.T) {
	heatmap := []HeatmapSample{
		{StartTime: 0, EndTime: 10, Value: 1},
		{StartTime: 10, EndTime: 20, Value: 1},
		{StartTime: 20, EndTime: 30, Value: 1},
		{StartTime: 30, EndTime: 40, Value: 1},
		{StartTime: 40, EndTime: 50, Value: 8},
		{StartTime: 50, EndTime: 60, Value: 9},
		{StartTime: 60, EndTime: 70, Value: 9},
		{StartTime: 70, EndTime: 80, Value: 1},
	}

	// Best window starts at 40s; minus the 10s lead-in gives 30.
	if got := ResolveStart(nil, heatmap); got != 30 {
		t.Errorf("expected resolved start 30, got %d", got)
	}
}

func TestResolveStart_TooFewSamples(t *testing.T) {
	cases := [][]HeatmapSample{
		nil,
		{},
		{{StartTime: 0, EndTime: 10, Value: 9}},
		{
			{StartTime: 0, EndTime: 10, Value: 9},
			{StartTime: 10, EndTime: 20, Value: 9},
			{StartTime: 20, EndTime: 30, Value: 9},
		},
	}

	for i, heatmap := range cases {
		if got := ResolveStart(nil, heatmap); got != 0 {
			t.Errorf("case %d: expected start 0 for insufficient heatmap, got %d", i, got)
		}
	}
}

func TestResolveStart_FirstWindowWinsTies(t *testing.T) {
	heatmap := []HeatmapSample{
		{StartTime: 0, EndTime: 10, Value: 0},
		{StartTime: 10, EndTime: 20, Value: 5},
		{StartTime: 20, EndTime: 30, Value: 5},
		{StartTime: 30, EndTime: 40, Value: 5},
		{StartTime: 40, EndTime: 50, Value: 5},
		{StartTime: 50, EndTime: 60, Value: 5},
	}

	// Every window averages 5; the earliest (10s) wins, clamped to 0.
	if got := ResolveStart(nil, heatmap); got != 0 {
		t.Errorf("expected resolved start 0, got %d", got)
	}
}
