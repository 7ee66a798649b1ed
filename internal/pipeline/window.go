package pipeline

// HeatmapSample is one time-indexed popularity sample from the source
// provider. Samples arrive ordered by start time.
type HeatmapSample struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Value     float64 `json:"value"`
}

// heatmapWindowSize is the number of consecutive samples averaged when
// scoring candidate start positions.
const heatmapWindowSize = 3

// heatmapLeadIn is how many seconds before the best window the clip starts,
// so the pick doesn't begin mid-phrase.
const heatmapLeadIn = 10

// ResolveStart picks the start second of the audio window to process.
//
// An explicit start wins outright. Otherwise, with at least 4 heatmap
// samples, the first sample is discarded (it always covers 0 and skews the
// pick) and the remaining samples are scanned with a sliding 3-sample window;
// the window with the highest mean value wins, first window on ties. The
// result is the winning window's start minus a 10 second lead-in, clamped at
// zero. With no usable heatmap the clip starts at 0.
func ResolveStart(explicit *int, heatmap []HeatmapSample) int {
	if explicit != nil {
		return *explicit
	}

	if len(heatmap) < heatmapWindowSize+1 {
		return 0
	}

	samples := heatmap[1:]

	bestIdx := 0
	bestMean := -1.0
	for i := 0; i+heatmapWindowSize <= len(samples); i++ {
		sum := 0.0
		for j := i; j < i+heatmapWindowSize; j++ {
			sum += samples[j].Value
		}
		mean := sum / heatmapWindowSize
		if mean > bestMean {
			bestMean = mean
			bestIdx = i
		}
	}

	start := int(samples[bestIdx].StartTime) - heatmapLeadIn
	if start < 0 {
		start = 0
	}
	return start
}
