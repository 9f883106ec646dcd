package core

import (
	"sync"
	"sync/atomic"
)

const AVG_COUNT uint8 = 30

type MetricsState struct {
	FrameAVGCounter    uint8
	MStimes            [AVG_COUNT]float64
	MSavg              float64
	Frames             int32
	AccumulatedFrameMS float64
	FPS                float64

	// Upload pipeline counters, updated from the submission goroutine.
	BytesStaged   atomic.Uint64
	BytesFlushed  atomic.Uint64
	Submissions   atomic.Uint64
	CommandReuses atomic.Uint64
}

var onceMetrics sync.Once
var metricsState *MetricsState = nil

func MetricsInitialize() error {
	onceMetrics.Do(func() {
		metricsState = &MetricsState{
			MStimes: [AVG_COUNT]float64{0},
		}
	})
	return nil
}

func MetricsUpdate(frame_elapsed_time float64) {
	// Calculate frame ms average
	frame_ms := (frame_elapsed_time * 1000.0)
	metricsState.MStimes[metricsState.FrameAVGCounter] = frame_ms
	if metricsState.FrameAVGCounter == AVG_COUNT-1 {
		for i := uint8(0); i < AVG_COUNT; i++ {
			metricsState.MSavg += metricsState.MStimes[i]
		}

		metricsState.MSavg /= float64(AVG_COUNT)
	}
	metricsState.FrameAVGCounter++
	metricsState.FrameAVGCounter %= AVG_COUNT

	// Calculate Frames per second.
	metricsState.AccumulatedFrameMS += frame_ms
	if metricsState.AccumulatedFrameMS > 1000 {
		metricsState.FPS = float64(metricsState.Frames)
		metricsState.AccumulatedFrameMS -= 1000
		metricsState.Frames = 0
	}

	// Count all Frames.
	metricsState.Frames++
}

func MetricsFPS() float64 {
	return metricsState.FPS
}

func MetricsFrameTime() float64 {
	return metricsState.MSavg
}

func MetricsAddStagedBytes(n uint64) {
	if metricsState != nil {
		metricsState.BytesStaged.Add(n)
	}
}

func MetricsAddFlushedBytes(n uint64) {
	if metricsState != nil {
		metricsState.BytesFlushed.Add(n)
	}
}

func MetricsAddSubmission() {
	if metricsState != nil {
		metricsState.Submissions.Add(1)
	}
}

func MetricsAddCommandReuse() {
	if metricsState != nil {
		metricsState.CommandReuses.Add(1)
	}
}

func MetricsSubmissions() uint64 {
	if metricsState == nil {
		return 0
	}
	return metricsState.Submissions.Load()
}
