package geometry

import (
	"math"

	"github.com/montanaflynn/stats"
	"gorgonia.org/tensor"
)

// FlowStats summarizes the per-pixel displacement magnitude of a flow field.
type FlowStats struct {
	Mean float64 `json:"mean"`
	Max  float64 `json:"max"`
	P95  float64 `json:"p95"`
}

// FlowMagnitudeStats computes FlowStats over every pixel of a [B, H, W, 2] flow.
func FlowMagnitudeStats(flow *tensor.Dense) (FlowStats, error) {
	if err := checkFloatTensor("flow", flow, anyDim, anyDim, anyDim, 2); err != nil {
		return FlowStats{}, err
	}
	f := asFloat64s(flow)
	mags := make(stats.Float64Data, len(f)/2)
	for i := range mags {
		mags[i] = math.Hypot(f[2*i], f[2*i+1])
	}

	var s FlowStats
	var err error
	if s.Mean, err = mags.Mean(); err != nil {
		return FlowStats{}, err
	}
	if s.Max, err = mags.Max(); err != nil {
		return FlowStats{}, err
	}
	if s.P95, err = mags.Percentile(95); err != nil {
		return FlowStats{}, err
	}
	return s, nil
}
