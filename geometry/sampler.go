package geometry

import (
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Boundary selects how BilinearSample treats coordinates outside the source image.
type Boundary int

const (
	// BoundaryClamp clamps coordinates into [0, W-1] x [0, H-1] before interpolating, so any point
	// outside the image takes the value of the nearest edge.
	BoundaryClamp Boundary = iota
	// BoundaryZero gives zero weight to every neighbour outside the image, so points farther than
	// one pixel outside sample as 0 and points within one pixel fade toward 0.
	BoundaryZero
)

func (b Boundary) String() string {
	switch b {
	case BoundaryClamp:
		return "clamp"
	case BoundaryZero:
		return "zero"
	default:
		return "unknown"
	}
}

// ParseBoundary parses "clamp" or "zero". The empty string is BoundaryClamp.
func ParseBoundary(s string) (Boundary, error) {
	switch s {
	case "", "clamp":
		return BoundaryClamp, nil
	case "zero":
		return BoundaryZero, nil
	default:
		return BoundaryClamp, errors.Errorf("unknown boundary policy %q", s)
	}
}

// SamplerOptions configures BilinearSample. The zero value clamps to the edge.
type SamplerOptions struct {
	Boundary Boundary
}

func clampf(v, lo, hi float32) float32 {
	if !(v >= lo) {
		// also catches NaN
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampIndex(v float32, hi int) int {
	return int(clampf(v, 0, float32(hi)))
}

func inRange(v float32, hi int) float32 {
	if v >= 0 && v <= float32(hi) {
		return 1
	}
	return 0
}

// axisWeights returns the two neighbour indices along one axis and their weights.
func axisWeights(v float32, hi int, boundary Boundary) (i0, i1 int, w0, w1 float32) {
	if boundary == BoundaryZero {
		v0 := float32(math.Floor(float64(v)))
		v1 := v0 + 1
		w0 = (v1 - v) * inRange(v0, hi)
		w1 = (v - v0) * inRange(v1, hi)
		return clampIndex(v0, hi), clampIndex(v1, hi), w0, w1
	}
	vc := clampf(v, 0, float32(hi))
	v0 := float32(math.Floor(float64(vc)))
	w1 = vc - v0
	w0 = 1 - w1
	i0 = int(v0)
	i1 = i0 + 1
	if i1 > hi {
		i1 = hi
	}
	return i0, i1, w0, w1
}

// BilinearSample builds a new image [B, Ht, Wt, C] by bilinearly sampling imgs [B, Hs, Ws, C] at
// coords [B, Ht, Wt, 2] given in source pixel units (x then y). Arithmetic is float32 whatever the
// input dtype. Out of range coordinates follow opts.Boundary and never fail.
func BilinearSample(imgs, coords *tensor.Dense, opts SamplerOptions) (*tensor.Dense, error) {
	if err := checkFloatTensor("imgs", imgs, anyDim, anyDim, anyDim, anyDim); err != nil {
		return nil, err
	}
	ishape := imgs.Shape()
	batch, hs, ws, channels := ishape[0], ishape[1], ishape[2], ishape[3]
	for _, d := range []struct {
		name string
		v    int
	}{{"batch", batch}, {"source height", hs}, {"source width", ws}, {"channels", channels}} {
		if err := checkPositive(d.name, d.v); err != nil {
			return nil, err
		}
	}
	if err := checkFloatTensor("coords", coords, batch, anyDim, anyDim, 2); err != nil {
		return nil, err
	}
	cshape := coords.Shape()
	ht, wt := cshape[1], cshape[2]
	if err := checkPositive("target height", ht); err != nil {
		return nil, err
	}
	if err := checkPositive("target width", wt); err != nil {
		return nil, err
	}

	src := asFloat32s(imgs)
	xy := asFloat32s(coords)
	out := make([]float32, batch*ht*wt*channels)

	err := forEachSample(batch, func(b int) error {
		base := b * hs * ws
		for p := 0; p < ht*wt; p++ {
			ci := (b*ht*wt + p) * 2
			x0, x1, wx0, wx1 := axisWeights(xy[ci], ws-1, opts.Boundary)
			y0, y1, wy0, wy1 := axisWeights(xy[ci+1], hs-1, opts.Boundary)

			w00, w01 := wx0*wy0, wx0*wy1
			w10, w11 := wx1*wy0, wx1*wy1
			i00 := (base + y0*ws + x0) * channels
			i01 := (base + y1*ws + x0) * channels
			i10 := (base + y0*ws + x1) * channels
			i11 := (base + y1*ws + x1) * channels

			o := (b*ht*wt + p) * channels
			for c := 0; c < channels; c++ {
				out[o+c] = w00*src[i00+c] + w01*src[i01+c] + w10*src[i10+c] + w11*src[i11+c]
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newFloat32Tensor(out, batch, ht, wt, channels), nil
}
