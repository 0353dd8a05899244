package geometry

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

const (
	// GroundPlaneHeight is the signed height of the assumed flat ground plane in the camera frame.
	// The camera sits 1.65 units above it.
	GroundPlaneHeight = -1.65

	// Epsilon guards every division by a depth ratio or perspective denominator.
	Epsilon = 1e-10
)

// PixelToPlane back-projects homogeneous pixel coordinates [B, 3, H, W] onto the ground plane
// using the inverse of intrinsics [B, 3, 3]. For u = K⁻¹·p the scale is la = u.y / GroundPlaneHeight
// and the plane point is u / (la + Epsilon). The plane coordinates are [B, 3, H, W], or
// [B, 4, H, W] with a row of ones when homogeneous is set. The second result is the normalized
// y term [B, 1, H*W]; pixels near the horizon (la ≈ 0) get large values there and should be
// treated as low confidence. Epsilon moves the pole off u.y = 0 but does not remove it: at
// u.y = -GroundPlaneHeight*Epsilon (1.65e-10) la + Epsilon cancels to 0 and the plane coordinates
// are ±Inf.
func PixelToPlane(pixels, intrinsics *tensor.Dense, homogeneous bool) (*tensor.Dense, *tensor.Dense, error) {
	if err := checkFloatTensor("pixels", pixels, anyDim, 3, anyDim, anyDim); err != nil {
		return nil, nil, err
	}
	shape := pixels.Shape()
	batch, height, width := shape[0], shape[2], shape[3]
	for _, d := range []struct {
		name string
		v    int
	}{{"batch", batch}, {"height", height}, {"width", width}} {
		if err := checkPositive(d.name, d.v); err != nil {
			return nil, nil, err
		}
	}
	if err := checkFloatTensor("intrinsics", intrinsics, batch, 3, 3); err != nil {
		return nil, nil, err
	}
	px := asFloat64s(pixels)
	k := asFloat64s(intrinsics)

	channels := 3
	if homogeneous {
		channels = 4
	}
	plane := height * width
	out := make([]float64, batch*channels*plane)
	yn := make([]float64, batch*plane)

	err := forEachSample(batch, func(b int) error {
		kinv, err := invertSquare(k[b*9:(b+1)*9], 3)
		if err != nil {
			return errors.Wrapf(err, "intrinsics %d", b)
		}
		src := px[b*3*plane : (b+1)*3*plane]
		dst := out[b*channels*plane : (b+1)*channels*plane]
		for i := 0; i < plane; i++ {
			x, y, w := src[i], src[plane+i], src[2*plane+i]
			xu := kinv[0]*x + kinv[1]*y + kinv[2]*w
			yu := kinv[3]*x + kinv[4]*y + kinv[5]*w
			zu := kinv[6]*x + kinv[7]*y + kinv[8]*w

			la := yu/GroundPlaneHeight + Epsilon
			dst[i] = xu / la
			dst[plane+i] = yu / la
			dst[2*plane+i] = zu / la
			if homogeneous {
				dst[3*plane+i] = 1
			}
			yn[b*plane+i] = dst[plane+i]
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return newFloat64Tensor(out, batch, channels, height, width), newFloat64Tensor(yn, batch, 1, plane), nil
}

// CamToPixel projects homogeneous camera or plane coordinates [B, 4, H, W] with proj [B, 4, 4]
// and divides by depth: x = u.x / (u.z + Epsilon), y = u.y / (u.z + Epsilon). The result is [B, H, W, 2].
func CamToPixel(coords, proj *tensor.Dense) (*tensor.Dense, error) {
	if err := checkTensor("coords", coords, tensor.Float64, anyDim, 4, anyDim, anyDim); err != nil {
		return nil, err
	}
	shape := coords.Shape()
	batch, height, width := shape[0], shape[2], shape[3]
	for _, d := range []struct {
		name string
		v    int
	}{{"batch", batch}, {"height", height}, {"width", width}} {
		if err := checkPositive(d.name, d.v); err != nil {
			return nil, err
		}
	}
	if err := checkTensor("proj", proj, tensor.Float64, batch, 4, 4); err != nil {
		return nil, err
	}
	c := asFloat64s(coords)
	p := asFloat64s(proj)

	plane := height * width
	out := make([]float64, batch*plane*2)
	err := forEachSample(batch, func(b int) error {
		m := p[b*16 : (b+1)*16]
		src := c[b*4*plane : (b+1)*4*plane]
		for i := 0; i < plane; i++ {
			x, y, z, w := src[i], src[plane+i], src[2*plane+i], src[3*plane+i]
			xu := m[0]*x + m[1]*y + m[2]*z + m[3]*w
			yu := m[4]*x + m[5]*y + m[6]*z + m[7]*w
			zu := m[8]*x + m[9]*y + m[10]*z + m[11]*w

			o := (b*plane + i) * 2
			out[o] = xu / (zu + Epsilon)
			out[o+1] = yu / (zu + Epsilon)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newFloat64Tensor(out, batch, height, width, 2), nil
}
