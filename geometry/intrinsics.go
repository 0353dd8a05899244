package geometry

import (
	"gorgonia.org/tensor"

	"go.viam.com/rdk/rimage/transform"
)

// IntrinsicsFromPinhole tiles the calibration matrix of params into a [batch, 3, 3] tensor.
func IntrinsicsFromPinhole(params *transform.PinholeCameraIntrinsics, batch int) (*tensor.Dense, error) {
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	if err := checkPositive("batch", batch); err != nil {
		return nil, err
	}
	k := []float64{
		params.Fx, 0, params.Ppx,
		0, params.Fy, params.Ppy,
		0, 0, 1,
	}
	out := make([]float64, 0, batch*9)
	for b := 0; b < batch; b++ {
		out = append(out, k...)
	}
	return newFloat64Tensor(out, batch, 3, 3), nil
}

// IdentityIntrinsics returns batch copies of the 3x3 identity calibration.
func IdentityIntrinsics(batch int) (*tensor.Dense, error) {
	if err := checkPositive("batch", batch); err != nil {
		return nil, err
	}
	out := make([]float64, batch*9)
	for b := 0; b < batch; b++ {
		out[b*9], out[b*9+4], out[b*9+8] = 1, 1, 1
	}
	return newFloat64Tensor(out, batch, 3, 3), nil
}

// PadIntrinsics embeds [B, 3, 3] intrinsics into [B, 4, 4] homogeneous form with a zero translation
// column and a unit corner.
func PadIntrinsics(intrinsics *tensor.Dense) (*tensor.Dense, error) {
	if err := checkFloatTensor("intrinsics", intrinsics, anyDim, 3, 3); err != nil {
		return nil, err
	}
	batch := intrinsics.Shape()[0]
	if err := checkPositive("batch", batch); err != nil {
		return nil, err
	}
	k := asFloat64s(intrinsics)

	out := make([]float64, batch*16)
	for b := 0; b < batch; b++ {
		for i := 0; i < 3; i++ {
			copy(out[b*16+i*4:b*16+i*4+3], k[b*9+i*3:b*9+i*3+3])
		}
		out[b*16+15] = 1
	}
	return newFloat64Tensor(out, batch, 4, 4), nil
}
