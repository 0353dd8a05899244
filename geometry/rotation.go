// Package geometry holds the batched camera geometry used to synthesize rigid flow from a pose and
// a ground plane assumption, and to resample images under a flow field.
//
// Tensors are row-major *tensor.Dense values. Rotation, pose and projection math is float64;
// pixel grids and image sampling are float32.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

func clipAngle(a float64) float64 {
	return math.Max(-math.Pi, math.Min(math.Pi, a))
}

func rotZ(a float64) *mat.Dense {
	c, s := math.Cos(a), math.Sin(a)
	return mat.NewDense(3, 3, []float64{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	})
}

func rotY(a float64) *mat.Dense {
	c, s := math.Cos(a), math.Sin(a)
	return mat.NewDense(3, 3, []float64{
		c, 0, s,
		0, 1, 0,
		-s, 0, c,
	})
}

func rotX(a float64) *mat.Dense {
	c, s := math.Cos(a), math.Sin(a)
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, c, -s,
		0, s, c,
	})
}

// eulerToMat builds Rx·Ry·Rz for one sample. Angles are clipped to [-π, π].
func eulerToMat(z, y, x float64) *mat.Dense {
	var xy, r mat.Dense
	xy.Mul(rotX(clipAngle(x)), rotY(clipAngle(y)))
	r.Mul(&xy, rotZ(clipAngle(z)))
	return &r
}

// EulerToRotation converts per-sample angles about z, y and x (radians, each shape [B]) into
// rotation matrices of shape [B, 3, 3]. The product is Rx·Ry·Rz, so the z rotation is applied first.
func EulerToRotation(z, y, x *tensor.Dense) (*tensor.Dense, error) {
	if err := checkTensor("z", z, tensor.Float64, anyDim); err != nil {
		return nil, err
	}
	batch := z.Shape()[0]
	if err := checkPositive("batch", batch); err != nil {
		return nil, err
	}
	if err := checkTensor("y", y, tensor.Float64, batch); err != nil {
		return nil, err
	}
	if err := checkTensor("x", x, tensor.Float64, batch); err != nil {
		return nil, err
	}
	zs, ys, xs := asFloat64s(z), asFloat64s(y), asFloat64s(x)

	out := make([]float64, batch*9)
	err := forEachSample(batch, func(b int) error {
		r := eulerToMat(zs[b], ys[b], xs[b])
		copy(out[b*9:(b+1)*9], r.RawMatrix().Data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newFloat64Tensor(out, batch, 3, 3), nil
}
