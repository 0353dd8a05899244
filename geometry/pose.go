package geometry

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"

	"go.viam.com/rdk/spatialmath"
)

// rigidTolerance bounds how far the bottom row of a 4x4 may drift from (0, 0, 0, 1).
const rigidTolerance = 1e-9

// gimbalTolerance is how close |R02| may get to 1 before PoseMatToVec treats the pose as gimbal locked.
const gimbalTolerance = 1e-9

// PoseVecToMat converts 6DoF pose vectors [B, 6] in the order tx, ty, tz, rx, ry, rz into
// homogeneous transforms [B, 4, 4] = [[R, t], [0, 0, 0, 1]] with R = Rx·Ry·Rz.
func PoseVecToMat(vec *tensor.Dense) (*tensor.Dense, error) {
	if err := checkTensor("pose", vec, tensor.Float64, anyDim, 6); err != nil {
		return nil, err
	}
	batch := vec.Shape()[0]
	if err := checkPositive("batch", batch); err != nil {
		return nil, err
	}
	v := asFloat64s(vec)

	out := make([]float64, batch*16)
	err := forEachSample(batch, func(b int) error {
		p := v[b*6 : (b+1)*6]
		r := eulerToMat(p[5], p[4], p[3])
		t := out[b*16 : (b+1)*16]
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				t[i*4+j] = r.At(i, j)
			}
			t[i*4+3] = p[i]
		}
		// bottom row is exact
		t[15] = 1
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newFloat64Tensor(out, batch, 4, 4), nil
}

func isFinite(data []float64) bool {
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// invertSquare inverts an n x n row-major matrix. Non-finite input and singular or
// ill-conditioned matrices fail with ErrSingularTransform.
func invertSquare(data []float64, n int) ([]float64, error) {
	if !isFinite(data) {
		return nil, newSingularError("matrix has non-finite entries")
	}
	a := mat.NewDense(n, n, append([]float64(nil), data...))
	var inv mat.Dense
	if err := inv.Inverse(a); err != nil {
		return nil, errors.Wrap(ErrSingularTransform, err.Error())
	}
	out := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out[i*n+j] = inv.At(i, j)
		}
	}
	return out, nil
}

// InvertPoses inverts every transform of a [B, 4, 4] batch. Any sample that cannot be inverted
// fails the whole call with ErrSingularTransform.
func InvertPoses(poses *tensor.Dense) (*tensor.Dense, error) {
	if err := checkTensor("poses", poses, tensor.Float64, anyDim, 4, 4); err != nil {
		return nil, err
	}
	batch := poses.Shape()[0]
	if err := checkPositive("batch", batch); err != nil {
		return nil, err
	}
	in := asFloat64s(poses)

	out := make([]float64, batch*16)
	err := forEachSample(batch, func(b int) error {
		inv, err := invertSquare(in[b*16:(b+1)*16], 4)
		if err != nil {
			return errors.Wrapf(err, "pose %d", b)
		}
		copy(out[b*16:(b+1)*16], inv)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newFloat64Tensor(out, batch, 4, 4), nil
}

func checkRigidRow(t []float64) error {
	want := [4]float64{0, 0, 0, 1}
	for j, w := range want {
		if math.Abs(t[12+j]-w) > rigidTolerance {
			return errors.Wrapf(ErrNotRigid, "bottom row is %v", t[12:16])
		}
	}
	return nil
}

// PoseMatToVec recovers tx, ty, tz, rx, ry, rz from rigid transforms [B, 4, 4] built with the
// Rx·Ry·Rz convention. At gimbal lock rz is reported as 0.
func PoseMatToVec(poses *tensor.Dense) (*tensor.Dense, error) {
	if err := checkTensor("poses", poses, tensor.Float64, anyDim, 4, 4); err != nil {
		return nil, err
	}
	batch := poses.Shape()[0]
	if err := checkPositive("batch", batch); err != nil {
		return nil, err
	}
	in := asFloat64s(poses)

	out := make([]float64, batch*6)
	err := forEachSample(batch, func(b int) error {
		t := in[b*16 : (b+1)*16]
		if err := checkRigidRow(t); err != nil {
			return errors.Wrapf(err, "pose %d", b)
		}
		r := func(i, j int) float64 { return t[i*4+j] }

		var rx, ry, rz float64
		s := math.Max(-1, math.Min(1, r(0, 2)))
		ry = math.Asin(s)
		if 1-math.Abs(s) > gimbalTolerance {
			rz = math.Atan2(-r(0, 1), r(0, 0))
			rx = math.Atan2(-r(1, 2), r(2, 2))
		} else {
			rx = math.Atan2(r(2, 1), r(1, 1))
		}

		copy(out[b*6:(b+1)*6], []float64{t[3], t[7], t[11], rx, ry, rz})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newFloat64Tensor(out, batch, 6), nil
}

// SpatialPose converts sample b of a [B, 4, 4] rigid transform batch into a spatialmath.Pose.
func SpatialPose(poses *tensor.Dense, b int) (spatialmath.Pose, error) {
	if err := checkTensor("poses", poses, tensor.Float64, anyDim, 4, 4); err != nil {
		return nil, err
	}
	if b < 0 || b >= poses.Shape()[0] {
		return nil, newShapeError("batch index %d out of range for %d poses", b, poses.Shape()[0])
	}
	t := asFloat64s(poses)[b*16 : (b+1)*16]
	if err := checkRigidRow(t); err != nil {
		return nil, err
	}
	rot, err := spatialmath.NewRotationMatrix([]float64{
		t[0], t[1], t[2],
		t[4], t[5], t[6],
		t[8], t[9], t[10],
	})
	if err != nil {
		return nil, err
	}
	return spatialmath.NewPose(r3.Vector{X: t[3], Y: t[7], Z: t[11]}, rot), nil
}
