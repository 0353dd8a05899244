package geometry

import (
	"go.uber.org/multierr"
	"gorgonia.org/tensor"
)

// anyDim matches any size along an axis in checkTensor.
const anyDim = -1

// checkTensor validates rank, per-axis size and dtype of t. Sizes of anyDim are not checked.
// All violations are reported together.
func checkTensor(name string, t *tensor.Dense, dt tensor.Dtype, dims ...int) error {
	if t == nil {
		return newShapeError("%s is nil", name)
	}
	var err error
	if t.Dtype() != dt {
		err = multierr.Append(err, newShapeError("%s has dtype %v, expected %v", name, t.Dtype(), dt))
	}
	shape := t.Shape()
	if !t.IsMaterializable() && !rowMajor(shape, t.Strides()) {
		err = multierr.Append(err, newShapeError("%s is not stored row-major (strides %v)", name, t.Strides()))
	}
	if len(shape) != len(dims) {
		return multierr.Append(err, newShapeError("%s has rank %d (shape %v), expected rank %d", name, len(shape), shape, len(dims)))
	}
	for i, d := range dims {
		if d != anyDim && shape[i] != d {
			err = multierr.Append(err, newShapeError("%s axis %d has size %d, expected %d", name, i, shape[i], d))
		}
	}
	return err
}

// checkFloatTensor is checkTensor accepting either Float32 or Float64.
func checkFloatTensor(name string, t *tensor.Dense, dims ...int) error {
	if t == nil {
		return newShapeError("%s is nil", name)
	}
	dt := t.Dtype()
	if dt != tensor.Float32 && dt != tensor.Float64 {
		return newShapeError("%s has dtype %v, expected float32 or float64", name, dt)
	}
	return checkTensor(name, t, dt, dims...)
}

// rowMajor reports whether strides walk shape row by row. Axes of size 1 are ignored.
func rowMajor(shape tensor.Shape, strides []int) bool {
	if len(strides) != len(shape) {
		return len(shape) <= 1
	}
	want := 1
	for i := len(shape) - 1; i >= 0; i-- {
		if shape[i] > 1 && strides[i] != want {
			return false
		}
		want *= shape[i]
	}
	return true
}

// flat returns t in shape order. Transposed tensors and views are copied out.
func flat(t *tensor.Dense) *tensor.Dense {
	if t.IsMaterializable() {
		return t.Materialize().(*tensor.Dense)
	}
	return t
}

func checkPositive(name string, v int) error {
	if v <= 0 {
		return newShapeError("%s must be positive, got %d", name, v)
	}
	return nil
}

// asFloat64s returns the elements of t in shape order as float64, copying if t is float32 or a view.
func asFloat64s(t *tensor.Dense) []float64 {
	t = flat(t)
	if t.Dtype() == tensor.Float64 {
		return t.Float64s()
	}
	src := t.Float32s()
	out := make([]float64, len(src))
	for i, v := range src {
		out[i] = float64(v)
	}
	return out
}

// asFloat32s returns the elements of t in shape order as float32, copying if t is float64 or a view.
func asFloat32s(t *tensor.Dense) []float32 {
	t = flat(t)
	if t.Dtype() == tensor.Float32 {
		return t.Float32s()
	}
	src := t.Float64s()
	out := make([]float32, len(src))
	for i, v := range src {
		out[i] = float32(v)
	}
	return out
}

func newFloat64Tensor(data []float64, shape ...int) *tensor.Dense {
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

func newFloat32Tensor(data []float32, shape ...int) *tensor.Dense {
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}
