package geometry

import (
	"github.com/pkg/errors"
)

var (
	// ErrShapeMismatch is returned when a tensor's rank, size or dtype does not match what an operation expects.
	ErrShapeMismatch = errors.New("tensor shape mismatch")

	// ErrSingularTransform is returned when a matrix that has to be inverted is singular or not finite.
	ErrSingularTransform = errors.New("singular transform")

	// ErrNotRigid is returned when a 4x4 matrix does not have the (0, 0, 0, 1) bottom row of a rigid transform.
	ErrNotRigid = errors.New("matrix is not a rigid transform")
)

func newShapeError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrShapeMismatch, format, args...)
}

func newSingularError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrSingularTransform, format, args...)
}
