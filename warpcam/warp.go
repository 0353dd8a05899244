package warpcam

import (
	"fmt"
	"image"

	"gorgonia.org/tensor"

	"go.viam.com/rdk/rimage/transform"

	"github.com/erh/rigidflow/geometry"
	"github.com/erh/rigidflow/imgutils"
)

// Flow computes the rigid flow of a single pose for an image of the size given by intrinsics.
func Flow(intrinsics *transform.PinholeCameraIntrinsics, pose [6]float64, reverse bool) (*tensor.Dense, error) {
	k, err := geometry.IntrinsicsFromPinhole(intrinsics, 1)
	if err != nil {
		return nil, err
	}
	p := tensor.New(tensor.WithShape(1, 6), tensor.WithBacking(append([]float64(nil), pose[:]...)))
	return geometry.RigidFlow(p, k, intrinsics.Height, intrinsics.Width, reverse)
}

// Warp inverse warps img into the frame reached by pose.
func Warp(img image.Image, intrinsics *transform.PinholeCameraIntrinsics, pose [6]float64, reverse bool, boundary geometry.Boundary) (image.Image, error) {
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Dx() != intrinsics.Width || b.Dy() != intrinsics.Height {
		return nil, fmt.Errorf("img dimension and intrinsics don't match Image(%d,%d) != Intrinsics(%d,%d)",
			b.Dx(), b.Dy(), intrinsics.Width, intrinsics.Height)
	}

	src, err := imgutils.ImageToTensor(img)
	if err != nil {
		return nil, err
	}

	flow, err := Flow(intrinsics, pose, reverse)
	if err != nil {
		return nil, err
	}

	warped, err := geometry.FlowWarp(src, flow, geometry.SamplerOptions{Boundary: boundary})
	if err != nil {
		return nil, err
	}
	return imgutils.TensorToImage(warped, 0)
}
