package geometry

import (
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

// batchMatMul multiplies two [batch, n, n] row-major batches sample by sample.
func batchMatMul(a, b []float64, batch, n int) ([]float64, error) {
	size := n * n
	out := make([]float64, batch*size)
	err := forEachSample(batch, func(i int) error {
		var prod mat.Dense
		prod.Mul(
			mat.NewDense(n, n, a[i*size:(i+1)*size]),
			mat.NewDense(n, n, b[i*size:(i+1)*size]),
		)
		copy(out[i*size:(i+1)*size], prod.RawMatrix().Data)
		return nil
	})
	return out, err
}

// RigidFlow computes the flow [B, height, width, 2] that moves every target pixel to where it
// lands in the source image, assuming all pixels lie on the ground plane. pose is a [B, 6]
// target to source transform (source to target when reversePose is set, in which case it is
// inverted first) and intrinsics is [B, 3, 3].
func RigidFlow(pose, intrinsics *tensor.Dense, height, width int, reversePose bool) (*tensor.Dense, error) {
	poseMat, err := PoseVecToMat(pose)
	if err != nil {
		return nil, err
	}
	batch := poseMat.Shape()[0]
	if err := checkFloatTensor("intrinsics", intrinsics, batch, 3, 3); err != nil {
		return nil, err
	}
	if reversePose {
		if poseMat, err = InvertPoses(poseMat); err != nil {
			return nil, err
		}
	}

	grid, err := Meshgrid(batch, height, width, true)
	if err != nil {
		return nil, err
	}
	camCoords, _, err := PixelToPlane(grid, intrinsics, true)
	if err != nil {
		return nil, err
	}

	k4, err := PadIntrinsics(intrinsics)
	if err != nil {
		return nil, err
	}
	proj, err := batchMatMul(k4.Float64s(), poseMat.Float64s(), batch, 4)
	if err != nil {
		return nil, err
	}
	srcCoords, err := CamToPixel(camCoords, newFloat64Tensor(proj, batch, 4, 4))
	if err != nil {
		return nil, err
	}

	flow := gridToHWC(grid.Float32s(), batch, 3, height, width)
	for i, s := range srcCoords.Float64s() {
		flow[i] = s - flow[i]
	}
	return newFloat64Tensor(flow, batch, height, width, 2), nil
}

// FlowWarp inverse warps src [B, H, W, C] into the target frame given the target to source
// flow [B, H, W, 2]. Sampling follows opts.
func FlowWarp(src, flow *tensor.Dense, opts SamplerOptions) (*tensor.Dense, error) {
	if err := checkFloatTensor("src", src, anyDim, anyDim, anyDim, anyDim); err != nil {
		return nil, err
	}
	shape := src.Shape()
	batch, height, width := shape[0], shape[1], shape[2]
	if err := checkFloatTensor("flow", flow, batch, height, width, 2); err != nil {
		return nil, err
	}
	grid, err := Meshgrid(batch, height, width, false)
	if err != nil {
		return nil, err
	}
	coords := gridToHWC(grid.Float32s(), batch, 2, height, width)
	f := asFloat64s(flow)
	for i := range coords {
		coords[i] += f[i]
	}
	return BilinearSample(src, newFloat64Tensor(coords, batch, height, width, 2), opts)
}
