package geometry

import (
	"gorgonia.org/tensor"
)

// linspace returns n evenly spaced values over [start, stop]. n == 1 yields start.
func linspace(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return out
}

// gridAxis maps a [-1, 1] linspace of n points onto pixel positions [0, n-1].
func gridAxis(n int) []float32 {
	ls := linspace(-1, 1, n)
	out := make([]float32, n)
	for i, v := range ls {
		out[i] = float32((v + 1) * 0.5 * float64(n-1))
	}
	return out
}

// Meshgrid returns pixel coordinates of shape [batch, 2, height, width], or
// [batch, 3, height, width] with a trailing channel of ones when homogeneous is set.
// Channel 0 is x in [0, width-1] and channel 1 is y in [0, height-1]. The result only
// depends on the arguments.
func Meshgrid(batch, height, width int, homogeneous bool) (*tensor.Dense, error) {
	for _, d := range []struct {
		name string
		v    int
	}{{"batch", batch}, {"height", height}, {"width", width}} {
		if err := checkPositive(d.name, d.v); err != nil {
			return nil, err
		}
	}

	channels := 2
	if homogeneous {
		channels = 3
	}
	plane := height * width
	xs, ys := gridAxis(width), gridAxis(height)

	sample := make([]float32, channels*plane)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			sample[i] = xs[x]
			sample[plane+i] = ys[y]
			if homogeneous {
				sample[2*plane+i] = 1
			}
		}
	}

	out := make([]float32, 0, batch*len(sample))
	for b := 0; b < batch; b++ {
		out = append(out, sample...)
	}
	return newFloat32Tensor(out, batch, channels, height, width), nil
}

// gridToHWC transposes a [B, C, H, W] float32 grid to [B, H, W, 2] float64, keeping the x and y channels.
func gridToHWC(grid []float32, batch, channels, height, width int) []float64 {
	plane := height * width
	out := make([]float64, batch*plane*2)
	for b := 0; b < batch; b++ {
		base := b * channels * plane
		for i := 0; i < plane; i++ {
			o := (b*plane + i) * 2
			out[o] = float64(grid[base+i])
			out[o+1] = float64(grid[base+plane+i])
		}
	}
	return out
}
