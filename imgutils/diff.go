package imgutils

import (
	"image"
	"image/color"
	"math"

	"github.com/pkg/errors"
)

// MeanAbsoluteDifference is the mean absolute grayscale difference between two same-sized images.
// pixels for which skip returns true are left out; skip may be nil.
func MeanAbsoluteDifference(a, b image.Image, skip func(x, y int) bool) (float64, error) {
	ba, bb := a.Bounds(), b.Bounds()
	if ba.Dx() != bb.Dx() || ba.Dy() != bb.Dy() {
		return 0, errors.Errorf("image sizes differ %v vs %v", ba.Size(), bb.Size())
	}

	total := 0.0
	numPixels := 0.0

	for y := 0; y < ba.Dy(); y++ {
		for x := 0; x < ba.Dx(); x++ {
			if skip != nil && skip(x, y) {
				continue
			}
			ga := color.GrayModel.Convert(a.At(ba.Min.X+x, ba.Min.Y+y)).(color.Gray)
			gb := color.GrayModel.Convert(b.At(bb.Min.X+x, bb.Min.Y+y)).(color.Gray)
			total += math.Abs(float64(ga.Y) - float64(gb.Y))
			numPixels++
		}
	}

	if numPixels == 0 {
		return 0, errors.New("no pixels to compare")
	}
	return total / numPixels, nil
}
