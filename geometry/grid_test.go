package geometry

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
	"gorgonia.org/tensor"
)

func TestMeshgrid(t *testing.T) {
	const batch, height, width = 2, 3, 5
	g, err := Meshgrid(batch, height, width, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, []int(g.Shape()), test.ShouldResemble, []int{batch, 3, height, width})
	test.That(t, g.Dtype(), test.ShouldEqual, tensor.Float32)

	d := g.Float32s()
	plane := height * width
	for b := 0; b < batch; b++ {
		base := b * 3 * plane
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				i := y*width + x
				test.That(t, d[base+i], test.ShouldEqual, float32(x))
				test.That(t, d[base+plane+i], test.ShouldEqual, float32(y))
				test.That(t, d[base+2*plane+i], test.ShouldEqual, float32(1))
			}
		}
	}

	// extreme cells
	test.That(t, d[0], test.ShouldEqual, float32(0))
	test.That(t, d[plane], test.ShouldEqual, float32(0))
	test.That(t, d[plane-1], test.ShouldEqual, float32(width-1))
	test.That(t, d[2*plane-1], test.ShouldEqual, float32(height-1))
}

func TestMeshgridDeterministic(t *testing.T) {
	a, err := Meshgrid(3, 7, 11, false)
	test.That(t, err, test.ShouldBeNil)
	b, err := Meshgrid(3, 7, 11, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, []int(a.Shape()), test.ShouldResemble, []int{3, 2, 7, 11})
	test.That(t, a.Float32s(), test.ShouldResemble, b.Float32s())
}

func TestMeshgridSinglePixel(t *testing.T) {
	g, err := Meshgrid(1, 1, 1, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, g.Float32s(), test.ShouldResemble, []float32{0, 0})
}

func TestMeshgridBadSize(t *testing.T) {
	_, err := Meshgrid(1, 0, 4, true)
	test.That(t, errors.Is(err, ErrShapeMismatch), test.ShouldBeTrue)
}
