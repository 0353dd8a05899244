package imgutils

import (
	"image"
	"image/color"
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ImageToTensor stacks same-sized images into a [B, H, W, 3] float32 tensor of RGB values in [0, 255].
func ImageToTensor(imgs ...image.Image) (*tensor.Dense, error) {
	if len(imgs) == 0 {
		return nil, errors.New("need at least one image")
	}
	bounds := imgs[0].Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, errors.Errorf("empty image bounds %v", bounds)
	}

	data := make([]float32, 0, len(imgs)*w*h*3)
	for idx, img := range imgs {
		b := img.Bounds()
		if b.Dx() != w || b.Dy() != h {
			return nil, errors.Errorf("image %d is %dx%d, expected %dx%d", idx, b.Dx(), b.Dy(), w, h)
		}
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
				data = append(data, float32(c.R), float32(c.G), float32(c.B))
			}
		}
	}
	return tensor.New(tensor.WithShape(len(imgs), h, w, 3), tensor.WithBacking(data)), nil
}

func toByte(v float32) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(255, float64(v)))))
}

// TensorToImage renders sample b of a [B, H, W, C] float32 tensor, C being 1 (gray) or 3 (RGB).
// Values are rounded and clamped to [0, 255].
func TensorToImage(t *tensor.Dense, b int) (*image.NRGBA, error) {
	if t.Dtype() != tensor.Float32 {
		return nil, errors.Errorf("need a float32 tensor, got %v", t.Dtype())
	}
	shape := t.Shape()
	if len(shape) != 4 {
		return nil, errors.Errorf("need a [B, H, W, C] tensor, got shape %v", shape)
	}
	batch, h, w, channels := shape[0], shape[1], shape[2], shape[3]
	if channels != 1 && channels != 3 {
		return nil, errors.Errorf("can't render %d channels", channels)
	}
	if b < 0 || b >= batch {
		return nil, errors.Errorf("sample %d out of range for batch of %d", b, batch)
	}

	data := t.Float32s()[b*h*w*channels : (b+1)*h*w*channels]
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px := data[(y*w+x)*channels:]
			c := color.NRGBA{A: 255}
			if channels == 1 {
				c.R = toByte(px[0])
				c.G, c.B = c.R, c.R
			} else {
				c.R, c.G, c.B = toByte(px[0]), toByte(px[1]), toByte(px[2])
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img, nil
}
