package warpcam

import (
	"context"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/data"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/rimage/transform"

	"github.com/erh/rigidflow/geometry"
	"github.com/erh/rigidflow/imgutils"
)

type fakeCamera struct {
	camera.Camera

	img        image.Image
	intrinsics *transform.PinholeCameraIntrinsics

	mu    sync.Mutex
	calls int
	delay time.Duration
}

func (fc *fakeCamera) Name() resource.Name {
	return camera.Named("src")
}

func (fc *fakeCamera) Images(ctx context.Context, filterSourceNames []string, extra map[string]interface{}) ([]camera.NamedImage, resource.ResponseMetadata, error) {
	fc.mu.Lock()
	fc.calls++
	fc.mu.Unlock()
	time.Sleep(fc.delay)
	ni, err := camera.NamedImageFromImage(fc.img, "color", "image/png", data.Annotations{})
	if err != nil {
		return nil, resource.ResponseMetadata{}, err
	}
	return []camera.NamedImage{ni}, resource.ResponseMetadata{CapturedAt: time.Now()}, nil
}

func (fc *fakeCamera) Properties(ctx context.Context) (camera.Properties, error) {
	return camera.Properties{IntrinsicParams: fc.intrinsics}, nil
}

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 20), G: uint8(y * 20), B: uint8((x + y) * 10), A: 255})
		}
	}
	return img
}

func testIntrinsics(w, h int) *transform.PinholeCameraIntrinsics {
	return &transform.PinholeCameraIntrinsics{
		Width:  w,
		Height: h,
		Fx:     float64(w),
		Fy:     float64(w),
		Ppx:    float64(w) / 2,
		Ppy:    float64(h) / 2,
	}
}

func newTestCamera(t *testing.T, cfg *Config, src *fakeCamera) camera.Camera {
	t.Helper()
	cam, err := NewWarpCamera(camera.Named("warp"), cfg, src, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return cam
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{Src: "cam"}
	deps, opt, err := cfg.Validate("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, deps, test.ShouldResemble, []string{"cam"})
	test.That(t, opt, test.ShouldBeNil)

	_, _, err = (&Config{}).Validate("")
	test.That(t, err, test.ShouldNotBeNil)

	_, _, err = (&Config{Src: "cam", Pose: []float64{1, 2}}).Validate("")
	test.That(t, err, test.ShouldNotBeNil)

	_, _, err = (&Config{Src: "cam", Boundary: "wrap"}).Validate("")
	test.That(t, err, test.ShouldNotBeNil)

	_, _, err = (&Config{Src: "cam", Pose: make([]float64, 6), Boundary: "zero"}).Validate("")
	test.That(t, err, test.ShouldBeNil)
}

func TestWarpZeroPoseIsIdentity(t *testing.T) {
	img := testImage(8, 6)
	out, err := Warp(img, testIntrinsics(8, 6), [6]float64{}, false, geometry.BoundaryClamp)
	test.That(t, err, test.ShouldBeNil)

	diff, err := imgutils.MeanAbsoluteDifference(img, out, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, diff, test.ShouldAlmostEqual, 0, 1e-9)
}

func TestWarpRotationSamplesAlongFlow(t *testing.T) {
	const w, h = 8, 6
	img := testImage(w, h)
	intrinsics := testIntrinsics(w, h)
	pose := [6]float64{0, 0, 0, 0, 0.05, 0}

	flow, err := Flow(intrinsics, pose, false)
	test.That(t, err, test.ShouldBeNil)
	out, err := Warp(img, intrinsics, pose, false, geometry.BoundaryClamp)
	test.That(t, err, test.ShouldBeNil)

	// every channel of testImage is linear in x and y, so bilinear sampling is exact inside the frame
	f := flow.Float64s()
	checked, moved := 0, 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 2
			sx, sy := float64(x)+f[i], float64(y)+f[i+1]
			if sx < 0 || sx > w-1 || sy < 0 || sy > h-1 {
				continue
			}
			c := out.(*image.NRGBA).NRGBAAt(x, y)
			test.That(t, float64(c.R), test.ShouldAlmostEqual, 20*sx, 0.51)
			test.That(t, float64(c.G), test.ShouldAlmostEqual, 20*sy, 0.51)
			test.That(t, float64(c.B), test.ShouldAlmostEqual, 10*(sx+sy), 0.51)
			checked++
			if c != img.NRGBAAt(x, y) {
				moved++
			}
		}
	}
	test.That(t, checked, test.ShouldBeGreaterThan, w*h/2)
	test.That(t, moved, test.ShouldBeGreaterThan, 0)
}

func TestWarpCameraUsesSetPose(t *testing.T) {
	ctx := context.Background()
	src := &fakeCamera{img: testImage(8, 6), intrinsics: testIntrinsics(8, 6)}
	cam := newTestCamera(t, &Config{Src: "src"}, src)

	_, err := cam.DoCommand(ctx, map[string]interface{}{
		"set_pose": []interface{}{0.0, 0.0, 0.0, 0.0, 0.05, 0.0},
	})
	test.That(t, err, test.ShouldBeNil)

	imgs, _, err := cam.Images(ctx, nil, nil)
	test.That(t, err, test.ShouldBeNil)
	got, err := imgs[0].Image(ctx)
	test.That(t, err, test.ShouldBeNil)

	want, err := Warp(src.img, src.intrinsics, [6]float64{0, 0, 0, 0, 0.05, 0}, false, geometry.BoundaryClamp)
	test.That(t, err, test.ShouldBeNil)
	diff, err := imgutils.MeanAbsoluteDifference(want, got, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, diff, test.ShouldAlmostEqual, 0, 1e-9)

	diff, err = imgutils.MeanAbsoluteDifference(src.img, got, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, diff, test.ShouldBeGreaterThan, 0)
}

func TestWarpSizeMismatch(t *testing.T) {
	_, err := Warp(testImage(8, 6), testIntrinsics(8, 5), [6]float64{}, false, geometry.BoundaryClamp)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = Warp(testImage(8, 6), nil, [6]float64{}, false, geometry.BoundaryClamp)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestWarpCameraImages(t *testing.T) {
	ctx := context.Background()
	src := &fakeCamera{img: testImage(8, 6), intrinsics: testIntrinsics(8, 6)}
	cam := newTestCamera(t, &Config{Src: "src"}, src)

	imgs, _, err := cam.Images(ctx, nil, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(imgs), test.ShouldEqual, 1)
	test.That(t, imgs[0].SourceName, test.ShouldEqual, "warped")

	out, err := imgs[0].Image(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Bounds(), test.ShouldResemble, image.Rect(0, 0, 8, 6))

	diff, err := imgutils.MeanAbsoluteDifference(src.img, out, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, diff, test.ShouldAlmostEqual, 0, 1e-9)

	props, err := cam.Properties(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, props.SupportsPCD, test.ShouldBeFalse)
	test.That(t, props.IntrinsicParams, test.ShouldEqual, src.intrinsics)

	_, err = cam.NextPointCloud(ctx, nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestWarpCameraSharesConcurrentFrames(t *testing.T) {
	ctx := context.Background()
	src := &fakeCamera{img: testImage(8, 6), intrinsics: testIntrinsics(8, 6), delay: 50 * time.Millisecond}
	cam := newTestCamera(t, &Config{Src: "src"}, src)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = cam.Images(ctx, nil, nil)
		}(i)
		if i == 0 {
			time.Sleep(10 * time.Millisecond)
		}
	}
	wg.Wait()

	for _, err := range errs {
		test.That(t, err, test.ShouldBeNil)
	}
	src.mu.Lock()
	defer src.mu.Unlock()
	test.That(t, src.calls, test.ShouldBeLessThan, 4)
}

func TestWarpCameraMissingIntrinsics(t *testing.T) {
	src := &fakeCamera{img: testImage(8, 6)}
	cam := newTestCamera(t, &Config{Src: "src"}, src)

	_, _, err := cam.Images(context.Background(), nil, nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestWarpCameraDoCommand(t *testing.T) {
	ctx := context.Background()
	src := &fakeCamera{img: testImage(8, 6), intrinsics: testIntrinsics(8, 6)}
	cam := newTestCamera(t, &Config{Src: "src"}, src)

	res, err := cam.DoCommand(ctx, map[string]interface{}{"flow_stats": true})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res["max"], test.ShouldAlmostEqual, 0, 1e-6)

	res, err = cam.DoCommand(ctx, map[string]interface{}{
		"set_pose": []interface{}{0.0, 0.0, 0.0, 0.0, 0.05, 0.0},
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res["pose"], test.ShouldResemble, []float64{0, 0, 0, 0, 0.05, 0})

	res, err = cam.DoCommand(ctx, map[string]interface{}{"flow_stats": true})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res["mean"], test.ShouldBeGreaterThan, 0)
	test.That(t, res["max"], test.ShouldBeGreaterThanOrEqualTo, res["p95"])

	_, err = cam.DoCommand(ctx, map[string]interface{}{"set_pose": []interface{}{1.0}})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = cam.DoCommand(ctx, map[string]interface{}{"set_pose": []interface{}{"a", 0.0, 0.0, 0.0, 0.0, 0.0}})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = cam.DoCommand(ctx, map[string]interface{}{"bogus": 1})
	test.That(t, err, test.ShouldNotBeNil)
}
