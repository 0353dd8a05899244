package warpcam

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/data"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/pointcloud"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/rimage"
	"go.viam.com/rdk/spatialmath"

	"github.com/erh/rigidflow"
	"github.com/erh/rigidflow/geometry"
)

var Model = rigidflow.NamespaceFamily.WithModel("rigid-flow-warp")

var errNoPointClouds = errors.New("rigid-flow-warp does not produce point clouds")

func init() {
	resource.RegisterComponent(
		camera.API,
		Model,
		resource.Registration[camera.Camera, *Config]{
			Constructor: newWarpCamera,
		})
}

// Config for a camera that shows its source camera warped by the rigid flow of a fixed pose.
type Config struct {
	Src string `json:"src"`
	// tx, ty, tz, rx, ry, rz
	Pose        []float64 `json:"pose,omitempty"`
	ReversePose bool      `json:"reverse_pose,omitempty"`
	Boundary    string    `json:"boundary,omitempty"`
}

func (cfg *Config) Validate(path string) ([]string, []string, error) {
	if cfg.Src == "" {
		return nil, nil, fmt.Errorf("need a src camera")
	}
	if len(cfg.Pose) != 0 && len(cfg.Pose) != 6 {
		return nil, nil, fmt.Errorf("pose needs 6 values (tx, ty, tz, rx, ry, rz), got %d", len(cfg.Pose))
	}
	if _, err := geometry.ParseBoundary(cfg.Boundary); err != nil {
		return nil, nil, err
	}
	return []string{cfg.Src}, nil, nil
}

func newWarpCamera(ctx context.Context, deps resource.Dependencies, config resource.Config, logger logging.Logger) (camera.Camera, error) {
	newConf, err := resource.NativeConfig[*Config](config)
	if err != nil {
		return nil, err
	}

	src, err := camera.FromProvider(deps, newConf.Src)
	if err != nil {
		return nil, err
	}

	return NewWarpCamera(config.ResourceName(), newConf, src, logger)
}

// NewWarpCamera builds the warp camera around an already resolved source camera.
func NewWarpCamera(name resource.Name, cfg *Config, src camera.Camera, logger logging.Logger) (camera.Camera, error) {
	boundary, err := geometry.ParseBoundary(cfg.Boundary)
	if err != nil {
		return nil, err
	}

	wc := &warpCamera{
		name:     name,
		cfg:      cfg,
		logger:   logger,
		src:      src,
		boundary: boundary,
	}
	copy(wc.pose[:], cfg.Pose)
	return wc, nil
}

type warpCamera struct {
	resource.AlwaysRebuild
	resource.TriviallyCloseable

	name     resource.Name
	cfg      *Config
	logger   logging.Logger
	boundary geometry.Boundary

	src camera.Camera

	lock          sync.Mutex
	pose          [6]float64
	active        bool
	lastImage     image.Image
	lastImageTime time.Time
	lastImageErr  error
}

func (wc *warpCamera) Name() resource.Name {
	return wc.name
}

func (wc *warpCamera) currentPose() [6]float64 {
	wc.lock.Lock()
	defer wc.lock.Unlock()
	return wc.pose
}

func (wc *warpCamera) Image(ctx context.Context, mimeType string, extra map[string]interface{}) ([]byte, camera.ImageMetadata, error) {
	img, err := wc.nextImage(ctx)
	if err != nil {
		return nil, camera.ImageMetadata{}, err
	}

	data, err := rimage.EncodeImage(ctx, img, mimeType)
	if err != nil {
		return nil, camera.ImageMetadata{}, err
	}

	return data, camera.ImageMetadata{MimeType: mimeType}, nil
}

func (wc *warpCamera) Images(ctx context.Context, filterSourceNames []string, extra map[string]interface{}) ([]camera.NamedImage, resource.ResponseMetadata, error) {
	img, err := wc.nextImage(ctx)
	if err != nil {
		return nil, resource.ResponseMetadata{}, err
	}

	ni, err := camera.NamedImageFromImage(img, "warped", "image/png", data.Annotations{})
	if err != nil {
		return nil, resource.ResponseMetadata{}, err
	}
	return []camera.NamedImage{ni}, resource.ResponseMetadata{CapturedAt: time.Now()}, nil
}

// nextImage warps a fresh source frame. Callers arriving while a warp is running share its result.
func (wc *warpCamera) nextImage(ctx context.Context) (image.Image, error) {
	start := time.Now()
	wc.lock.Lock()
	if wc.active {
		wc.lock.Unlock()
		return wc.waitForImageAfter(ctx, start)
	}

	wc.active = true
	wc.lock.Unlock()

	img, err := wc.doNextImage(ctx)

	wc.lock.Lock()
	wc.active = false
	wc.lastImage = img
	wc.lastImageErr = err
	wc.lastImageTime = time.Now()
	wc.lock.Unlock()

	return img, err
}

func (wc *warpCamera) waitForImageAfter(ctx context.Context, when time.Time) (image.Image, error) {
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if time.Since(when) > time.Minute {
			return nil, fmt.Errorf("waitForImageAfter timed out after %v", time.Since(when))
		}

		wc.lock.Lock()
		if wc.lastImageTime.After(when) {
			img := wc.lastImage
			err := wc.lastImageErr
			wc.lock.Unlock()
			return img, err
		}
		wc.lock.Unlock()

		time.Sleep(time.Millisecond * 10)
	}
}

func (wc *warpCamera) doNextImage(ctx context.Context) (image.Image, error) {
	start := time.Now()

	img, intrinsics, err := rigidflow.CameraFrame(ctx, wc.src)
	if err != nil {
		return nil, err
	}

	timeA := time.Since(start)

	warped, err := Warp(img, intrinsics, wc.currentPose(), wc.cfg.ReversePose, wc.boundary)
	if err != nil {
		return nil, err
	}

	timeB := time.Since(start)
	if timeB > (time.Millisecond * 250) {
		wc.logger.Infof("warpCamera::nextImage fetch: %v warp: %v", timeA, timeB-timeA)
	}

	return warped, nil
}

func (wc *warpCamera) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	if raw, ok := cmd["set_pose"]; ok {
		pose, err := parsePose(raw)
		if err != nil {
			return nil, err
		}
		wc.lock.Lock()
		wc.pose = pose
		wc.lock.Unlock()
		wc.logger.Debugf("pose set to %v", pose)
		return map[string]interface{}{"pose": pose[:]}, nil
	}

	if _, ok := cmd["flow_stats"]; ok {
		props, err := wc.src.Properties(ctx)
		if err != nil {
			return nil, err
		}
		flow, err := Flow(props.IntrinsicParams, wc.currentPose(), wc.cfg.ReversePose)
		if err != nil {
			return nil, err
		}
		s, err := geometry.FlowMagnitudeStats(flow)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"mean": s.Mean, "max": s.Max, "p95": s.P95}, nil
	}

	return nil, fmt.Errorf("unknown command %v", cmd)
}

func parsePose(raw interface{}) ([6]float64, error) {
	var pose [6]float64
	vals, ok := raw.([]interface{})
	if !ok {
		return pose, fmt.Errorf("set_pose needs a list of 6 numbers, got %T", raw)
	}
	if len(vals) != 6 {
		return pose, fmt.Errorf("set_pose needs 6 values, got %d", len(vals))
	}
	for i, v := range vals {
		f, ok := v.(float64)
		if !ok {
			return pose, fmt.Errorf("set_pose value %d is %T, not a number", i, v)
		}
		pose[i] = f
	}
	return pose, nil
}

func (wc *warpCamera) NextPointCloud(ctx context.Context, extra map[string]interface{}) (pointcloud.PointCloud, error) {
	return nil, errNoPointClouds
}

func (wc *warpCamera) Properties(ctx context.Context) (camera.Properties, error) {
	props, err := wc.src.Properties(ctx)
	if err != nil {
		return camera.Properties{}, err
	}
	return camera.Properties{
		SupportsPCD:     false,
		ImageType:       props.ImageType,
		IntrinsicParams: props.IntrinsicParams,
		MimeTypes:       []string{"image/png"},
	}, nil
}

func (wc *warpCamera) Geometries(ctx context.Context, _ map[string]interface{}) ([]spatialmath.Geometry, error) {
	return nil, nil
}
