package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/rimage"
	"go.viam.com/rdk/rimage/transform"
	"go.viam.com/rdk/robot"
	"go.viam.com/utils"

	"github.com/erh/rigidflow"
	"github.com/erh/rigidflow/geometry"
	"github.com/erh/rigidflow/imgutils"
	"github.com/erh/rigidflow/warpcam"
)

func main() {
	err := realMain()
	if err != nil {
		panic(err)
	}
}

func realMain() error {
	logger := logging.NewLogger("flowtool")
	ctx := context.Background()

	host := flag.String("host", "", "hostname, empty to use the machine environment variables")
	cmd := flag.String("cmd", "", "command: flow, warp or capture")
	cameraName := flag.String("camera", "", "camera to use")
	out := flag.String("out", "", "output file")
	in := flag.String("in", "", "input file")
	intrinsicsFile := flag.String("intrinsics", "", "pinhole intrinsics json")
	poseString := flag.String("pose", "0,0,0,0,0,0", "tx,ty,tz,rx,ry,rz")
	reverse := flag.Bool("reverse", false, "use the inverse of the pose")
	boundaryName := flag.String("boundary", "clamp", "clamp or zero")

	flag.Parse()

	if *cmd == "" {
		return fmt.Errorf("need a cmd")
	}

	if *cmd == "capture" {
		if *out == "" {
			return fmt.Errorf("need an 'out'")
		}

		machine, err := connect(ctx, *host, logger)
		if err != nil {
			return err
		}
		defer utils.UncheckedErrorFunc(func() error { return machine.Close(ctx) })

		img, intrinsics, err := rigidflow.FetchFrame(ctx, machine, *cameraName)
		if err != nil {
			return err
		}

		err = rimage.WriteImageToFile(*out, img)
		if err != nil {
			return err
		}

		if *intrinsicsFile != "" {
			return writeIntrinsics(*intrinsicsFile, intrinsics)
		}
		return nil
	}

	pose, err := parsePose(*poseString)
	if err != nil {
		return err
	}

	if *intrinsicsFile == "" {
		return fmt.Errorf("need 'intrinsics'")
	}
	intrinsics, err := transform.NewPinholeCameraIntrinsicsFromJSONFile(*intrinsicsFile)
	if err != nil {
		return err
	}

	if *cmd == "flow" {
		flow, err := warpcam.Flow(intrinsics, pose, *reverse)
		if err != nil {
			return err
		}
		s, err := geometry.FlowMagnitudeStats(flow)
		if err != nil {
			return err
		}
		logger.Infof("flow %dx%d mean: %0.3f max: %0.3f p95: %0.3f", intrinsics.Width, intrinsics.Height, s.Mean, s.Max, s.P95)
		return nil
	}

	if *cmd == "warp" {
		if *in == "" || *out == "" {
			return fmt.Errorf("need an 'in' and 'out'")
		}

		boundary, err := geometry.ParseBoundary(*boundaryName)
		if err != nil {
			return err
		}

		img, err := rimage.ReadImageFromFile(*in)
		if err != nil {
			return err
		}

		warped, err := warpcam.Warp(img, intrinsics, pose, *reverse, boundary)
		if err != nil {
			return err
		}

		diff, err := imgutils.MeanAbsoluteDifference(img, warped, nil)
		if err != nil {
			return err
		}
		logger.Infof("mean absolute difference from input: %0.3f", diff)

		return rimage.WriteImageToFile(*out, warped)
	}

	return fmt.Errorf("unknown cmd [%s]", *cmd)
}

// connect uses the cli token for an explicit host, otherwise the machine credentials in the environment.
func connect(ctx context.Context, host string, logger logging.Logger) (robot.Robot, error) {
	if host == "" {
		return rigidflow.ConnectToMachineFromEnv(ctx, logger)
	}
	return rigidflow.ConnectToHostFromCLIToken(ctx, host, logger)
}

func parsePose(s string) ([6]float64, error) {
	var pose [6]float64
	parts := strings.Split(s, ",")
	if len(parts) != 6 {
		return pose, fmt.Errorf("pose needs 6 comma separated values, got %d", len(parts))
	}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return pose, fmt.Errorf("bad pose value %q: %w", p, err)
		}
		pose[i] = f
	}
	return pose, nil
}

func writeIntrinsics(fn string, intrinsics *transform.PinholeCameraIntrinsics) error {
	data, err := json.MarshalIndent(intrinsics, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(fn, data, 0o644)
}
