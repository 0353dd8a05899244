// Package rigidflow synthesizes rigid optical flow from camera pose and a ground plane assumption,
// and warps camera images with it. The math lives in the geometry package; this package holds
// the viam model family and helpers for talking to a running machine.
package rigidflow

import (
	"context"
	"fmt"
	"image"
	"os"

	"go.viam.com/rdk/cli"
	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/rimage/transform"
	"go.viam.com/rdk/robot"
	"go.viam.com/rdk/robot/client"
	"go.viam.com/rdk/utils"
	"go.viam.com/utils/rpc"
)

var NamespaceFamily = resource.NewModelFamily("erh", "rigidflow")

// ConnectToMachineFromEnv connects with the machine address and api key a module process is started with.
func ConnectToMachineFromEnv(ctx context.Context, logger logging.Logger) (robot.Robot, error) {
	params := make([]string, 0, 3)
	for _, env := range []string{utils.MachineFQDNEnvVar, utils.APIKeyIDEnvVar, utils.APIKeyEnvVar} {
		v := os.Getenv(env)
		if v == "" {
			return nil, fmt.Errorf("no environment variable for %s", env)
		}
		params = append(params, v)
	}
	return ConnectToMachine(ctx, logger, params[0], params[1], params[2])
}

func ConnectToMachine(ctx context.Context, logger logging.Logger, host, apiKeyID, apiKey string) (robot.Robot, error) {
	creds := rpc.Credentials{Type: rpc.CredentialsTypeAPIKey, Payload: apiKey}
	return client.New(
		ctx,
		host,
		logger,
		client.WithDialOptions(rpc.WithEntityCredentials(apiKeyID, creds)),
	)
}

// ConnectToHostFromCLIToken uses the viam cli token to login to a machine with just a hostname.
// use "viam login" to setup the token.
func ConnectToHostFromCLIToken(ctx context.Context, host string, logger logging.Logger) (robot.Robot, error) {
	if host == "" {
		return nil, fmt.Errorf("need to specify host")
	}

	c, err := cli.ConfigFromCache(nil)
	if err != nil {
		return nil, err
	}

	dopts, err := c.DialOptions()
	if err != nil {
		return nil, err
	}

	return client.New(
		ctx,
		host,
		logger,
		client.WithDialOptions(dopts...),
	)
}

// FetchFrame grabs the first image a camera returns along with its pinhole intrinsics.
func FetchFrame(ctx context.Context, machine robot.Robot, cameraName string) (image.Image, *transform.PinholeCameraIntrinsics, error) {
	cam, err := camera.FromRobot(machine, cameraName)
	if err != nil {
		return nil, nil, err
	}
	return CameraFrame(ctx, cam)
}

// CameraFrame returns the first image of cam and its intrinsics, failing if it has none.
func CameraFrame(ctx context.Context, cam camera.Camera) (image.Image, *transform.PinholeCameraIntrinsics, error) {
	props, err := cam.Properties(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := props.IntrinsicParams.CheckValid(); err != nil {
		return nil, nil, fmt.Errorf("camera %s: %w", cam.Name().ShortName(), err)
	}

	imgs, _, err := cam.Images(ctx, nil, nil)
	if err != nil {
		return nil, nil, err
	}
	if len(imgs) == 0 {
		return nil, nil, fmt.Errorf("camera %s returned no images", cam.Name().ShortName())
	}

	img, err := imgs[0].Image(ctx)
	if err != nil {
		return nil, nil, err
	}
	return img, props.IntrinsicParams, nil
}
