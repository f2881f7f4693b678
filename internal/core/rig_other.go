//go:build !linux

package core

import (
	"fmt"

	"github.com/visiona/lumen/camera"
	"github.com/visiona/lumen/internal/config"
)

func buildV4L2Provider([]config.V4L2Device) (camera.Provider, error) {
	return nil, fmt.Errorf("v4l2 rig requires linux")
}
