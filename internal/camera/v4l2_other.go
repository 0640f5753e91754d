//go:build !linux

package camera

import (
	"time"

	"gigecap/internal/config"
)

// V4L2Bus はLinux以外では使えない
type V4L2Bus struct{ Bus }

// NewV4L2Bus はLinux以外ではErrUnsupportedを返す
func NewV4L2Bus(_ []config.CameraDevice, _ time.Duration) (*V4L2Bus, error) {
	return nil, ErrUnsupported
}
