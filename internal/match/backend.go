package match

import (
	"errors"

	"gocv.io/x/gocv"
)

// ErrBackendUnavailable is returned when the device-accelerated correlation
// path cannot be initialized.
var ErrBackendUnavailable = errors.New("accelerated backend unavailable")

// Backend computes the normalized cross-correlation map for the accelerated
// strategies. Available reports whether a device-accelerated path is usable;
// when it is not, the engine downgrades mode selection to exhaustive.
type Backend interface {
	Name() string
	Available() bool
	Correlate(src, tpl gocv.Mat) (gocv.Mat, error)
}

type cpuBackend struct{}

func (cpuBackend) Name() string    { return "cpu" }
func (cpuBackend) Available() bool { return false }

func (cpuBackend) Correlate(src, tpl gocv.Mat) (gocv.Mat, error) {
	return correlateCPU(src, tpl), nil
}

func correlateCPU(src, tpl gocv.Mat) gocv.Mat {
	result := gocv.NewMat()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MatchTemplate(src, tpl, &result, gocv.TmCcoeffNormed, mask)
	return result
}

// MockBackend runs the CPU correlation but reports itself as an available
// device path, so the accelerated strategies can be exercised without
// hardware.
type MockBackend struct{}

func (MockBackend) Name() string    { return "mock" }
func (MockBackend) Available() bool { return true }

func (MockBackend) Correlate(src, tpl gocv.Mat) (gocv.Mat, error) {
	return correlateCPU(src, tpl), nil
}
