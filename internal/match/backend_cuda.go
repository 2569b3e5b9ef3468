//go:build cuda

package match

import (
	"gocv.io/x/gocv"
	"gocv.io/x/gocv/cuda"
)

// NewBackend returns the CUDA correlation backend when a device is present,
// falling back to the CPU path otherwise.
func NewBackend() Backend {
	if cuda.GetCudaEnabledDeviceCount() == 0 {
		return cpuBackend{}
	}
	return &cudaBackend{}
}

type cudaBackend struct{}

func (*cudaBackend) Name() string    { return "cuda" }
func (*cudaBackend) Available() bool { return cuda.GetCudaEnabledDeviceCount() > 0 }

func (*cudaBackend) Correlate(src, tpl gocv.Mat) (gocv.Mat, error) {
	if cuda.GetCudaEnabledDeviceCount() == 0 {
		return gocv.NewMat(), ErrBackendUnavailable
	}

	gsrc := cuda.NewGpuMat()
	defer gsrc.Close()
	gtpl := cuda.NewGpuMat()
	defer gtpl.Close()
	gres := cuda.NewGpuMat()
	defer gres.Close()

	gsrc.Upload(src)
	gtpl.Upload(tpl)

	matcher := cuda.NewTemplateMatching(gocv.MatTypeCV8U, gocv.TmCcoeffNormed)
	defer matcher.Close()
	matcher.Match(gsrc, gtpl, &gres)

	result := gocv.NewMat()
	gres.Download(&result)
	return result, nil
}
