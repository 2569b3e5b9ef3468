//go:build !cuda

package match

// NewBackend returns the correlation backend for this build. Without the
// cuda build tag only the CPU path exists, and it reports itself as
// non-accelerated so the engine falls back to exhaustive matching.
func NewBackend() Backend {
	return cpuBackend{}
}
