//go:build !linux

// Non-Linux fallback for the vm_circularity allocation path: the real
// anonymous-mmap region in mirror_linux.go is a Linux-only optimization
// (spec.md §4.B names it as an option, not a portability requirement), so
// other platforms get a plain heap-backed buffer instead of a build failure.
package bufpool

import "io"

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// allocVMBuffer allocates a plain []Sample on platforms without the
// mirror_linux.go mmap path.
func allocVMBuffer(n int) ([]Sample, io.Closer, error) {
	return make([]Sample, n), nopCloser{}, nil
}
