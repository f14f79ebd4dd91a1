//go:build !linux

package mailbox

import "github.com/pkg/errors"

// ErrNoDevMem is generated when /dev/mem mapping is requested off linux
var ErrNoDevMem = errors.New("mailbox: /dev/mem regions are only supported on linux")

// DevMem is unavailable on this platform
type DevMem struct{}

// OpenDevMem always fails on this platform
func OpenDevMem(path string, base int64, size uint32) (*DevMem, error) {
	return nil, ErrNoDevMem
}

func (d *DevMem) Read32(off uint32) uint32    { return 0 }
func (d *DevMem) Write32(off uint32, v uint32) {}
func (d *DevMem) Size() uint32                 { return 0 }
func (d *DevMem) Close() error                 { return nil }
