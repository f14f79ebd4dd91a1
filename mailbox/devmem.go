//go:build linux

package mailbox

import (
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// DevMem is a Region mapped from a physical address through /dev/mem, or any
// other mmap-able device file such as a UIO node
type DevMem struct {
	f    *os.File
	page []byte // whole mapping, page aligned
	buf  []byte // the window requested by the caller
}

// OpenDevMem maps size bytes at physical address base from the device file at
// path.  base need not be page aligned.
func OpenDevMem(path string, base int64, size uint32) (*DevMem, error) {
	if base%4 != 0 {
		return nil, ErrMisaligned
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "mailbox: opening %s", path)
	}
	pagesize := int64(unix.Getpagesize())
	pageBase := base &^ (pagesize - 1)
	skew := int(base - pageBase)
	page, err := unix.Mmap(int(f.Fd()), pageBase, skew+int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "mailbox: mapping 0x%X+0x%X from %s", base, size, path)
	}
	return &DevMem{f: f, page: page, buf: page[skew : skew+int(size)]}, nil
}

func (d *DevMem) word(off uint32) *uint32 {
	return (*uint32)(unsafe.Pointer(&d.buf[off]))
}

// Read32 loads the word at byte offset off.  Reads past the end return 0.
func (d *DevMem) Read32(off uint32) uint32 {
	if off+4 > uint32(len(d.buf)) {
		return 0
	}
	return atomic.LoadUint32(d.word(off))
}

// Write32 stores the word at byte offset off.  Writes past the end are dropped.
func (d *DevMem) Write32(off uint32, v uint32) {
	if off+4 > uint32(len(d.buf)) {
		return
	}
	atomic.StoreUint32(d.word(off), v)
}

// Size returns the size of the window in bytes
func (d *DevMem) Size() uint32 {
	return uint32(len(d.buf))
}

// Close unmaps the window and closes the device file
func (d *DevMem) Close() error {
	err := unix.Munmap(d.page)
	cerr := d.f.Close()
	if err != nil {
		return err
	}
	return cerr
}
