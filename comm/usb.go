package comm

import (
	"io"

	"github.com/google/gousb"
	"github.com/pkg/errors"
)

const (
	// usbOutEndpoint is the bulk OUT endpoint of the bridge firmware
	usbOutEndpoint = 0x01

	// usbInEndpoint is the bulk IN endpoint of the bridge firmware
	usbInEndpoint = 0x81
)

// ErrUSBNotFound is generated when no device with the VID:PID is attached
var ErrUSBNotFound = errors.New("comm: USB bridge not found")

// usbStream is a bulk endpoint pair presented as an io.ReadWriteCloser
type usbStream struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	done func()
	in   *gousb.InEndpoint
	out  *gousb.OutEndpoint
}

// OpenUSB claims the default interface of the bridge with the given IDs
func OpenUSB(vid, pid uint16) (io.ReadWriteCloser, error) {
	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, errors.Wrapf(err, "comm: opening USB %04x:%04x", vid, pid)
	}
	if dev == nil {
		ctx.Close()
		return nil, errors.Wrapf(ErrUSBNotFound, "%04x:%04x", vid, pid)
	}
	dev.SetAutoDetach(true)
	intf, done, err := dev.DefaultInterface()
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, errors.Wrap(err, "comm: claiming USB interface")
	}
	out, err := intf.OutEndpoint(usbOutEndpoint)
	if err != nil {
		done()
		dev.Close()
		ctx.Close()
		return nil, errors.Wrap(err, "comm: USB out endpoint")
	}
	in, err := intf.InEndpoint(usbInEndpoint &^ 0x80)
	if err != nil {
		done()
		dev.Close()
		ctx.Close()
		return nil, errors.Wrap(err, "comm: USB in endpoint")
	}
	return &usbStream{ctx: ctx, dev: dev, done: done, in: in, out: out}, nil
}

func (u *usbStream) Read(b []byte) (int, error) {
	return u.in.Read(b)
}

func (u *usbStream) Write(b []byte) (int, error) {
	return u.out.Write(b)
}

func (u *usbStream) Close() error {
	u.done()
	err := u.dev.Close()
	cerr := u.ctx.Close()
	if err != nil {
		return err
	}
	return cerr
}
