package comm

import (
	"sync/atomic"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// spiDev is a connected kernel SPI port
type spiDev struct {
	spi.Conn
	port spi.PortCloser
}

func (s *spiDev) Close() error {
	return s.port.Close()
}

// OpenSPIDev loads the periph.io host drivers and connects to the named port.
// An empty name picks the first port registered.
func OpenSPIDev(name string, f physic.Frequency, mode spi.Mode, bits int) (Conn, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "comm: loading periph host drivers")
	}
	port, err := spireg.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "comm: opening SPI port %q", name)
	}
	c, err := port.Connect(f, mode, bits)
	if err != nil {
		port.Close()
		return nil, errors.Wrapf(err, "comm: connecting SPI port %q", name)
	}
	return &spiDev{Conn: c, port: port}, nil
}

// Discard is a write-only spi.Conn that counts transfers and drops them
type Discard struct {
	frames uint64
	bytes  uint64
}

// Tx counts w; r is left untouched
func (d *Discard) Tx(w, r []byte) error {
	atomic.AddUint64(&d.frames, 1)
	atomic.AddUint64(&d.bytes, uint64(len(w)))
	return nil
}

// TxPackets counts each packet as one transfer
func (d *Discard) TxPackets(p []spi.Packet) error {
	for i := range p {
		d.Tx(p[i].W, p[i].R)
	}
	return nil
}

// Duplex returns conn.Half
func (d *Discard) Duplex() conn.Duplex {
	return conn.Half
}

func (d *Discard) String() string {
	return "discard"
}

// Close is a no-op
func (d *Discard) Close() error {
	return nil
}

// Transfers returns the number of transfers dropped so far
func (d *Discard) Transfers() uint64 {
	return atomic.LoadUint64(&d.frames)
}

// Bytes returns the number of bytes dropped so far
func (d *Discard) Bytes() uint64 {
	return atomic.LoadUint64(&d.bytes)
}
