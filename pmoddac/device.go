/*Package pmoddac is the controller for the Pmod DA4 (AD5628) DAC: a dispatcher
that services commands from the mailbox, and the fixed, triangle and arbitrary
waveform generators it runs.

The dispatcher is strictly sequential.  It waits for the busy bit, runs one
generator to completion on the calling goroutine, clears the register, and
waits again.  A triangle with zero cycles, and every arbitrary waveform, never
complete: once started the controller serves no further commands until the
process is restarted, or the context passed to Run is cancelled.

Basic usage is as follows:
 mb, _ := mailbox.New(mailbox.NewMemory(mailbox.DefaultSize), mailbox.DefaultLayout)
 conn, _ := comm.Open(comm.Config{Type: "spidev", Addr: "/dev/spidev0.0", SpeedHz: 10e6, Mode: 1})
 dev := pmoddac.NewDevice(conn, timer.BusyWait{}, mb)
 dev.ReferenceOn()
 d := pmoddac.NewDispatcher(dev, mb, 0)
 log.Fatal(d.Run(context.Background()))

And the host side, in the same process or another mapping the same memory:
 h := pmoddac.NewHost(mailbox.NewClient(mb))
 h.WriteFixedValue(context.Background(), ad5628.ChannelA, 1.25)
*/
package pmoddac

import (
	"log"
	"sync/atomic"

	"periph.io/x/conn/v3/spi"

	"github.com/nasa-jpl/pmoddac/ad5628"
	"github.com/nasa-jpl/pmoddac/timer"
)

// SampleSource is the waveform buffer read by the arbitrary generator
type SampleSource interface {
	Slot(i int) uint32
}

// Stats are running counters of a Device.  They may be read while the
// dispatcher runs.
type Stats struct {
	Frames    uint64 `json:"frames"`
	BusErrors uint64 `json:"busErrors"`
	Commands  uint64 `json:"commands"`
	Completed uint64 `json:"completed"`
}

// Device is the handle the generators drive: the SPI connection to the DAC,
// the delay primitive, and the waveform buffer
type Device struct {
	conn  spi.Conn
	delay timer.Delayer
	src   SampleSource

	frames    uint64
	busErrors uint64
	commands  uint64
	completed uint64
}

// NewDevice returns a device.  src may be nil; arbitrary commands then
// produce no output.
func NewDevice(conn spi.Conn, d timer.Delayer, src SampleSource) *Device {
	return &Device{conn: conn, delay: d, src: src}
}

// send transmits one frame.  Errors from the transport do not interrupt the
// caller; they are counted, and the first one is logged.
func (d *Device) send(f ad5628.Frame) {
	err := d.conn.Tx(f[:], nil)
	atomic.AddUint64(&d.frames, 1)
	if err != nil {
		if atomic.AddUint64(&d.busErrors, 1) == 1 {
			log.Printf("pmoddac: SPI transfer on %s failed, further failures are counted but not logged: %v", d.conn, err)
		}
	}
}

// ReferenceOn turns on the DAC's internal reference
func (d *Device) ReferenceOn() {
	d.send(ad5628.ReferenceOn())
}

// ReferenceOff turns off the DAC's internal reference
func (d *Device) ReferenceOff() {
	d.send(ad5628.ReferenceOff())
}

// Stats returns a snapshot of the counters
func (d *Device) Stats() Stats {
	return Stats{
		Frames:    atomic.LoadUint64(&d.frames),
		BusErrors: atomic.LoadUint64(&d.busErrors),
		Commands:  atomic.LoadUint64(&d.commands),
		Completed: atomic.LoadUint64(&d.completed),
	}
}
