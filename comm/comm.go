/*Package comm provides the SPI transports used to reach the DAC.

Every transport is a periph.io spi.Conn, so the controller does not care which
one it is handed:

	spidev   the kernel SPI driver, through periph.io's host drivers
	serial   a microcontroller SPI bridge on a serial port
	tcp      the same bridge behind a terminal server
	usb      the same bridge on a USB bulk endpoint pair
	discard  counts transfers and drops them, for benches without hardware

The three bridge transports speak the telegram format in telegram.go.  A
minimal example:

	c, err := comm.Open(comm.Config{Type: "serial", Addr: "/dev/ttyACM0", Baud: 115200, SpeedHz: 10e6, Mode: 1})
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()
	f := ad5628.Update(ad5628.ChannelA, 2048)
	err = c.Tx(f[:], nil)
*/
package comm

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"github.com/tarm/serial"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

var (
	// ErrNotConnected is generated when a closed bridge is used
	ErrNotConnected = errors.New("comm: bridge is not connected")

	// ErrUnknownType is generated when Config.Type names no transport
	ErrUnknownType = errors.New("comm: unknown bus type")

	// ErrShortRead is generated when an exchange returns fewer bytes than were sent
	ErrShortRead = errors.New("comm: bridge returned a short exchange")

	// ErrNack is generated when the bridge answers a configure with something other than an ack
	ErrNack = errors.New("comm: bridge did not acknowledge configuration")
)

// Conn is an spi.Conn that owns an underlying resource
type Conn interface {
	spi.Conn
	io.Closer
}

// Config describes how to reach the DAC
type Config struct {
	// Type is one of spidev, serial, tcp, usb, discard
	Type string `koanf:"Type" yaml:"Type"`

	// Addr is the spidev port name (e.g. /dev/spidev0.0 or SPI0.0), the
	// serial device, or the host:port of the bridge
	Addr string `koanf:"Addr" yaml:"Addr"`

	// Baud is the serial baud rate
	Baud int `koanf:"Baud" yaml:"Baud"`

	// SpeedHz is the SPI clock
	SpeedHz int64 `koanf:"SpeedHz" yaml:"SpeedHz"`

	// Mode is the SPI mode 0~3; the DAC samples on the falling edge, mode 1
	Mode int `koanf:"Mode" yaml:"Mode"`

	// Bits is the word size, 8 unless the bridge needs otherwise
	Bits int `koanf:"Bits" yaml:"Bits"`

	// VID and PID select the USB bridge
	VID uint16 `koanf:"VID" yaml:"VID"`
	PID uint16 `koanf:"PID" yaml:"PID"`
}

func (c Config) speed() physic.Frequency {
	return physic.Frequency(c.SpeedHz) * physic.Hertz
}

func (c Config) bits() int {
	if c.Bits == 0 {
		return 8
	}
	return c.Bits
}

// Open connects the transport described by c
func Open(c Config) (Conn, error) {
	typ := strings.ToLower(c.Type)
	switch typ {
	case "spidev", "spi":
		return OpenSPIDev(c.Addr, c.speed(), spi.Mode(c.Mode), c.bits())
	case "discard", "null", "":
		return &Discard{}, nil
	case "serial", "tcp", "usb":
	default:
		return nil, errors.Wrapf(ErrUnknownType, "%q", c.Type)
	}

	var rwc io.ReadWriteCloser
	op := func() error {
		var err error
		switch typ {
		case "serial":
			rwc, err = serial.OpenPort(&serial.Config{Name: c.Addr, Baud: c.Baud, ReadTimeout: 3 * time.Second})
		case "tcp":
			rwc, err = TCPSetup(c.Addr, 3*time.Second)
		case "usb":
			rwc, err = OpenUSB(c.VID, c.PID)
		}
		return err
	}
	// the bridges enumerate slowly after a reset; do not thrash them
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock})
	if err != nil {
		return nil, errors.Wrapf(err, "comm: opening %s bridge at %s", typ, c.Addr)
	}
	b := NewBridge(rwc, typ+":"+c.Addr)
	if err := b.Configure(c.speed(), spi.Mode(c.Mode), c.bits()); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// TCPSetup opens a new TCP connection with a timeout on connect
func TCPSetup(addr string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("tcp", addr, timeout)
}

// Bridge is an spi.Conn that forwards transfers as telegrams over a byte stream
// to a microcontroller which drives the SPI pins.  It is concurrent safe.
type Bridge struct {
	mu   sync.Mutex
	name string
	rwc  io.ReadWriteCloser
	rd   *bufio.Reader
}

// NewBridge wraps a stream.  The bridge owns rwc and closes it on Close.
func NewBridge(rwc io.ReadWriteCloser, name string) *Bridge {
	return &Bridge{name: name, rwc: rwc, rd: bufio.NewReader(rwc)}
}

// Configure sends the clock, mode and word size to the bridge and waits for its ack
func (b *Bridge) Configure(f physic.Frequency, mode spi.Mode, bits int) error {
	payload := make([]byte, 6)
	binary.LittleEndian.PutUint32(payload, uint32(f/physic.Hertz))
	payload[4] = byte(mode)
	payload[5] = byte(bits)
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.send(TelConfigure, payload); err != nil {
		return err
	}
	typ, _, err := b.recv()
	if err != nil {
		return err
	}
	if typ != TelAck {
		return ErrNack
	}
	return nil
}

func (b *Bridge) send(typ byte, payload []byte) error {
	if b.rwc == nil {
		return ErrNotConnected
	}
	_, err := b.rwc.Write(MakeTelegram(typ, payload))
	return err
}

func (b *Bridge) recv() (byte, []byte, error) {
	if b.rwc == nil {
		return 0, nil, ErrNotConnected
	}
	// discard anything before the start byte, e.g. boot chatter
	if _, err := b.rd.ReadBytes(telStart); err != nil {
		return 0, nil, err
	}
	rest, err := b.rd.ReadBytes(telEnd)
	if err != nil {
		return 0, nil, err
	}
	return ParseTelegram(append([]byte{telStart}, rest...))
}

// Tx shifts out w.  If r is not empty, the bridge is asked for the bytes
// shifted in, and len(r) must equal len(w).
func (b *Bridge) Tx(w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(r) == 0 {
		return b.send(TelWrite, w)
	}
	if len(r) != len(w) {
		return errors.Errorf("comm: exchange of %d bytes with a %d byte read buffer", len(w), len(r))
	}
	if err := b.send(TelExchange, w); err != nil {
		return err
	}
	_, in, err := b.recv()
	if err != nil {
		return err
	}
	if len(in) < len(r) {
		return ErrShortRead
	}
	copy(r, in)
	return nil
}

// TxPackets sends each packet in turn
func (b *Bridge) TxPackets(p []spi.Packet) error {
	for i := range p {
		if err := b.Tx(p[i].W, p[i].R); err != nil {
			return err
		}
	}
	return nil
}

// Duplex returns conn.Full; the bridge always clocks both directions
func (b *Bridge) Duplex() conn.Duplex {
	return conn.Full
}

func (b *Bridge) String() string {
	return "bridge(" + b.name + ")"
}

// Close the stream, nil-ing it
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rwc == nil {
		return nil
	}
	err := b.rwc.Close()
	if err == nil {
		b.rwc = nil
	}
	return err
}
