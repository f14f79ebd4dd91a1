package main

import (
	"context"
	"io"
	"log"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/pkg/errors"

	"github.com/nasa-jpl/pmoddac/comm"
	"github.com/nasa-jpl/pmoddac/generichttp/dac"
	"github.com/nasa-jpl/pmoddac/mailbox"
	"github.com/nasa-jpl/pmoddac/pmoddac"
	"github.com/nasa-jpl/pmoddac/server/middleware/locker"
	"github.com/nasa-jpl/pmoddac/timer"
)

// MailboxConfig describes where the command register and waveform buffer live
type MailboxConfig struct {
	// Type is "memory" for a mailbox private to this process, or "devmem" to
	// map a physical window shared with another processor
	Type string `koanf:"Type" yaml:"Type"`

	// Path is the memory device, /dev/mem or a /dev/uioN
	Path string `koanf:"Path" yaml:"Path"`

	// Base is the physical address of the window
	Base int64 `koanf:"Base" yaml:"Base"`

	// Size is the size of the window in bytes
	Size uint32 `koanf:"Size" yaml:"Size"`

	// DataOffset is the offset of waveform slot 0
	DataOffset uint32 `koanf:"DataOffset" yaml:"DataOffset"`

	// CommandOffset is the offset of the command register
	CommandOffset uint32 `koanf:"CommandOffset" yaml:"CommandOffset"`
}

// Config is the daemon configuration
type Config struct {
	// Addr is the address to listen at
	Addr string `koanf:"Addr" yaml:"Addr"`

	// Endpoint is the URL the DAC routes are served under
	Endpoint string `koanf:"Endpoint" yaml:"Endpoint"`

	// Bus is how the DAC is reached
	Bus comm.Config `koanf:"Bus" yaml:"Bus"`

	Mailbox MailboxConfig `koanf:"Mailbox" yaml:"Mailbox"`

	// Dispatch runs the controller in this process.  Turn it off when another
	// processor services the mailbox and this process is only the host.
	Dispatch bool `koanf:"Dispatch" yaml:"Dispatch"`

	// PollInterval is the minimum time between reads of an idle command
	// register, 0 to spin
	PollInterval time.Duration `koanf:"PollInterval" yaml:"PollInterval"`

	// Delay is the triangle pacing primitive, busy, sleep, or yield
	Delay string `koanf:"Delay" yaml:"Delay"`

	// InternalReference turns on the DAC's 1.25 V reference at boot
	InternalReference bool `koanf:"InternalReference" yaml:"InternalReference"`

	// GracefulStop lets SIGINT and SIGTERM cancel a running waveform and shut
	// the server down.  Otherwise forever waveforms run until the process is
	// killed.
	GracefulStop bool `koanf:"GracefulStop" yaml:"GracefulStop"`

	// CompletionTimeout bounds the wait of blocking writes, 0 for none.
	// Triangle writes wait this long past the time the wave takes to play.
	CompletionTimeout time.Duration `koanf:"CompletionTimeout" yaml:"CompletionTimeout"`
}

// DefaultConfig is the configuration used for any key not in the file
func DefaultConfig() Config {
	return Config{
		Addr:     ":8000",
		Endpoint: "/pmoddac",
		Bus: comm.Config{
			Type:    "spidev",
			Addr:    "/dev/spidev0.0",
			Baud:    115200,
			SpeedHz: 10000000,
			Mode:    1,
			Bits:    8,
		},
		Mailbox: MailboxConfig{
			Type:          "memory",
			Path:          "/dev/mem",
			Size:          mailbox.DefaultSize,
			DataOffset:    mailbox.DefaultDataOffset,
			CommandOffset: mailbox.DefaultCommandOffset,
		},
		Dispatch:          true,
		Delay:             "busy",
		InternalReference: true,
		CompletionTimeout: 10 * time.Second,
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenMailbox maps the region described by c
func OpenMailbox(c MailboxConfig) (*mailbox.Mailbox, io.Closer, error) {
	var (
		r      mailbox.Region
		closer io.Closer = nopCloser{}
	)
	switch strings.ToLower(c.Type) {
	case "memory", "mem", "":
		r = mailbox.NewMemory(c.Size)
	case "devmem", "uio":
		dm, err := mailbox.OpenDevMem(c.Path, c.Base, c.Size)
		if err != nil {
			return nil, nil, err
		}
		r, closer = dm, dm
	default:
		return nil, nil, errors.Errorf("unknown mailbox type %q", c.Type)
	}
	mb, err := mailbox.New(r, mailbox.Layout{DataOffset: c.DataOffset, CommandOffset: c.CommandOffset})
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	return mb, closer, nil
}

// Daemon is everything run sets up
type Daemon struct {
	Bus        comm.Conn
	Device     *pmoddac.Device
	Dispatcher *pmoddac.Dispatcher
	Host       *pmoddac.Host

	closers []io.Closer
}

// Setup opens the bus and the mailbox and builds the controller and host
func Setup(c Config) (*Daemon, error) {
	mb, mbc, err := OpenMailbox(c.Mailbox)
	if err != nil {
		return nil, errors.Wrap(err, "opening mailbox")
	}
	d := &Daemon{closers: []io.Closer{mbc}}
	host := pmoddac.NewHost(mailbox.NewClient(mb))
	host.Timeout = c.CompletionTimeout
	d.Host = host
	if !c.Dispatch {
		return d, nil
	}

	delay, err := timer.Parse(c.Delay)
	if err != nil {
		d.Close()
		return nil, err
	}
	bus, err := comm.Open(c.Bus)
	if err != nil {
		d.Close()
		return nil, errors.Wrap(err, "opening bus")
	}
	d.closers = append(d.closers, bus)
	d.Bus = bus
	d.Device = pmoddac.NewDevice(bus, delay, mb)
	if c.InternalReference {
		d.Device.ReferenceOn()
	} else {
		d.Device.ReferenceOff()
	}
	d.Dispatcher = pmoddac.NewDispatcher(d.Device, mb, c.PollInterval)
	return d, nil
}

// Run runs the dispatcher, if there is one, until ctx is done
func (d *Daemon) Run(ctx context.Context) error {
	if d.Dispatcher == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	return d.Dispatcher.Run(ctx)
}

// Close releases the bus and the mailbox
func (d *Daemon) Close() error {
	var first error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// BuildMux mounts the DAC routes, with a lock, under c.Endpoint
func BuildMux(c Config, d *Daemon) chi.Router {
	root := chi.NewRouter()
	root.Use(middleware.Logger)
	var stats func() interface{}
	if d.Device != nil {
		stats = func() interface{} { return d.Device.Stats() }
	}
	httper := dac.NewHTTPDAC(d.Host, stats)
	lock := locker.New()
	locker.Inject(httper, lock)
	r := chi.NewRouter()
	r.Use(lock.Check)
	httper.RT().Bind(r)
	ep := "/" + strings.Trim(c.Endpoint, "/")
	root.Mount(ep, r)
	log.Printf("serving %d routes under %s", len(httper.RT()), ep)
	return root
}
