package pmoddac

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/nasa-jpl/pmoddac/ad5628"
	"github.com/nasa-jpl/pmoddac/mailbox"
	"github.com/nasa-jpl/pmoddac/waveform"
)

// Host writes commands into the mailbox of a controller.  Host is not
// concurrent safe; wrap it in a mutex, or the locker middleware, when shared.
type Host struct {
	c *mailbox.Client

	// Timeout bounds the wait of blocking writes.  Triangle writes wait this
	// long beyond the time the wave takes to play.  Zero waits as long as the
	// context allows.
	Timeout time.Duration
}

// NewHost returns a host writing through c
func NewHost(c *mailbox.Client) *Host {
	return &Host{c: c}
}

// Busy returns true if the controller has not finished the last command
func (h *Host) Busy() bool {
	return h.c.Busy()
}

// Capacity is the maximum number of samples in an arbitrary waveform
func (h *Host) Capacity() int {
	return 2 * h.c.Capacity()
}

// WriteFixedValue sets ch to v volts and waits for the controller to finish
func (h *Host) WriteFixedValue(ctx context.Context, ch ad5628.Channel, v float64) error {
	dn, err := waveform.FixedDN(v)
	if err != nil {
		return err
	}
	return h.WriteFixedDN(ctx, ch, dn)
}

// WriteFixedDN sets ch to dn counts and waits for the controller to finish
func (h *Host) WriteFixedDN(ctx context.Context, ch ad5628.Channel, dn uint16) error {
	if dn > ad5628.MaxDN {
		return errors.Errorf("pmoddac: %d counts is above full scale", dn)
	}
	return h.c.SubmitAndWait(ctx, mailbox.FixedCommand(ch, dn), h.Timeout)
}

// TrianglePeriod is the time the controller spends delaying over one triangle
// cycle with the given delay field.  Zero is the controller default.
func TrianglePeriod(delay uint16) time.Duration {
	if delay == 0 {
		delay = mailbox.DefaultDelay
	}
	return 2 * ad5628.Steps * time.Duration(delay) * time.Microsecond
}

// WriteTriangle starts a triangle wave on ch.  delay is in microseconds, zero
// for the controller default.  If cycles is nonzero WriteTriangle waits for
// the last cycle, up to Timeout past cycles*TrianglePeriod(delay); with
// cycles == 0 the wave runs until the controller is restarted and
// WriteTriangle returns once the command is written.
func (h *Host) WriteTriangle(ctx context.Context, ch ad5628.Channel, cycles uint8, delay uint16) error {
	if delay > ad5628.MaxDN {
		return errors.Errorf("pmoddac: delay %d us does not fit in 12 bits", delay)
	}
	cmd := mailbox.TriangleCommand(ch, cycles, delay)
	if cycles == 0 {
		return h.c.Submit(cmd)
	}
	timeout := h.Timeout
	if timeout > 0 {
		timeout += time.Duration(cycles) * TrianglePeriod(delay)
	}
	return h.c.SubmitAndWait(ctx, cmd, timeout)
}

// WriteArbitrary loads volts into the waveform buffer and starts playing it on
// ch.  Playback never ends, so WriteArbitrary does not wait, and no further
// command will be serviced until the controller is restarted.
func (h *Host) WriteArbitrary(ch ad5628.Channel, volts []float64) error {
	if len(volts) == 0 {
		return errors.New("pmoddac: empty waveform")
	}
	if len(volts) > h.Capacity() {
		return errors.Wrapf(mailbox.ErrTooLong, "%d samples, capacity %d", len(volts), h.Capacity())
	}
	dn, err := waveform.ArbitraryDNs(volts)
	if err != nil {
		return err
	}
	return h.WriteArbitraryDN(ch, dn)
}

// WriteArbitraryDN is WriteArbitrary with samples already in counts
func (h *Host) WriteArbitraryDN(ch ad5628.Channel, dn []uint16) error {
	if len(dn) == 0 {
		return errors.New("pmoddac: empty waveform")
	}
	for i, v := range dn {
		if v > ad5628.MaxDN {
			return errors.Errorf("pmoddac: sample %d, %d counts is above full scale", i, v)
		}
	}
	slots := waveform.Pack(dn)
	// the slot count travels in the 8-bit cycles field
	if len(slots) > 255 {
		return errors.Wrapf(mailbox.ErrTooLong, "%d slots, a command addresses at most 255", len(slots))
	}
	if err := h.c.WriteSlots(slots); err != nil {
		return err
	}
	return h.c.Submit(mailbox.ArbitraryCommand(ch, uint8(len(slots))))
}

// Waveform reads back the samples of the first n slots of the waveform buffer
func (h *Host) Waveform(n int) []uint16 {
	return waveform.Unpack(h.c.Slots(n))
}
