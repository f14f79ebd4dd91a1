package mailbox

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
)

var (
	// ErrBusy is generated when a command is written while the previous one
	// has not completed
	ErrBusy = errors.New("mailbox: a command is pending")

	// ErrTooLong is generated when a waveform does not fit the data area
	ErrTooLong = errors.New("mailbox: waveform does not fit the data area")

	// ErrTimeout is generated when a command does not complete in time
	ErrTimeout = errors.New("mailbox: timed out waiting for the command to complete")
)

// Client is the host side of the mailbox.  It is not safe for concurrent use;
// the mailbox itself has no locking and a second writer would race the first.
type Client struct {
	mb *Mailbox

	// Poll is the initial interval between completion checks
	Poll time.Duration

	// MaxPoll caps the interval between completion checks
	MaxPoll time.Duration
}

// NewClient returns a client writing to mb
func NewClient(mb *Mailbox) *Client {
	return &Client{mb: mb, Poll: 50 * time.Microsecond, MaxPoll: 10 * time.Millisecond}
}

// Busy returns true if a command is pending
func (c *Client) Busy() bool {
	return c.mb.Command().Busy()
}

// Capacity is the number of waveform slots available
func (c *Client) Capacity() int {
	return c.mb.Capacity()
}

// Submit writes cmd if the register is idle.  cmd should have its busy bit set.
func (c *Client) Submit(cmd Command) error {
	if c.Busy() {
		return ErrBusy
	}
	c.mb.SetCommand(cmd)
	return nil
}

// WriteSlots fills the data area from slot 0.  The register must be idle, the
// controller does not read the data area until the next arbitrary command.
func (c *Client) WriteSlots(slots []uint32) error {
	if c.Busy() {
		return ErrBusy
	}
	if len(slots) > c.Capacity() {
		return errors.Wrapf(ErrTooLong, "%d slots, capacity %d", len(slots), c.Capacity())
	}
	for i, s := range slots {
		c.mb.SetSlot(i, s)
	}
	return nil
}

// Slots reads back the first n slots of the data area
func (c *Client) Slots(n int) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = c.mb.Slot(i)
	}
	return out
}

// WaitIdle polls the register until the controller clears it, the timeout
// elapses, or ctx is done.  A timeout of zero waits as long as ctx allows.
func (c *Client) WaitIdle(ctx context.Context, timeout time.Duration) error {
	if !c.Busy() {
		return nil
	}
	// exponential so that short fixed commands return quickly
	// and long triangles do not hammer the register
	b := &backoff.ExponentialBackOff{
		InitialInterval:     c.Poll,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         c.MaxPoll,
		MaxElapsedTime:      timeout,
		Clock:               backoff.SystemClock}
	b.Reset()
	op := func() error {
		if c.Busy() {
			return ErrBusy
		}
		return nil
	}
	err := backoff.Retry(op, backoff.WithContext(b, ctx))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return ErrTimeout
}

// SubmitAndWait submits cmd and waits for its completion
func (c *Client) SubmitAndWait(ctx context.Context, cmd Command, timeout time.Duration) error {
	if err := c.Submit(cmd); err != nil {
		return err
	}
	return c.WaitIdle(ctx, timeout)
}
