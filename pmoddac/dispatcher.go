package pmoddac

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/nasa-jpl/pmoddac/mailbox"
)

// CommandRegister is the word the dispatcher polls
type CommandRegister interface {
	Command() mailbox.Command
	Clear()
}

// Dispatcher services commands from a register, one at a time
type Dispatcher struct {
	dev *Device
	reg CommandRegister
	lim *rate.Limiter

	// Verbose logs every dispatch when true
	Verbose bool
}

// NewDispatcher returns a dispatcher driving dev from reg.  poll is the
// minimum interval between reads of an idle register; zero polls as fast as
// the goroutine can be scheduled.
func NewDispatcher(dev *Device, reg CommandRegister, poll time.Duration) *Dispatcher {
	lim := rate.NewLimiter(rate.Inf, 1)
	if poll > 0 {
		lim = rate.NewLimiter(rate.Every(poll), 1)
	}
	return &Dispatcher{dev: dev, reg: reg, lim: lim, Verbose: true}
}

// Run services commands until ctx is done.  It returns ctx's error; when the
// context was never cancelled, a forever command means Run never returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		if err := d.Step(ctx); err != nil {
			return err
		}
	}
}

// Step waits for the busy bit, runs the command, and clears the register if
// the command completed.  The register is left untouched when ctx ends the
// command early, so a cancelled command is still visible as pending.
func (d *Dispatcher) Step(ctx context.Context) error {
	cmd, err := d.await(ctx)
	if err != nil {
		return err
	}
	atomic.AddUint64(&d.dev.commands, 1)
	req := cmd.Decode()
	if d.Verbose {
		log.Printf("pmoddac: dispatch %s", cmd)
	}
	switch req.Mode {
	case mailbox.ModeFixed:
		err = d.dev.Fixed(ctx, req.Channel, req.Value)
	case mailbox.ModeTriangle:
		err = d.dev.Triangle(ctx, req.Channel, req.Cycles, req.Delay)
	case mailbox.ModeArbitrary:
		err = d.dev.Arbitrary(ctx, req.Channel, int(req.Cycles))
	case mailbox.ModeNone:
	}
	if err != nil {
		return err
	}
	atomic.AddUint64(&d.dev.completed, 1)
	d.reg.Clear()
	return nil
}

// await spins on the register until the busy bit is set
func (d *Dispatcher) await(ctx context.Context) (mailbox.Command, error) {
	for {
		if err := d.lim.Wait(ctx); err != nil {
			// the limiter refuses a wait that would overrun the deadline
			<-ctx.Done()
			return 0, ctx.Err()
		}
		cmd := d.reg.Command()
		if cmd.Busy() {
			return cmd, nil
		}
	}
}
